package simulator

import (
	"fmt"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// Transport failure reason codes.
const (
	ReasonSchemaInvalid   = "SCHEMA_INVALID_FIELD"
	ReasonMappingError    = "PO_MAPPING_ERROR"
	ReasonFirewallDrop    = "FIREWALL_DROP"
	ReasonTLSExpired      = "TLS_CERT_EXPIRED"
	ReasonDNSFailure      = "DNS_FAILURE"
	ReasonHTTP500         = "HTTP_500"
	ReasonHTTP401         = "HTTP_401"
	ReasonHTTP413         = "HTTP_413"
	ReasonHTTP504         = "HTTP_504"
	ReasonConnectionReset = "CONNECTION_RESET"
	ReasonQueueBacklog    = "PO_QUEUE_BACKLOG"
)

// otherReasons is the pool drawn from for the low-probability "other" failure class.
var otherReasons = []string{
	ReasonDNSFailure,
	ReasonHTTP500,
	ReasonHTTP401,
	ReasonHTTP413,
	ReasonConnectionReset,
	ReasonQueueBacklog,
}

// FailureSpec says whether and where a flow's transport chain breaks.
type FailureSpec struct {
	WillFail   bool
	Checkpoint models.Checkpoint
	Reason     string
}

// NoFailure is the FailureSpec of a healthy chain.
var NoFailure = FailureSpec{}

// Fail builds a FailureSpec for reason, placing it at the checkpoint the reason belongs to.
func Fail(reason string) FailureSpec {
	return FailureSpec{WillFail: true, Checkpoint: failingCheckpoint(reason), Reason: reason}
}

// DrawFailure draws at most one transport failure. The cumulative order is
// schema, mapping, firewall, TLS, other, gateway timeout.
func DrawFailure(rng Source, p TransportParams) FailureSpec {
	r := rng.Float64()
	classes := []struct {
		p      float64
		reason string
	}{
		{p.SchemaInvalid, ReasonSchemaInvalid},
		{p.MappingError, ReasonMappingError},
		{p.FirewallDrop, ReasonFirewallDrop},
		{p.TLSExpired, ReasonTLSExpired},
		{p.Other, ""},
		{p.GatewayTimeout, ReasonHTTP504},
	}
	cum := 0.0
	for _, c := range classes {
		cum += c.p
		if r >= cum {
			continue
		}
		reason := c.reason
		if reason == "" {
			reason = pick(rng, otherReasons)
		}
		return Fail(reason)
	}
	return NoFailure
}

func failingCheckpoint(reason string) models.Checkpoint {
	switch reason {
	case ReasonSchemaInvalid:
		return models.CheckpointSchemaValidation
	case ReasonMappingError:
		return models.CheckpointMappingOK
	case ReasonFirewallDrop:
		return models.CheckpointFirewallEgress
	case ReasonTLSExpired, ReasonDNSFailure, ReasonConnectionReset, ReasonQueueBacklog:
		return models.CheckpointSentHTTP
	default:
		return models.CheckpointConnectorAck
	}
}

// httpStatusFor extracts the status code of an HTTP_nnn reason.
func httpStatusFor(reason string) int {
	var code int
	if _, err := fmt.Sscanf(reason, "HTTP_%d", &code); err != nil {
		return 0
	}
	return code
}

var schemaDetails = []string{
	"Element 'ShipToParty' missing",
	"Invalid value for 'RequestedDeliveryDate'",
	"Unexpected element 'BatchNumber'",
	"Length exceeded for 'CustomerPO'",
}

// failureDetail synthesizes the free-text detail of a failing checkpoint.
func failureDetail(rng Source, reason string, flow models.Flow) string {
	switch reason {
	case ReasonSchemaInvalid:
		return pick(rng, schemaDetails)
	case ReasonMappingError:
		return "ValueMapping not found for plant=" + flow.Plant
	case ReasonFirewallDrop:
		return fmt.Sprintf("Denied by rule FW-OUT-%d", intBetween(rng, 200, 299))
	case ReasonTLSExpired:
		return "remote cert expired"
	case ReasonDNSFailure:
		return "wms.api.dreamcity.local not resolved"
	case ReasonConnectionReset:
		return "connection reset by peer"
	case ReasonQueueBacklog:
		return fmt.Sprintf("adapter queue depth=%d", intBetween(rng, 5000, 20000))
	}
	if code := httpStatusFor(reason); code != 0 {
		return fmt.Sprintf("gateway returned HTTP %d", code)
	}
	return ""
}
