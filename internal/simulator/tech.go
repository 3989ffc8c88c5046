package simulator

import (
	"net/http"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

var (
	endpointSAP       = models.Endpoint{System: "SAP", Host: "sap-prd-01"}
	endpointPO        = models.Endpoint{System: "SAP/PO", Host: "po-prd-01"}
	endpointFirewall  = models.Endpoint{System: "FIREWALL", Host: "fw-edge-01"}
	endpointConnector = models.Endpoint{System: "SCExpert/Connect", Host: "scxconnect-01"}
	endpointWMS       = models.Endpoint{System: "SCExpert/WMS", Host: "wms-01"}
)

// ReasonWMSIngestFailed marks a false success at the final checkpoint.
const ReasonWMSIngestFailed = "WMS_INGEST_FAILED"

type stage struct {
	checkpoint models.Checkpoint
	offset     int
	okReason   string
	endpoint   models.Endpoint
}

// stages up to and including the connector receipt sit at fixed offsets from send time.
var fixedStages = []stage{
	{models.CheckpointCreated, 1, "CREATED", endpointSAP},
	{models.CheckpointSchemaValidation, 2, "SCHEMA_OK", endpointSAP},
	{models.CheckpointPOReceived, 5, "RECEIVED_BY_PO", endpointPO},
	{models.CheckpointMappingOK, 8, "MAPPING_OK", endpointPO},
	{models.CheckpointSentHTTP, 12, "HTTP_SENT", endpointPO},
	{models.CheckpointFirewallEgress, 13, "ALLOWED", endpointFirewall},
	{models.CheckpointConnectorReceived, 15, "RECEIVED", endpointConnector},
}

// TechEvents emits the ordered checkpoint chain of a flow. The chain stops at the
// failing checkpoint; otherwise it runs through WMS ingestion, which fails only on
// a false success.
func TechEvents(rng Source, city string, flow models.Flow, plan Plan) []models.TechEvent {
	events := make([]models.TechEvent, 0, len(models.Pipeline))
	sent := flow.SentAt.Time
	at := func(offset int) models.UTCTime {
		return models.NewUTCTime(sent.Add(time.Duration(offset) * time.Second))
	}

	for _, st := range fixedStages {
		if plan.Failure.WillFail && plan.Failure.Checkpoint == st.checkpoint {
			ev := newTechEvent(city, flow, st.checkpoint, st.endpoint, at(st.offset))
			return append(events, failed(rng, ev, flow, plan.Failure.Reason))
		}
		ev := newTechEvent(city, flow, st.checkpoint, st.endpoint, at(st.offset))
		ev.Status = models.EventOK
		ev.ReasonCode = st.okReason
		events = append(events, ev)
	}

	ackOffset := 15 + plan.LatencySeconds
	ack := newTechEvent(city, flow, models.CheckpointConnectorAck, endpointConnector, at(ackOffset))
	if plan.Failure.WillFail {
		// Reasons without a dedicated checkpoint surface at the gateway ack.
		ack = failed(rng, ack, flow, plan.Failure.Reason)
		ack.HTTP = &models.HTTPInfo{StatusCode: httpStatusFor(plan.Failure.Reason), LatencyMs: plan.LatencySeconds * 1000}
		return append(events, ack)
	}
	ack.Status = models.EventOK
	ack.ReasonCode = "HTTP_204"
	ack.HTTP = &models.HTTPInfo{StatusCode: http.StatusNoContent, LatencyMs: plan.LatencySeconds * 1000}
	events = append(events, ack)

	ingest := newTechEvent(city, flow, models.CheckpointWMSIngested, endpointWMS, at(ackOffset+intBetween(rng, 1, 5)))
	if plan.FalseSuccess {
		ingest.Status = models.EventFail
		ingest.ReasonCode = ReasonWMSIngestFailed
	} else {
		ingest.Status = models.EventOK
		ingest.ReasonCode = "INGESTED"
	}
	return append(events, ingest)
}

func newTechEvent(city string, flow models.Flow, cp models.Checkpoint, ep models.Endpoint, ts models.UTCTime) models.TechEvent {
	return models.TechEvent{
		City:          city,
		Layer:         models.LayerTech,
		Route:         models.Route,
		Checkpoint:    cp,
		CorrelationID: flow.CorrelationID,
		SAPIDoc:       flow.IDoc(),
		Message:       models.MessageRef{Direction: "OUTBOUND", PayloadHash: flow.PayloadHash, Schema: flow.Schema},
		Timestamps:    models.TechTimestamps{EventUTC: ts},
		Endpoint:      ep,
	}
}

func failed(rng Source, ev models.TechEvent, flow models.Flow, reason string) models.TechEvent {
	ev.Status = models.EventFail
	ev.ReasonCode = reason
	ev.Detail = failureDetail(rng, reason, flow)
	return ev
}
