package models

// Checkpoint names a stage of the transport pipeline.
type Checkpoint string

// Checkpoints in pipeline order.
const (
	CheckpointCreated           Checkpoint = "SAP_IDOC_CREATED"
	CheckpointSchemaValidation  Checkpoint = "SAP_SCHEMA_VALIDATION"
	CheckpointPOReceived        Checkpoint = "SAP_PO_RECEIVED"
	CheckpointMappingOK         Checkpoint = "PO_MAPPING_OK"
	CheckpointSentHTTP          Checkpoint = "PO_SENT_HTTP"
	CheckpointFirewallEgress    Checkpoint = "FW_EGRESS_ALLOWED"
	CheckpointConnectorReceived Checkpoint = "SCXCONNECT_RECEIVED"
	CheckpointConnectorAck      Checkpoint = "SCXCONNECT_HTTP_ACK"
	CheckpointWMSIngested       Checkpoint = "WMS_INGESTED"
)

// Pipeline lists every checkpoint in the order a flow passes through them.
var Pipeline = []Checkpoint{
	CheckpointCreated,
	CheckpointSchemaValidation,
	CheckpointPOReceived,
	CheckpointMappingOK,
	CheckpointSentHTTP,
	CheckpointFirewallEgress,
	CheckpointConnectorReceived,
	CheckpointConnectorAck,
	CheckpointWMSIngested,
}

// Index returns the position of c in Pipeline, or -1.
func (c Checkpoint) Index() int {
	for i, cp := range Pipeline {
		if cp == c {
			return i
		}
	}
	return -1
}

// EventStatus is the outcome recorded at a checkpoint.
type EventStatus string

const (
	EventOK   EventStatus = "OK"
	EventFail EventStatus = "FAIL"
)

// Layers and fixed route labels carried by every record.
const (
	LayerTech     = "TECH"
	LayerBusiness = "BUSINESS"
	ProcessOrder  = "ORDER_TO_WMS"
	Route         = "SAP->PO->FW->SCXConnect->WMS"
)

// MessageRef describes the outbound payload.
type MessageRef struct {
	Direction   string `json:"direction"`
	PayloadHash string `json:"payload_hash"`
	Schema      string `json:"schema"`
}

// Endpoint is the system that observed an event.
type Endpoint struct {
	System string `json:"system"`
	Host   string `json:"host"`
}

// HTTPInfo is attached to gateway acknowledgement events.
type HTTPInfo struct {
	StatusCode int `json:"status_code"`
	LatencyMs  int `json:"latency_ms"`
}

// TechTimestamps holds the event instant.
type TechTimestamps struct {
	EventUTC UTCTime `json:"event_utc"`
}

// TechEvent is one checkpoint observation.
type TechEvent struct {
	City          string         `json:"city"`
	Layer         string         `json:"layer"`
	Route         string         `json:"route"`
	Checkpoint    Checkpoint     `json:"checkpoint"`
	CorrelationID string         `json:"correlation_id"`
	SAPIDoc       IDocRef        `json:"sap_idoc"`
	Message       MessageRef     `json:"message"`
	Status        EventStatus    `json:"status"`
	ReasonCode    string         `json:"reason_code"`
	Detail        string         `json:"detail,omitempty"`
	HTTP          *HTTPInfo      `json:"http,omitempty"`
	Timestamps    TechTimestamps `json:"timestamps"`
	Endpoint      Endpoint       `json:"endpoint"`
}

// BusinessStatus is the nominal outcome of the warehouse response.
type BusinessStatus string

const (
	BusinessOK       BusinessStatus = "OK"
	BusinessDegraded BusinessStatus = "DEGRADED"
	BusinessFail     BusinessStatus = "FAIL"
)

// ResponseStatus is what the warehouse answered.
type ResponseStatus string

const (
	ResponseConfirmed ResponseStatus = "CONFIRMED"
	ResponsePartial   ResponseStatus = "PARTIAL"
	ResponseRejected  ResponseStatus = "REJECTED"
	ResponseNone      ResponseStatus = "NONE"
)

// Business reason codes.
const (
	ReasonFullConfirm          = "FULL_CONFIRM"
	ReasonLateResponse         = "SLA_BREACH_LATE_RESPONSE"
	ReasonPartial              = "QTY_MISMATCH_PARTIAL"
	ReasonPartialLate          = "SLA_BREACH_PARTIAL_LATE"
	ReasonConfirmedGTRequested = "CONFIRMED_GT_REQUESTED"
	ReasonUoMMismatch          = "UOM_MISMATCH"
	ReasonNoResponse           = "NO_WMS_RESPONSE"
	ReasonNotSent              = "NOT_SENT_DUE_TECH_FAILURE"
	ReasonIngestAfterAck       = "WMS_INGEST_FAILED_AFTER_HTTP_204"
	SLABreachPrefix            = "SLA_BREACH_"
)

// WMSResponse is the warehouse's answer to the order.
type WMSResponse struct {
	Status ResponseStatus  `json:"status"`
	Detail string          `json:"detail,omitempty"`
	Items  []ConfirmedItem `json:"items,omitempty"`
}

// SLATiming captures due and actual response times.
type SLATiming struct {
	ResponseDueSeconds    int  `json:"response_due_seconds"`
	ActualResponseSeconds *int `json:"actual_response_seconds"`
	Breach                bool `json:"breach"`
}

// BusinessTimestamps holds the send and optional response instants.
type BusinessTimestamps struct {
	OrderSentUTC    UTCTime  `json:"order_sent_utc"`
	WMSRespondedUTC *UTCTime `json:"wms_responded_utc,omitempty"`
}

// BusinessEvent is the single response-to-submission record of a flow.
type BusinessEvent struct {
	City          string             `json:"city"`
	Layer         string             `json:"layer"`
	Process       string             `json:"process"`
	CorrelationID string             `json:"correlation_id"`
	Order         OrderRef           `json:"order"`
	WMSResponse   WMSResponse        `json:"wms_response"`
	SLA           SLATiming          `json:"sla"`
	Status        BusinessStatus     `json:"status"`
	ReasonCode    string             `json:"reason_code"`
	Timestamps    BusinessTimestamps `json:"timestamps"`
}
