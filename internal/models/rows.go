package models

import "github.com/dreamcity/orderflow-monitor/internal/status"

// NodeType identifies the role of a display row under its order.
type NodeType string

const (
	NodeFlow     NodeType = "FLOW"
	NodeTech     NodeType = "TECH"
	NodeBusiness NodeType = "BUSINESS"
	NodeSLA      NodeType = "SLA"
)

// Row is a flattened projection of a rollup for the dashboard grid.
// RowStatus is the row's own verdict, Overall the flow aggregate and
// OrderOverall the aggregate over every row sharing the same SAP order.
type Row struct {
	SAPOrder      string          `json:"sap_order"`
	NodeType      NodeType        `json:"node_type"`
	Overall       status.Health   `json:"overall"`
	RowStatus     status.Health   `json:"row_status"`
	OrderOverall  status.Health   `json:"order_overall"`
	Plant         string          `json:"plant"`
	IDoc          string          `json:"idoc"`
	Key           string          `json:"key"`
	Value         string          `json:"value"`
	Reason        string          `json:"reason"`
	Checkpoint    string          `json:"checkpoint"`
	SLAState      status.SLAState `json:"sla_state"`
	CorrelationID string          `json:"correlation_id"`
}

// FlowDetail is the drill-down view of a single rollup.
type FlowDetail struct {
	Rollup          Rollup        `json:"rollup"`
	Overall         status.Health `json:"overall"`
	FailedPhase     string        `json:"failed_phase"`
	FailureReason   string        `json:"failure_reason"`
	Recommendations []string      `json:"recommendations"`
}
