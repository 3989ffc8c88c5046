package models

import "github.com/dreamcity/orderflow-monitor/internal/status"

// TechSummary is the transport axis of a rollup.
type TechSummary struct {
	Health         status.Health `json:"health"`
	LastCheckpoint Checkpoint    `json:"last_checkpoint"`
	LastStatus     EventStatus   `json:"last_status"`
	ReasonCode     string        `json:"reason_code"`
}

// BusinessSummary is the business axis of a rollup.
type BusinessSummary struct {
	Health     status.Health  `json:"health"`
	Status     BusinessStatus `json:"status"`
	ReasonCode string         `json:"reason_code"`
}

// SLASummary is the timing axis of a rollup.
type SLASummary struct {
	State                 status.SLAState `json:"state"`
	ResponseDueSeconds    int             `json:"response_due_seconds"`
	ActualResponseSeconds *int            `json:"actual_response_seconds"`
	Breach                bool            `json:"breach"`
}

// RollupTimestamps holds the send instant of the flow.
type RollupTimestamps struct {
	OrderSentUTC UTCTime `json:"order_sent_utc"`
}

// Rollup is the persisted three-axis health summary of one flow.
type Rollup struct {
	City          string           `json:"city,omitempty"`
	CorrelationID string           `json:"correlation_id"`
	Route         string           `json:"route,omitempty"`
	SAPIDoc       IDocRef          `json:"sap_idoc"`
	Order         OrderRef         `json:"order"`
	Tech          TechSummary      `json:"tech"`
	Business      BusinessSummary  `json:"business"`
	SLA           SLASummary       `json:"sla"`
	Timestamps    RollupTimestamps `json:"timestamps"`
}

// TechHealth returns the normalised transport verdict.
func (r Rollup) TechHealth() status.Health {
	return status.ParseHealth(string(r.Tech.Health))
}

// BusinessHealth returns the normalised business verdict.
func (r Rollup) BusinessHealth() status.Health {
	return status.ParseHealth(string(r.Business.Health))
}

// SLAState returns the normalised SLA state.
func (r Rollup) SLAState() status.SLAState {
	return status.ParseSLAState(string(r.SLA.State))
}

// Overall is the worst of the three axes. It is never stored.
func (r Rollup) Overall() status.Health {
	return status.Worst(r.TechHealth(), r.BusinessHealth(), status.SLAStateToHealth(r.SLAState()))
}
