package engine

import (
	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/status"
)

// Derive reduces a flow's checkpoint chain and business event into its rollup.
// Each axis is classified on its own inputs only.
func Derive(flow models.Flow, techEvents []models.TechEvent, biz models.BusinessEvent) models.Rollup {
	tech := TechSummary(techEvents)

	return models.Rollup{
		City:          biz.City,
		CorrelationID: flow.CorrelationID,
		Route:         models.Route,
		SAPIDoc:       flow.IDoc(),
		Order:         flow.Order(),
		Tech:          tech,
		Business: models.BusinessSummary{
			Health:     BusinessHealth(biz.Status),
			Status:     biz.Status,
			ReasonCode: biz.ReasonCode,
		},
		SLA: models.SLASummary{
			State:                 status.ClassifySLA(biz.SLA.Breach, biz.SLA.ResponseDueSeconds, biz.SLA.ActualResponseSeconds),
			ResponseDueSeconds:    biz.SLA.ResponseDueSeconds,
			ActualResponseSeconds: copyInt(biz.SLA.ActualResponseSeconds),
			Breach:                biz.SLA.Breach,
		},
		Timestamps: models.RollupTimestamps{OrderSentUTC: flow.SentAt},
	}
}

// TechSummary classifies the transport chain. The verdict is binary: RED when the
// last event did not succeed or when WMS ingestion failed anywhere in the chain,
// GREEN otherwise. An empty chain is RED.
func TechSummary(events []models.TechEvent) models.TechSummary {
	if len(events) == 0 {
		return models.TechSummary{Health: status.Red}
	}
	last := events[len(events)-1]
	health := status.Green
	if last.Status != models.EventOK {
		health = status.Red
	} else {
		for _, ev := range events {
			if ev.Checkpoint == models.CheckpointWMSIngested && ev.Status == models.EventFail {
				health = status.Red
				break
			}
		}
	}
	return models.TechSummary{
		Health:         health,
		LastCheckpoint: last.Checkpoint,
		LastStatus:     last.Status,
		ReasonCode:     last.ReasonCode,
	}
}

// BusinessHealth maps FAIL to RED and DEGRADED to AMBER; anything else is GREEN.
func BusinessHealth(s models.BusinessStatus) status.Health {
	switch s {
	case models.BusinessFail:
		return status.Red
	case models.BusinessDegraded:
		return status.Amber
	default:
		return status.Green
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
