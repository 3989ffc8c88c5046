package query

import (
	"fmt"
	"strconv"

	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/status"
)

const unknownOrder = "UNKNOWN"

// ToRows flattens each rollup into FLOW, TECH, BUSINESS and SLA rows grouped by SAP
// order. OrderOverall is filled in a second pass once every row of a group is known,
// since the worst row of an order can precede the order's first appearance.
func ToRows(rollups []models.Rollup) []models.Row {
	rows := make([]models.Row, 0, len(rollups)*4)
	for _, r := range rollups {
		order := r.Order.SAPOrder
		if order == "" {
			order = unknownOrder
		}
		tech := r.TechHealth()
		biz := r.BusinessHealth()
		slaState := r.SLAState()
		overall := r.Overall()

		base := models.Row{
			SAPOrder:      order,
			Overall:       overall,
			OrderOverall:  overall,
			Plant:         r.SAPIDoc.Plant,
			IDoc:          r.SAPIDoc.Number,
			SLAState:      slaState,
			CorrelationID: r.CorrelationID,
		}

		flow := base
		flow.NodeType = models.NodeFlow
		flow.RowStatus = overall
		flow.Key = "Summary"

		techRow := base
		techRow.NodeType = models.NodeTech
		techRow.RowStatus = tech
		techRow.Key = "Transport"
		techRow.Value = fmt.Sprintf("%s / %s", tech, r.Tech.LastStatus)
		techRow.Reason = r.Tech.ReasonCode
		techRow.Checkpoint = string(r.Tech.LastCheckpoint)

		bizRow := base
		bizRow.NodeType = models.NodeBusiness
		bizRow.RowStatus = biz
		bizRow.Key = "Business"
		bizRow.Value = fmt.Sprintf("%s / %s", biz, r.Business.Status)
		bizRow.Reason = r.Business.ReasonCode

		slaRow := base
		slaRow.NodeType = models.NodeSLA
		slaRow.RowStatus = slaColor(r)
		slaRow.Key = "SLA"
		slaRow.Value = slaValue(r.SLA)
		slaRow.Reason = string(slaState)

		rows = append(rows, flow, techRow, bizRow, slaRow)
	}

	groups := make(map[string]status.Health)
	for _, row := range rows {
		groups[row.SAPOrder] = status.Worst(groups[row.SAPOrder], row.RowStatus)
	}
	for i := range rows {
		rows[i].OrderOverall = groups[rows[i].SAPOrder]
	}
	return rows
}

func slaValue(s models.SLASummary) string {
	actual := "-"
	if s.ActualResponseSeconds != nil {
		actual = strconv.Itoa(*s.ActualResponseSeconds) + "s"
	}
	return fmt.Sprintf("due: %ds / actual: %s", s.ResponseDueSeconds, actual)
}
