package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/status"
)

func TestRollupOverallIsWorstOfAxes(t *testing.T) {
	cases := []struct {
		tech, biz status.Health
		sla       status.SLAState
		want      status.Health
	}{
		{status.Green, status.Green, status.SLAOK, status.Green},
		{status.Green, status.Green, status.SLAAtRisk, status.Amber},
		{status.Green, status.Amber, status.SLAOK, status.Amber},
		{status.Green, status.Amber, status.SLABreach, status.Red},
		{status.Red, status.Green, status.SLAOK, status.Red},
		{"", "", "", status.Green},
	}
	for _, tc := range cases {
		r := Rollup{
			Tech:     TechSummary{Health: tc.tech},
			Business: BusinessSummary{Health: tc.biz},
			SLA:      SLASummary{State: tc.sla},
		}
		if got := r.Overall(); got != tc.want {
			t.Fatalf("Overall(%s,%s,%s) = %s, want %s", tc.tech, tc.biz, tc.sla, got, tc.want)
		}
	}
}

func TestRollupJSONShape(t *testing.T) {
	sent := NewUTCTime(time.Date(2025, 12, 9, 8, 30, 15, 500, time.UTC))
	r := Rollup{
		CorrelationID: "DC-20251209-000001",
		SAPIDoc:       IDocRef{IDocType: "ORDERS05", Number: "0000009000000001", Plant: "DC01"},
		Order:         OrderRef{SAPOrder: "4500100001", Items: []LineItem{{SKU: "BELT-BRN-40", QtyRequested: 2}}},
		Tech:          TechSummary{Health: status.Green, LastCheckpoint: CheckpointWMSIngested, LastStatus: EventOK, ReasonCode: "INGESTED"},
		Business:      BusinessSummary{Health: status.Green, Status: BusinessOK, ReasonCode: ReasonFullConfirm},
		SLA:           SLASummary{State: status.SLAOK, ResponseDueSeconds: 60},
		Timestamps:    RollupTimestamps{OrderSentUTC: sent},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, want := range []string{
		`"order_sent_utc":"2025-12-09T08:30:15Z"`,
		`"actual_response_seconds":null`,
		`"sap_idoc":{"idoc_type":"ORDERS05","number":"0000009000000001","plant":"DC01"}`,
		`"items":[{"sku":"BELT-BRN-40","qty_requested":2}]`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}

	var decoded Rollup
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Timestamps.OrderSentUTC.Equal(sent.Time) {
		t.Fatalf("timestamp lost: %v", decoded.Timestamps.OrderSentUTC)
	}
}

func TestCheckpointIndex(t *testing.T) {
	if CheckpointCreated.Index() != 0 || CheckpointWMSIngested.Index() != len(Pipeline)-1 {
		t.Fatalf("unexpected pipeline ordering")
	}
	if Checkpoint("NOPE").Index() != -1 {
		t.Fatalf("unknown checkpoint should have index -1")
	}
}
