package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/engine"
	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/status"
)

func testFlow() models.Flow {
	return models.Flow{
		CorrelationID: "DC-20251210-000001",
		SAPOrder:      "4500100001",
		IDocType:      "ORDERS05",
		IDocNumber:    "0000009000000001",
		Plant:         "DC01",
		Schema:        "ORDERS_v7",
		Items:         []models.LineItem{{SKU: "PANTS-BLK-32", QtyRequested: 5}, {SKU: "SHIRT-WHT-M", QtyRequested: 1}},
		PayloadHash:   "abcdef0123456789",
		SLADueSeconds: 60,
		SentAt:        models.NewUTCTime(time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC)),
	}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func smallParams(flows int) Params {
	p := DefaultParams()
	p.Flows = flows
	return p
}

func TestScenarioSchemaFailure(t *testing.T) {
	rng := testRNG()
	flow := testFlow()
	plan := Plan{Failure: Fail(ReasonSchemaInvalid), LatencySeconds: 1}

	tech := TechEvents(rng, "Dream-City", flow, plan)
	if len(tech) != 2 {
		t.Fatalf("expected 2 tech events, got %d", len(tech))
	}
	if tech[0].Checkpoint != models.CheckpointCreated || tech[0].Status != models.EventOK {
		t.Fatalf("unexpected first event: %+v", tech[0])
	}
	if tech[1].Checkpoint != models.CheckpointSchemaValidation || tech[1].Status != models.EventFail {
		t.Fatalf("unexpected failing event: %+v", tech[1])
	}
	if tech[1].Detail == "" {
		t.Fatalf("expected a failure detail")
	}

	biz := BusinessEvent(rng, "Dream-City", flow, plan)
	if biz.Status != models.BusinessFail || biz.ReasonCode != models.ReasonNotSent {
		t.Fatalf("unexpected business event: %s %s", biz.Status, biz.ReasonCode)
	}
	if biz.SLA.ActualResponseSeconds != nil || !biz.SLA.Breach {
		t.Fatalf("expected no response and breach")
	}
	if biz.WMSResponse.Status != models.ResponseNone {
		t.Fatalf("expected NONE response, got %s", biz.WMSResponse.Status)
	}

	if got := engine.Derive(flow, tech, biz).Overall(); got != status.Red {
		t.Fatalf("expected RED, got %s", got)
	}
}

func TestScenarioHealthyFlow(t *testing.T) {
	rng := testRNG()
	flow := testFlow()
	plan := Plan{LatencySeconds: 2, Outcome: OutcomeOK, ResponseSeconds: 30}
	plan.Confirmed = ConfirmItems(rng, flow.Items, plan.Outcome)

	tech := TechEvents(rng, "Dream-City", flow, plan)
	if len(tech) != len(models.Pipeline) {
		t.Fatalf("expected full chain, got %d events", len(tech))
	}
	ack := tech[len(tech)-2]
	if ack.HTTP == nil || ack.HTTP.StatusCode != 204 || ack.HTTP.LatencyMs != 2000 {
		t.Fatalf("unexpected ack http block: %+v", ack.HTTP)
	}
	if want := flow.SentAt.Add(17 * time.Second); !ack.Timestamps.EventUTC.Equal(want) {
		t.Fatalf("expected ack at %s, got %s", want, ack.Timestamps.EventUTC)
	}

	biz := BusinessEvent(rng, "Dream-City", flow, plan)
	r := engine.Derive(flow, tech, biz)
	if r.SLA.State != status.SLAOK || r.Business.Health != status.Green || r.Tech.Health != status.Green {
		t.Fatalf("unexpected rollup axes: %+v", r)
	}
	if r.Overall() != status.Green {
		t.Fatalf("expected GREEN, got %s", r.Overall())
	}
	if biz.Timestamps.WMSRespondedUTC == nil || !biz.Timestamps.WMSRespondedUTC.Equal(flow.SentAt.Add(30*time.Second)) {
		t.Fatalf("unexpected responded timestamp: %v", biz.Timestamps.WMSRespondedUTC)
	}
}

func TestScenarioLateResponse(t *testing.T) {
	rng := testRNG()
	flow := testFlow()
	plan := Plan{LatencySeconds: 1, Outcome: OutcomeOK, ResponseSeconds: 70}
	plan.Confirmed = ConfirmItems(rng, flow.Items, plan.Outcome)

	tech := TechEvents(rng, "Dream-City", flow, plan)
	biz := BusinessEvent(rng, "Dream-City", flow, plan)
	if biz.Status != models.BusinessFail || biz.ReasonCode != models.ReasonLateResponse {
		t.Fatalf("unexpected business event: %s %s", biz.Status, biz.ReasonCode)
	}
	r := engine.Derive(flow, tech, biz)
	if r.SLA.State != status.SLABreach || r.Overall() != status.Red {
		t.Fatalf("expected BREACH/RED, got %s/%s", r.SLA.State, r.Overall())
	}
}

func TestScenarioFalseSuccess(t *testing.T) {
	rng := testRNG()
	flow := testFlow()
	plan := Plan{LatencySeconds: 1, FalseSuccess: true, Outcome: OutcomeOK, ResponseSeconds: 20}

	tech := TechEvents(rng, "Dream-City", flow, plan)
	last := tech[len(tech)-1]
	if last.Checkpoint != models.CheckpointWMSIngested || last.Status != models.EventFail {
		t.Fatalf("expected failed ingestion, got %+v", last)
	}
	biz := BusinessEvent(rng, "Dream-City", flow, plan)
	if biz.ReasonCode != models.ReasonIngestAfterAck || biz.WMSResponse.Status != models.ResponseNone {
		t.Fatalf("unexpected business event: %+v", biz)
	}
	if actual := *biz.SLA.ActualResponseSeconds; actual < 60+60 || actual > 60+600 {
		t.Fatalf("actual %d outside due+[60,600]", actual)
	}
	r := engine.Derive(flow, tech, biz)
	if r.Tech.Health != status.Red || r.Overall() != status.Red {
		t.Fatalf("expected tech RED and overall RED, got %s/%s", r.Tech.Health, r.Overall())
	}
}

func TestFailureCheckpointPlacement(t *testing.T) {
	cases := map[string]models.Checkpoint{
		ReasonSchemaInvalid:   models.CheckpointSchemaValidation,
		ReasonMappingError:    models.CheckpointMappingOK,
		ReasonFirewallDrop:    models.CheckpointFirewallEgress,
		ReasonTLSExpired:      models.CheckpointSentHTTP,
		ReasonDNSFailure:      models.CheckpointSentHTTP,
		ReasonConnectionReset: models.CheckpointSentHTTP,
		ReasonQueueBacklog:    models.CheckpointSentHTTP,
		ReasonHTTP500:         models.CheckpointConnectorAck,
		ReasonHTTP401:         models.CheckpointConnectorAck,
		ReasonHTTP413:         models.CheckpointConnectorAck,
		ReasonHTTP504:         models.CheckpointConnectorAck,
	}
	for reason, want := range cases {
		plan := Plan{Failure: Fail(reason), LatencySeconds: 3}
		tech := TechEvents(testRNG(), "Dream-City", testFlow(), plan)
		last := tech[len(tech)-1]
		if last.Checkpoint != want || last.Status != models.EventFail || last.ReasonCode != reason {
			t.Fatalf("%s: expected FAIL at %s, got %s %s", reason, want, last.Status, last.Checkpoint)
		}
		if len(tech) != want.Index()+1 {
			t.Fatalf("%s: expected %d events, got %d", reason, want.Index()+1, len(tech))
		}
		if want == models.CheckpointConnectorAck && (last.HTTP == nil || last.HTTP.StatusCode != httpStatusFor(reason)) {
			t.Fatalf("%s: expected http block, got %+v", reason, last.HTTP)
		}
	}
}

func TestConfirmItemsBounds(t *testing.T) {
	rng := testRNG()
	items := []models.LineItem{{SKU: "A", QtyRequested: 1}, {SKU: "B", QtyRequested: 12}, {SKU: "C", QtyRequested: 6, UoM: "EA"}}
	for i := 0; i < 200; i++ {
		for j, ci := range ConfirmItems(rng, items, OutcomePartial) {
			if ci.QtyConfirmed >= items[j].QtyRequested || ci.QtyConfirmed < 0 {
				t.Fatalf("partial qty %d not below requested %d", ci.QtyConfirmed, items[j].QtyRequested)
			}
		}
		for j, ci := range ConfirmItems(rng, items, OutcomeConfirmedGT) {
			if ci.QtyConfirmed <= items[j].QtyRequested || ci.QtyConfirmed > items[j].QtyRequested+3 {
				t.Fatalf("over-confirmed qty %d out of range for %d", ci.QtyConfirmed, items[j].QtyRequested)
			}
		}
	}
	if got := ConfirmItems(rng, items, OutcomeOK)[2]; got.QtyConfirmed != 6 || got.UoM != "EA" {
		t.Fatalf("unexpected confirmed line: %+v", got)
	}
}

func TestGenerateInvariants(t *testing.T) {
	batch, err := NewGenerator(smallParams(3000), 42, nil).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(batch.Flows) != 3000 || len(batch.BusinessEvents) != 3000 || len(batch.Rollups) != 3000 {
		t.Fatalf("unexpected batch sizes")
	}

	byCID := make(map[string][]models.TechEvent)
	for _, ev := range batch.TechEvents {
		byCID[ev.CorrelationID] = append(byCID[ev.CorrelationID], ev)
	}
	params := DefaultParams()
	latest := params.WindowEnd.Add(-sendWindowMargin)
	for i, flow := range batch.Flows {
		if flow.SentAt.Before(params.WindowStart) || flow.SentAt.After(latest) {
			t.Fatalf("sent time %s outside window", flow.SentAt)
		}
		chain := byCID[flow.CorrelationID]
		fails := 0
		for k, ev := range chain {
			if k > 0 && ev.Timestamps.EventUTC.Before(chain[k-1].Timestamps.EventUTC.Time) {
				t.Fatalf("%s: timestamps not monotonic", flow.CorrelationID)
			}
			if ev.Checkpoint != models.Pipeline[k] {
				t.Fatalf("%s: checkpoint %s out of order", flow.CorrelationID, ev.Checkpoint)
			}
			if ev.Status == models.EventFail {
				fails++
				if k != len(chain)-1 {
					t.Fatalf("%s: FAIL is not terminal", flow.CorrelationID)
				}
			}
		}
		if fails > 1 {
			t.Fatalf("%s: more than one FAIL", flow.CorrelationID)
		}
		biz := batch.BusinessEvents[i]
		transportFailed := fails == 1 && chain[len(chain)-1].Checkpoint != models.CheckpointWMSIngested
		if (biz.ReasonCode == models.ReasonNotSent) != transportFailed {
			t.Fatalf("%s: NOT_SENT must coincide with a transport failure", flow.CorrelationID)
		}
		if biz.SLA.ActualResponseSeconds != nil && biz.SLA.Breach != (*biz.SLA.ActualResponseSeconds > biz.SLA.ResponseDueSeconds) {
			t.Fatalf("%s: breach flag inconsistent", flow.CorrelationID)
		}
		if batch.Rollups[i].CorrelationID != flow.CorrelationID {
			t.Fatalf("rollup order does not follow flows")
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	for _, dir := range []string{dirA, dirB} {
		batch, err := NewGenerator(smallParams(500), 42, nil).Generate(context.Background())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, err := WriteBatch(dir, FilePrefix("Dream-City"), batch); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for _, name := range []string{"dream_city_tech_events.jsonl", "dream_city_rollup_flows.array.json"} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("%s differs between runs with the same seed", name)
		}
	}
}

func TestWriteBatchFormats(t *testing.T) {
	dir := t.TempDir()
	batch, err := NewGenerator(smallParams(20), 1, nil).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	files, err := WriteBatch(dir, "dream_city", batch)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(files.Rollups)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `SAP->PO->FW`) {
		t.Fatalf("route must not be HTML-escaped: %s", lines[0])
	}

	arr, err := os.ReadFile(filepath.Join(dir, "dream_city_business_events.array.json"))
	if err != nil {
		t.Fatalf("read array: %v", err)
	}
	var decoded []models.BusinessEvent
	if err := json.Unmarshal(arr, &decoded); err != nil {
		t.Fatalf("decode array: %v", err)
	}
	if len(decoded) != 20 {
		t.Fatalf("expected 20 business events, got %d", len(decoded))
	}
}

func TestLoadParamsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte("flows: 25\nbusiness:\n  late: 0.5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := LoadParams(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Flows != 25 || p.Business.Late != 0.5 {
		t.Fatalf("overlay not applied: %+v", p)
	}
	if p.Business.Partial != DefaultParams().Business.Partial || len(p.SKUs) != 10 {
		t.Fatalf("defaults lost in overlay")
	}
}

func TestPayloadHash(t *testing.T) {
	items := []models.LineItem{{SKU: "A", QtyRequested: 2}}
	h := PayloadHash("DC-1", items)
	if len(h) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", h)
	}
	if PayloadHash("DC-1", items) != h || PayloadHash("DC-2", items) == h {
		t.Fatalf("hash must depend only on its inputs")
	}
}
