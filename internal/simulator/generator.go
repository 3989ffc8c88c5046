package simulator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/engine"
	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// sendWindowMargin keeps every send instant at least ten minutes before the window end.
const sendWindowMargin = 10 * time.Minute

// Batch is everything one simulation run produces, in flow order.
type Batch struct {
	Flows          []models.Flow
	TechEvents     []models.TechEvent
	BusinessEvents []models.BusinessEvent
	Rollups        []models.Rollup
}

// Generator produces reproducible synthetic flows from a seed.
type Generator struct {
	params Params
	rng    Source
	logger *slog.Logger
}

// NewGenerator returns a generator seeded with seed. The same seed and params always
// yield byte-identical output.
func NewGenerator(params Params, seed int64, logger *slog.Logger) *Generator {
	return NewGeneratorWithSource(params, rand.New(rand.NewSource(seed)), logger)
}

// NewGeneratorWithSource uses an explicit random source.
func NewGeneratorWithSource(params Params, rng Source, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{params: params, rng: rng, logger: logger}
}

// Generate draws every flow and derives its events and rollup.
func (g *Generator) Generate(ctx context.Context) (Batch, error) {
	if err := g.params.Validate(); err != nil {
		return Batch{}, fmt.Errorf("simulator params: %w", err)
	}

	n := g.params.Flows
	batch := Batch{
		Flows:          make([]models.Flow, 0, n),
		TechEvents:     make([]models.TechEvent, 0, n*len(models.Pipeline)),
		BusinessEvents: make([]models.BusinessEvent, 0, n),
		Rollups:        make([]models.Rollup, 0, n),
	}
	for i := 1; i <= n; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return Batch{}, err
			}
		}
		flow := g.drawFlow(i)
		plan := g.drawPlan(flow)

		tech := TechEvents(g.rng, g.params.City, flow, plan)
		biz := BusinessEvent(g.rng, g.params.City, flow, plan)

		batch.Flows = append(batch.Flows, flow)
		batch.TechEvents = append(batch.TechEvents, tech...)
		batch.BusinessEvents = append(batch.BusinessEvents, biz)
		batch.Rollups = append(batch.Rollups, engine.Derive(flow, tech, biz))
	}

	g.logger.Info("simulation complete",
		slog.Int("flows", len(batch.Flows)),
		slog.Int("tech_events", len(batch.TechEvents)),
		slog.Int("business_events", len(batch.BusinessEvents)))
	return batch, nil
}

func (g *Generator) drawFlow(i int) models.Flow {
	p := g.params
	span := int(p.WindowEnd.Add(-sendWindowMargin).Sub(p.WindowStart) / time.Second)
	sent := p.WindowStart.Add(time.Duration(intBetween(g.rng, 0, span)) * time.Second)
	cid := fmt.Sprintf("DC-%s-%06d", sent.UTC().Format("20060102"), i)

	flow := models.Flow{
		CorrelationID: cid,
		SAPOrder:      fmt.Sprintf("%d", 4500100000+i),
		IDocType:      p.IDocType,
		IDocNumber:    fmt.Sprintf("%016d", 9000000000+i),
		Plant:         pick(g.rng, p.Plants),
		Schema:        p.Schemas[weightedIndex(g.rng, p.SchemaWeights)],
		SentAt:        models.NewUTCTime(sent),
	}
	count := weightedIndex(g.rng, p.ItemCountWeights) + 1
	flow.Items = make([]models.LineItem, 0, count)
	for range count {
		item := models.LineItem{
			SKU:          pick(g.rng, p.SKUs),
			QtyRequested: intBetween(g.rng, 1, p.MaxQtyRequested),
		}
		if g.rng.Float64() < p.UoMProbability {
			item.UoM = pick(g.rng, p.UoMs)
		}
		flow.Items = append(flow.Items, item)
	}
	flow.PayloadHash = PayloadHash(cid, flow.Items)
	flow.SLADueSeconds = pick(g.rng, p.SLADueSeconds)
	return flow
}

// drawPlan makes the per-flow draws in a fixed order: failure, latency,
// false success, outcome, response time, confirmed lines, reject code.
func (g *Generator) drawPlan(flow models.Flow) Plan {
	p := g.params
	plan := Plan{Failure: DrawFailure(g.rng, p.Transport)}
	plan.LatencySeconds = intBetween(g.rng, 80, 450) / 100
	if !plan.TransportOK() {
		return plan
	}
	plan.FalseSuccess = g.rng.Float64() < p.Transport.FalseSuccess
	plan.Outcome = DrawOutcome(g.rng, p.Business)
	if plan.Outcome == OutcomeNoResponse {
		return plan
	}
	plan.ResponseSeconds = DrawResponseSeconds(g.rng, flow.SLADueSeconds, p.Business.Late)
	if !plan.FalseSuccess {
		plan.Confirmed = ConfirmItems(g.rng, flow.Items, plan.Outcome)
	}
	if plan.Outcome == OutcomeReject {
		plan.Reject = pick(g.rng, rejectCodes)
	}
	return plan
}

// PayloadHash is the first 16 hex characters of the SHA-256 of the correlation id
// followed by the items rendered as JSON with sorted keys.
func PayloadHash(correlationID string, items []models.LineItem) string {
	canonical := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m := map[string]any{"sku": it.SKU, "qty_requested": it.QtyRequested}
		if it.UoM != "" {
			m["uom"] = it.UoM
		}
		canonical = append(canonical, m)
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(append([]byte(correlationID), raw...))
	return hex.EncodeToString(sum[:])[:16]
}
