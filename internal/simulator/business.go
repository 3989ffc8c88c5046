package simulator

import (
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// Outcome is the drawn warehouse behaviour for a flow whose transport succeeded.
type Outcome string

const (
	OutcomeOK          Outcome = "OK"
	OutcomePartial     Outcome = "PARTIAL"
	OutcomeReject      Outcome = "REJECT"
	OutcomeConfirmedGT Outcome = "CONFIRMED_GT"
	OutcomeUoMMismatch Outcome = "UOM_MISMATCH"
	OutcomeNoResponse  Outcome = "NO_RESPONSE"
)

// Reject is a warehouse rejection code with its detail text.
type Reject struct {
	Code   string
	Detail string
}

var rejectCodes = []Reject{
	{"SKU_UNKNOWN", "Unknown SKU"},
	{"BLOCKED_SHIP_TO", "Invalid ship-to / blocked customer"},
	{"VALIDATION_ERROR", "Mandatory field missing in order"},
}

// Plan holds every draw made for one flow before its events are emitted.
type Plan struct {
	Failure         FailureSpec
	LatencySeconds  int
	FalseSuccess    bool
	Outcome         Outcome
	ResponseSeconds int
	Confirmed       []models.ConfirmedItem
	Reject          Reject
}

// TransportOK reports whether the order reached the warehouse gateway.
func (p Plan) TransportOK() bool {
	return !p.Failure.WillFail
}

// DrawOutcome draws the business outcome. The cumulative order is no response,
// UoM mismatch, over-confirmation, reject, partial; the remainder is OK.
func DrawOutcome(rng Source, p BusinessParams) Outcome {
	r := rng.Float64()
	classes := []struct {
		p       float64
		outcome Outcome
	}{
		{p.NoResponse, OutcomeNoResponse},
		{p.UoMMismatch, OutcomeUoMMismatch},
		{p.ConfirmedGT, OutcomeConfirmedGT},
		{p.Reject, OutcomeReject},
		{p.Partial, OutcomePartial},
	}
	cum := 0.0
	for _, c := range classes {
		cum += c.p
		if r < cum {
			return c.outcome
		}
	}
	return OutcomeOK
}

// DrawResponseSeconds draws the response time: a late response lands 10-240s past
// due, an on-time one between 5s and 5s before due.
func DrawResponseSeconds(rng Source, dueSeconds int, lateProbability float64) int {
	if rng.Float64() < lateProbability {
		return dueSeconds + intBetween(rng, 10, 240)
	}
	return intBetween(rng, 5, max(10, dueSeconds-5))
}

// ConfirmItems derives the confirmed lines for an outcome. A partial line is always
// strictly below the requested quantity, an over-confirmed one strictly above.
func ConfirmItems(rng Source, items []models.LineItem, outcome Outcome) []models.ConfirmedItem {
	out := make([]models.ConfirmedItem, 0, len(items))
	for _, it := range items {
		qty := it.QtyRequested
		switch outcome {
		case OutcomePartial:
			qty = 0
			if it.QtyRequested > 0 {
				qty = max(0, it.QtyRequested-intBetween(rng, 1, it.QtyRequested))
			}
			if qty >= it.QtyRequested {
				qty = max(0, it.QtyRequested-1)
			}
		case OutcomeConfirmedGT:
			qty = it.QtyRequested + intBetween(rng, 1, 3)
		case OutcomeReject, OutcomeUoMMismatch:
			qty = 0
		}
		out = append(out, models.ConfirmedItem{SKU: it.SKU, QtyConfirmed: qty, UoM: it.UoM})
	}
	return out
}

// BusinessEvent emits the single business record of a flow from its plan.
func BusinessEvent(rng Source, city string, flow models.Flow, plan Plan) models.BusinessEvent {
	due := flow.SLADueSeconds
	ev := models.BusinessEvent{
		City:          city,
		Layer:         models.LayerBusiness,
		Process:       models.ProcessOrder,
		CorrelationID: flow.CorrelationID,
		Order:         flow.Order(),
		SLA:           models.SLATiming{ResponseDueSeconds: due},
		Timestamps:    models.BusinessTimestamps{OrderSentUTC: flow.SentAt},
	}
	noResponse := func(reason string, actual *int) models.BusinessEvent {
		ev.WMSResponse = models.WMSResponse{Status: models.ResponseNone}
		ev.SLA.ActualResponseSeconds = actual
		ev.SLA.Breach = true
		ev.Status = models.BusinessFail
		ev.ReasonCode = reason
		return ev
	}

	switch {
	case !plan.TransportOK():
		return noResponse(models.ReasonNotSent, nil)
	case plan.FalseSuccess:
		actual := due + intBetween(rng, 60, 600)
		return noResponse(models.ReasonIngestAfterAck, &actual)
	case plan.Outcome == OutcomeNoResponse:
		actual := due + intBetween(rng, 1, 3600)
		return noResponse(models.ReasonNoResponse, &actual)
	}

	actual := plan.ResponseSeconds
	breach := actual > due
	responded := models.NewUTCTime(flow.SentAt.Add(time.Duration(actual) * time.Second))
	ev.SLA.ActualResponseSeconds = &actual
	ev.SLA.Breach = breach
	ev.Timestamps.WMSRespondedUTC = &responded

	switch plan.Outcome {
	case OutcomePartial:
		ev.WMSResponse = models.WMSResponse{Status: models.ResponsePartial, Items: plan.Confirmed}
		ev.Status, ev.ReasonCode = models.BusinessDegraded, models.ReasonPartial
		if breach {
			ev.Status, ev.ReasonCode = models.BusinessFail, models.ReasonPartialLate
		}
	case OutcomeReject:
		ev.WMSResponse = models.WMSResponse{Status: models.ResponseRejected, Detail: plan.Reject.Detail, Items: plan.Confirmed}
		ev.Status, ev.ReasonCode = models.BusinessFail, plan.Reject.Code
		if breach {
			ev.ReasonCode = models.SLABreachPrefix + plan.Reject.Code
		}
	case OutcomeConfirmedGT:
		ev.WMSResponse = models.WMSResponse{Status: models.ResponseConfirmed, Items: plan.Confirmed}
		ev.Status, ev.ReasonCode = models.BusinessFail, models.ReasonConfirmedGTRequested
	case OutcomeUoMMismatch:
		ev.WMSResponse = models.WMSResponse{Status: models.ResponseRejected, Detail: "UoM mismatch EA vs PCS", Items: plan.Confirmed}
		ev.Status, ev.ReasonCode = models.BusinessFail, models.ReasonUoMMismatch
	default:
		ev.WMSResponse = models.WMSResponse{Status: models.ResponseConfirmed, Items: plan.Confirmed}
		ev.Status, ev.ReasonCode = models.BusinessOK, models.ReasonFullConfirm
		if breach {
			ev.Status, ev.ReasonCode = models.BusinessFail, models.ReasonLateResponse
		}
	}
	return ev
}
