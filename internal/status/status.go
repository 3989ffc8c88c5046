package status

import "strings"

// Health is the three-valued verdict shared by every health axis.
type Health string

const (
	Green Health = "GREEN"
	Amber Health = "AMBER"
	Red   Health = "RED"
)

// SLAState classifies response timing against the agreed due time.
type SLAState string

const (
	SLAOK     SLAState = "OK"
	SLAAtRisk SLAState = "AT_RISK"
	SLABreach SLAState = "BREACH"
)

// AtRiskRatio is the share of the due time after which a response is AT_RISK.
const AtRiskRatio = 0.8

func (h Health) rank() int {
	switch h {
	case Red:
		return 2
	case Amber:
		return 1
	default:
		return 0
	}
}

// Worse reports whether h is strictly worse than other.
func (h Health) Worse(other Health) bool {
	return h.rank() > other.rank()
}

// ParseHealth normalises a stored health value. Unknown or empty input is GREEN.
func ParseHealth(value string) Health {
	switch Health(strings.ToUpper(strings.TrimSpace(value))) {
	case Red:
		return Red
	case Amber:
		return Amber
	default:
		return Green
	}
}

// ParseSLAState normalises a stored SLA state. Unknown or empty input is OK.
func ParseSLAState(value string) SLAState {
	switch SLAState(strings.ToUpper(strings.TrimSpace(value))) {
	case SLABreach:
		return SLABreach
	case SLAAtRisk:
		return SLAAtRisk
	default:
		return SLAOK
	}
}

// SLAStateToHealth maps BREACH to RED, AT_RISK to AMBER and everything else to GREEN.
func SLAStateToHealth(state SLAState) Health {
	switch ParseSLAState(string(state)) {
	case SLABreach:
		return Red
	case SLAAtRisk:
		return Amber
	default:
		return Green
	}
}

// Worst folds the inputs under GREEN < AMBER < RED. An empty input is GREEN.
func Worst(statuses ...Health) Health {
	worst := Green
	for _, s := range statuses {
		s = ParseHealth(string(s))
		if s.Worse(worst) {
			worst = s
		}
	}
	return worst
}

// ClassifySLA derives the SLA state. The breach flag wins over the AT_RISK threshold.
func ClassifySLA(breach bool, dueSeconds int, actualSeconds *int) SLAState {
	if breach {
		return SLABreach
	}
	if actualSeconds != nil && float64(*actualSeconds) > float64(dueSeconds)*AtRiskRatio {
		return SLAAtRisk
	}
	return SLAOK
}
