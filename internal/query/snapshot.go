package query

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/status"
)

// ErrNotFound is returned when a correlation id is not in the snapshot.
var ErrNotFound = errors.New("flow not found")

// Recommender supplies remediation steps for a rollup.
type Recommender interface {
	Recommend(r models.Rollup) []string
}

// Snapshot is an immutable, fully loaded rollup set with its derived indexes.
// It is safe for concurrent readers.
type Snapshot struct {
	ID       string
	LoadedAt time.Time

	rollups []models.Rollup
	byCID   map[string]int
	counts  map[string]int
}

// NewSnapshot takes ownership of rollups and precomputes tile counts and the
// correlation id index. The first record wins on duplicate ids.
func NewSnapshot(rollups []models.Rollup, loadedAt time.Time) *Snapshot {
	byCID := make(map[string]int, len(rollups))
	for i, r := range rollups {
		if _, dup := byCID[r.CorrelationID]; !dup {
			byCID[r.CorrelationID] = i
		}
	}
	return &Snapshot{
		ID:       uuid.NewString(),
		LoadedAt: loadedAt.UTC(),
		rollups:  rollups,
		byCID:    byCID,
		counts:   CountsByTile(rollups),
	}
}

// Len is the number of rollups in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.rollups)
}

// Rollups returns a copy of the full set.
func (s *Snapshot) Rollups() []models.Rollup {
	return append([]models.Rollup(nil), s.rollups...)
}

// Filter applies a tile id to the snapshot.
func (s *Snapshot) Filter(tileID string) []models.Rollup {
	return Filter(s.rollups, tileID)
}

// Counts returns a copy of the precomputed tile counts.
func (s *Snapshot) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Lookup finds a rollup by correlation id.
func (s *Snapshot) Lookup(correlationID string) (models.Rollup, bool) {
	i, ok := s.byCID[correlationID]
	if !ok {
		return models.Rollup{}, false
	}
	return s.rollups[i], true
}

// Detail builds the drill-down view for a correlation id. rec may be nil.
func (s *Snapshot) Detail(correlationID string, rec Recommender) (models.FlowDetail, error) {
	r, ok := s.Lookup(correlationID)
	if !ok {
		return models.FlowDetail{}, ErrNotFound
	}
	return BuildDetail(r, rec), nil
}

// Failed-phase labels used when the failure is not a transport checkpoint.
const (
	PhaseBusinessValidation = "BUSINESS_VALIDATION"
	PhaseSLABreach          = "SLA_BREACH"
	PhaseOK                 = "OK"
)

// BuildDetail explains a rollup: where it failed, why, and what to do about it.
func BuildDetail(r models.Rollup, rec Recommender) models.FlowDetail {
	d := models.FlowDetail{
		Rollup:          r,
		Overall:         r.Overall(),
		FailedPhase:     FailedPhase(r),
		FailureReason:   FailureReason(r),
		Recommendations: []string{},
	}
	if rec != nil {
		if recs := rec.Recommend(r); len(recs) > 0 {
			d.Recommendations = recs
		}
	}
	return d
}

// FailedPhase is the tech checkpoint for a transport failure, otherwise the first
// failing axis in business, SLA order.
func FailedPhase(r models.Rollup) string {
	switch {
	case r.TechHealth() == status.Red:
		return string(r.Tech.LastCheckpoint)
	case r.BusinessHealth() != status.Green:
		return PhaseBusinessValidation
	case r.SLAState() == status.SLABreach:
		return PhaseSLABreach
	default:
		return PhaseOK
	}
}

// FailureReason is a one-line title for the failure, empty when nothing failed.
func FailureReason(r models.Rollup) string {
	switch {
	case r.TechHealth() == status.Red && r.Tech.ReasonCode != "":
		return "Technical failure: " + r.Tech.ReasonCode
	case r.Business.ReasonCode != "" && r.Business.ReasonCode != models.ReasonFullConfirm:
		return "Business failure: " + r.Business.ReasonCode
	case r.SLAState() == status.SLABreach:
		return "SLA breach: no response in time"
	default:
		return ""
	}
}
