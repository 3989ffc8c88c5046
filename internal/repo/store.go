package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// ErrNotFound is returned when a correlation id has no stored rollup.
var ErrNotFound = errors.New("rollup not found")

// DefaultTable is the collection the simulator loads and the dashboard reads.
const DefaultTable = "rollup_flows"

// RollupStore persists rollups as JSON documents keyed by correlation id.
type RollupStore interface {
	// LoadRollups is a single bulk read of at most limit rollups in insertion order.
	LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error)
	FindRollup(ctx context.Context, correlationID string) (models.Rollup, error)
	// InsertRollups skips correlation ids that are already stored and returns the number inserted.
	InsertRollups(ctx context.Context, rollups []models.Rollup) (int, error)
	Close() error
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validTable(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !tableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

func decodeRollup(doc []byte) (models.Rollup, error) {
	var r models.Rollup
	if err := json.Unmarshal(doc, &r); err != nil {
		return models.Rollup{}, fmt.Errorf("decode rollup: %w", err)
	}
	return r, nil
}

func decodeAll(docs [][]byte) ([]models.Rollup, error) {
	out := make([]models.Rollup, 0, len(docs))
	for _, doc := range docs {
		r, err := decodeRollup(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
