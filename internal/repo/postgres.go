package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// PostgresStore keeps rollups as JSONB documents.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ RollupStore = (*PostgresStore)(nil)

// NewPostgresStore connects and pings the database.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}, nil
}

// LoadRollups reads documents in insertion order.
func (s *PostgresStore) LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s ORDER BY seq LIMIT $1`, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan rollups: %w", err)
	}
	return decodeAll(docs)
}

// FindRollup fetches one document by correlation id.
func (s *PostgresStore) FindRollup(ctx context.Context, correlationID string) (models.Rollup, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE correlation_id = $1`, s.table)
	var doc []byte
	if err := s.pool.QueryRow(ctx, query, correlationID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Rollup{}, ErrNotFound
		}
		return models.Rollup{}, err
	}
	return decodeRollup(doc)
}

// InsertRollups writes all documents in one batch.
func (s *PostgresStore) InsertRollups(ctx context.Context, rollups []models.Rollup) (int, error) {
	query := fmt.Sprintf(`INSERT INTO %s (correlation_id, sap_order, order_sent_utc, doc)
		VALUES ($1, $2, $3, $4) ON CONFLICT (correlation_id) DO NOTHING`, s.table)

	batch := &pgx.Batch{}
	for _, r := range rollups {
		doc, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode rollup %s: %w", r.CorrelationID, err)
		}
		batch.Queue(query, r.CorrelationID, r.Order.SAPOrder, r.Timestamps.OrderSentUTC.Time, doc)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range rollups {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert rollup: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
