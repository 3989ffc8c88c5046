package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// SQLiteStore keeps rollups as JSON text in a local database file.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

var _ RollupStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens path and creates the table if needed.
func NewSQLiteStore(path, table string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  correlation_id TEXT NOT NULL UNIQUE,
  sap_order TEXT NOT NULL DEFAULT '',
  doc TEXT NOT NULL,
  inserted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`, table)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_sap_order ON %s(sap_order);`, table, table)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, table: table}, nil
}

func (s *SQLiteStore) LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY seq LIMIT ?`, s.table), limit)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decodeAll(docs)
}

func (s *SQLiteStore) FindRollup(ctx context.Context, correlationID string) (models.Rollup, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE correlation_id = ?`, s.table), correlationID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Rollup{}, ErrNotFound
	}
	if err != nil {
		return models.Rollup{}, err
	}
	return decodeRollup(doc)
}

// InsertRollups writes in a single transaction; either every row lands or none.
func (s *SQLiteStore) InsertRollups(ctx context.Context, rollups []models.Rollup) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO %s (correlation_id, sap_order, doc) VALUES (?, ?, ?)`, s.table))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range rollups {
		doc, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode rollup %s: %w", r.CorrelationID, err)
		}
		res, err := stmt.ExecContext(ctx, r.CorrelationID, r.Order.SAPOrder, string(doc))
		if err != nil {
			return 0, fmt.Errorf("insert rollup %s: %w", r.CorrelationID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
