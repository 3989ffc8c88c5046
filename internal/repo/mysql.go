package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// MySQLStore keeps rollups as JSON documents in a MySQL table.
type MySQLStore struct {
	db    *sql.DB
	table string
}

var _ RollupStore = (*MySQLStore)(nil)

// NewMySQLStore connects with dsn, forcing parseTime and utf8mb4, and creates the table if needed.
func NewMySQLStore(ctx context.Context, dsn, table string) (*MySQLStore, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn required")
	}
	table, err := validTable(table)
	if err != nil {
		return nil, err
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  seq BIGINT AUTO_INCREMENT PRIMARY KEY,
  correlation_id VARCHAR(64) NOT NULL,
  sap_order VARCHAR(32) NOT NULL DEFAULT '',
  doc JSON NOT NULL,
  inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY uq_%s_correlation_id (correlation_id),
  KEY idx_%s_sap_order (sap_order)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, table, table, table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return &MySQLStore{db: db, table: table}, nil
}

func (s *MySQLStore) LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY seq LIMIT ?`, s.table), limit)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	docs := make([][]byte, 0, limit)
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

func (s *MySQLStore) FindRollup(ctx context.Context, correlationID string) (models.Rollup, error) {
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

// InsertRollups uses INSERT IGNORE so re-imports of the same correlation id are skipped.
func (s *MySQLStore) InsertRollups(ctx context.Context, rollups []models.Rollup) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT IGNORE INTO %s (correlation_id, sap_order, doc) VALUES (?, ?, ?)`, s.table))
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
		res, err := stmt.ExecContext(ctx, r.CorrelationID, r.Order.SAPOrder, doc)
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

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
