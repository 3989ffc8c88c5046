package repo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// FileStore reads and appends newline-delimited rollup documents, the format the simulator writes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ RollupStore = (*FileStore)(nil)

// NewFileStore fails when path does not exist, so a misconfigured path is caught at startup.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open rollup file: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Rollup, 0)
	err := s.scan(func(r models.Rollup) bool {
		out = append(out, r)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) FindRollup(_ context.Context, correlationID string) (models.Rollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found models.Rollup
		ok    bool
	)
	err := s.scan(func(r models.Rollup) bool {
		if r.CorrelationID == correlationID {
			found, ok = r, true
			return false
		}
		return true
	})
	if err != nil {
		return models.Rollup{}, err
	}
	if !ok {
		return models.Rollup{}, ErrNotFound
	}
	return found, nil
}

// InsertRollups appends rollups whose correlation id is not yet in the file.
func (s *FileStore) InsertRollups(_ context.Context, rollups []models.Rollup) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	if err := s.scan(func(r models.Rollup) bool {
		seen[r.CorrelationID] = struct{}{}
		return true
	}); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	inserted := 0
	for _, r := range rollups {
		if _, dup := seen[r.CorrelationID]; dup {
			continue
		}
		if err := enc.Encode(r); err != nil {
			f.Close()
			return inserted, err
		}
		seen[r.CorrelationID] = struct{}{}
		inserted++
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return inserted, err
	}
	return inserted, f.Close()
}

func (s *FileStore) Close() error { return nil }

// scan decodes each non-blank line until fn returns false.
func (s *FileStore) scan(fn func(models.Rollup) bool) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		r, err := decodeRollup(raw)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		if !fn(r) {
			return nil
		}
	}
	return sc.Err()
}
