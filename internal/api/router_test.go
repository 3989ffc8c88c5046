package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreamcity/orderflow-monitor/internal/export"
	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/query"
	"github.com/dreamcity/orderflow-monitor/internal/status"
	"github.com/dreamcity/orderflow-monitor/internal/stream"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

type stubDashboard struct {
	ready     bool
	err       error
	lastTile  string
	lastLimit int
	refreshes int
}

func (s *stubDashboard) Tiles(context.Context) (map[string]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return map[string]int{"overall_RED": 2, "overall_GREEN": 5}, nil
}

func (s *stubDashboard) Rows(_ context.Context, tile string) ([]models.Row, error) {
	s.lastTile = tile
	return []models.Row{{CorrelationID: "DC-20251209-000001", NodeType: models.NodeFlow, RowStatus: status.Red}}, s.err
}

func (s *stubDashboard) Flows(_ context.Context, tile string, limit int) ([]models.Rollup, error) {
	s.lastTile = tile
	s.lastLimit = limit
	return []models.Rollup{{CorrelationID: "DC-20251209-000001"}}, s.err
}

func (s *stubDashboard) Detail(_ context.Context, cid string) (models.FlowDetail, error) {
	if cid != "DC-20251209-000001" {
		return models.FlowDetail{}, utils.E("dashboard.detail", utils.KindNotFound, "flow "+cid+" not found", query.ErrNotFound)
	}
	return models.FlowDetail{Rollup: models.Rollup{CorrelationID: cid}, Overall: status.Red, FailedPhase: "FW_EGRESS_ALLOWED"}, nil
}

func (s *stubDashboard) Refresh(context.Context) (*query.Snapshot, error) {
	s.refreshes++
	if s.err != nil {
		return nil, s.err
	}
	return query.NewSnapshot([]models.Rollup{{CorrelationID: "X"}}, time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC)), nil
}

func (s *stubDashboard) Ready() bool { return s.ready }

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	dash := &stubDashboard{}
	router := NewRouter(dash, nil, nil)

	if rec := serve(t, router, http.MethodGet, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", rec.Code)
	}
	dash.ready = true
	if rec := serve(t, router, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTilesAndRows(t *testing.T) {
	dash := &stubDashboard{ready: true}
	router := NewRouter(dash, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/tiles")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var tiles struct {
		Tiles map[string]int `json:"tiles"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&tiles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tiles.Tiles["overall_RED"] != 2 {
		t.Fatalf("unexpected tiles %+v", tiles.Tiles)
	}

	rec = serve(t, router, http.MethodGet, "/api/v1/rows?tile=tech_RED")
	if rec.Code != http.StatusOK || dash.lastTile != "tech_RED" {
		t.Fatalf("unexpected rows response %d tile=%q", rec.Code, dash.lastTile)
	}
	if !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Fatalf("expected row count in body: %s", rec.Body.String())
	}
}

func TestFlowsLimit(t *testing.T) {
	dash := &stubDashboard{ready: true}
	router := NewRouter(dash, nil, nil)

	if rec := serve(t, router, http.MethodGet, "/api/v1/flows?tile=sla_BREACH&limit=25"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if dash.lastTile != "sla_BREACH" || dash.lastLimit != 25 {
		t.Fatalf("unexpected args tile=%q limit=%d", dash.lastTile, dash.lastLimit)
	}
	if rec := serve(t, router, http.MethodGet, "/api/v1/flows?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestDetail(t *testing.T) {
	router := NewRouter(&stubDashboard{ready: true}, nil, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/flows/DC-20251209-000001")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var detail models.FlowDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.FailedPhase != "FW_EGRESS_ALLOWED" || detail.Overall != status.Red {
		t.Fatalf("unexpected detail %+v", detail)
	}

	rec = serve(t, router, http.MethodGet, "/api/v1/flows/DC-missing")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not found") {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	dash := &stubDashboard{}
	router := NewRouter(dash, nil, nil)

	if rec := serve(t, router, http.MethodGet, "/api/v1/snapshot/refresh"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}

	rec := serve(t, router, http.MethodPost, "/api/v1/snapshot/refresh")
	if rec.Code != http.StatusOK || dash.refreshes != 1 {
		t.Fatalf("unexpected refresh %d calls=%d", rec.Code, dash.refreshes)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"loaded_at":"2025-12-17T00:00:00Z"`) || !strings.Contains(body, `"rollups":1`) {
		t.Fatalf("unexpected body %s", body)
	}

	dash.err = utils.E("dashboard.refresh", utils.KindUnavailable, "rollup store unavailable", errors.New("dial tcp"))
	if rec := serve(t, router, http.MethodPost, "/api/v1/snapshot/refresh"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRowsExport(t *testing.T) {
	dash := &stubDashboard{ready: true}
	rec := serve(t, NewRouter(dash, nil, nil), http.MethodGet, "/api/v1/rows/export?tile=overall_RED")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != export.ContentType {
		t.Fatalf("unexpected export response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if dash.lastTile != "overall_RED" || rec.Body.Len() == 0 {
		t.Fatalf("expected a workbook for overall_RED")
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("export is not a zip archive")
	}
}

func TestTilesStream(t *testing.T) {
	hub := stream.NewHub()
	defer hub.Close()
	srv := httptest.NewServer(NewRouter(&stubDashboard{ready: true}, hub, nil))
	defer srv.Close()

	if rec := serve(t, NewRouter(&stubDashboard{}, nil, nil), http.MethodGet, "/api/v1/tiles/stream"); rec.Code != http.StatusNotFound {
		t.Fatalf("stream must not be routed without a hub, got %d", rec.Code)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/tiles/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first stream.TilesMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial tiles: %v", err)
	}
	if first.Tiles["overall_RED"] != 2 {
		t.Fatalf("unexpected initial tiles %+v", first)
	}

	snap := query.NewSnapshot([]models.Rollup{{CorrelationID: "A"}}, time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC))
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := hub.PublishSnapshot(snap); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var pushed stream.TilesMessage
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("read pushed tiles: %v", err)
	}
	if pushed.Snapshot != snap.ID || pushed.Rollups != 1 {
		t.Fatalf("unexpected pushed message %+v", pushed)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		utils.E("op", utils.KindNotFound, "x", nil):    http.StatusNotFound,
		utils.E("op", utils.KindInvalid, "x", nil):     http.StatusBadRequest,
		utils.E("op", utils.KindUnavailable, "x", nil): http.StatusServiceUnavailable,
		errors.New("boom"):                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}
