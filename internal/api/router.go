package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreamcity/orderflow-monitor/internal/export"
	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/query"
	"github.com/dreamcity/orderflow-monitor/internal/stream"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

// Dashboard is the query surface the HTTP API exposes.
type Dashboard interface {
	Tiles(ctx context.Context) (map[string]int, error)
	Rows(ctx context.Context, tile string) ([]models.Row, error)
	Flows(ctx context.Context, tile string, limit int) ([]models.Rollup, error)
	Detail(ctx context.Context, correlationID string) (models.FlowDetail, error)
	Refresh(ctx context.Context) (*query.Snapshot, error)
	Ready() bool
}

// Router serves the JSON dashboard API.
type Router struct {
	mux       *http.ServeMux
	dashboard Dashboard
	hub       *stream.Hub
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewRouter registers every route. The tile stream is only served when hub is non-nil.
func NewRouter(dashboard Dashboard, hub *stream.Hub, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:       http.NewServeMux(),
		dashboard: dashboard,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("GET /healthz", r.audit(r.handleHealthz))
	r.mux.HandleFunc("GET /api/v1/tiles", r.audit(r.handleTiles))
	r.mux.HandleFunc("GET /api/v1/rows", r.audit(r.handleRows))
	r.mux.HandleFunc("GET /api/v1/rows/export", r.audit(r.handleRowsExport))
	r.mux.HandleFunc("GET /api/v1/flows", r.audit(r.handleFlows))
	r.mux.HandleFunc("GET /api/v1/flows/{correlation_id}", r.audit(r.handleDetail))
	r.mux.HandleFunc("POST /api/v1/snapshot/refresh", r.audit(r.handleRefresh))
	if r.hub != nil {
		r.mux.HandleFunc("GET /api/v1/tiles/stream", r.handleTilesStream)
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !r.dashboard.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleTiles(w http.ResponseWriter, req *http.Request) {
	counts, err := r.dashboard.Tiles(req.Context())
	if err != nil {
		r.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiles": counts})
}

func (r *Router) handleRows(w http.ResponseWriter, req *http.Request) {
	tile := req.URL.Query().Get("tile")
	rows, err := r.dashboard.Rows(req.Context(), tile)
	if err != nil {
		r.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tile": tile, "count": len(rows), "rows": rows})
}

func (r *Router) handleRowsExport(w http.ResponseWriter, req *http.Request) {
	rows, err := r.dashboard.Rows(req.Context(), req.URL.Query().Get("tile"))
	if err != nil {
		r.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="flows.xlsx"`)
	if err := export.WriteRows(w, rows); err != nil {
		r.logger.Error("xlsx export failed", slog.Any("error", err))
	}
}

// handleTilesStream sends the current tile counts, then every count published after a refresh.
func (r *Router) handleTilesStream(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	client := stream.NewClient(conn, r.logger)

	initial := func() ([]byte, error) {
		counts, err := r.dashboard.Tiles(req.Context())
		if err != nil {
			// No snapshot yet; the first published refresh carries the counts.
			return nil, nil
		}
		return json.Marshal(stream.TilesMessage{Tiles: counts})
	}
	if err := client.Subscribe(r.hub, initial); err != nil {
		r.hub.Unregister(client)
		client.Close()
		return
	}
	go func() {
		defer func() {
			r.hub.Unregister(client)
			client.Close()
		}()
		client.Drain()
	}()
}

func (r *Router) handleFlows(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	flows, err := r.dashboard.Flows(req.Context(), q.Get("tile"), limit)
	if err != nil {
		r.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tile": q.Get("tile"), "count": len(flows), "flows": flows})
}

func (r *Router) handleDetail(w http.ResponseWriter, req *http.Request) {
	detail, err := r.dashboard.Detail(req.Context(), req.PathValue("correlation_id"))
	if err != nil {
		r.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	snap, err := r.dashboard.Refresh(req.Context())
	if err != nil {
		r.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  snap.ID,
		"rollups":   snap.Len(),
		"loaded_at": utils.FormatUTC(snap.LoadedAt),
	})
}

func (r *Router) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		r.logger.Error("request failed", slog.Any("error", err))
	}
	writeError(w, code, err.Error())
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, req)
		r.logger.Debug("http request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	}
}

func statusFor(err error) int {
	switch utils.KindOf(err) {
	case utils.KindNotFound:
		return http.StatusNotFound
	case utils.KindInvalid:
		return http.StatusBadRequest
	case utils.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
