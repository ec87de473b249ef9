// Package health serves the bot's HTTP surface: liveness, readiness, board
// status, Prometheus metrics and the manual refresh endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/metrics"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// BoardStatus is one entry of the /status response.
type BoardStatus struct {
	coordinator.Status
	Window *metrics.WindowStats `json:"window,omitempty"`
}

// RefreshResponse is returned by POST /boards/{board}/refresh.
type RefreshResponse struct {
	Board   string           `json:"board"`
	Pointer *pointer.Pointer `json:"pointer,omitempty"`
	Error   string           `json:"error,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// Coordinator is the view of a board coordinator the HTTP surface needs.
type Coordinator interface {
	Name() string
	Status() coordinator.Status
	RefreshNow(ctx context.Context) (pointer.Pointer, error)
}

// Board pairs a coordinator with its optional metrics window.
type Board struct {
	Coordinator Coordinator
	Window      *metrics.Window
}

// Handler provides health check endpoints
type Handler struct {
	startTime    time.Time
	version      string
	boards       []Board
	byName       map[string]Board
	sessionReady func() bool
	metrics      http.Handler
	logger       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithBoards exposes boards on /status, /ready and the refresh endpoint.
func WithBoards(boards ...Board) Option {
	return func(h *Handler) {
		h.boards = append(h.boards, boards...)
	}
}

// WithSessionReady sets the check for the Discord session being connected.
func WithSessionReady(fn func() bool) Option {
	return func(h *Handler) { h.sessionReady = fn }
}

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(h *Handler) { h.metrics = handler }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a new health check handler
func NewHandler(version string, opts ...Option) *Handler {
	h := &Handler{
		startTime:    time.Now(),
		version:      version,
		sessionReady: func() bool { return true },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.byName = make(map[string]Board, len(h.boards))
	for _, b := range h.boards {
		h.byName[strings.ToLower(b.Coordinator.Name())] = b
	}
	return h
}

// Router returns the chi router serving every endpoint.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.loggingMiddleware)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/status", h.Status)
	r.Post("/boards/{board}/refresh", h.Refresh)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

// Health returns the health status of the application
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
	})
}

// Ready reports 200 once the Discord session is open and every board has
// finished its first refresh attempt.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.sessionReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for discord session"})
		return
	}
	var waiting []string
	for _, b := range h.boards {
		if b.Coordinator.Status().Attempts == 0 {
			waiting = append(waiting, b.Coordinator.Name())
		}
	}
	if len(waiting) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "waiting for first refresh",
			"pending": waiting,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Status returns every board's coordinator snapshot and metrics window.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	out := make([]BoardStatus, 0, len(h.boards))
	for _, b := range h.boards {
		s := BoardStatus{Status: b.Coordinator.Status()}
		if b.Window != nil {
			stats := b.Window.Stats()
			s.Window = &stats
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": out})
}

// Refresh runs a synchronous manual refresh of one board.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "board")
	b, ok := h.byName[strings.ToLower(name)]
	if !ok {
		writeJSON(w, http.StatusNotFound, RefreshResponse{Board: name, Error: "unknown board"})
		return
	}
	name = b.Coordinator.Name()

	p, err := b.Coordinator.RefreshNow(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, coordinator.ErrNotRunning):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		h.logger.WarnContext(r.Context(), "Manual refresh via HTTP failed", attr.Board(name), attr.Error(err))
		writeJSON(w, status, RefreshResponse{Board: name, Error: err.Error(), Reason: lberrors.Reason(err)})
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Board: name, Pointer: &p})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.DebugContext(r.Context(), "HTTP request",
			attr.String("method", r.Method),
			attr.String("path", r.URL.Path),
			attr.Int("status", ww.Status()),
			attr.Duration("duration", time.Since(start)),
			attr.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// StartServer serves the router on addr until ctx is cancelled.
func (h *Handler) StartServer(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// Manual refreshes block for the whole retry schedule.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP server listening", attr.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
