// Package coordinator keeps one published leaderboard message fresh.
//
// A Coordinator owns a single consumer goroutine that serializes refresh
// attempts coming from timers, change notifications and manual requests.
// While an attempt runs, asynchronous requests collapse into one pending
// follow-up and manual requests wait for the next attempt to finish.
package coordinator

//go:generate mockgen -source=coordinator.go -destination=mocks/mock_coordinator.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	DefaultInterval      = 5 * time.Minute
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 30 * time.Second
	DefaultTopN          = 10
	MaxTopN              = 25
)

var (
	// ErrNotRunning is returned by RefreshNow when the consumer goroutine is
	// not running.
	ErrNotRunning = errors.New("coordinator is not running")
	// ErrAlreadyStarted is returned by Start when called twice.
	ErrAlreadyStarted = errors.New("coordinator already started")
)

// ScoreStore returns ranked entries for a metric.
type ScoreStore interface {
	TopByMetric(ctx context.Context, metric board.Metric, limit int) ([]board.RankedEntry, error)
}

// PointerStore persists the identity of the published board message.
type PointerStore interface {
	Load(ctx context.Context, scope string) (*pointer.Pointer, error)
	Save(ctx context.Context, scope string, p pointer.Pointer) error
	Clear(ctx context.Context, scope string) error
}

// Delivery publishes payloads to the messaging platform.
type Delivery interface {
	Send(ctx context.Context, channelID string, payload board.Payload) (board.MessageRef, error)
	Edit(ctx context.Context, ref board.MessageRef, payload board.Payload) error
	Delete(ctx context.Context, ref board.MessageRef)
	CheckPermissions(ctx context.Context, channelID string) ([]string, error)
}

// Recorder observes finished attempts. Implementations must not block.
type Recorder interface {
	RecordSuccess(ctx context.Context, a Attempt)
	RecordFailure(ctx context.Context, a Attempt)
}

// Renderer turns a snapshot into a payload. It must be total.
type Renderer func(board.Snapshot) board.Payload

// TriggerSource names what asked for a refresh.
type TriggerSource string

const (
	SourceTimer    TriggerSource = "timer"
	SourceNotifier TriggerSource = "notifier"
	SourceManual   TriggerSource = "manual"
	SourceStartup  TriggerSource = "startup"
)

// State is the coordinator's position in its refresh cycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Outcome is the terminal result of an attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Attempt describes one finished refresh, including its retries.
type Attempt struct {
	Board     string
	Source    TriggerSource
	StartedAt time.Time
	Outcome   Outcome
	Duration  time.Duration
	// Retries is the number of tries beyond the first.
	Retries int
	Reason  string
	Err     error
}

// Config holds the per-board settings.
type Config struct {
	Name          string
	ChannelID     string
	Title         string
	Metrics       []board.Metric
	TopN          int
	LevelUnit     int64
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if len(c.Metrics) == 0 {
		c.Metrics = board.DefaultMetrics
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.TopN > MaxTopN {
		c.TopN = MaxTopN
	}
	if c.LevelUnit <= 0 {
		c.LevelUnit = board.DefaultLevelUnit
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Status is a point-in-time view of a coordinator.
type Status struct {
	Board         string           `json:"board"`
	ChannelID     string           `json:"channel_id"`
	State         State            `json:"state"`
	Pending       bool             `json:"pending"`
	Attempts      int64            `json:"attempts"`
	LastSource    TriggerSource    `json:"last_source,omitempty"`
	LastOutcome   Outcome          `json:"last_outcome,omitempty"`
	LastReason    string           `json:"last_reason,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
	LastAttemptAt time.Time        `json:"last_attempt_at,omitzero"`
	LastSuccessAt time.Time        `json:"last_success_at,omitzero"`
	Pointer       *pointer.Pointer `json:"pointer,omitempty"`
}

type result struct {
	pointer pointer.Pointer
	err     error
}

type manualRequest struct {
	reply chan result
}

// Coordinator serializes refreshes of one board.
type Coordinator struct {
	cfg      Config
	scope    string
	store    ScoreStore
	pointers PointerStore
	delivery Delivery
	render   Renderer
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	startup  bool

	pending chan TriggerSource
	manual  chan manualRequest

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	mu            sync.Mutex
	state         State
	attempts      int64
	lastSource    TriggerSource
	lastOutcome   Outcome
	lastErr       error
	lastAttemptAt time.Time
	lastSuccessAt time.Time
	current       *pointer.Pointer
	pointerLoaded bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithRenderer(r Renderer) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.render = r
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock overrides the time source used for publish timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithStartupRefresh controls whether Start queues an initial refresh.
// Enabled by default.
func WithStartupRefresh(enabled bool) Option {
	return func(c *Coordinator) {
		c.startup = enabled
	}
}

// New creates a Coordinator for one board. Call Start to begin serving
// requests.
func New(cfg Config, store ScoreStore, pointers PointerStore, delivery Delivery, opts ...Option) *Coordinator {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		cfg:      cfg,
		scope:    pointer.ScopeKey(cfg.Name),
		store:    store,
		pointers: pointers,
		delivery: delivery,
		render:   board.Render,
		recorder: nopRecorder{},
		logger:   slog.Default(),
		tracer:   noop.NewTracerProvider().Tracer("noop"),
		now:      time.Now,
		startup:  true,
		pending:  make(chan TriggerSource, 1),
		manual:   make(chan manualRequest),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(attr.Board(cfg.Name))
	return c
}

// Name returns the board name.
func (c *Coordinator) Name() string {
	return c.cfg.Name
}

// Start launches the consumer goroutine and queues a startup refresh. The
// goroutine runs until ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.done != nil {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(loopCtx, c.done)

	if c.startup {
		c.Request(SourceStartup)
	}
	c.logger.InfoContext(ctx, "Leaderboard coordinator started",
		attr.ChannelID(c.cfg.ChannelID),
		attr.Int("top_n", c.cfg.TopN),
		attr.Int("retry_attempts", c.cfg.RetryAttempts),
		attr.Duration("retry_delay", c.cfg.RetryDelay),
	)
	return nil
}

// Stop cancels the consumer goroutine and waits for it to exit. An attempt
// already past its retry wait finishes first.
func (c *Coordinator) Stop() error {
	c.lifecycle.Lock()
	cancel, done := c.cancel, c.done
	c.lifecycle.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Request asks for an asynchronous refresh and reports whether it was queued.
// Timer ticks that land while an attempt is running are skipped; any other
// request sets the single pending slot, which later requests share.
func (c *Coordinator) Request(source TriggerSource) bool {
	if source == SourceTimer && c.currentState() == StateRunning {
		c.logger.Debug("Skipping timer tick, refresh in progress")
		return false
	}
	select {
	case c.pending <- source:
		return true
	default:
		c.logger.Debug("Refresh already pending, coalescing request", attr.String("source", string(source)))
		return false
	}
}

// RefreshNow runs a refresh and waits for its result. If an attempt is in
// flight, it waits for it to finish and then runs a fresh one.
func (c *Coordinator) RefreshNow(ctx context.Context) (pointer.Pointer, error) {
	c.lifecycle.Lock()
	done := c.done
	c.lifecycle.Unlock()
	if done == nil {
		return pointer.Pointer{}, ErrNotRunning
	}

	req := manualRequest{reply: make(chan result, 1)}
	select {
	case c.manual <- req:
	case <-done:
		return pointer.Pointer{}, ErrNotRunning
	case <-ctx.Done():
		return pointer.Pointer{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.pointer, res.err
	case <-ctx.Done():
		return pointer.Pointer{}, ctx.Err()
	}
}

// Status returns a snapshot of the coordinator.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Board:         c.cfg.Name,
		ChannelID:     c.cfg.ChannelID,
		State:         c.state,
		Pending:       len(c.pending) > 0,
		Attempts:      c.attempts,
		LastSource:    c.lastSource,
		LastOutcome:   c.lastOutcome,
		LastAttemptAt: c.lastAttemptAt,
		LastSuccessAt: c.lastSuccessAt,
	}
	if c.lastErr != nil {
		s.LastReason = reason(c.lastErr)
		s.LastError = c.lastErr.Error()
	}
	if c.current != nil {
		p := *c.current
		s.Pointer = &p
	}
	return s
}

func (c *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Leaderboard coordinator stopped")
			return
		case source := <-c.pending:
			c.serve(ctx, source, nil)
		case req := <-c.manual:
			c.serve(ctx, SourceManual, []manualRequest{req})
		}
	}
}

// serve runs one attempt. Requests already queued when it begins are
// satisfied by it, so they are drained first.
func (c *Coordinator) serve(ctx context.Context, source TriggerSource, waiters []manualRequest) {
	c.setState(StateRunning)

drain:
	for {
		select {
		case <-c.pending:
		case req := <-c.manual:
			waiters = append(waiters, req)
		default:
			break drain
		}
	}

	p, err := c.execute(ctx, source)
	for _, w := range waiters {
		w.reply <- result{pointer: p, err: err}
	}
	c.setState(StateIdle)
}

func (c *Coordinator) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

type nopRecorder struct{}

func (nopRecorder) RecordSuccess(context.Context, Attempt) {}
func (nopRecorder) RecordFailure(context.Context, Attempt) {}
