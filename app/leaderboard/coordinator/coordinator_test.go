package coordinator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	discord "github.com/Black-And-White-Club/discord-leaderboard-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator/mocks"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/delivery"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/scores"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() coordinator.Config {
	return coordinator.Config{
		Name:          "main",
		ChannelID:     "c1",
		Title:         "Server Leaderboard",
		Metrics:       []board.Metric{board.MetricBalance},
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func seededScores(t *testing.T) *scores.MemoryStore {
	t.Helper()
	s := scores.NewMemoryStore(board.DefaultLevelUnit, nil, testLogger())
	require.NoError(t, s.ApplyDelta(context.Background(), scores.Delta{EntityID: "1", DisplayLabel: "alice", Balance: 500, Experience: 120}))
	require.NoError(t, s.ApplyDelta(context.Background(), scores.Delta{EntityID: "2", DisplayLabel: "bob", Balance: 900}))
	return s
}

// recordingPointers wraps a memory store and records the order of calls.
type recordingPointers struct {
	*pointer.MemoryStore
	mu      sync.Mutex
	ops     []string
	loadErr error
}

func newRecordingPointers() *recordingPointers {
	return &recordingPointers{MemoryStore: pointer.NewMemoryStore()}
}

func (r *recordingPointers) note(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingPointers) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recordingPointers) Load(ctx context.Context, scope string) (*pointer.Pointer, error) {
	r.note("load")
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.MemoryStore.Load(ctx, scope)
}

func (r *recordingPointers) Save(ctx context.Context, scope string, p pointer.Pointer) error {
	r.note("save")
	return r.MemoryStore.Save(ctx, scope, p)
}

func (r *recordingPointers) Clear(ctx context.Context, scope string) error {
	r.note("clear")
	return r.MemoryStore.Clear(ctx, scope)
}

// gatedStore blocks every query until released and tracks concurrency.
type gatedStore struct {
	entered  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) TopByMetric(ctx context.Context, metric board.Metric, limit int) ([]board.RankedEntry, error) {
	g.calls.Add(1)
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		seen := g.maxSeen.Load()
		if n <= seen || g.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return []board.RankedEntry{{ID: "1", DisplayLabel: "alice", Value: 10}}, nil
}

type harness struct {
	session  *discord.FakeSession
	pointers *recordingPointers
	coord    *coordinator.Coordinator
}

func start(t *testing.T, store coordinator.ScoreStore, pointers *recordingPointers, session *discord.FakeSession, opts ...coordinator.Option) *harness {
	t.Helper()
	if pointers == nil {
		pointers = newRecordingPointers()
	}
	if session == nil {
		session = discord.NewFakeSession()
	}
	opts = append([]coordinator.Option{
		coordinator.WithLogger(testLogger()),
		coordinator.WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	c := coordinator.New(testConfig(), store, pointers, delivery.NewDiscordChannel(session, testLogger()), opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })
	return &harness{session: session, pointers: pointers, coord: c}
}

func waitAttempts(t *testing.T, c *coordinator.Coordinator, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := c.Status()
		return s.Attempts >= n && s.State == coordinator.StateIdle
	}, waitFor, tick)
}

func savedPointer(t *testing.T, p *recordingPointers) *pointer.Pointer {
	t.Helper()
	got, err := p.MemoryStore.Load(context.Background(), pointer.ScopeKey("main"))
	require.NoError(t, err)
	return got
}

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code},
	}
}

func TestColdStartSendsAndPersists(t *testing.T) {
	h := start(t, seededScores(t), nil, nil)
	waitAttempts(t, h.coord, 1)

	assert.Equal(t, 1, h.session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, 0, h.session.Count("ChannelMessageEditComplex"))

	got := savedPointer(t, h.pointers)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ChannelID)
	assert.Equal(t, "fake-msg-123", got.MessageID)
	assert.True(t, fixedNow.Equal(got.LastPublishedAt))

	status := h.coord.Status()
	assert.Equal(t, coordinator.OutcomeSuccess, status.LastOutcome)
	assert.Equal(t, coordinator.SourceStartup, status.LastSource)
	require.NotNil(t, status.Pointer)
	assert.Equal(t, "fake-msg-123", status.Pointer.MessageID)
}

func TestWarmStartEditsExistingMessage(t *testing.T) {
	pointers := newRecordingPointers()
	require.NoError(t, pointers.MemoryStore.Save(context.Background(), pointer.ScopeKey("main"), pointer.Pointer{ChannelID: "c1", MessageID: "m-old"}))

	session := discord.NewFakeSession()
	var edited []string
	var mu sync.Mutex
	session.ChannelMessageEditComplexFunc = func(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
		mu.Lock()
		edited = append(edited, m.ID)
		mu.Unlock()
		return &discordgo.Message{ID: m.ID}, nil
	}

	h := start(t, seededScores(t), pointers, session)
	waitAttempts(t, h.coord, 1)

	_, err := h.coord.RefreshNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, session.Count("ChannelMessageSendComplex"))
	mu.Lock()
	assert.Equal(t, []string{"m-old", "m-old"}, edited)
	mu.Unlock()

	got := savedPointer(t, pointers)
	require.NotNil(t, got)
	assert.Equal(t, "m-old", got.MessageID)
	assert.True(t, fixedNow.Equal(got.LastPublishedAt))

	// The durable copy is read once; later attempts use the cached pointer.
	loads := 0
	for _, op := range pointers.Ops() {
		if op == "load" {
			loads++
		}
	}
	assert.Equal(t, 1, loads)
}

func TestDeletedMessageIsRepostedOnce(t *testing.T) {
	pointers := newRecordingPointers()
	require.NoError(t, pointers.MemoryStore.Save(context.Background(), pointer.ScopeKey("main"), pointer.Pointer{ChannelID: "c1", MessageID: "m-gone"}))

	session := discord.NewFakeSession()
	session.ChannelMessageEditComplexFunc = func(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
		if m.ID == "m-gone" {
			return nil, restError(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)
		}
		return &discordgo.Message{ID: m.ID}, nil
	}

	h := start(t, seededScores(t), pointers, session)
	waitAttempts(t, h.coord, 1)

	assert.Equal(t, []string{"load", "clear", "save"}, pointers.Ops())
	assert.Equal(t, 1, session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, 0, session.Count("ChannelMessageDelete"))

	got := savedPointer(t, pointers)
	require.NotNil(t, got)
	assert.Equal(t, "fake-msg-123", got.MessageID)

	// The next cycle edits the replacement instead of posting again.
	_, err := h.coord.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, 2, session.Count("ChannelMessageEditComplex"))
}

func TestStoreUnavailableExhaustsRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockScoreStore(ctrl)
	recorder := mocks.NewMockRecorder(ctrl)

	store.EXPECT().
		TopByMetric(gomock.Any(), board.MetricBalance, coordinator.DefaultTopN).
		Return(nil, lberrors.ErrStoreUnavailable).
		Times(3)

	recorded := make(chan coordinator.Attempt, 1)
	recorder.EXPECT().
		RecordFailure(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, a coordinator.Attempt) { recorded <- a }).
		Times(1)

	pointers := newRecordingPointers()
	original := pointer.Pointer{ChannelID: "c1", MessageID: "m-keep", LastPublishedAt: fixedNow.Add(-time.Hour)}
	require.NoError(t, pointers.MemoryStore.Save(context.Background(), pointer.ScopeKey("main"), original))

	h := start(t, store, pointers, nil, coordinator.WithRecorder(recorder))
	waitAttempts(t, h.coord, 1)

	var a coordinator.Attempt
	select {
	case a = <-recorded:
	case <-time.After(waitFor):
		t.Fatal("failure was not recorded")
	}
	assert.Equal(t, coordinator.OutcomeFailure, a.Outcome)
	assert.Equal(t, "store_unavailable", a.Reason)
	assert.Equal(t, 2, a.Retries)

	status := h.coord.Status()
	assert.Equal(t, coordinator.OutcomeFailure, status.LastOutcome)
	assert.Equal(t, "store_unavailable", status.LastReason)

	got := savedPointer(t, pointers)
	require.NotNil(t, got)
	assert.Equal(t, original.MessageID, got.MessageID)
	assert.True(t, original.LastPublishedAt.Equal(got.LastPublishedAt))
	assert.Empty(t, pointers.Ops())
	assert.Equal(t, 0, h.session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, 0, h.session.Count("ChannelMessageEditComplex"))
}

func TestBurstOfNotificationsCoalescesToOneFollowUp(t *testing.T) {
	store := newGatedStore()
	h := start(t, store, nil, nil)

	select {
	case <-store.entered:
	case <-time.After(waitFor):
		t.Fatal("startup refresh never queried the store")
	}

	queued := 0
	for range 5 {
		if h.coord.Request(coordinator.SourceNotifier) {
			queued++
		}
	}
	assert.Equal(t, 1, queued)
	assert.True(t, h.coord.Status().Pending)

	close(store.release)

	waitAttempts(t, h.coord, 2)
	assert.Never(t, func() bool {
		return h.coord.Status().Attempts > 2
	}, 200*time.Millisecond, tick)
	assert.Equal(t, int32(2), store.calls.Load())
	assert.Equal(t, coordinator.SourceNotifier, h.coord.Status().LastSource)
}

func TestTimerTickSkippedWhileRunning(t *testing.T) {
	store := newGatedStore()
	h := start(t, store, nil, nil)

	select {
	case <-store.entered:
	case <-time.After(waitFor):
		t.Fatal("startup refresh never queried the store")
	}

	assert.Equal(t, coordinator.StateRunning, h.coord.Status().State)
	assert.False(t, h.coord.Request(coordinator.SourceTimer))
	assert.False(t, h.coord.Status().Pending)

	close(store.release)
	waitAttempts(t, h.coord, 1)
	assert.Never(t, func() bool {
		return h.coord.Status().Attempts > 1
	}, 100*time.Millisecond, tick)

	// Once idle, a tick runs normally.
	assert.True(t, h.coord.Request(coordinator.SourceTimer))
	waitAttempts(t, h.coord, 2)
}

func TestRefreshNowWhileRunningWaitsForFreshAttempt(t *testing.T) {
	store := newGatedStore()
	h := start(t, store, nil, nil)

	select {
	case <-store.entered:
	case <-time.After(waitFor):
		t.Fatal("startup refresh never queried the store")
	}
	require.Equal(t, coordinator.StateRunning, h.coord.Status().State)

	type outcome struct {
		p        pointer.Pointer
		err      error
		attempts int64
		calls    int32
	}
	results := make(chan outcome, 1)
	go func() {
		p, err := h.coord.RefreshNow(context.Background())
		results <- outcome{p: p, err: err, attempts: h.coord.Status().Attempts, calls: store.calls.Load()}
	}()

	// The in-flight attempt's result must not be handed to the caller.
	select {
	case res := <-results:
		t.Fatalf("RefreshNow returned before the running attempt finished: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int32(1), store.calls.Load())

	close(store.release)

	var res outcome
	select {
	case res = <-results:
	case <-time.After(waitFor):
		t.Fatal("RefreshNow never returned")
	}
	require.NoError(t, res.err)
	assert.Equal(t, int64(2), res.attempts)
	assert.Equal(t, int32(2), res.calls, "the manual refresh read scores after the first attempt ended")
	assert.Equal(t, "c1", res.p.ChannelID)
	assert.Equal(t, coordinator.SourceManual, h.coord.Status().LastSource)
}

func TestAttemptsNeverOverlap(t *testing.T) {
	store := newGatedStore()
	store.delay = 2 * time.Millisecond
	close(store.release)
	h := start(t, store, nil, nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				_, err := h.coord.RefreshNow(context.Background())
				assert.NoError(t, err)
				return
			}
			h.coord.Request(coordinator.SourceNotifier)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		s := h.coord.Status()
		return s.State == coordinator.StateIdle && !s.Pending
	}, waitFor, tick)
	assert.Equal(t, int32(1), store.maxSeen.Load())
}

func TestForbiddenEditIsNotRetried(t *testing.T) {
	pointers := newRecordingPointers()
	require.NoError(t, pointers.MemoryStore.Save(context.Background(), pointer.ScopeKey("main"), pointer.Pointer{ChannelID: "c1", MessageID: "m1"}))

	session := discord.NewFakeSession()
	session.ChannelMessageEditComplexFunc = func(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
		return nil, restError(http.StatusForbidden, discordgo.ErrCodeMissingAccess)
	}

	h := start(t, seededScores(t), pointers, session)
	waitAttempts(t, h.coord, 1)

	assert.Equal(t, 1, session.Count("ChannelMessageEditComplex"))
	assert.Equal(t, 0, session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, "forbidden", h.coord.Status().LastReason)
	assert.Equal(t, []string{"load"}, pointers.Ops())
}

func TestMissingPermissionsFailsFast(t *testing.T) {
	session := discord.NewFakeSession()
	session.UserChannelPermissionsFunc = func(userID, channelID string, options ...discordgo.RequestOption) (int64, error) {
		return discordgo.PermissionViewChannel, nil
	}

	h := start(t, seededScores(t), nil, session)
	waitAttempts(t, h.coord, 1)

	_, err := h.coord.RefreshNow(context.Background())
	require.Error(t, err)
	assert.True(t, lberrors.IsMissingPermissions(err))

	var perm *lberrors.MissingPermissionsError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, []string{"Send Messages", "Embed Links"}, perm.Missing)

	var attemptErr *lberrors.AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 1, attemptErr.Attempts)
	assert.Equal(t, 0, session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, 2, session.Count("UserChannelPermissions"))
}

func TestRateLimitedEditIsRetried(t *testing.T) {
	pointers := newRecordingPointers()
	require.NoError(t, pointers.MemoryStore.Save(context.Background(), pointer.ScopeKey("main"), pointer.Pointer{ChannelID: "c1", MessageID: "m1"}))

	session := discord.NewFakeSession()
	var edits atomic.Int32
	session.ChannelMessageEditComplexFunc = func(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
		if edits.Add(1) == 1 {
			return nil, restError(http.StatusTooManyRequests, 0)
		}
		return &discordgo.Message{ID: m.ID}, nil
	}

	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)
	recorded := make(chan coordinator.Attempt, 1)
	recorder.EXPECT().
		RecordSuccess(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, a coordinator.Attempt) { recorded <- a })

	h := start(t, seededScores(t), pointers, session, coordinator.WithRecorder(recorder))
	waitAttempts(t, h.coord, 1)

	a := <-recorded
	assert.Equal(t, coordinator.OutcomeSuccess, a.Outcome)
	assert.Equal(t, 1, a.Retries)
	assert.Equal(t, int32(2), edits.Load())
	assert.Equal(t, 0, session.Count("ChannelMessageSendComplex"))
}

func TestChannelRelocationPostsAndRemovesOldMessage(t *testing.T) {
	pointers := newRecordingPointers()
	require.NoError(t, pointers.MemoryStore.Save(context.Background(), pointer.ScopeKey("main"), pointer.Pointer{ChannelID: "old-channel", MessageID: "m-old"}))

	session := discord.NewFakeSession()
	deleted := make(chan board.MessageRef, 1)
	session.ChannelMessageDeleteFunc = func(channelID, messageID string, options ...discordgo.RequestOption) error {
		deleted <- board.MessageRef{ChannelID: channelID, MessageID: messageID}
		return nil
	}

	h := start(t, seededScores(t), pointers, session)
	waitAttempts(t, h.coord, 1)

	assert.Equal(t, 0, session.Count("ChannelMessageEditComplex"))
	assert.Equal(t, 1, session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, board.MessageRef{ChannelID: "old-channel", MessageID: "m-old"}, <-deleted)

	got := savedPointer(t, pointers)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ChannelID)
}

func TestPointerLoadFailureIsSoft(t *testing.T) {
	pointers := newRecordingPointers()
	pointers.loadErr = errors.New("kv unavailable")

	h := start(t, seededScores(t), pointers, nil)
	waitAttempts(t, h.coord, 1)

	assert.Equal(t, coordinator.OutcomeSuccess, h.coord.Status().LastOutcome)
	assert.Equal(t, []string{"load", "save"}, pointers.Ops())
}

func TestRefreshNowReturnsPointer(t *testing.T) {
	h := start(t, seededScores(t), nil, nil)
	waitAttempts(t, h.coord, 1)

	p, err := h.coord.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ChannelID)
	assert.Equal(t, "fake-msg-123", p.MessageID)
	assert.Equal(t, coordinator.SourceManual, h.coord.Status().LastSource)
}

func TestRefreshNowReportsTerminalFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockScoreStore(ctrl)
	store.EXPECT().
		TopByMetric(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, lberrors.ErrStoreUnavailable).
		AnyTimes()

	h := start(t, store, nil, nil)
	waitAttempts(t, h.coord, 1)

	_, err := h.coord.RefreshNow(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lberrors.ErrStoreUnavailable)

	var attemptErr *lberrors.AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 3, attemptErr.Attempts)
	assert.Equal(t, "main", attemptErr.Board)
}

func TestRecorderPanicDoesNotStopCoordinator(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)
	recorder.EXPECT().
		RecordSuccess(gomock.Any(), gomock.Any()).
		Do(func(context.Context, coordinator.Attempt) { panic("metrics backend exploded") }).
		AnyTimes()

	h := start(t, seededScores(t), nil, nil, coordinator.WithRecorder(recorder))
	waitAttempts(t, h.coord, 1)

	_, err := h.coord.RefreshNow(context.Background())
	require.NoError(t, err)
}

func TestRefreshNowRequiresStart(t *testing.T) {
	c := coordinator.New(testConfig(), seededScores(t), pointer.NewMemoryStore(), delivery.NewDiscordChannel(discord.NewFakeSession(), testLogger()))
	_, err := c.RefreshNow(context.Background())
	assert.ErrorIs(t, err, coordinator.ErrNotRunning)
}

func TestStartTwice(t *testing.T) {
	h := start(t, seededScores(t), nil, nil)
	assert.ErrorIs(t, h.coord.Start(context.Background()), coordinator.ErrAlreadyStarted)
}

func TestStopUnblocksWaiters(t *testing.T) {
	store := newGatedStore()
	h := start(t, store, nil, nil)
	<-store.entered

	stopped := make(chan struct{})
	go func() {
		_ = h.coord.Stop()
		close(stopped)
	}()
	close(store.release)

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}
	_, err := h.coord.RefreshNow(context.Background())
	assert.ErrorIs(t, err, coordinator.ErrNotRunning)
}

func TestStartWithoutStartupRefresh(t *testing.T) {
	h := start(t, seededScores(t), nil, nil, coordinator.WithStartupRefresh(false))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), h.coord.Status().Attempts)
	assert.Equal(t, 0, h.session.Count("ChannelMessageSendComplex"))

	_, err := h.coord.RefreshNow(context.Background())
	require.NoError(t, err)
	s := h.coord.Status()
	assert.Equal(t, int64(1), s.Attempts)
	assert.Equal(t, coordinator.SourceManual, s.LastSource)
}
