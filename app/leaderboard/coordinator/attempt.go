package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// execute runs the attempt body under the retry policy and records the
// outcome. Retry waits end early when ctx is cancelled; the body itself is
// never interrupted.
func (c *Coordinator) execute(ctx context.Context, source TriggerSource) (pointer.Pointer, error) {
	startedAt := c.now()
	ctx, span := c.tracer.Start(ctx, "leaderboard.refresh", trace.WithAttributes(
		attribute.String("board", c.cfg.Name),
		attribute.String("source", string(source)),
	))
	defer span.End()

	c.logger.InfoContext(ctx, "Refreshing leaderboard", attr.String("source", string(source)))

	bodyCtx := context.WithoutCancel(ctx)
	tries := 0
	var (
		published pointer.Pointer
		lastErr   error
	)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		p, err := c.attempt(bodyCtx)
		if err == nil {
			published = p
			return struct{}{}, nil
		}
		lastErr = err
		if lberrors.IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.RetryAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "Refresh attempt failed, retrying",
				attr.Int("try", tries),
				attr.Duration("retry_in", wait),
				attr.String("reason", reason(err)),
				attr.Error(err),
			)
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		// A cancelled retry wait reports the context error; the failure that
		// caused the wait is more useful.
		if lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = lastErr
		}
		err = &lberrors.AttemptError{Board: c.cfg.Name, Attempts: tries, Cause: err}
	}

	a := Attempt{
		Board:     c.cfg.Name,
		Source:    source,
		StartedAt: startedAt,
		Duration:  c.now().Sub(startedAt),
		Retries:   tries - 1,
		Err:       err,
	}
	if err != nil {
		a.Outcome = OutcomeFailure
		a.Reason = reason(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, a.Reason)
	} else {
		a.Outcome = OutcomeSuccess
		span.SetAttributes(attribute.String("message_id", published.MessageID))
	}
	span.SetAttributes(attribute.Int("retries", a.Retries))

	c.finish(ctx, a)
	return published, err
}

func (c *Coordinator) finish(ctx context.Context, a Attempt) {
	c.mu.Lock()
	c.attempts++
	c.lastSource = a.Source
	c.lastOutcome = a.Outcome
	c.lastAttemptAt = a.StartedAt
	c.lastErr = a.Err
	if a.Outcome == OutcomeSuccess {
		c.state = StateSucceeded
		c.lastSuccessAt = a.StartedAt
	} else {
		c.state = StateFailed
	}
	c.mu.Unlock()

	if a.Outcome == OutcomeSuccess {
		c.logger.InfoContext(ctx, "Leaderboard refreshed",
			attr.String("source", string(a.Source)),
			attr.Duration("duration", a.Duration),
			attr.Int("retries", a.Retries),
		)
	} else {
		c.logger.ErrorContext(ctx, "Leaderboard refresh failed",
			attr.String("source", string(a.Source)),
			attr.String("reason", a.Reason),
			attr.Int("retries", a.Retries),
			attr.Error(a.Err),
		)
	}
	c.record(ctx, a)
}

// record forwards to the recorder. A misbehaving recorder must not take the
// consumer goroutine down with it.
func (c *Coordinator) record(ctx context.Context, a Attempt) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "Recovered from panic in metrics recorder", attr.Any("panic", r))
		}
	}()
	if a.Outcome == OutcomeSuccess {
		c.recorder.RecordSuccess(ctx, a)
		return
	}
	c.recorder.RecordFailure(ctx, a)
}

// attempt is one try: check permissions, query, render, then edit or post.
func (c *Coordinator) attempt(ctx context.Context) (pointer.Pointer, error) {
	missing, err := c.delivery.CheckPermissions(ctx, c.cfg.ChannelID)
	if err != nil {
		return pointer.Pointer{}, fmt.Errorf("check permissions: %w", err)
	}
	if len(missing) > 0 {
		return pointer.Pointer{}, lberrors.NewMissingPermissionsError(c.cfg.ChannelID, missing)
	}

	snapshot := board.Snapshot{
		Board:       c.cfg.Name,
		Title:       c.cfg.Title,
		LevelUnit:   c.cfg.LevelUnit,
		GeneratedAt: c.now(),
	}
	for _, metric := range c.cfg.Metrics {
		entries, err := c.store.TopByMetric(ctx, metric, c.cfg.TopN)
		if err != nil {
			return pointer.Pointer{}, fmt.Errorf("query %s ranking: %w", metric, err)
		}
		snapshot.Lists = append(snapshot.Lists, board.RankedList{
			Metric:  metric,
			Entries: board.Top(entries, c.cfg.TopN),
		})
	}
	payload := c.render(snapshot)

	prev := c.resolvePointer(ctx)
	if prev != nil && prev.ChannelID == c.cfg.ChannelID {
		err := c.delivery.Edit(ctx, prev.Ref(), payload)
		switch {
		case err == nil:
			updated := *prev
			updated.LastPublishedAt = c.now()
			c.publish(ctx, updated)
			return updated, nil
		case errors.Is(err, lberrors.ErrMessageNotFound):
			c.logger.WarnContext(ctx, "Board message is gone, posting a new one",
				attr.ChannelID(prev.ChannelID),
				attr.MessageID(prev.MessageID),
			)
			c.invalidate(ctx)
			prev = nil
		default:
			return pointer.Pointer{}, fmt.Errorf("edit board message: %w", err)
		}
	}

	ref, err := c.delivery.Send(ctx, c.cfg.ChannelID, payload)
	if err != nil {
		return pointer.Pointer{}, fmt.Errorf("send board message: %w", err)
	}
	next := pointer.Pointer{
		ChannelID:       ref.ChannelID,
		MessageID:       ref.MessageID,
		LastPublishedAt: c.now(),
	}
	c.publish(ctx, next)

	// The board moved channels; the old message would otherwise linger.
	if prev != nil {
		c.logger.InfoContext(ctx, "Board channel changed, removing previous message",
			attr.String("previous_channel_id", prev.ChannelID),
			attr.MessageID(prev.MessageID),
		)
		c.delivery.Delete(ctx, prev.Ref())
	}
	return next, nil
}

// resolvePointer loads the durable pointer on first use and serves the
// cached copy afterwards. A failed load is retried on the next attempt.
func (c *Coordinator) resolvePointer(ctx context.Context) *pointer.Pointer {
	c.mu.Lock()
	loaded, current := c.pointerLoaded, c.current
	c.mu.Unlock()
	if loaded {
		return current
	}

	p, err := c.pointers.Load(ctx, c.scope)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load board pointer, treating board as unpublished",
			attr.String("scope", c.scope),
			attr.Error(err),
		)
		return nil
	}

	c.mu.Lock()
	c.current = p
	c.pointerLoaded = true
	c.mu.Unlock()
	return p
}

// publish caches p and persists it. Persistence failures are soft.
func (c *Coordinator) publish(ctx context.Context, p pointer.Pointer) {
	c.mu.Lock()
	c.current = &p
	c.pointerLoaded = true
	c.mu.Unlock()

	if err := c.pointers.Save(ctx, c.scope, p); err != nil {
		c.logger.WarnContext(ctx, "Failed to persist board pointer",
			attr.String("scope", c.scope),
			attr.ChannelID(p.ChannelID),
			attr.MessageID(p.MessageID),
			attr.Error(err),
		)
	}
}

// invalidate drops the pointer after its message was confirmed gone.
func (c *Coordinator) invalidate(ctx context.Context) {
	c.mu.Lock()
	c.current = nil
	c.pointerLoaded = true
	c.mu.Unlock()

	if err := c.pointers.Clear(ctx, c.scope); err != nil {
		c.logger.WarnContext(ctx, "Failed to clear board pointer",
			attr.String("scope", c.scope),
			attr.Error(err),
		)
	}
}

func reason(err error) string {
	return lberrors.Reason(err)
}
