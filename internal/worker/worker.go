// Package worker contains the stage worker loop and the per-stage handlers.
//
// Each worker process runs one Loop: subscribe to its stage channel, poll
// with a timeout, hand each payload to the stage handler, repeat. A job
// failure never stops the loop; only transport loss pauses it, with a
// fixed backoff before re-subscribing.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voicediary/internal/queue"
)

// Handler processes one stage message. Returned errors are logged; the
// handler owns marking the job failed in the status store.
type Handler func(ctx context.Context, payload []byte) error

// Loop drives one stage's consumption.
type Loop struct {
	queue          queue.Queue
	channel        string
	handler        Handler
	pollTimeout    time.Duration
	reconnectDelay time.Duration
}

// NewLoop creates a Loop for channel backed by q.
func NewLoop(q queue.Queue, channel string, handler Handler, pollTimeout, reconnectDelay time.Duration) *Loop {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Loop{
		queue:          q,
		channel:        channel,
		handler:        handler,
		pollTimeout:    pollTimeout,
		reconnectDelay: reconnectDelay,
	}
}

// Run consumes messages until ctx is cancelled. It survives handler panics
// and transport disconnects; in-flight messages lost to a disconnect are
// not redelivered.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("worker loop starting", "channel", l.channel)

	for ctx.Err() == nil {
		sub, err := l.queue.Subscribe(ctx, l.channel)
		if err != nil {
			slog.Error("subscribe failed, backing off",
				"channel", l.channel, "delay", l.reconnectDelay, "error", err)
			l.sleep(ctx)
			continue
		}

		l.consume(ctx, sub)
		_ = sub.Close()
	}

	slog.Info("worker loop stopped", "channel", l.channel)
}

// consume polls one subscription until cancellation or transport loss.
func (l *Loop) consume(ctx context.Context, sub queue.Subscription) {
	for {
		payload, err := sub.Poll(ctx, l.pollTimeout)
		switch {
		case err == nil:
			l.dispatch(ctx, payload)
		case errors.Is(err, queue.ErrNoMessage):
			continue
		case ctx.Err() != nil:
			return
		default:
			slog.Error("transport error, re-subscribing",
				"channel", l.channel, "delay", l.reconnectDelay, "error", err)
			l.sleep(ctx)
			return
		}
	}
}

// dispatch runs the handler with a catch-all so a single bad job cannot
// terminate the loop.
func (l *Loop) dispatch(ctx context.Context, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in stage handler", "channel", l.channel, "panic", r)
		}
	}()

	if err := l.handler(ctx, payload); err != nil {
		slog.Error("stage handler failed", "channel", l.channel, "error", err)
	}
}

func (l *Loop) sleep(ctx context.Context) {
	select {
	case <-time.After(l.reconnectDelay):
	case <-ctx.Done():
	}
}
