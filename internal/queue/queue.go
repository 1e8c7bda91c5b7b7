// Package queue provides the named pub/sub channels that connect pipeline
// stages.
//
// Delivery is at-most-once: messages are pushed to currently-subscribed
// consumers and are not persisted. Publishing to a channel with no
// subscribers silently drops the message (the receiver count makes this
// observable). Multiple subscriptions to the same channel each receive a
// copy (broadcast fan-out, not load balancing). Horizontally scaled
// workers rely on the status store's transition check to discard late
// duplicates; two workers racing the same message can both process it,
// which stays harmless because identical audio transcribes identically
// and record writes are field merges. Durability lives in the status
// store, not here.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoMessage is the poll-timeout tombstone. Not a failure; workers use
	// the empty poll to check for shutdown.
	ErrNoMessage = errors.New("no message available")
	// ErrTransportUnavailable signals connection loss to the transport.
	// Workers back off and re-subscribe.
	ErrTransportUnavailable = errors.New("queue transport unavailable")
)

// Queue publishes to and subscribes from named stage channels.
type Queue interface {
	// Publish sends payload to every current subscriber of channel and
	// returns the subscriber count. Zero is not an error, but the message
	// is lost.
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription yields messages from one channel.
type Subscription interface {
	// Poll blocks up to timeout for the next message. Returns ErrNoMessage
	// on timeout and an error wrapping ErrTransportUnavailable on
	// connection loss.
	Poll(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}
