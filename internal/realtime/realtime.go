package realtime

import (
	"context"
	"errors"

	"github.com/luciandrev/estudia_rooms/internal/domain"
)

var ErrChannelClosed = errors.New("signaling channel closed")

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent notifies subscribers that a table row changed. Fields carries
// the column values a filter can match on; consumers treat the event as a
// refetch trigger, not as the row itself.
type ChangeEvent struct {
	Table  string            `json:"table"`
	Op     ChangeOp          `json:"op"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Filter restricts a feed subscription to rows whose column equals a value.
type Filter struct {
	Column string
	Value  string
}

// Matches reports whether the event passes the filter.
func (f *Filter) Matches(ev ChangeEvent) bool {
	if f == nil {
		return true
	}
	return ev.Fields[f.Column] == f.Value
}

type Subscription interface {
	Close() error
}

// Feed delivers table change notifications: subscribe to a table, optionally
// filtered, and receive a callback on any insert/update/delete.
type Feed interface {
	Subscribe(ctx context.Context, table string, filter *Filter, fn func(ev ChangeEvent)) (Subscription, error)
}

// Publisher is the write side of the feed; repositories publish a change
// event after each successful write.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

type PresenceKind string

const (
	PresenceJoin  PresenceKind = "join"
	PresenceLeave PresenceKind = "leave"
)

// PresenceEvent announces a peer entering or leaving a room topic.
type PresenceEvent struct {
	Kind   PresenceKind `json:"kind"`
	PeerID string       `json:"peer_id"`
}

// ChannelHandlers receive the two message classes a signaling channel
// carries. Handlers run on the channel's receive goroutine.
type ChannelHandlers struct {
	OnSignal   func(msg domain.SignalMessage)
	OnPresence func(ev PresenceEvent)
}

// Channel is a named, ephemeral signaling topic scoped to one room. Opening
// it announces local presence so existing members discover the new peer and
// vice versa. Delivery is best effort while connected; nothing blocks or
// retries.
type Channel interface {
	Open(ctx context.Context, h ChannelHandlers) error
	Send(ctx context.Context, msg domain.SignalMessage) error
	// Close unsubscribes and releases the topic. Idempotent.
	Close() error
}

// Transport hands out signaling channels keyed by room and local identifier.
type Transport interface {
	Channel(roomID, selfID string) Channel
}
