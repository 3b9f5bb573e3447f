package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/luciandrev/estudia_rooms/internal/domain"
	"github.com/luciandrev/estudia_rooms/lib/logger/sl"
)

// RedisBus carries both the table change feed and the per-room signaling
// topics over redis pub/sub. Presence is tracked in a per-room set.
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, log: log}
}

func changesTopic(table string) string {
	return "changes:" + table
}

func signalTopic(roomID string) string {
	return "studyroom:" + roomID + ":signal"
}

func presenceTopic(roomID string) string {
	return "studyroom:" + roomID + ":presence"
}

func membersKey(roomID string) string {
	return "studyroom:" + roomID + ":members"
}

func (b *RedisBus) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, changesTopic(ev.Table), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, table string, filter *Filter, fn func(ev ChangeEvent)) (Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, changesTopic(table))

	go func() {
		for msg := range pubsub.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Error("bad change event payload", sl.Err(err))
				continue
			}
			if filter.Matches(ev) {
				fn(ev)
			}
		}
	}()

	return &redisSubscription{pubsub: pubsub}, nil
}

func (b *RedisBus) Channel(roomID, selfID string) Channel {
	return &redisChannel{bus: b, roomID: roomID, selfID: selfID}
}

type redisSubscription struct {
	pubsub *redis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

type redisChannel struct {
	bus    *RedisBus
	roomID string
	selfID string

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

// Open subscribes to the room's signaling and presence topics, announces the
// local peer and synthesizes join events for members already present, so
// both sides discover each other.
func (c *redisChannel) Open(ctx context.Context, h ChannelHandlers) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.pubsub != nil {
		c.mu.Unlock()
		return nil
	}

	pubsub := c.bus.rdb.Subscribe(ctx, signalTopic(c.roomID), presenceTopic(c.roomID))
	c.pubsub = pubsub
	c.mu.Unlock()

	existing, err := c.bus.rdb.SMembers(ctx, membersKey(c.roomID)).Result()
	if err != nil {
		c.abortOpen(pubsub)
		return err
	}

	if err := c.bus.rdb.SAdd(ctx, membersKey(c.roomID), c.selfID).Err(); err != nil {
		c.abortOpen(pubsub)
		return err
	}
	c.publishPresence(ctx, PresenceEvent{Kind: PresenceJoin, PeerID: c.selfID})

	go c.receive(pubsub, h)

	for _, peerID := range existing {
		if peerID == c.selfID {
			continue
		}
		if h.OnPresence != nil {
			h.OnPresence(PresenceEvent{Kind: PresenceJoin, PeerID: peerID})
		}
	}

	return nil
}

// abortOpen unwinds a half-finished Open so a later retry subscribes again
// instead of short-circuiting on the stale pubsub.
func (c *redisChannel) abortOpen(pubsub *redis.PubSub) {
	pubsub.Close()
	c.mu.Lock()
	c.pubsub = nil
	c.mu.Unlock()
}

func (c *redisChannel) receive(pubsub *redis.PubSub, h ChannelHandlers) {
	signalCh := signalTopic(c.roomID)

	for msg := range pubsub.Channel() {
		switch msg.Channel {
		case signalCh:
			var sm domain.SignalMessage
			if err := json.Unmarshal([]byte(msg.Payload), &sm); err != nil {
				c.bus.log.Error("bad signaling payload", sl.Err(err))
				continue
			}
			if sm.From == c.selfID || !sm.AddressedTo(c.selfID) {
				continue
			}
			if h.OnSignal != nil {
				h.OnSignal(sm)
			}
		default:
			var ev PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				c.bus.log.Error("bad presence payload", sl.Err(err))
				continue
			}
			if ev.PeerID == c.selfID {
				continue
			}
			if h.OnPresence != nil {
				h.OnPresence(ev)
			}
		}
	}
}

func (c *redisChannel) Send(ctx context.Context, msg domain.SignalMessage) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.bus.rdb.Publish(ctx, signalTopic(c.roomID), payload).Err()
}

func (c *redisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pubsub := c.pubsub
	c.mu.Unlock()

	ctx := context.Background()
	if err := c.bus.rdb.SRem(ctx, membersKey(c.roomID), c.selfID).Err(); err != nil {
		c.bus.log.Error("failed to drop presence", sl.Err(err))
	}
	c.publishPresence(ctx, PresenceEvent{Kind: PresenceLeave, PeerID: c.selfID})

	if pubsub != nil {
		return pubsub.Close()
	}
	return nil
}

func (c *redisChannel) publishPresence(ctx context.Context, ev PresenceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.bus.log.Error("bad presence event", sl.Err(err))
		return
	}
	if err := c.bus.rdb.Publish(ctx, presenceTopic(c.roomID), payload).Err(); err != nil {
		c.bus.log.Error("failed to publish presence", sl.Err(err))
	}
}
