package realtime

import (
	"context"
	"sync"

	"github.com/luciandrev/estudia_rooms/internal/domain"
)

// MemoryBus is an in-process implementation of the feed and signaling
// transport, used for tests and single-node development.
type MemoryBus struct {
	mu    sync.Mutex
	subs  map[string][]*memorySubscription
	rooms map[string]map[string]*memoryChannel
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:  make(map[string][]*memorySubscription),
		rooms: make(map[string]map[string]*memoryChannel),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, ev ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	subs := make([]*memorySubscription, len(b.subs[ev.Table]))
	copy(subs, b.subs[ev.Table])
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.filter.Matches(ev) {
			sub.fn(ev)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, table string, filter *Filter, fn func(ev ChangeEvent)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{bus: b, table: table, filter: filter, fn: fn}

	b.mu.Lock()
	b.subs[table] = append(b.subs[table], sub)
	b.mu.Unlock()

	return sub, nil
}

func (b *MemoryBus) Channel(roomID, selfID string) Channel {
	return &memoryChannel{bus: b, roomID: roomID, selfID: selfID}
}

type memorySubscription struct {
	bus    *MemoryBus
	table  string
	filter *Filter
	fn     func(ev ChangeEvent)
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subs[s.table]
	for i, sub := range subs {
		if sub == s {
			s.bus.subs[s.table] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

type memoryChannel struct {
	bus    *MemoryBus
	roomID string
	selfID string

	mu       sync.Mutex
	handlers ChannelHandlers
	open     bool
	closed   bool
}

func (c *memoryChannel) Open(ctx context.Context, h ChannelHandlers) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.open {
		c.mu.Unlock()
		return nil
	}
	c.handlers = h
	c.open = true
	c.mu.Unlock()

	c.bus.mu.Lock()
	members := c.bus.rooms[c.roomID]
	if members == nil {
		members = make(map[string]*memoryChannel)
		c.bus.rooms[c.roomID] = members
	}
	existing := make([]*memoryChannel, 0, len(members))
	for _, member := range members {
		existing = append(existing, member)
	}
	members[c.selfID] = c
	c.bus.mu.Unlock()

	join := PresenceEvent{Kind: PresenceJoin, PeerID: c.selfID}
	for _, member := range existing {
		member.deliverPresence(join)
		if h.OnPresence != nil {
			h.OnPresence(PresenceEvent{Kind: PresenceJoin, PeerID: member.selfID})
		}
	}

	return nil
}

func (c *memoryChannel) Send(ctx context.Context, msg domain.SignalMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	c.bus.mu.Lock()
	targets := make([]*memoryChannel, 0, len(c.bus.rooms[c.roomID]))
	for id, member := range c.bus.rooms[c.roomID] {
		if id == c.selfID {
			continue
		}
		targets = append(targets, member)
	}
	c.bus.mu.Unlock()

	for _, member := range targets {
		if msg.AddressedTo(member.selfID) {
			member.deliverSignal(msg)
		}
	}
	return nil
}

func (c *memoryChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	wasOpen := c.open
	c.open = false
	c.mu.Unlock()

	if !wasOpen {
		return nil
	}

	c.bus.mu.Lock()
	delete(c.bus.rooms[c.roomID], c.selfID)
	remaining := make([]*memoryChannel, 0, len(c.bus.rooms[c.roomID]))
	for _, member := range c.bus.rooms[c.roomID] {
		remaining = append(remaining, member)
	}
	c.bus.mu.Unlock()

	leave := PresenceEvent{Kind: PresenceLeave, PeerID: c.selfID}
	for _, member := range remaining {
		member.deliverPresence(leave)
	}
	return nil
}

func (c *memoryChannel) deliverSignal(msg domain.SignalMessage) {
	c.mu.Lock()
	fn := c.handlers.OnSignal
	open := c.open
	c.mu.Unlock()

	if open && fn != nil {
		fn(msg)
	}
}

func (c *memoryChannel) deliverPresence(ev PresenceEvent) {
	c.mu.Lock()
	fn := c.handlers.OnPresence
	open := c.open
	c.mu.Unlock()

	if open && fn != nil {
		fn(ev)
	}
}
