package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"sort"
	"sync"
)

// Connection is one live transport session. It is owned by the Registry.
// mu guards the subscribed rooms and the closed flag; it is always taken
// before a room shard lock.
type Connection struct {
	ID       domain.ConnectionID
	Identity domain.Identity
	Sink     contract.EventSink

	mu     sync.Mutex
	rooms  map[domain.RoomID]struct{}
	closed bool
}

func newConnection(id domain.ConnectionID, identity domain.Identity, sink contract.EventSink) *Connection {
	return &Connection{
		ID:       id,
		Identity: identity,
		Sink:     sink,
		rooms:    make(map[domain.RoomID]struct{}),
	}
}

func (c *Connection) IsSubscribed(roomID domain.RoomID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

// Rooms returns the subscribed room ids, sorted.
func (c *Connection) Rooms() []domain.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]domain.RoomID, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Send delivers a connection-scoped event.
func (c *Connection) Send(ctx context.Context, evt event.DomainEvent) error {
	return c.Sink.Consume(ctx, evt)
}
