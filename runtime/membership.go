package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// roomSubscribers is the live subscription set of one room.
// identities counts subscribed connections per identity so that join and
// leave notifications fire once per identity, not once per device.
type roomSubscribers struct {
	mu         sync.RWMutex
	conns      map[domain.ConnectionID]*Connection
	identities map[domain.UserID]int
}

// Subscription is the outcome of a subscribe call.
type Subscription struct {
	Room             domain.Room
	Joined           bool // false when the connection was already subscribed
	FirstForIdentity bool
}

// Departure describes a removed subscription.
type Departure struct {
	RoomID          domain.RoomID
	LastForIdentity bool
}

// MembershipTracker holds the live subscriptions of every room, one lock per room.
// Persisted membership stays in the room store and is only consulted at join time.
type MembershipTracker struct {
	mu          sync.RWMutex
	shards      map[domain.RoomID]*roomSubscribers
	rooms       repositories.IRoomRepository
	log         *slog.Logger
	sinkTimeout time.Duration
}

func NewMembershipTracker(rooms repositories.IRoomRepository, log *slog.Logger, sinkTimeout time.Duration) *MembershipTracker {
	return &MembershipTracker{
		shards:      make(map[domain.RoomID]*roomSubscribers),
		rooms:       rooms,
		log:         log,
		sinkTimeout: sinkTimeout,
	}
}

// shard returns the subscriber set of a room, creating it on first use.
// Shards are never removed, so a pointer obtained here stays valid.
func (t *MembershipTracker) shard(roomID domain.RoomID) *roomSubscribers {
	t.mu.RLock()
	s, ok := t.shards[roomID]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.shards[roomID]; ok {
		return s
	}
	s = &roomSubscribers{
		conns:      make(map[domain.ConnectionID]*Connection),
		identities: make(map[domain.UserID]int),
	}
	t.shards[roomID] = s
	return s
}

func (t *MembershipTracker) existingShard(roomID domain.RoomID) (*roomSubscribers, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.shards[roomID]
	return s, ok
}

// Subscribe adds conn to the live subscribers of a room.
// It fails with a not found error when the room does not exist and with a
// forbidden error when the room is private and the identity is not a member.
// Subscribing twice is a no-op.
func (t *MembershipTracker) Subscribe(conn *Connection, roomID domain.RoomID) (Subscription, error) {
	room, err := t.rooms.GetRoom(roomID)
	if err != nil {
		return Subscription{}, err
	}
	if room.Private {
		member, err := t.rooms.IsMember(conn.Identity.ID, roomID)
		if err != nil {
			return Subscription{}, err
		}
		if !member {
			return Subscription{}, errors.ErrPrivateRoom
		}
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return Subscription{}, errors.ErrConnectionClosed
	}
	if _, ok := conn.rooms[roomID]; ok {
		return Subscription{Room: room}, nil
	}

	s := t.shard(roomID)
	s.mu.Lock()
	s.conns[conn.ID] = conn
	s.identities[conn.Identity.ID]++
	first := s.identities[conn.Identity.ID] == 1
	s.mu.Unlock()

	conn.rooms[roomID] = struct{}{}
	return Subscription{Room: room, Joined: true, FirstForIdentity: first}, nil
}

// Unsubscribe removes conn from a room. left is false when it was not subscribed.
func (t *MembershipTracker) Unsubscribe(conn *Connection, roomID domain.RoomID) (departure Departure, left bool) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if _, ok := conn.rooms[roomID]; !ok {
		return Departure{RoomID: roomID}, false
	}
	delete(conn.rooms, roomID)
	return t.remove(conn, roomID), true
}

// UnsubscribeAll closes conn for new subscriptions and removes every subscription it holds.
// It must run before the connection leaves the Registry.
func (t *MembershipTracker) UnsubscribeAll(conn *Connection) []Departure {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.closed = true

	roomIDs := lo.Keys(conn.rooms)
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })
	departures := make([]Departure, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		departures = append(departures, t.remove(conn, roomID))
		delete(conn.rooms, roomID)
	}
	return departures
}

// remove runs with conn.mu held.
func (t *MembershipTracker) remove(conn *Connection, roomID domain.RoomID) Departure {
	s, ok := t.existingShard(roomID)
	if !ok {
		return Departure{RoomID: roomID}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.ID)
	s.identities[conn.Identity.ID]--
	last := s.identities[conn.Identity.ID] <= 0
	if last {
		delete(s.identities, conn.Identity.ID)
	}
	return Departure{RoomID: roomID, LastForIdentity: last}
}

// Subscribers returns the ids of the connections subscribed to a room, sorted.
func (t *MembershipTracker) Subscribers(roomID domain.RoomID) []domain.ConnectionID {
	s, ok := t.existingShard(roomID)
	if !ok {
		return nil
	}
	s.mu.RLock()
	ids := lo.Keys(s.conns)
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Broadcast sends evt to every subscriber of a room except the excluded connection.
// The subscriber set is snapshotted under the room lock and delivered outside of it.
func (t *MembershipTracker) Broadcast(ctx context.Context, roomID domain.RoomID, evt event.DomainEvent, excluding domain.ConnectionID) workers.FanoutResult {
	s, ok := t.existingShard(roomID)
	if !ok {
		return workers.FanoutResult{}
	}
	s.mu.RLock()
	targets := make([]workers.Target, 0, len(s.conns))
	for id, conn := range s.conns {
		if id == excluding {
			continue
		}
		targets = append(targets, workers.Target{ID: id, Sink: conn.Sink})
	}
	s.mu.RUnlock()

	return workers.Fanout(ctx, t.log, targets, evt, t.sinkTimeout)
}

// Stats returns the number of rooms with at least one subscriber and the total subscription count.
func (t *MembershipTracker) Stats() (rooms, subscriptions int) {
	t.mu.RLock()
	shards := lo.Values(t.shards)
	t.mu.RUnlock()
	for _, s := range shards {
		s.mu.RLock()
		if n := len(s.conns); n > 0 {
			rooms++
			subscriptions += n
		}
		s.mu.RUnlock()
	}
	return rooms, subscriptions
}
