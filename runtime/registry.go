package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry maps identities to their live connections.
// An identity is online while it holds at least one registered connection.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]*Connection
	byIdentity  map[domain.UserID]map[domain.ConnectionID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[domain.ConnectionID]*Connection),
		byIdentity:  make(map[domain.UserID]map[domain.ConnectionID]*Connection),
	}
}

// Register creates a connection for identity.
// cameOnline reports the zero to one transition of the identity.
func (r *Registry) Register(identity domain.Identity, sink contract.EventSink) (conn *Connection, cameOnline bool) {
	conn = newConnection(domain.ConnectionID(uuid.NewString()), identity, sink)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID] = conn
	owned, ok := r.byIdentity[identity.ID]
	if !ok {
		owned = make(map[domain.ConnectionID]*Connection)
		r.byIdentity[identity.ID] = owned
	}
	owned[conn.ID] = conn
	return conn, len(owned) == 1
}

// Unregister removes a connection. Removing an unknown id is a no-op.
// wentOffline reports the one to zero transition of the identity.
func (r *Registry) Unregister(id domain.ConnectionID) (conn *Connection, wentOffline, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, found = r.connections[id]
	if !found {
		return nil, false, false
	}
	delete(r.connections, id)

	owned := r.byIdentity[conn.Identity.ID]
	delete(owned, id)
	if len(owned) == 0 {
		delete(r.byIdentity, conn.Identity.ID)
		wentOffline = true
	}
	return conn, wentOffline, true
}

func (r *Registry) Get(id domain.ConnectionID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	return conn, ok
}

// Lookup returns the ids of the live connections of an identity.
func (r *Registry) Lookup(userID domain.UserID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := lo.Keys(r.byIdentity[userID])
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[userID]) > 0
}

// OnlineIdentities returns one entry per online identity, sorted by username.
func (r *Registry) OnlineIdentities() []domain.Identity {
	r.mu.RLock()
	identities := make([]domain.Identity, 0, len(r.byIdentity))
	for _, owned := range r.byIdentity {
		for _, conn := range owned {
			identities = append(identities, conn.Identity)
			break
		}
	}
	r.mu.RUnlock()

	sort.Slice(identities, func(i, j int) bool {
		if identities[i].Username != identities[j].Username {
			return identities[i].Username < identities[j].Username
		}
		return identities[i].ID < identities[j].ID
	})
	return identities
}

// Connections returns a snapshot of every live connection.
func (r *Registry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.connections)
}

func (r *Registry) Count() (connections, identities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections), len(r.byIdentity)
}
