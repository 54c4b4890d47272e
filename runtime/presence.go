package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

// PresencePublisher turns Registry transitions into userOnline and userOffline events.
// mu serializes registration with the matching delivery, so two transitions of
// the same identity always reach a connection in the order they happened.
// Under mu, sinks only enqueue and each one is cut off after sinkTimeout; no
// network write happens while it is held.
type PresencePublisher struct {
	mu          sync.Mutex
	registry    *Registry
	users       repositories.IUserRepository
	log         *slog.Logger
	sinkTimeout time.Duration
	now         func() time.Time
}

func NewPresencePublisher(registry *Registry, users repositories.IUserRepository, log *slog.Logger, sinkTimeout time.Duration) *PresencePublisher {
	return &PresencePublisher{
		registry:    registry,
		users:       users,
		log:         log,
		sinkTimeout: sinkTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Connect registers a connection. On the identity's first connection every other
// connection receives userOnline. The new connection then receives the online set.
func (p *PresencePublisher) Connect(ctx context.Context, identity domain.Identity, sink contract.EventSink) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, cameOnline := p.registry.Register(identity, sink)
	if cameOnline {
		p.log.Info("Identity online", "user_id", identity.ID, "connection_id", conn.ID)
		p.broadcast(ctx, event.UserOnline{
			UserID:   identity.ID,
			Username: identity.Username,
			Avatar:   identity.Avatar,
		}, conn.ID)
	}

	snapshot := event.OnlineUsers(p.registry.OnlineIdentities())
	sendCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()
	if err := conn.Send(sendCtx, snapshot); err != nil {
		p.log.Warn("Online users not delivered", "connection_id", conn.ID, "error", err)
	}
	return conn
}

// Disconnect removes a connection from the Registry. On the identity's last
// connection every remaining connection receives userOffline and the last seen
// time is recorded on a best effort basis.
func (p *PresencePublisher) Disconnect(ctx context.Context, id domain.ConnectionID) (*Connection, bool) {
	p.mu.Lock()
	conn, wentOffline, found := p.registry.Unregister(id)
	if !found {
		p.mu.Unlock()
		return nil, false
	}
	lastSeen := p.now()
	if wentOffline {
		p.log.Info("Identity offline", "user_id", conn.Identity.ID, "connection_id", id)
		p.broadcast(ctx, event.UserOffline{UserID: conn.Identity.ID, LastSeen: lastSeen}, id)
	}
	p.mu.Unlock()

	if wentOffline && p.users != nil {
		if err := p.users.UpdateLastSeen(conn.Identity.ID, lastSeen); err != nil {
			p.log.Warn("Unable to record last seen", "user_id", conn.Identity.ID, "error", err)
		}
	}
	return conn, wentOffline
}

// OnlineUsers is the on-demand pull of the current online set.
func (p *PresencePublisher) OnlineUsers() []domain.Identity {
	return p.registry.OnlineIdentities()
}

// broadcast runs with mu held.
func (p *PresencePublisher) broadcast(ctx context.Context, evt event.DomainEvent, excluding domain.ConnectionID) {
	var targets []workers.Target
	for _, conn := range p.registry.Connections() {
		if conn.ID == excluding {
			continue
		}
		targets = append(targets, workers.Target{ID: conn.ID, Sink: conn.Sink})
	}
	workers.Fanout(ctx, p.log, targets, evt, p.sinkTimeout)
}
