// Package runtime owns the live state of the coordinator: connections,
// room subscriptions and presence. It wires them to the stores and runs
// message persistence on supervised workers.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

var (
	_ contract.ICoordinator  = (*Orchestrator)(nil)
	_ contract.ErrorReporter = (*Orchestrator)(nil)
	_ contract.StatsProvider = (*Orchestrator)(nil)
)

type Orchestrator struct {
	mu                sync.Mutex
	log               *slog.Logger
	supervisor        contract.ISupervisor
	registry          *Registry
	membership        *MembershipTracker
	presence          *PresencePublisher
	relay             contract.MessageRelayer
	typing            *TypingRouter
	users             repositories.IUserRepository
	rooms             repositories.IRoomRepository
	messages          repositories.IMessageRepository
	shards            []chan domain.PostMessageCommand
	sinkTimeout       time.Duration
	heartbeatInterval time.Duration
	started           bool
	cancel            context.CancelFunc
	done              chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	users repositories.IUserRepository, rooms repositories.IRoomRepository,
	messages repositories.IMessageRepository,
	numWorkers, bufferSize int, sinkTimeout, heartbeatInterval time.Duration) *Orchestrator {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	registry := NewRegistry()
	membership := NewMembershipTracker(rooms, log, sinkTimeout)
	shards := make([]chan domain.PostMessageCommand, numWorkers)
	for i := range shards {
		shards[i] = make(chan domain.PostMessageCommand, bufferSize)
	}
	return &Orchestrator{
		log:               log,
		supervisor:        supervisor,
		registry:          registry,
		membership:        membership,
		presence:          NewPresencePublisher(registry, users, log, sinkTimeout),
		relay:             NewMessageRelay(messages, rooms, membership, log),
		typing:            NewTypingRouter(membership),
		users:             users,
		rooms:             rooms,
		messages:          messages,
		shards:            shards,
		sinkTimeout:       sinkTimeout,
		heartbeatInterval: heartbeatInterval,
	}
}

// Connect registers a verified connection and publishes presence.
func (o *Orchestrator) Connect(identity domain.Identity, sink contract.EventSink) domain.ConnectionID {
	conn := o.presence.Connect(context.Background(), identity, sink)
	o.log.Debug("Connection registered", "connection_id", conn.ID, "user_id", identity.ID)
	return conn.ID
}

// Disconnect releases every subscription of the connection, then removes it
// from the Registry, so no broadcast ever targets a closed transport.
// Disconnecting twice is a no-op.
func (o *Orchestrator) Disconnect(connectionID domain.ConnectionID) {
	conn, ok := o.registry.Get(connectionID)
	if !ok {
		return
	}
	ctx := context.Background()
	for _, departure := range o.membership.UnsubscribeAll(conn) {
		if departure.LastForIdentity {
			o.membership.Broadcast(ctx, departure.RoomID, o.userLeft(conn, departure.RoomID), conn.ID)
		}
	}
	o.presence.Disconnect(ctx, connectionID)
	o.log.Debug("Connection released", "connection_id", connectionID, "user_id", conn.Identity.ID)
}

func (o *Orchestrator) JoinRoom(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID) error {
	conn, err := o.connection(connectionID)
	if err != nil {
		return err
	}
	sub, err := o.membership.Subscribe(conn, roomID)
	if err != nil {
		return err
	}
	if sub.FirstForIdentity {
		o.membership.Broadcast(ctx, roomID, event.UserJoinedRoom{
			UserID:   conn.Identity.ID,
			Username: conn.Identity.Username,
			RoomID:   roomID,
		}, conn.ID)
	}
	return nil
}

// LeaveRoom is a no-op when the connection is not subscribed.
func (o *Orchestrator) LeaveRoom(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID) error {
	conn, err := o.connection(connectionID)
	if err != nil {
		return err
	}
	departure, left := o.membership.Unsubscribe(conn, roomID)
	if left && departure.LastForIdentity {
		o.membership.Broadcast(ctx, roomID, o.userLeft(conn, roomID), conn.ID)
	}
	return nil
}

// PostMessage validates the command and queues it on the shard of its room.
// Validation and subscription failures are returned at once; persistence
// failures are reported later to the sending connection only.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	conn, err := o.connection(cmd.ConnectionID)
	if err != nil {
		return err
	}
	cmd.Author = conn.Identity
	cmd, err = cmd.Normalize()
	if err != nil {
		return err
	}
	if !conn.IsSubscribed(cmd.Room) {
		return errors.ErrNotSubscribed
	}
	select {
	case o.shardFor(cmd.Room) <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Typing(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID, typing bool) error {
	conn, err := o.connection(connectionID)
	if err != nil {
		return err
	}
	return o.typing.Signal(ctx, conn, roomID, typing)
}

// GetMessages returns one page of history. Private rooms are readable by members only.
func (o *Orchestrator) GetMessages(ctx context.Context, connectionID domain.ConnectionID, cmd domain.GetMessagesCommand) (event.MessageHistory, error) {
	conn, err := o.connection(connectionID)
	if err != nil {
		return event.MessageHistory{}, err
	}
	room, err := o.rooms.GetRoom(cmd.Room)
	if err != nil {
		return event.MessageHistory{}, err
	}
	if !room.CanSubscribe(conn.Identity.ID) {
		return event.MessageHistory{}, errors.ErrPrivateRoom
	}
	messages, cursor, err := o.messages.GetMessages(cmd.Room, cmd.Cursor)
	if err != nil {
		return event.MessageHistory{}, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return event.MessageHistory{RoomID: cmd.Room, Messages: messages, Cursor: cursor}, nil
}

func (o *Orchestrator) ListRooms(ctx context.Context, connectionID domain.ConnectionID) ([]domain.Room, error) {
	conn, err := o.connection(connectionID)
	if err != nil {
		return nil, err
	}
	rooms, err := o.rooms.ListRooms(conn.Identity.ID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}

// CreateRoom stores a new room with the caller as its first persisted member.
func (o *Orchestrator) CreateRoom(ctx context.Context, connectionID domain.ConnectionID, cmd domain.CreateRoomCommand) (domain.Room, error) {
	conn, err := o.connection(connectionID)
	if err != nil {
		return domain.Room{}, err
	}
	cmd.Creator = conn.Identity
	cmd, err = cmd.Normalize()
	if err != nil {
		return domain.Room{}, err
	}
	room, err := o.rooms.CreateRoom(cmd)
	if err != nil {
		return domain.Room{}, err
	}
	o.log.Info("Room created", "room_id", room.ID, "user_id", conn.Identity.ID, "private", room.Private)
	return room, nil
}

// AddMember persists userID as a member of a room. Only an identity allowed to
// subscribe may add members, so a private room grows from its creator outwards.
// The new member's live connections receive addedToRoom. Adding an existing
// member is a no-op.
func (o *Orchestrator) AddMember(ctx context.Context, connectionID domain.ConnectionID, roomID domain.RoomID, userID domain.UserID) (domain.Room, error) {
	conn, err := o.connection(connectionID)
	if err != nil {
		return domain.Room{}, err
	}
	room, err := o.rooms.GetRoom(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.CanSubscribe(conn.Identity.ID) {
		return domain.Room{}, errors.ErrNotRoomMember
	}
	if room.IsMember(userID) {
		return room, nil
	}
	if o.users != nil {
		if _, err := o.users.GetUser(userID); err != nil {
			return domain.Room{}, err
		}
	}
	if room.MaxUsers > 0 && len(room.Members) >= room.MaxUsers {
		return domain.Room{}, errors.ErrRoomFull
	}
	if err := o.rooms.AddMember(roomID, userID); err != nil {
		return domain.Room{}, err
	}
	if room, err = o.rooms.GetRoom(roomID); err != nil {
		return domain.Room{}, err
	}
	o.log.Info("Room member added", "room_id", roomID, "user_id", userID, "added_by", conn.Identity.ID)

	var targets []workers.Target
	for _, id := range o.registry.Lookup(userID) {
		if member, ok := o.registry.Get(id); ok {
			targets = append(targets, workers.Target{ID: member.ID, Sink: member.Sink})
		}
	}
	workers.Fanout(ctx, o.log, targets, event.AddedToRoom{Room: room}, o.sinkTimeout)
	return room, nil
}

func (o *Orchestrator) OnlineUsers() []domain.Identity {
	return o.presence.OnlineUsers()
}

// ReportError sends a connection-scoped error event. Store internals are not exposed.
func (o *Orchestrator) ReportError(ctx context.Context, connectionID domain.ConnectionID, err error) {
	conn, ok := o.registry.Get(connectionID)
	if !ok {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, o.sinkTimeout)
	defer cancel()
	evt := event.Error{Message: errors.ToEventMessage(err), Kind: errors.Kind(err)}
	if sendErr := conn.Send(sendCtx, evt); sendErr != nil {
		o.log.Warn("Error event not delivered", "connection_id", connectionID, "error", sendErr)
	}
}

func (o *Orchestrator) Stats() contract.Stats {
	connections, identities := o.registry.Count()
	rooms, subscribers := o.membership.Stats()
	return contract.Stats{
		Connections: connections,
		Identities:  identities,
		Rooms:       rooms,
		Subscribers: subscribers,
	}
}

// Start registers the persistence workers (and the heartbeat) with the
// supervisor and runs it in the background until ctx is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true

	var queues []workers.NamedChannel
	for i, shard := range o.shards {
		o.supervisor.Add(workers.NewPoolUnitWorker(shard, o.relay, o, o.log.With("shard", i)))
		queues = append(queues, workers.NamedChannel{Name: fmt.Sprintf("shard-%d", i), Channel: shard})
	}
	if o.heartbeatInterval > 0 {
		o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o, queues, o.heartbeatInterval))
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "workers", len(o.shards))
	go func() {
		defer close(done)
		o.supervisor.Run(runCtx)
	}()
	return nil
}

// Stop cancels the supervised workers and waits for them to return, so a relay
// in flight finishes with the store still open. Messages still queued are not relayed.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()

	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	pending := 0
	for _, shard := range o.shards {
		pending += len(shard)
	}
	if pending > 0 {
		o.log.Warn("Queued messages dropped on shutdown", "count", pending)
	}
}

// Registry exposes the live connection table, mostly for the transport's diagnostics.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) connection(id domain.ConnectionID) (*Connection, error) {
	conn, ok := o.registry.Get(id)
	if !ok {
		return nil, errors.ErrConnectionClosed
	}
	return conn, nil
}

// shardFor maps a room to a fixed worker so that its messages are relayed in order.
func (o *Orchestrator) shardFor(roomID domain.RoomID) chan domain.PostMessageCommand {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return o.shards[h.Sum32()%uint32(len(o.shards))]
}

func (o *Orchestrator) userLeft(conn *Connection, roomID domain.RoomID) event.UserLeftRoom {
	return event.UserLeftRoom{UserID: conn.Identity.ID, Username: conn.Identity.Username, RoomID: roomID}
}
