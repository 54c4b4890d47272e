// Package client converges local chat state to what the relay broadcasts.
// Every mutation goes through one consumer goroutine; nothing else writes the state.
package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/projection"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultTypingTTL = 3 * time.Second

var ErrNoActiveRoom = fmt.Errorf("%w: no active room", errors.ErrValidation)

// Sender forwards a request to the relay.
type Sender interface {
	Send(request event.Request) error
}

type typer struct {
	identity domain.Identity
	timer    Stopper
	gen      uint64
}

type Synchronizer struct {
	log       *slog.Logger
	sender    Sender
	scheduler Scheduler
	typingTTL time.Duration
	onChange  func(State)
	inputs    chan Input
	done      chan struct{}
	closeOnce sync.Once

	// owned by the Run goroutine
	self     domain.Identity
	rooms    []domain.Room
	active   domain.RoomID
	timeline *projection.Timeline
	cursor   *string
	online   map[domain.UserID]domain.Identity
	typers   map[TypingKey]*typer
	gen      uint64
	lastErr  string

	snapshotMu sync.RWMutex
	snapshot   State
}

type Option func(*Synchronizer)

func WithScheduler(scheduler Scheduler) Option {
	return func(s *Synchronizer) { s.scheduler = scheduler }
}

func WithTypingTTL(ttl time.Duration) Option {
	return func(s *Synchronizer) { s.typingTTL = ttl }
}

// WithOnChange registers a callback run on the consumer goroutine after every transition.
func WithOnChange(f func(State)) Option {
	return func(s *Synchronizer) { s.onChange = f }
}

func WithBufferSize(size int) Option {
	return func(s *Synchronizer) { s.inputs = make(chan Input, size) }
}

func NewSynchronizer(log *slog.Logger, self domain.Identity, sender Sender, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		log:       log,
		sender:    sender,
		scheduler: timerScheduler{},
		typingTTL: DefaultTypingTTL,
		inputs:    make(chan Input, 64),
		done:      make(chan struct{}),
		self:      self,
		timeline:  projection.NewTimeline(""),
		online:    make(map[domain.UserID]domain.Identity),
		typers:    make(map[TypingKey]*typer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot = State{Self: self}
	return s
}

// Dispatch queues an input. It blocks while the queue is full.
func (s *Synchronizer) Dispatch(ctx context.Context, in Input) error {
	select {
	case s.inputs <- in:
		return nil
	case <-s.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the snapshot published after the last transition.
func (s *Synchronizer) State() State {
	s.snapshotMu.RLock()
	defer s.snapshotMu.RUnlock()
	return s.snapshot
}

// Run consumes inputs one at a time until ctx is canceled.
// Pending typing timers are cancelled on exit.
func (s *Synchronizer) Run(ctx context.Context) error {
	defer s.closeOnce.Do(func() {
		close(s.done)
		s.clearTyping(func(TypingKey) bool { return true })
	})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-s.inputs:
			s.apply(in)
			state := s.publish()
			if s.onChange != nil {
				s.onChange(state)
			}
		}
	}
}

func (s *Synchronizer) apply(in Input) {
	switch in := in.(type) {
	case ServerEvent:
		s.applyEvent(in.Event)
	case JoinRoom:
		s.switchRoom(in.RoomID)
	case LeaveRoom:
		s.send(event.LeaveRoom{RoomID: in.RoomID})
		if in.RoomID == s.active {
			s.resetRoom("")
		}
	case SendMessage:
		if s.active == "" {
			s.lastErr = ErrNoActiveRoom.Error()
			return
		}
		s.send(event.SendMessage{RoomID: s.active, Content: in.Content, Type: in.Type})
	case CreateRoom:
		s.send(event.CreateRoom{RoomName: in.Name, Description: in.Description, Private: in.Private})
	case AddMember:
		if s.active == "" {
			s.lastErr = ErrNoActiveRoom.Error()
			return
		}
		s.send(event.AddMember{RoomID: s.active, UserID: in.UserID})
	case StartTyping:
		if s.active != "" {
			s.send(event.Typing{RoomID: s.active})
		}
	case StopTyping:
		if s.active != "" {
			s.send(event.StopTyping{RoomID: s.active})
		}
	case LoadOlder:
		if s.active != "" && s.cursor != nil {
			s.send(event.GetMessages{RoomID: s.active, Cursor: s.cursor})
		}
	case RefreshRooms:
		s.send(event.ListRooms{})
	case RefreshOnline:
		s.send(event.GetOnlineUsers{})
	case ClearError:
		s.lastErr = ""
	case typingExpired:
		if t, ok := s.typers[in.key]; ok && t.gen == in.gen {
			delete(s.typers, in.key)
		}
	default:
		s.log.Warn("Unknown input", "input", fmt.Sprintf("%T", in))
	}
}

func (s *Synchronizer) applyEvent(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessagePosted:
		s.stopTyping(TypingKey{Room: evt.RoomID, User: evt.Author.ID})
		s.timeline.Consume(evt)
	case event.MessageHistory:
		if evt.RoomID != s.active {
			return
		}
		s.timeline.Consume(evt)
		s.cursor = evt.Cursor
	case event.OnlineUsers:
		s.online = lo.SliceToMap(evt, func(identity domain.Identity) (domain.UserID, domain.Identity) {
			return identity.ID, identity
		})
	case event.UserOnline:
		s.online[evt.UserID] = domain.Identity{ID: evt.UserID, Username: evt.Username, Avatar: evt.Avatar}
	case event.UserOffline:
		delete(s.online, evt.UserID)
		s.clearTyping(func(key TypingKey) bool { return key.User == evt.UserID })
	case event.UserTyping:
		if evt.UserID == s.self.ID || evt.RoomID != s.active {
			return
		}
		s.startTyping(TypingKey{Room: evt.RoomID, User: evt.UserID}, domain.Identity{ID: evt.UserID, Username: evt.Username})
	case event.UserStoppedTyping:
		s.stopTyping(TypingKey{Room: evt.RoomID, User: evt.UserID})
	case event.UserLeftRoom:
		s.stopTyping(TypingKey{Room: evt.RoomID, User: evt.UserID})
	case event.UserJoinedRoom:
		// membership is not displayed
	case event.RoomList:
		s.rooms = evt.Rooms
	case event.RoomCreated:
		if _, ok := lo.Find(s.rooms, func(r domain.Room) bool { return r.ID == evt.Room.ID }); !ok {
			s.rooms = append([]domain.Room{evt.Room}, s.rooms...)
		}
	case event.AddedToRoom:
		s.upsertRoom(evt.Room)
	case event.MemberAdded:
		// The member list of the room changed, the listing carries it.
		s.send(event.ListRooms{})
	case event.Error:
		s.lastErr = evt.Message
	case event.Pong:
	default:
		s.log.Debug("Event ignored", "event", e.Name())
	}
}

func (s *Synchronizer) upsertRoom(room domain.Room) {
	for i := range s.rooms {
		if s.rooms[i].ID == room.ID {
			s.rooms[i] = room
			return
		}
	}
	s.rooms = append([]domain.Room{room}, s.rooms...)
}

// switchRoom clears what belongs to the prior room before asking for the new one.
func (s *Synchronizer) switchRoom(roomID domain.RoomID) {
	if roomID == "" {
		return
	}
	s.resetRoom(roomID)
	s.send(event.JoinRoom{RoomID: roomID})
	s.send(event.GetMessages{RoomID: roomID})
}

func (s *Synchronizer) resetRoom(roomID domain.RoomID) {
	s.clearTyping(func(TypingKey) bool { return true })
	s.active = roomID
	s.cursor = nil
	s.timeline.Reset(roomID)
}

// startTyping (re)arms the expiry of one indicator, replacing any prior timer.
func (s *Synchronizer) startTyping(key TypingKey, identity domain.Identity) {
	if t, ok := s.typers[key]; ok {
		t.timer.Stop()
	}
	s.gen++
	gen := s.gen
	timer := s.scheduler.AfterFunc(s.typingTTL, func() {
		select {
		case s.inputs <- typingExpired{key: key, gen: gen}:
		case <-s.done:
		}
	})
	s.typers[key] = &typer{identity: identity, timer: timer, gen: gen}
}

func (s *Synchronizer) stopTyping(key TypingKey) {
	if t, ok := s.typers[key]; ok {
		t.timer.Stop()
		delete(s.typers, key)
	}
}

func (s *Synchronizer) clearTyping(match func(TypingKey) bool) {
	for key := range s.typers {
		if match(key) {
			s.stopTyping(key)
		}
	}
}

func (s *Synchronizer) send(request event.Request) {
	if err := s.sender.Send(request); err != nil {
		s.log.Warn("Request not sent", "event", request.Name(), "error", err)
		s.lastErr = err.Error()
	}
}

func (s *Synchronizer) publish() State {
	online := lo.Values(s.online)
	sortIdentities(online)

	typing := make([]domain.Identity, 0, len(s.typers))
	for key, t := range s.typers {
		if key.Room == s.active {
			typing = append(typing, t.identity)
		}
	}
	sortIdentities(typing)

	state := State{
		Self:       s.self,
		Rooms:      append([]domain.Room(nil), s.rooms...),
		ActiveRoom: s.active,
		Messages:   s.timeline.Messages(),
		HasOlder:   s.cursor != nil,
		Online:     online,
		Typing:     typing,
		LastError:  s.lastErr,
	}
	s.snapshotMu.Lock()
	s.snapshot = state
	s.snapshotMu.Unlock()
	return state
}

func sortIdentities(identities []domain.Identity) {
	sort.Slice(identities, func(i, j int) bool {
		if identities[i].Username != identities[j].Username {
			return identities[i].Username < identities[j].Username
		}
		return identities[i].ID < identities[j].ID
	})
}
