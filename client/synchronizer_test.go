package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var (
	self  = domain.Identity{ID: "u-alice", Username: "alice"}
	bob   = domain.Identity{ID: "u-bob", Username: "bob"}
	carol = domain.Identity{ID: "u-carol", Username: "carol"}
)

// recorder is a Sender keeping every request.
type recorder struct {
	mu       sync.Mutex
	requests []event.Request
	err      error
}

func (r *recorder) Send(request event.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.requests = append(r.requests, request)
	return nil
}

func (r *recorder) Requests() []event.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Request(nil), r.requests...)
}

// manualScheduler fires timers only when the test advances it.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prevented := !t.stopped && !t.fired
	t.stopped = true
	return prevented
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{delay: d, f: f}
	m.timers = append(m.timers, timer)
	return timer
}

// fireAll runs every timer that is neither stopped nor fired, like a clock moving past their deadline.
func (m *manualScheduler) fireAll() int {
	m.mu.Lock()
	timers := append([]*manualTimer(nil), m.timers...)
	m.mu.Unlock()
	fired := 0
	for _, timer := range timers {
		timer.mu.Lock()
		run := !timer.stopped && !timer.fired
		timer.fired = true
		timer.mu.Unlock()
		if run {
			timer.f()
			fired++
		}
	}
	return fired
}

// fireStale runs a timer even though it was stopped, as a late firing would.
func (m *manualScheduler) fireStale(i int) {
	m.mu.Lock()
	timer := m.timers[i]
	m.mu.Unlock()
	timer.f()
}

func (m *manualScheduler) delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Map(m.timers, func(t *manualTimer, _ int) time.Duration { return t.delay })
}

type fixture struct {
	sync      *Synchronizer
	sender    *recorder
	scheduler *manualScheduler
	changes   chan State
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{sender: &recorder{}, scheduler: &manualScheduler{}, changes: make(chan State, 256)}
	f.sync = NewSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), self, f.sender,
		WithScheduler(f.scheduler),
		WithOnChange(func(s State) { f.changes <- s }))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.sync.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return f
}

// apply dispatches one input and waits for its transition.
func (f fixture) apply(t *testing.T, in Input) State {
	t.Helper()
	require.NoError(t, f.sync.Dispatch(context.Background(), in))
	return f.next(t)
}

func (f fixture) next(t *testing.T) State {
	t.Helper()
	select {
	case s := <-f.changes:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no transition")
		return State{}
	}
}

func (f fixture) event(t *testing.T, e event.DomainEvent) State {
	return f.apply(t, ServerEvent{Event: e})
}

func posted(room domain.RoomID, author domain.Identity, content string, seq uint64) event.MessagePosted {
	return event.MessagePosted{Message: domain.Message{
		ID:        uuid.New(),
		RoomID:    room,
		Author:    author,
		Content:   content,
		Type:      domain.TextMessage,
		CreatedAt: time.Date(2026, 5, 1, 12, 0, int(seq), 0, time.UTC),
		Seq:       seq,
	}}
}

func usernames(identities []domain.Identity) []string {
	return lo.Map(identities, func(i domain.Identity, _ int) string { return i.Username })
}

func TestSynchronizer_Join_Requests_Room_Then_History(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	state := f.apply(t, JoinRoom{RoomID: "general"})

	req.Equal(domain.RoomID("general"), state.ActiveRoom)
	req.Equal([]event.Request{
		event.JoinRoom{RoomID: "general"},
		event.GetMessages{RoomID: "general"},
	}, f.sender.Requests())
}

func TestSynchronizer_Room_Switch_Clears_Prior_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})
	f.event(t, posted("general", bob, "hi", 1))
	state := f.event(t, event.UserTyping{UserID: bob.ID, Username: bob.Username, RoomID: "general"})
	req.Len(state.Messages, 1)
	req.Len(state.Typing, 1)

	// When the user switches to another room
	state = f.apply(t, JoinRoom{RoomID: "random"})

	// Then messages and typers of the prior room are gone and their timer cancelled
	req.Empty(state.Messages)
	req.Empty(state.Typing)
	req.Zero(f.scheduler.fireAll())

	// And a late history reply for the prior room is ignored
	state = f.event(t, event.MessageHistory{RoomID: "general", Messages: []domain.Message{posted("general", bob, "old", 0).Message}})
	req.Empty(state.Messages)
}

func TestSynchronizer_Messages_Only_For_Active_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})

	f.event(t, posted("general", bob, "first", 1))
	f.event(t, posted("random", bob, "elsewhere", 2))
	state := f.event(t, posted("general", carol, "second", 3))

	req.Equal([]string{"first", "second"}, lo.Map(state.Messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestSynchronizer_Send_Has_No_Local_Echo(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Without an active room the send is refused locally
	state := f.apply(t, SendMessage{Content: "lost"})
	req.Equal(ErrNoActiveRoom.Error(), state.LastError)
	req.Empty(f.sender.Requests())

	f.apply(t, ClearError{})
	f.apply(t, JoinRoom{RoomID: "general"})

	// When alice sends
	state = f.apply(t, SendMessage{Content: "hello", Type: domain.TextMessage})

	// Then the request leaves but nothing is displayed yet
	req.Contains(f.sender.Requests(), event.Request(event.SendMessage{RoomID: "general", Content: "hello", Type: domain.TextMessage}))
	req.Empty(state.Messages)

	// Until the relay broadcasts it back
	state = f.event(t, posted("general", self, "hello", 1))
	req.Len(state.Messages, 1)
}

func TestSynchronizer_Typing_Expires_After_TTL(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})

	// Given bob starts typing without any follow up
	state := f.event(t, event.UserTyping{UserID: bob.ID, Username: bob.Username, RoomID: "general"})
	req.Equal([]string{"bob"}, usernames(state.Typing))
	req.Equal([]time.Duration{DefaultTypingTTL}, f.scheduler.delays())

	// When the deadline passes
	req.Equal(1, f.scheduler.fireAll())

	// Then bob is no longer typing
	state = f.next(t)
	req.Empty(state.Typing)
}

func TestSynchronizer_Typing_Refresh_Replaces_Timer(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})
	typing := event.UserTyping{UserID: bob.ID, Username: bob.Username, RoomID: "general"}

	f.event(t, typing)
	state := f.event(t, typing)

	// A single entry, and the first timer is cancelled
	req.Equal([]string{"bob"}, usernames(state.Typing))
	req.Len(f.scheduler.delays(), 2)

	// Even if the replaced timer fires late, the entry survives
	f.scheduler.fireStale(0)
	state = f.next(t)
	req.Equal([]string{"bob"}, usernames(state.Typing))

	// Only the live timer removes it
	req.Equal(1, f.scheduler.fireAll())
	state = f.next(t)
	req.Empty(state.Typing)
}

func TestSynchronizer_Typing_Cleared_By_Stop_Message_And_Offline(t *testing.T) {
	tests := []struct {
		name  string
		clear event.DomainEvent
	}{
		{"explicit stop", event.UserStoppedTyping{UserID: bob.ID, Username: bob.Username, RoomID: "general"}},
		{"message sent", posted("general", bob, "done", 1)},
		{"went offline", event.UserOffline{UserID: bob.ID, LastSeen: time.Now()}},
		{"left room", event.UserLeftRoom{UserID: bob.ID, Username: bob.Username, RoomID: "general"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			f.apply(t, JoinRoom{RoomID: "general"})
			f.event(t, event.UserTyping{UserID: bob.ID, Username: bob.Username, RoomID: "general"})
			f.event(t, event.UserTyping{UserID: carol.ID, Username: carol.Username, RoomID: "general"})

			state := f.event(t, tt.clear)

			req.Equal([]string{"carol"}, usernames(state.Typing))
			req.Equal(1, f.scheduler.fireAll())
		})
	}
}

func TestSynchronizer_Ignores_Own_And_Foreign_Room_Typing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})

	f.event(t, event.UserTyping{UserID: self.ID, Username: self.Username, RoomID: "general"})
	state := f.event(t, event.UserTyping{UserID: bob.ID, Username: bob.Username, RoomID: "random"})

	req.Empty(state.Typing)
	req.Empty(f.scheduler.delays())
}

func TestSynchronizer_Presence(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	state := f.event(t, event.OnlineUsers{self, bob})
	req.Equal([]string{"alice", "bob"}, usernames(state.Online))

	state = f.event(t, event.UserOnline{UserID: carol.ID, Username: carol.Username})
	req.Equal([]string{"alice", "bob", "carol"}, usernames(state.Online))

	// A duplicate online event does not duplicate the entry
	state = f.event(t, event.UserOnline{UserID: carol.ID, Username: carol.Username})
	req.Len(state.Online, 3)

	state = f.event(t, event.UserOffline{UserID: bob.ID})
	req.Equal([]string{"alice", "carol"}, usernames(state.Online))
	req.False(state.IsOnline(bob.ID))
}

func TestSynchronizer_Rooms_And_Errors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	general := domain.Room{ID: "general", Name: "General"}
	tech := domain.Room{ID: "tech", Name: "Tech Talk"}

	state := f.event(t, event.RoomList{Rooms: []domain.Room{general}})
	req.Len(state.Rooms, 1)

	f.apply(t, CreateRoom{Name: "Tech Talk"})
	req.Contains(f.sender.Requests(), event.Request(event.CreateRoom{RoomName: "Tech Talk"}))
	f.event(t, event.RoomCreated{Room: tech})
	state = f.event(t, event.RoomCreated{Room: tech})
	req.Equal([]domain.Room{tech, general}, state.Rooms)
	_, ok := state.Room("tech")
	req.True(ok)

	state = f.event(t, event.Error{Message: "Failed to join room", Kind: "forbidden"})
	req.Equal("Failed to join room", state.LastError)
	state = f.apply(t, ClearError{})
	req.Empty(state.LastError)
}

func TestSynchronizer_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	secret := domain.Room{ID: "secret", Name: "Secret", Private: true, Members: []domain.UserID{"u-alice"}}

	// Adding a member needs an active room
	state := f.apply(t, AddMember{UserID: bob.ID})
	req.Equal(ErrNoActiveRoom.Error(), state.LastError)

	f.apply(t, JoinRoom{RoomID: "general"})
	f.apply(t, AddMember{UserID: bob.ID})
	req.Equal(event.Request(event.AddMember{RoomID: "general", UserID: bob.ID}), lo.LastOrEmpty(f.sender.Requests()))

	// The confirmation refreshes the listing
	f.event(t, event.MemberAdded{RoomID: "general", UserID: bob.ID})
	req.Equal(event.Request(event.ListRooms{}), lo.LastOrEmpty(f.sender.Requests()))

	// Being added shows the room, and a second notice replaces it
	state = f.event(t, event.AddedToRoom{Room: secret})
	req.Equal([]domain.Room{secret}, state.Rooms)
	secret.Members = append(secret.Members, "u-bob")
	state = f.event(t, event.AddedToRoom{Room: secret})
	req.Equal([]domain.Room{secret}, state.Rooms)
}

func TestSynchronizer_Load_Older_Uses_Cursor(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})
	cursor := "msg:general:cursor"

	state := f.event(t, event.MessageHistory{RoomID: "general", Messages: []domain.Message{posted("general", bob, "recent", 5).Message}, Cursor: &cursor})
	req.True(state.HasOlder)

	f.apply(t, LoadOlder{})
	req.Equal(event.Request(event.GetMessages{RoomID: "general", Cursor: &cursor}), lo.LastOrEmpty(f.sender.Requests()))

	state = f.event(t, event.MessageHistory{RoomID: "general", Messages: []domain.Message{posted("general", bob, "older", 1).Message}})
	req.False(state.HasOlder)
	req.Equal([]string{"older", "recent"}, lo.Map(state.Messages, func(m domain.Message, _ int) string { return m.Content }))
}

func TestSynchronizer_Leave_Active_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.apply(t, JoinRoom{RoomID: "general"})
	f.event(t, posted("general", bob, "hi", 1))

	state := f.apply(t, LeaveRoom{RoomID: "general"})

	req.Empty(state.ActiveRoom)
	req.Empty(state.Messages)
	req.Equal(event.Request(event.LeaveRoom{RoomID: "general"}), lo.LastOrEmpty(f.sender.Requests()))
}

func TestSynchronizer_Real_Timer_Expiry_Window(t *testing.T) {
	req := require.New(t)
	ttl := 100 * time.Millisecond
	changes := make(chan State, 16)
	synchronizer := NewSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), self, &recorder{},
		WithTypingTTL(ttl),
		WithOnChange(func(s State) { changes <- s }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = synchronizer.Run(ctx) }()

	req.NoError(synchronizer.Dispatch(ctx, JoinRoom{RoomID: "general"}))
	<-changes
	start := time.Now()
	req.NoError(synchronizer.Dispatch(ctx, ServerEvent{Event: event.UserTyping{UserID: bob.ID, Username: bob.Username, RoomID: "general"}}))
	req.Len((<-changes).Typing, 1)

	select {
	case state := <-changes:
		elapsed := time.Since(start)
		req.Empty(state.Typing)
		req.GreaterOrEqual(elapsed, ttl)
		req.Less(elapsed, ttl+time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("typing entry never expired")
	}
	req.Empty(synchronizer.State().Typing)
}
