package main

import (
	"bytes"
	"chat-relay/client"
	"chat-relay/domain"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestFindRoom(t *testing.T) {
	req := require.New(t)
	rooms := []domain.Room{{ID: "r1", Name: "General"}, {ID: "r2", Name: "Tech Talk"}}

	room, ok := findRoom(rooms, "tech talk")
	req.True(ok)
	req.Equal(domain.RoomID("r2"), room.ID)

	room, ok = findRoom(rooms, "r1")
	req.True(ok)
	req.Equal("General", room.Name)

	_, ok = findRoom(rooms, "nowhere")
	req.False(ok)
}

func TestTypingLine(t *testing.T) {
	req := require.New(t)
	req.Empty(typingLine(nil))
	req.Equal("bob is typing...", typingLine([]domain.Identity{{Username: "bob"}}))
	req.Equal("bob, carol are typing...", typingLine([]domain.Identity{{Username: "bob"}, {Username: "carol"}}))
}

func TestView_Render_Prints_Each_Message_Once_And_Joins_Start_Room(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	v := newView(&out, "u-alice", "general")

	var mu sync.Mutex
	var dispatched []client.Input
	v.dispatch = func(in client.Input) {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, in)
	}

	rooms := []domain.Room{{ID: "r1", Name: "General"}}
	v.render(client.State{Rooms: rooms})
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal(client.JoinRoom{RoomID: "r1"}, dispatched[0])

	message := domain.Message{ID: uuid.New(), RoomID: "r1", Author: domain.Identity{ID: "u-bob", Username: "bob"}, Content: "hello there", CreatedAt: time.Now()}
	state := client.State{Rooms: rooms, ActiveRoom: "r1", Messages: []domain.Message{message}}
	v.render(state)
	v.render(state)

	req.Equal(1, bytes.Count(out.Bytes(), []byte("hello there")))
	req.Contains(out.String(), "General")
}

func TestView_HandleLine(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	v := newView(&out, "u-alice", "")
	var dispatched []client.Input
	v.dispatch = func(in client.Input) { dispatched = append(dispatched, in) }
	state := client.State{
		Rooms:      []domain.Room{{ID: "r1", Name: "General"}},
		ActiveRoom: "r1",
		Online:     []domain.Identity{{ID: "u-bob", Username: "bob"}},
	}

	req.False(v.handleLine("hi all", state))
	req.False(v.handleLine("/join general", state))
	req.False(v.handleLine("/create Secret Club private", state))
	req.False(v.handleLine("/add Bob", state))
	req.False(v.handleLine("/add u-carol", state))
	req.False(v.handleLine("/leave", state))
	req.True(v.handleLine("/quit", state))

	req.Equal([]client.Input{
		client.SendMessage{Content: "hi all", Type: domain.TextMessage},
		client.JoinRoom{RoomID: "r1"},
		client.CreateRoom{Name: "Secret Club", Private: true},
		client.AddMember{UserID: "u-bob"},
		client.AddMember{UserID: "u-carol"},
		client.LeaveRoom{RoomID: "r1"},
	}, dispatched)

	req.False(v.handleLine("/join nowhere", state))
	req.Contains(out.String(), "unknown room nowhere")
}
