package main

import (
	"chat-relay/client"
	"chat-relay/domain"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

var (
	systemStyle = color.New(color.FgGray)
	selfStyle   = color.New(color.FgGreen, color.OpBold)
	peerStyle   = color.New(color.FgCyan, color.OpBold)
	errorStyle  = color.New(color.FgRed)
	headerStyle = color.New(color.BgBlack, color.FgGreen)
)

// view prints the synchronizer state as an append-only terminal log.
type view struct {
	mu        sync.Mutex
	out       io.Writer
	self      domain.UserID
	startRoom string
	started   bool
	dispatch  func(client.Input)
	active    domain.RoomID
	shown     map[uuid.UUID]struct{}
	typing    string
	lastError string
}

func newView(out io.Writer, self domain.UserID, startRoom string) *view {
	return &view{out: out, self: self, startRoom: startRoom, shown: make(map[uuid.UUID]struct{})}
}

func (v *view) banner(server string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, headerStyle.Render(fmt.Sprintf(" connected to %s ", server)))
	fmt.Fprintln(v.out, systemStyle.Render("type /help for commands"))
}

// render runs on the synchronizer goroutine after every transition.
func (v *view) render(state client.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.started && len(state.Rooms) > 0 {
		v.started = true
		if room, ok := findRoom(state.Rooms, v.startRoom); ok {
			// Dispatching from the consumer goroutine must not wait on its own queue.
			go v.dispatch(client.JoinRoom{RoomID: room.ID})
		}
	}

	if state.ActiveRoom != v.active {
		v.active = state.ActiveRoom
		v.shown = make(map[uuid.UUID]struct{})
		v.typing = ""
		if room, ok := state.Room(state.ActiveRoom); ok {
			fmt.Fprintln(v.out, headerStyle.Render(fmt.Sprintf(" #%s ", room.Name)))
		}
	}

	for _, m := range state.Messages {
		if _, ok := v.shown[m.ID]; ok {
			continue
		}
		v.shown[m.ID] = struct{}{}
		v.printMessage(m)
	}

	if typing := typingLine(state.Typing); typing != v.typing {
		v.typing = typing
		if typing != "" {
			fmt.Fprintln(v.out, systemStyle.Render(typing))
		}
	}

	if state.LastError != v.lastError {
		v.lastError = state.LastError
		if state.LastError != "" {
			fmt.Fprintln(v.out, errorStyle.Render("! "+state.LastError))
		}
	}
}

func (v *view) printMessage(m domain.Message) {
	style := peerStyle
	if m.Author.ID == v.self {
		style = selfStyle
	}
	fmt.Fprintf(v.out, "%s %s %s\n",
		systemStyle.Render(m.CreatedAt.Local().Format(time.TimeOnly)),
		style.Render(m.Author.Username+":"),
		m.Content)
}

// handleLine runs one input line and reports whether the user asked to quit.
func (v *view) handleLine(line string, state client.State) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		v.dispatch(client.SendMessage{Content: line, Type: domain.TextMessage})
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit":
		return true
	case "/help":
		v.println(systemStyle.Render("/rooms /who /join <room> /leave /create <name> [private] /add <user> /older /typing /stop /refresh /quit"))
	case "/rooms":
		v.printRooms(state.Rooms)
	case "/who":
		v.printOnline(state.Online)
	case "/join":
		room, ok := findRoom(state.Rooms, arg)
		if !ok {
			v.println(errorStyle.Render("! unknown room " + arg))
			return false
		}
		v.dispatch(client.JoinRoom{RoomID: room.ID})
	case "/leave":
		if state.ActiveRoom != "" {
			v.dispatch(client.LeaveRoom{RoomID: state.ActiveRoom})
		}
	case "/create":
		name, private := strings.CutSuffix(arg, " private")
		v.dispatch(client.CreateRoom{Name: strings.TrimSpace(name), Private: private})
	case "/add":
		if arg == "" {
			v.println(errorStyle.Render("! /add needs a username or id"))
			return false
		}
		v.dispatch(client.AddMember{UserID: resolveUser(state.Online, arg)})
	case "/older":
		v.dispatch(client.LoadOlder{})
	case "/typing":
		v.dispatch(client.StartTyping{})
	case "/stop":
		v.dispatch(client.StopTyping{})
	case "/refresh":
		v.dispatch(client.RefreshRooms{})
		v.dispatch(client.RefreshOnline{})
	default:
		v.println(errorStyle.Render("! unknown command " + command))
	}
	return false
}

func (v *view) printRooms(rooms []domain.Room) {
	v.mu.Lock()
	defer v.mu.Unlock()
	table := newTable(v.out, "Name", "Description", "Private", "Members", "Last activity")
	for _, room := range rooms {
		table.Append([]string{
			room.Name,
			room.Description,
			strconv.FormatBool(room.Private),
			strconv.Itoa(len(room.Members)),
			room.LastActivity.Local().Format(time.DateTime),
		})
	}
	table.Render()
}

func (v *view) printOnline(online []domain.Identity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	table := newTable(v.out, "Username", "ID")
	for _, identity := range online {
		name := identity.Username
		if identity.ID == v.self {
			name += " (you)"
		}
		table.Append([]string{name, string(identity.ID)})
	}
	table.Render()
}

func (v *view) println(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, s)
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// findRoom matches a room by id, then by case-insensitive name.
func findRoom(rooms []domain.Room, ref string) (domain.Room, bool) {
	if ref == "" {
		return domain.Room{}, false
	}
	if room, ok := lo.Find(rooms, func(r domain.Room) bool { return string(r.ID) == ref }); ok {
		return room, true
	}
	return lo.Find(rooms, func(r domain.Room) bool { return strings.EqualFold(r.Name, ref) })
}

// resolveUser maps an online username to its id. Anything else is taken as an id.
func resolveUser(online []domain.Identity, ref string) domain.UserID {
	if identity, ok := lo.Find(online, func(i domain.Identity) bool { return strings.EqualFold(i.Username, ref) }); ok {
		return identity.ID
	}
	return domain.UserID(ref)
}

func typingLine(typing []domain.Identity) string {
	switch len(typing) {
	case 0:
		return ""
	case 1:
		return typing[0].Username + " is typing..."
	default:
		names := lo.Map(typing, func(i domain.Identity, _ int) string { return i.Username })
		return strings.Join(names, ", ") + " are typing..."
	}
}
