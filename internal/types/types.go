package types

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultHostName is the sentinel display name the server treats as the host
// connection. A participant who picks this name is indistinguishable from the
// host; the convention is shared with the server and kept as is.
const DefaultHostName = "Host"

var (
	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// LobbyCode is case-insensitive. Wire() is what the server expects, Display()
// is what people read off the screen.
type LobbyCode string

func ParseCode(s string) LobbyCode {
	return LobbyCode(lower.String(strings.TrimSpace(s)))
}

func (c LobbyCode) Wire() string    { return lower.String(string(c)) }
func (c LobbyCode) Display() string { return upper.String(string(c)) }
func (c LobbyCode) Empty() bool     { return strings.TrimSpace(string(c)) == "" }

type Identity struct {
	Name   string
	IsHost bool
}

// IdentityFor derives host-ness from the sentinel name.
func IdentityFor(name, hostName string) Identity {
	if hostName == "" {
		hostName = DefaultHostName
	}
	return Identity{Name: name, IsHost: name != "" && name == hostName}
}

type ViewKind string

const (
	ViewHome  ViewKind = "home"
	ViewLobby ViewKind = "lobby"
	ViewJoin  ViewKind = "join"
	ViewGame  ViewKind = "game"
)

// HasChannel reports whether a view of this kind talks to the server over a
// session channel.
func (k ViewKind) HasChannel() bool {
	return k == ViewLobby || k == ViewJoin || k == ViewGame
}

// Handoff is what one view passes to the next. It travels in the route's
// query because the next view cannot see the previous one's memory.
// Players is the round's participant count, zero when unknown.
type Handoff struct {
	Name    string
	Role    string
	Word    string
	Players int
}

func (h Handoff) Empty() bool { return h == Handoff{} }

type Route struct {
	View    ViewKind
	Code    LobbyCode
	Handoff Handoff
}

func Home() Route { return Route{View: ViewHome} }

func To(view ViewKind, code LobbyCode, h Handoff) Route {
	return Route{View: view, Code: code, Handoff: h}
}

// Path renders the route the way the browser client addresses it, with the
// hand-off carried as query parameters.
func (r Route) Path() string {
	if r.View == ViewHome || r.View == "" {
		return "/"
	}
	p := "/" + string(r.View) + "/" + url.PathEscape(r.Code.Wire())
	q := url.Values{}
	if r.Handoff.Name != "" {
		q.Set("name", r.Handoff.Name)
	}
	if r.Handoff.Role != "" {
		q.Set("role", r.Handoff.Role)
	}
	if r.Handoff.Word != "" {
		q.Set("word", r.Handoff.Word)
	}
	if r.Handoff.Players > 0 {
		q.Set("players", strconv.Itoa(r.Handoff.Players))
	}
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

// ParseRoute is the routing table. Anything it does not recognise goes home.
func ParseRoute(raw string) Route {
	u, err := url.Parse(raw)
	if err != nil {
		return Home()
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[1] == "" {
		return Home()
	}

	var view ViewKind
	switch ViewKind(parts[0]) {
	case ViewLobby, ViewJoin, ViewGame:
		view = ViewKind(parts[0])
	default:
		return Home()
	}

	q := u.Query()
	players, err := strconv.Atoi(q.Get("players"))
	if err != nil || players < 0 {
		players = 0
	}
	return Route{
		View: view,
		Code: ParseCode(parts[1]),
		Handoff: Handoff{
			Name:    q.Get("name"),
			Role:    q.Get("role"),
			Word:    q.Get("word"),
			Players: players,
		},
	}
}
