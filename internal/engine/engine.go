package engine

import (
	"slices"

	"github.com/DoyleJ11/imposter-client/internal/types"
	ptypes "github.com/DoyleJ11/imposter-client/pkg/types"
)

type Role string

const (
	RoleNone       Role = ""
	RoleImpostor   Role = "impostor"
	RoleWordHolder Role = "word-holder"
)

// ParseRole accepts both the server's spelling and the hand-off spelling.
func ParseRole(s string) Role {
	switch s {
	case "imposter", "impostor":
		return RoleImpostor
	case "word", "word-holder", "word_holder":
		return RoleWordHolder
	default:
		return RoleNone
	}
}

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseEnded      Phase = "ended"
)

type Assignment struct {
	Role Role
	Word *string
}

type VoteTally struct {
	BadVotes          int
	TotalParticipants int
}

type State struct {
	View     types.ViewKind
	Code     types.LobbyCode
	Identity types.Identity
	HostName string

	Roster     []string
	Assignment *Assignment
	// Seeded is set when the assignment came from a navigation hand-off.
	// Pushed is set once any game_started has been applied.
	Seeded bool
	Pushed bool

	Phase     Phase
	Votes     VoteTally
	HostReady bool
	Joined    bool
	Errors    map[string]string

	// Leaving is set once a navigation effect has been produced; later
	// messages are not applied to a view that is on its way out.
	Leaving bool
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectHome
	EffectNavigate
)

type Effect struct {
	Kind  EffectKind
	Route types.Route
}

func none() Effect { return Effect{} }

func navigate(r types.Route) Effect {
	if r.View == types.ViewHome {
		return Effect{Kind: EffectHome, Route: r}
	}
	return Effect{Kind: EffectNavigate, Route: r}
}

// Apply is the only writer of view state for server pushed messages. It never
// mutates s; unknown kinds return s unchanged.
func Apply(s State, m ptypes.Inbound) (State, Effect) {
	if s.Leaving {
		return s, none()
	}

	switch m.Type {
	case ptypes.KindLobbyState:
		if !lobbyPhase(s.View) {
			return s, none()
		}
		next := s
		next.Roster = cloneRoster(m.Players)
		return next, none()

	case ptypes.KindGameStarted:
		return applyGameStarted(s, m)

	case ptypes.KindGameEnded:
		next := s
		next.Phase = PhaseEnded
		target := afterRoute(s)
		if target.View == s.View {
			return next, none()
		}
		next.Leaving = true
		return next, navigate(target)

	case ptypes.KindHostReady:
		next := s
		next.HostReady = true
		return next, none()

	case ptypes.KindVoteUpdate:
		if s.View != types.ViewGame {
			return s, none()
		}
		next := s
		next.Votes = VoteTally{BadVotes: m.BadVotes, TotalParticipants: m.TotalParticipants}
		return next, none()

	default:
		return s, none()
	}
}

func applyGameStarted(s State, m ptypes.Inbound) (State, Effect) {
	next := s

	// First push after mount keeps a hand-off seed; every later push is a
	// restart and replaces the assignment wholesale.
	if s.Pushed || !s.Seeded {
		pushed := Assignment{Role: ParseRole(deref(m.Role))}
		if m.Word != nil {
			w := *m.Word
			pushed.Word = &w
		}
		next.Assignment = &pushed
	}
	next.Pushed = true
	next.Phase = PhaseInProgress

	total := s.Votes.TotalParticipants
	switch {
	case m.Count != nil:
		total = *m.Count
	case len(s.Roster) > 0:
		total = len(s.Roster)
	}
	next.Votes = VoteTally{TotalParticipants: total}

	if s.View == types.ViewGame {
		return next, none()
	}
	next.Leaving = true
	return next, navigate(types.To(types.ViewGame, s.Code, handoff(next)))
}

// afterRoute is where a session goes once a round ends.
func afterRoute(s State) types.Route {
	if s.Identity.IsHost {
		return types.To(types.ViewLobby, s.Code, types.Handoff{Name: s.Identity.Name})
	}
	return types.To(types.ViewJoin, s.Code, types.Handoff{Name: s.Identity.Name})
}

func handoff(s State) types.Handoff {
	h := types.Handoff{Name: s.Identity.Name, Players: s.Votes.TotalParticipants}
	if s.Assignment != nil {
		h.Role = string(s.Assignment.Role)
		h.Word = deref(s.Assignment.Word)
	}
	return h
}

func lobbyPhase(v types.ViewKind) bool {
	return v == types.ViewLobby || v == types.ViewJoin
}

func cloneRoster(players []string) []string {
	if players == nil {
		return []string{}
	}
	return slices.Clone(players)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
