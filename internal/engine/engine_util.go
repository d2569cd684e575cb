package engine

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/imposter-client/internal/types"
)

// NewState builds the state a view starts from. A role or word in the
// hand-off becomes the seed assignment.
func NewState(r types.Route, hostName string) State {
	if hostName == "" {
		hostName = types.DefaultHostName
	}
	name := r.Handoff.Name
	if r.View == types.ViewLobby && name == "" {
		name = hostName
	}

	s := State{
		View:     r.View,
		Code:     r.Code,
		Identity: types.IdentityFor(name, hostName),
		HostName: hostName,
		Roster:   []string{},
		Phase:    PhaseNotStarted,
		Votes:    VoteTally{TotalParticipants: r.Handoff.Players},
	}

	if r.Handoff.Role != "" || r.Handoff.Word != "" {
		a := Assignment{Role: ParseRole(r.Handoff.Role)}
		if r.Handoff.Word != "" {
			w := r.Handoff.Word
			a.Word = &w
		}
		s.Assignment = &a
		s.Seeded = true
	}
	return s
}

// Joined records a successful registration under name.
func Joined(s State, name string) State {
	next := s
	next.Identity = types.IdentityFor(name, s.HostName)
	next.Joined = true
	return ClearFieldError(next, FieldName)
}

func WithFieldError(s State, fe *FieldError) State {
	next := s
	next.Errors = maps.Clone(s.Errors)
	if next.Errors == nil {
		next.Errors = map[string]string{}
	}
	next.Errors[fe.Field] = fe.Message
	return next
}

func ClearFieldError(s State, field string) State {
	if _, ok := s.Errors[field]; !ok {
		return s
	}
	next := s
	next.Errors = maps.Clone(s.Errors)
	delete(next.Errors, field)
	return next
}

// Go produces a user initiated navigation.
func Go(s State, r types.Route) (State, Effect) {
	if s.Leaving {
		return s, none()
	}
	next := s
	next.Leaving = true
	return next, navigate(r)
}

type Branch string

const (
	BranchHost       Branch = "host"
	BranchLoading    Branch = "loading"
	BranchImpostor   Branch = "impostor"
	BranchWordHolder Branch = "word-holder"
)

// Branch picks what the game view renders. Host sessions always get the host
// branch, whatever the assignment says.
func (s State) Branch() Branch {
	if s.Identity.IsHost {
		return BranchHost
	}
	if s.Assignment == nil {
		return BranchLoading
	}
	switch s.Assignment.Role {
	case RoleImpostor:
		return BranchImpostor
	case RoleWordHolder:
		return BranchWordHolder
	default:
		return BranchLoading
	}
}

// Snapshot is the read-only projection handed to presentation.
type Snapshot struct {
	View      types.ViewKind
	Code      string
	Name      string
	IsHost    bool
	Roster    []string
	Role      Role
	Word      string
	Phase     Phase
	Votes     VoteTally
	HostReady bool
	Joined    bool
	Errors    map[string]string
	ExpiresIn int64
	Branch    Branch
}

func (s State) Snapshot(expiresIn int64) Snapshot {
	snap := Snapshot{
		View:      s.View,
		Code:      s.Code.Display(),
		Name:      s.Identity.Name,
		IsHost:    s.Identity.IsHost,
		Roster:    slices.Clone(s.Roster),
		Phase:     s.Phase,
		Votes:     s.Votes,
		HostReady: s.HostReady,
		Joined:    s.Joined,
		Errors:    maps.Clone(s.Errors),
		ExpiresIn: expiresIn,
		Branch:    s.Branch(),
	}
	if s.Assignment != nil {
		snap.Role = s.Assignment.Role
		snap.Word = deref(s.Assignment.Word)
	}
	return snap
}
