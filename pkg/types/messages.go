package types

import "encoding/json"

// Client -> Server
// join:
//   name: string
//
// Server -> Client
// host_ready:
//   code: string
//
// lobby_state:
//   code: string
//   players: string[] // full roster, replaces any previous one
//
// game_started:
//   code: string
//   role: "imposter" | "word" // absent for the host connection
//   word: string              // only for word holders
//   count: number             // only for the host connection
//
// game_ended:
//   code: string
//
// vote_update:
//   bad_votes: number
//   total_participants: number
//
// Anything else is ignored by clients.

type Kind string

const (
	KindJoin        Kind = "join"
	KindHostReady   Kind = "host_ready"
	KindLobbyState  Kind = "lobby_state"
	KindGameStarted Kind = "game_started"
	KindGameEnded   Kind = "game_ended"
	KindVoteUpdate  Kind = "vote_update"
)

// Inbound is the union of every server pushed message. Optional fields are
// pointers so that "absent" and "zero" stay distinguishable.
type Inbound struct {
	Type              Kind     `json:"type"`
	Code              string   `json:"code,omitempty"`
	Players           []string `json:"players,omitempty"`
	Role              *string  `json:"role,omitempty"`
	Word              *string  `json:"word,omitempty"`
	Count             *int     `json:"count,omitempty"`
	BadVotes          int      `json:"bad_votes,omitempty"`
	TotalParticipants int      `json:"total_participants,omitempty"`
	Error             string   `json:"error,omitempty"`
}

type Join struct {
	Type Kind   `json:"type"`
	Name string `json:"name"`
}

func NewJoin(name string) Join {
	return Join{Type: KindJoin, Name: name}
}

// DecodeInbound parses one frame. A frame without a type is rejected so that
// error replies such as {"error":"name required"} never reach the reducer as
// an empty kind.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, ErrUntyped
	}
	return in, nil
}
