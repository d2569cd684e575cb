package types

import (
	"errors"
	"time"
)

var ErrUntyped = errors.New("message has no type")

// LobbySnapshot is the body of GET /api/v1/lobbies/{code}.
type LobbySnapshot struct {
	Code      string    `json:"code"`
	Players   []string  `json:"players"`
	ExpiresIn int64     `json:"expires_in"` // seconds
	ExpiresAt time.Time `json:"expires_at"`
}

type CreatedLobby struct {
	Code string `json:"code"`
}

type StartRequest struct {
	Imposters int `json:"imposters"`
}

type StatusReply struct {
	Status string `json:"status"`
}
