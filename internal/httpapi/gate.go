package httpapi

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imposter-client/internal/types"
)

type Existence struct {
	Exists    bool
	ExpiresIn int64 // seconds, only meaningful when Exists
}

// CheckLobbyExists is advisory: the lobby can still vanish before a channel
// opens. Not found and transport failures both read as "gone".
func (c *Client) CheckLobbyExists(ctx context.Context, code types.LobbyCode) Existence {
	snap, err := c.FetchLobby(ctx, code)
	if err != nil {
		c.log.Info("lobby check failed", zap.String("code", code.Wire()), zap.Error(err))
		return Existence{}
	}
	return Existence{Exists: true, ExpiresIn: max(snap.ExpiresIn, 0)}
}
