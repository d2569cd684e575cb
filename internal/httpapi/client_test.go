package httpapi

import (
	"context"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/imposter-client/internal/lobbytest"
	"github.com/DoyleJ11/imposter-client/internal/types"
)

func newTestClient(t *testing.T) (*Client, *lobbytest.Server) {
	t.Helper()
	srv := lobbytest.New(zaptest.NewLogger(t))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return NewClient(hs.URL+"/", time.Second, zaptest.NewLogger(t)), srv
}

func TestCreateThenFetch(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	code, err := c.CreateLobby(ctx)
	require.NoError(t, err)
	require.Len(t, code.Wire(), 6)

	snap, err := c.FetchLobby(ctx, types.ParseCode(code.Display()))
	require.NoError(t, err)
	assert.Equal(t, code.Wire(), snap.Code)
	assert.Empty(t, snap.Players)
	assert.InDelta(t, 900, snap.ExpiresIn, 2)
}

func TestFetchMissing(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.FetchLobby(context.Background(), "nope00")
	require.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestCheckLobbyExists(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Create("abc123")

	tests := []struct {
		name string
		code types.LobbyCode
		want bool
	}{
		{"present", "abc123", true},
		{"upper case input", types.ParseCode("ABC123"), true},
		{"absent", "zzz999", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.CheckLobbyExists(context.Background(), tt.code)
			assert.Equal(t, tt.want, got.Exists)
			if !tt.want {
				assert.Zero(t, got.ExpiresIn)
			}
		})
	}
}

func TestCheckLobbyExists_TransportFailureReadsAsGone(t *testing.T) {
	hs := httptest.NewServer(lobbytest.New(nil).Handler())
	base := hs.URL
	hs.Close()

	c := NewClient(base, 200*time.Millisecond, zaptest.NewLogger(t))
	got := c.CheckLobbyExists(context.Background(), "abc123")
	assert.False(t, got.Exists)
}

func TestStartRound(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Create("abc123")
	ctx := context.Background()

	err := c.StartRound(ctx, "abc123", 1)
	require.ErrorIs(t, err, ErrBadRequest, "no players yet")
	assert.Contains(t, err.Error(), "imposters must be")

	require.ErrorIs(t, c.StartRound(ctx, "gone00", 1), ErrLobbyNotFound)
}

func TestRoundLifecycle(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Create("abc123")
	ctx := context.Background()

	for _, name := range []string{"Amy", "Bo", "Cid"} {
		conn, _, err := websocket.Dial(ctx, c.ChannelURL("abc123", name), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
		require.Eventually(t, func() bool {
			return slices.Contains(srv.Players("abc123"), name)
		}, time.Second, 10*time.Millisecond)
	}

	require.NoError(t, c.StartRound(ctx, "abc123", 2))
	require.NoError(t, c.EndRound(ctx, "abc123"))
	require.NoError(t, c.RestartRound(ctx, "abc123", 0))
	require.NoError(t, c.RestartRound(ctx, "abc123", 1))
	require.ErrorIs(t, c.RestartRound(ctx, "abc123", 3), ErrBadRequest)
}

func TestChannelURL(t *testing.T) {
	c := NewClient("https://imposter.example/", time.Second, nil)

	got := c.ChannelURL(types.ParseCode("ABC123"), "")
	assert.Equal(t, "wss://imposter.example/api/v1/ws/abc123", got)

	got = c.ChannelURL("abc123", "Bo Z")
	assert.True(t, strings.HasSuffix(got, "/api/v1/ws/abc123?name=Bo+Z"), got)
}

func TestIsStatus(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Create("abc123")
	ctx := context.Background()

	assert.True(t, IsStatus(c.StartRound(ctx, "abc123", 1)))
	_, err := c.FetchLobby(ctx, "gone00")
	assert.True(t, IsStatus(err))

	hs := httptest.NewServer(lobbytest.New(nil).Handler())
	base := hs.URL
	hs.Close()
	_, err = NewClient(base, 200*time.Millisecond, nil).FetchLobby(ctx, "abc123")
	require.Error(t, err)
	assert.False(t, IsStatus(err))
}
