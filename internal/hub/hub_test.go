package hub

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/imposter-client/internal/engine"
	"github.com/DoyleJ11/imposter-client/internal/httpapi"
	"github.com/DoyleJ11/imposter-client/internal/lobbytest"
	"github.com/DoyleJ11/imposter-client/internal/types"
	"github.com/DoyleJ11/imposter-client/internal/view"
)

func setup(t *testing.T) (*lobbytest.Server, view.Deps) {
	t.Helper()
	srv := lobbytest.New(zaptest.NewLogger(t))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, view.Deps{
		API: httpapi.NewClient(hs.URL, time.Second, zaptest.NewLogger(t)),
		Log: zaptest.NewLogger(t),
	}
}

func newHub(t *testing.T, deps view.Deps) *Hub {
	t.Helper()
	h := NewHub(context.Background(), deps)
	t.Cleanup(h.Shutdown)
	return h
}

func waitView(t *testing.T, h *Hub, kind types.ViewKind) *view.View {
	t.Helper()
	var cur *view.View
	require.Eventually(t, func() bool {
		cur = h.Current()
		return cur != nil && cur.Route().View == kind
	}, 3*time.Second, 10*time.Millisecond, "never reached %s", kind)
	return cur
}

func waitSnapshot(t *testing.T, v *view.View, cond func(engine.Snapshot) bool) engine.Snapshot {
	t.Helper()
	var last engine.Snapshot
	require.Eventually(t, func() bool {
		s, err := v.Snapshot()
		if err != nil {
			return false
		}
		last = s
		return cond(s)
	}, 3*time.Second, 10*time.Millisecond)
	return last
}

func TestHub_NavigationClosesPreviousView(t *testing.T) {
	srv, deps := setup(t)
	srv.Create("abc123")
	h := newHub(t, deps)

	h.Navigate(types.To(types.ViewJoin, "abc123", types.Handoff{Name: "Amy"}))
	first := waitView(t, h, types.ViewJoin)
	require.Eventually(t, func() bool {
		return slices.Equal(srv.Players("abc123"), []string{"Amy"})
	}, 2*time.Second, 10*time.Millisecond)

	h.Navigate(types.Home())
	waitView(t, h, types.ViewHome)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatalf("previous view still running")
	}
	require.Eventually(t, func() bool {
		return len(srv.Players("abc123")) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Accepted("abc123"))
}

func TestHub_GoneLobbyLandsHome(t *testing.T) {
	srv, deps := setup(t)
	h := newHub(t, deps)

	h.Navigate(types.ParseRoute("/game/ZZZ999?name=Amy"))
	waitView(t, h, types.ViewHome)
	assert.Equal(t, 0, srv.Accepted("zzz999"))
}

func TestHub_StaleNavigationDropped(t *testing.T) {
	_, deps := setup(t)
	h := newHub(t, deps)

	h.Navigate(types.Home())
	stale := waitView(t, h, types.ViewHome)
	h.Navigate(types.Home())
	var live *view.View
	require.Eventually(t, func() bool {
		live = h.Current()
		return live != nil && live != stale
	}, time.Second, 10*time.Millisecond)

	h.Inbox() <- Navigate{From: stale, Route: types.To(types.ViewJoin, "abc123", types.Handoff{})}
	assert.Same(t, live, h.Current())
}

func TestHub_Shutdown(t *testing.T) {
	_, deps := setup(t)
	h := NewHub(context.Background(), deps)
	h.Navigate(types.Home())
	v := waitView(t, h, types.ViewHome)

	h.Shutdown()
	<-v.Done()
	assert.Nil(t, h.Current())
	h.Shutdown()
}

func TestHub_ShutdownAfterParentCancel(t *testing.T) {
	_, deps := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(ctx, deps)
	h.Navigate(types.Home())
	v := waitView(t, h, types.ViewHome)

	cancel()
	stopped := make(chan struct{})
	go func() {
		h.Shutdown()
		h.Shutdown()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("Shutdown blocked after the parent context was cancelled")
	}
	<-v.Done()
	assert.Nil(t, h.Current())
}

// A full round: the host opens a lobby, two players join by code, the host
// deals one impostor and then ends the round.
func TestHub_RoundTrip(t *testing.T) {
	srv, deps := setup(t)

	host := newHub(t, deps)
	host.Navigate(types.Home())
	require.NoError(t, waitView(t, host, types.ViewHome).CreateLobby())
	lobbyView := waitView(t, host, types.ViewLobby)
	code := lobbyView.Route().Code
	waitSnapshot(t, lobbyView, func(s engine.Snapshot) bool { return s.HostReady })

	players := map[string]*Hub{}
	for _, name := range []string{"Amy", "Bo"} {
		p := newHub(t, deps)
		p.Navigate(types.Home())
		require.NoError(t, waitView(t, p, types.ViewHome).JoinByCode(code.Display()))
		join := waitView(t, p, types.ViewJoin)
		require.NoError(t, join.SubmitName(name))
		waitSnapshot(t, lobbyView, func(s engine.Snapshot) bool { return slices.Contains(s.Roster, name) })
		players[name] = p
	}

	require.NoError(t, lobbyView.StartRound("1"))

	hostGame := waitView(t, host, types.ViewGame)
	hs := waitSnapshot(t, hostGame, func(s engine.Snapshot) bool { return s.Phase == engine.PhaseInProgress })
	assert.Equal(t, engine.BranchHost, hs.Branch)

	amy := waitSnapshot(t, waitView(t, players["Amy"], types.ViewGame), func(s engine.Snapshot) bool { return s.Role != engine.RoleNone })
	assert.Equal(t, engine.BranchImpostor, amy.Branch)
	assert.Empty(t, amy.Word)

	bo := waitSnapshot(t, waitView(t, players["Bo"], types.ViewGame), func(s engine.Snapshot) bool { return s.Role != engine.RoleNone })
	assert.Equal(t, engine.BranchWordHolder, bo.Branch)
	assert.Equal(t, "pizza", bo.Word)
	assert.Equal(t, 2, amy.Votes.TotalParticipants)
	assert.Equal(t, 2, bo.Votes.TotalParticipants)

	require.Eventually(t, func() bool {
		return len(srv.Players(code.Wire())) == 2
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hostGame.EndRound())

	back := waitView(t, host, types.ViewLobby)
	assert.Equal(t, types.Handoff{Name: "Host"}, back.Route().Handoff)
	for name, p := range players {
		join := waitView(t, p, types.ViewJoin)
		assert.Equal(t, types.Handoff{Name: name}, join.Route().Handoff)
		s := waitSnapshot(t, join, func(s engine.Snapshot) bool { return slices.Contains(s.Roster, name) })
		assert.True(t, s.Joined)
	}
}

// A game view opened from a hand-off keeps its seed when the server's
// on-connect push disagrees, and takes the push on the next restart.
func TestHub_SeededGameViewThenRestart(t *testing.T) {
	srv, deps := setup(t)
	api := deps.API.(*httpapi.Client)
	ctx := context.Background()
	srv.Create("abc123")

	for _, name := range []string{"Bo", "Cid"} {
		conn, _, err := websocket.Dial(ctx, api.ChannelURL("abc123", name), nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
		require.Eventually(t, func() bool {
			return slices.Contains(srv.Players("abc123"), name)
		}, 2*time.Second, 10*time.Millisecond)
	}
	require.NoError(t, api.StartRound(ctx, "abc123", 1))

	h := newHub(t, deps)
	h.Navigate(types.ParseRoute("/game/abc123?name=Amy&role=impostor&players=3"))
	game := waitView(t, h, types.ViewGame)

	s := waitSnapshot(t, game, func(s engine.Snapshot) bool { return s.Phase == engine.PhaseInProgress })
	assert.Equal(t, engine.RoleImpostor, s.Role)
	assert.Empty(t, s.Word)
	assert.Equal(t, 3, s.Votes.TotalParticipants)

	require.NoError(t, api.RestartRound(ctx, "abc123", 0))

	s = waitSnapshot(t, game, func(s engine.Snapshot) bool { return s.Role == engine.RoleWordHolder })
	assert.Equal(t, engine.BranchWordHolder, s.Branch)
	assert.Equal(t, "volcano", s.Word)
	assert.Equal(t, 3, s.Votes.TotalParticipants)
	assert.Same(t, game, h.Current(), "a restart inside the game view does not navigate")
}
