package lobbytest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ptypes "github.com/DoyleJ11/imposter-client/pkg/types"
)

func dial(t *testing.T, hs *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(context.Background(), "ws"+strings.TrimPrefix(hs.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) ptypes.Inbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var in ptypes.Inbound
	require.NoError(t, json.Unmarshal(data, &in))
	return in
}

func TestGenerateCode(t *testing.T) {
	for range 20 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.Equal(t, strings.ToLower(code), code)
	}
}

func TestJoinMessageRegisters(t *testing.T) {
	s := New(nil)
	s.Create("abc123")
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	host := dial(t, hs, "/api/v1/ws/abc123?name=Host")
	assert.Equal(t, ptypes.KindHostReady, read(t, host).Type)
	assert.Empty(t, read(t, host).Players)

	player := dial(t, hs, "/api/v1/ws/abc123")
	payload, _ := json.Marshal(ptypes.NewJoin("Amy"))
	require.NoError(t, player.Write(context.Background(), websocket.MessageText, payload))

	in := read(t, player)
	assert.Equal(t, ptypes.KindLobbyState, in.Type)
	assert.Equal(t, []string{"Amy"}, in.Players)
	assert.Equal(t, []string{"Amy"}, read(t, host).Players)
	assert.Equal(t, 2, s.Accepted("abc123"))
	assert.Equal(t, 2, s.Push("abc123", []byte(`{"type":"vote_update","bad_votes":1}`)))
}

func TestFirstMessageMustBeJoin(t *testing.T) {
	s := New(nil)
	s.Create("abc123")
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	conn := dial(t, hs, "/api/v1/ws/abc123")
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"hello"}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first message must be join")
	assert.Empty(t, s.Players("abc123"))
}

func TestUnknownLobbyRefusesUpgrade(t *testing.T) {
	hs := httptest.NewServer(New(nil).Handler())
	defer hs.Close()

	_, resp, err := websocket.Dial(context.Background(), "ws"+strings.TrimPrefix(hs.URL, "http")+"/api/v1/ws/nope00", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoveHangsUpOnPendingConnection(t *testing.T) {
	s := New(nil)
	s.Create("abc123")
	hs := httptest.NewServer(s.Handler())
	defer hs.Close()

	conn := dial(t, hs, "/api/v1/ws/abc123")
	require.Eventually(t, func() bool { return s.Accepted("abc123") == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	s.Remove("abc123")

	err := <-readErr
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	// A join sent after removal must not register anywhere.
	payload, _ := json.Marshal(ptypes.NewJoin("Bo"))
	_ = conn.Write(context.Background(), websocket.MessageText, payload)
	assert.Nil(t, s.Players("abc123"))
}
