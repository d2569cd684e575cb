package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imposter-client/internal/config"
	"github.com/DoyleJ11/imposter-client/internal/types"
	ptypes "github.com/DoyleJ11/imposter-client/pkg/types"
)

var ErrLobbyNotFound = errors.New("lobby not found")
var ErrBadRequest = errors.New("rejected by server")
var ErrUnexpectedStatus = errors.New("unexpected status")

const apiPrefix = "/api/v1"

// IsStatus reports whether err is the server answering with a non-OK status,
// as opposed to the request never getting an answer.
func IsStatus(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, ErrLobbyNotFound) || errors.Is(err, ErrUnexpectedStatus)
}

// Client talks to the lobby service's request/response API.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(base string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log.Named("httpapi"),
	}
}

func (c *Client) CreateLobby(ctx context.Context) (types.LobbyCode, error) {
	var out ptypes.CreatedLobby
	if err := c.do(ctx, http.MethodPost, "/lobbies", nil, &out); err != nil {
		return "", fmt.Errorf("create lobby: %w", err)
	}
	c.log.Info("lobby created", zap.String("code", out.Code))
	return types.ParseCode(out.Code), nil
}

func (c *Client) FetchLobby(ctx context.Context, code types.LobbyCode) (ptypes.LobbySnapshot, error) {
	var out ptypes.LobbySnapshot
	if err := c.do(ctx, http.MethodGet, lobbyPath(code), nil, &out); err != nil {
		return ptypes.LobbySnapshot{}, fmt.Errorf("fetch lobby %s: %w", code.Wire(), err)
	}
	return out, nil
}

func (c *Client) StartRound(ctx context.Context, code types.LobbyCode, impostors int) error {
	body := ptypes.StartRequest{Imposters: impostors}
	if err := c.do(ctx, http.MethodPost, lobbyPath(code)+"/start", body, nil); err != nil {
		return fmt.Errorf("start round: %w", err)
	}
	return nil
}

func (c *Client) EndRound(ctx context.Context, code types.LobbyCode) error {
	if err := c.do(ctx, http.MethodPost, lobbyPath(code)+"/end", nil, nil); err != nil {
		return fmt.Errorf("end round: %w", err)
	}
	return nil
}

// RestartRound deals new roles. impostors <= 0 keeps the previous count.
func (c *Client) RestartRound(ctx context.Context, code types.LobbyCode, impostors int) error {
	var body any
	if impostors > 0 {
		body = ptypes.StartRequest{Imposters: impostors}
	}
	if err := c.do(ctx, http.MethodPost, lobbyPath(code)+"/restart", body, nil); err != nil {
		return fmt.Errorf("restart round: %w", err)
	}
	return nil
}

// ChannelURL is the duplex channel endpoint for code. A non-empty name is
// sent as a connection parameter so the server registers it on accept.
func (c *Client) ChannelURL(code types.LobbyCode, name string) string {
	u := config.WebSocketURL(c.base, apiPrefix+"/ws/"+url.PathEscape(code.Wire()))
	if name != "" {
		u += "?" + url.Values{"name": {name}}.Encode()
	}
	return u
}

func lobbyPath(code types.LobbyCode) string {
	return "/lobbies/" + url.PathEscape(code.Wire())
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+apiPrefix+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrLobbyNotFound
	case resp.StatusCode == http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s", ErrBadRequest, strings.TrimSpace(string(msg)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
