package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/imposter-client/internal/types"
	ptypes "github.com/DoyleJ11/imposter-client/pkg/types"
)

var ErrNoEndpoint = errors.New("no channel endpoint configured")

// Strategy is how the channel tells the server who is on the other end.
type Strategy int

const (
	// RegisterOnConnect puts the name in the connection request.
	RegisterOnConnect Strategy = iota
	// RegisterWithJoin sends {"type":"join"} once the channel is open.
	RegisterWithJoin
)

func (s Strategy) String() string {
	if s == RegisterWithJoin {
		return "join-message"
	}
	return "connect-param"
}

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// Endpoint builds the channel URL for a lobby, optionally carrying a name.
type Endpoint func(code types.LobbyCode, name string) string

type Options struct {
	Endpoint Endpoint
	Code     types.LobbyCode
	Identity types.Identity
	Strategy Strategy
	// WriteTimeout bounds a single send. Zero means three seconds.
	WriteTimeout time.Duration
	Log          *zap.Logger
}

// Channel is one duplex connection owned by one view instance. There is no
// reconnect: once it drops, it stays closed.
type Channel struct {
	conn  *websocket.Conn
	state atomic.Int32
	msgs  chan ptypes.Inbound

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	writeTimeout time.Duration
	log          *zap.Logger
}

// Open dials the lobby's channel. ctx bounds the dial only; once open the
// channel lives until Close or until the server hangs up.
func Open(ctx context.Context, opts Options) (*Channel, error) {
	if opts.Endpoint == nil {
		return nil, ErrNoEndpoint
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws").With(zap.String("code", opts.Code.Wire()), zap.Stringer("strategy", opts.Strategy))

	name := ""
	if opts.Strategy == RegisterOnConnect {
		name = opts.Identity.Name
	}
	conn, _, err := websocket.Dial(ctx, opts.Endpoint(opts.Code, name), nil)
	if err != nil {
		return nil, fmt.Errorf("open channel %s: %w", opts.Code.Wire(), err)
	}

	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Channel{
		conn:         conn,
		msgs:         make(chan ptypes.Inbound),
		ctx:          cctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		log:          log,
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = 3 * time.Second
	}
	c.state.Store(int32(StateOpen))
	go c.readLoop()

	if opts.Strategy == RegisterWithJoin && opts.Identity.Name != "" {
		c.Join(opts.Identity.Name)
	}
	log.Debug("channel open")
	return c, nil
}

func (c *Channel) State() State { return State(c.state.Load()) }

// Messages yields parsed inbound messages in arrival order and is closed when
// the channel ends.
func (c *Channel) Messages() <-chan ptypes.Inbound { return c.msgs }

// Send writes v as JSON. It reports whether the frame went out; a channel
// that is not open drops it.
func (c *Channel) Send(v any) bool {
	if c.State() != StateOpen {
		c.log.Debug("dropping send on closed channel")
		return false
	}
	payload, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("encode outbound", zap.Error(err))
		return false
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		c.log.Warn("write failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Channel) Join(name string) bool {
	return c.Send(ptypes.NewJoin(name))
}

// Close releases the connection. Only the first call does anything.
func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		wasOpen := State(c.state.Swap(int32(StateClosed))) == StateOpen
		closeErr := c.conn.Close(websocket.StatusNormalClosure, "bye")
		c.cancel()
		<-c.done
		if wasOpen && closeErr != nil && websocket.CloseStatus(closeErr) == -1 {
			err = fmt.Errorf("close channel: %w", closeErr)
		}
		c.log.Debug("channel closed")
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.done)
	defer close(c.msgs)
	defer c.state.Store(int32(StateClosed))

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				if c.State() == StateOpen {
					c.log.Info("channel closed by server", zap.Error(err))
				}
			default:
				if c.ctx.Err() == nil && c.State() == StateOpen {
					c.log.Warn("channel transport error", zap.Error(err))
				}
			}
			return
		}

		in, err := ptypes.DecodeInbound(data)
		if err != nil {
			c.log.Debug("dropping malformed message", zap.ByteString("raw", data), zap.Error(err))
			continue
		}

		select {
		case c.msgs <- in:
		case <-c.ctx.Done():
			return
		}
	}
}
