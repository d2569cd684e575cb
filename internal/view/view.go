package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/imposter-client/internal/engine"
	"github.com/DoyleJ11/imposter-client/internal/httpapi"
	"github.com/DoyleJ11/imposter-client/internal/types"
	"github.com/DoyleJ11/imposter-client/internal/ws"
	ptypes "github.com/DoyleJ11/imposter-client/pkg/types"
)

var ErrClosed = errors.New("view closed")
var ErrWrongView = errors.New("action not available in this view")
var ErrNotHost = errors.New("only the host can do that")
var ErrNotConnected = errors.New("channel not open")

const (
	msgCodeNotFound = "Lobby code not found. Please check and try again."
	msgJoinFailed   = "Error joining lobby. Please try again."
	msgStartFailed  = "Failed to start game. Please try again."
	msgStartError   = "Error starting game. Please try again."
)

// API is the slice of the lobby service a view needs.
type API interface {
	CheckLobbyExists(ctx context.Context, code types.LobbyCode) httpapi.Existence
	FetchLobby(ctx context.Context, code types.LobbyCode) (ptypes.LobbySnapshot, error)
	CreateLobby(ctx context.Context) (types.LobbyCode, error)
	StartRound(ctx context.Context, code types.LobbyCode, impostors int) error
	EndRound(ctx context.Context, code types.LobbyCode) error
	RestartRound(ctx context.Context, code types.LobbyCode, impostors int) error
	ChannelURL(code types.LobbyCode, name string) string
}

// NavigateFunc asks whoever owns the view to move on. ctx is the view's own
// context and is cancelled when the view is torn down.
type NavigateFunc func(ctx context.Context, from *View, r types.Route)

type Deps struct {
	API        API
	Navigate   NavigateFunc
	Render     func(engine.Snapshot)
	Strategies map[types.ViewKind]ws.Strategy
	HostName   string
	Tick       time.Duration
	Log        *zap.Logger
}

func DefaultStrategies() map[types.ViewKind]ws.Strategy {
	return map[types.ViewKind]ws.Strategy{
		types.ViewLobby: ws.RegisterOnConnect,
		types.ViewJoin:  ws.RegisterWithJoin,
		types.ViewGame:  ws.RegisterOnConnect,
	}
}

// View is one mounted route. Its loop is the only goroutine that touches
// state and the channel, so inbound messages and user actions are applied one
// at a time in arrival order.
type View struct {
	id    string
	route types.Route
	inbox chan Msg
	deps  Deps
	log   *zap.Logger
	clock *Countdown

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error

	state engine.State
	ch    *ws.Channel
}

func Mount(parent context.Context, r types.Route, deps Deps) *View {
	ctx, cancel := context.WithCancel(parent)
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Strategies == nil {
		deps.Strategies = DefaultStrategies()
	}

	id := uuid.NewString()
	v := &View{
		id:     id,
		route:  r,
		inbox:  make(chan Msg, 16),
		deps:   deps,
		log:    deps.Log.Named("view").With(zap.String("view", string(r.View)), zap.String("code", r.Code.Wire()), zap.String("instance", id)),
		clock:  NewCountdown(deps.Tick),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  engine.NewState(r, deps.HostName),
	}

	go v.run()
	return v
}

func (v *View) ID() string            { return v.id }
func (v *View) Route() types.Route    { return v.route }
func (v *View) Done() <-chan struct{} { return v.done }

// Close tears the view down and waits for it: the channel is closed and the
// countdown stopped. Later calls return nil.
func (v *View) Close() error {
	var err error
	v.once.Do(func() {
		v.cancel()
		<-v.done
		err = v.err
	})
	return err
}

func (v *View) run() {
	defer close(v.done)

	g, ctx := errgroup.WithContext(v.ctx)
	if v.route.View.HasChannel() {
		v.mount(ctx, g)
	}
	v.render()
	v.loop(ctx)

	var closeErr error
	if v.ch != nil {
		closeErr = v.ch.Close()
	}
	v.err = multierr.Combine(closeErr, g.Wait())
	v.log.Debug("view torn down")
}

// mount runs the existence gate and, only if it passes, opens the channel.
func (v *View) mount(ctx context.Context, g *errgroup.Group) {
	ex := v.deps.API.CheckLobbyExists(ctx, v.route.Code)
	if !ex.Exists {
		v.log.Info("lobby is gone, returning home")
		v.commit(engine.Go(v.state, types.Home()))
		return
	}

	v.clock.Seed(ex.ExpiresIn)
	g.Go(func() error { return v.clock.Run(ctx) })

	ch, err := ws.Open(ctx, ws.Options{
		Endpoint: v.deps.API.ChannelURL,
		Code:     v.route.Code,
		Identity: v.state.Identity,
		Strategy: v.deps.Strategies[v.route.View],
		Log:      v.log,
	})
	if err != nil {
		v.log.Warn("channel did not open", zap.Error(err))
		return
	}
	v.ch = ch
	if name := v.state.Identity.Name; name != "" {
		v.state = engine.Joined(v.state, name)
	}
}

func (v *View) loop(ctx context.Context) {
	var msgs <-chan ptypes.Inbound
	if v.ch != nil {
		msgs = v.ch.Messages()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case in, ok := <-msgs:
			if !ok {
				v.log.Info("channel ended")
				msgs = nil
				continue
			}
			v.commit(engine.Apply(v.state, in))

		case m := <-v.inbox:
			v.handle(ctx, m)
		}
	}
}

func (v *View) commit(next engine.State, eff engine.Effect) {
	v.state = next
	v.render()
	if eff.Kind == engine.EffectNone || v.deps.Navigate == nil {
		return
	}
	v.log.Info("navigating", zap.String("to", eff.Route.Path()))
	v.deps.Navigate(v.ctx, v, eff.Route)
}

func (v *View) render() {
	if v.deps.Render != nil {
		v.deps.Render(v.snapshot())
	}
}

func (v *View) snapshot() engine.Snapshot {
	return v.state.Snapshot(v.clock.Remaining())
}

func (v *View) fail(err error) error {
	var fe *engine.FieldError
	if errors.As(err, &fe) {
		v.state = engine.WithFieldError(v.state, fe)
		v.render()
	}
	return err
}

func (v *View) handle(ctx context.Context, m Msg) {
	switch msg := m.(type) {
	case GetState:
		msg.Reply <- v.snapshot()

	case CreateLobby:
		msg.Reply <- v.createLobby(ctx)

	case JoinByCode:
		msg.Reply <- v.joinByCode(ctx, msg.Code)

	case SubmitName:
		msg.Reply <- v.submitName(msg.Name)

	case StartRound:
		msg.Reply <- v.startRound(ctx, msg.Impostors)

	case EndRound:
		msg.Reply <- v.hostCall(func(code types.LobbyCode) error {
			return v.deps.API.EndRound(ctx, code)
		})

	case RestartRound:
		msg.Reply <- v.hostCall(func(code types.LobbyCode) error {
			return v.deps.API.RestartRound(ctx, code, msg.Impostors)
		})

	case Leave:
		v.commit(engine.Go(v.state, types.Home()))
		msg.Reply <- nil
	}
}

func (v *View) createLobby(ctx context.Context) error {
	if v.route.View != types.ViewHome {
		return ErrWrongView
	}
	code, err := v.deps.API.CreateLobby(ctx)
	if err != nil {
		v.log.Warn("create lobby failed", zap.Error(err))
		return err
	}
	v.commit(engine.Go(v.state, types.To(types.ViewLobby, code, types.Handoff{Name: v.state.HostName})))
	return nil
}

func (v *View) joinByCode(ctx context.Context, raw string) error {
	if v.route.View != types.ViewHome {
		return ErrWrongView
	}
	v.state = engine.ClearFieldError(v.state, engine.FieldCode)
	code, err := engine.ValidateCode(raw)
	if err != nil {
		return v.fail(err)
	}
	if _, err := v.deps.API.FetchLobby(ctx, code); err != nil {
		msg := msgJoinFailed
		if errors.Is(err, httpapi.ErrLobbyNotFound) {
			msg = msgCodeNotFound
		}
		return v.fail(&engine.FieldError{Field: engine.FieldCode, Message: msg, Err: err})
	}
	v.commit(engine.Go(v.state, types.To(types.ViewJoin, code, types.Handoff{})))
	return nil
}

func (v *View) submitName(raw string) error {
	if v.route.View != types.ViewJoin {
		return ErrWrongView
	}
	v.state = engine.ClearFieldError(v.state, engine.FieldName)
	name, err := engine.ValidateName(raw)
	if err != nil {
		return v.fail(err)
	}
	if v.ch == nil || !v.ch.Join(name) {
		return ErrNotConnected
	}
	v.commit(engine.Joined(v.state, name), engine.Effect{})
	return nil
}

func (v *View) startRound(ctx context.Context, raw string) error {
	if v.route.View != types.ViewLobby {
		return ErrWrongView
	}
	v.state = engine.ClearFieldError(v.state, engine.FieldImpostors)
	n, err := engine.ValidateImpostors(raw, len(v.state.Roster))
	if err != nil {
		return v.fail(err)
	}
	if err := v.deps.API.StartRound(ctx, v.route.Code, n); err != nil {
		v.log.Warn("start round failed", zap.Error(err))
		msg := msgStartError
		if httpapi.IsStatus(err) {
			msg = msgStartFailed
		}
		return v.fail(&engine.FieldError{Field: engine.FieldImpostors, Message: msg, Err: err})
	}
	v.render()
	return nil
}

func (v *View) hostCall(call func(types.LobbyCode) error) error {
	if v.route.View != types.ViewGame {
		return ErrWrongView
	}
	if !v.state.Identity.IsHost {
		return ErrNotHost
	}
	if err := call(v.route.Code); err != nil {
		v.log.Warn("host action failed", zap.Error(err))
		return err
	}
	return nil
}

// Snapshot returns the current read-only state.
func (v *View) Snapshot() (engine.Snapshot, error) {
	reply := make(chan engine.Snapshot, 1)
	if err := v.send(GetState{Reply: reply}); err != nil {
		return engine.Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-v.done:
		return engine.Snapshot{}, ErrClosed
	}
}

func (v *View) CreateLobby() error {
	return v.call(func(r chan error) Msg { return CreateLobby{Reply: r} })
}

func (v *View) JoinByCode(code string) error {
	return v.call(func(r chan error) Msg { return JoinByCode{Code: code, Reply: r} })
}

func (v *View) SubmitName(name string) error {
	return v.call(func(r chan error) Msg { return SubmitName{Name: name, Reply: r} })
}

func (v *View) StartRound(impostors string) error {
	return v.call(func(r chan error) Msg { return StartRound{Impostors: impostors, Reply: r} })
}

func (v *View) EndRound() error {
	return v.call(func(r chan error) Msg { return EndRound{Reply: r} })
}

func (v *View) RestartRound(impostors int) error {
	return v.call(func(r chan error) Msg { return RestartRound{Impostors: impostors, Reply: r} })
}

func (v *View) Leave() error {
	return v.call(func(r chan error) Msg { return Leave{Reply: r} })
}

func (v *View) call(build func(chan error) Msg) error {
	reply := make(chan error, 1)
	if err := v.send(build(reply)); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-v.done:
		return ErrClosed
	}
}

func (v *View) send(m Msg) error {
	select {
	case v.inbox <- m:
		return nil
	case <-v.done:
		return ErrClosed
	}
}
