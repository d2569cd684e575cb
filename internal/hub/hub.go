package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/imposter-client/internal/types"
	"github.com/DoyleJ11/imposter-client/internal/view"
)

type HubMsg interface{ isHubMsg() }

// Navigate moves to Route. From is the view that asked; a request from a view
// that is no longer current is stale and dropped. A nil From always wins.
type Navigate struct {
	From  *view.View
	Route types.Route
}

type GetCurrent struct {
	Reply chan *view.View
}

type ShutdownHub struct {
	Done chan struct{}
}

func (Navigate) isHubMsg()    {}
func (GetCurrent) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the single live view. Every transition closes the current view,
// and with it its channel, before the next one is mounted.
type Hub struct {
	inbox   chan HubMsg
	current *view.View
	deps    view.Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, deps view.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		log:    deps.Log.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	deps.Navigate = h.request
	h.deps = deps
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Navigate(r types.Route) {
	select {
	case h.inbox <- Navigate{Route: r}:
	case <-h.ctx.Done():
	}
}

// Current returns the mounted view, or nil before the first navigation and
// after shutdown.
func (h *Hub) Current() *view.View {
	reply := make(chan *view.View, 1)
	select {
	case h.inbox <- GetCurrent{Reply: reply}:
	case <-h.done:
		return nil
	}
	select {
	case v := <-reply:
		return v
	case <-h.done:
		return nil
	}
}

// Shutdown closes the live view and stops the hub. It is safe to call more
// than once and after the parent context has been cancelled.
func (h *Hub) Shutdown() {
	done := make(chan struct{})
	select {
	case h.inbox <- ShutdownHub{Done: done}:
	case <-h.done:
		return
	}
	select {
	case <-done:
	case <-h.done:
	}
}

func (h *Hub) request(ctx context.Context, from *view.View, r types.Route) {
	select {
	case h.inbox <- Navigate{From: from, Route: r}:
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.unmount()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Navigate:
				if msg.From != nil && msg.From != h.current {
					h.log.Debug("dropping stale navigation", zap.String("to", msg.Route.Path()))
					break
				}
				h.unmount()
				h.current = view.Mount(h.ctx, msg.Route, h.deps)
				h.log.Info("mounted", zap.String("route", msg.Route.Path()), zap.String("instance", h.current.ID()))

			case GetCurrent:
				msg.Reply <- h.current

			case ShutdownHub:
				h.unmount()
				h.cancel()
				close(msg.Done)
				return
			}
		}
	}
}

func (h *Hub) unmount() {
	if h.current == nil {
		return
	}
	if err := h.current.Close(); err != nil {
		h.log.Warn("view teardown", zap.Error(err))
	}
	h.current = nil
}
