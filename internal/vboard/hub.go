// Package vboard is the leaderboard hub: a single-goroutine actor that
// fans the current leaderboard out to every subscribed viewer channel.
package vboard

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"vaderboard-backend/internal/engine"
	"vaderboard-backend/internal/model"

	"github.com/google/uuid"
)

type Msg interface{ isHubMsg() }

// Connect registers a subscriber and immediately unicasts the current
// leaderboard to just that outbox.
type Connect struct {
	ID     string
	Outbox chan []byte
}

type Disconnect struct{ ID string }

// Get computes the leaderboard through the store and delivers it to one
// subscriber (To set) or to every subscriber (To empty).
type Get struct{ To string }

type Shutdown struct{}

// GetView reflects internal state without data races; used by tests.
type GetView struct{ Reply chan View }

type View struct{ NumSubscribers int }

func (Connect) isHubMsg()    {}
func (Disconnect) isHubMsg() {}
func (Get) isHubMsg()        {}
func (Shutdown) isHubMsg()   {}
func (GetView) isHubMsg()    {}

// CurrentSource yields the event occupying the singleton slot, if any.
type CurrentSource interface {
	Current() (model.Event, engine.State, bool)
}

// Store is the read slice the hub computes leaderboards through.
type Store interface {
	Leaderboard(ctx context.Context, eventID uuid.UUID, kind model.ParticipantKind, n int) ([]model.BoardRow, error)
}

type Hub struct {
	inbox  chan Msg
	subs   map[string]chan []byte
	src    CurrentSource
	store  Store
	count  int
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, src CurrentSource, store Store, count int, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan Msg, 64),
		subs:   make(map[string]chan []byte),
		src:    src,
		store:  store,
		count:  count,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Broadcast satisfies engine.Board. It never blocks the machine's
// critical section; when the mailbox is full the intent is dropped and
// the next score change re-broadcasts.
func (h *Hub) Broadcast() {
	select {
	case h.inbox <- Get{}:
	default:
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.subs[msg.ID] = msg.Outbox
				h.log.Debug("board subscriber connected", zap.Int("total", len(h.subs)))
				h.deliver(msg.ID)

			case Disconnect:
				delete(h.subs, msg.ID)
				h.log.Debug("board subscriber disconnected", zap.Int("total", len(h.subs)))

			case Get:
				h.deliver(msg.To)

			case GetView:
				msg.Reply <- View{NumSubscribers: len(h.subs)}

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

// deliver computes the leaderboard and sends it to one subscriber or to
// all of them. No current event means nothing is emitted.
func (h *Hub) deliver(to string) {
	evt, _, ok := h.src.Current()
	if !ok {
		return
	}
	rows, err := h.store.Leaderboard(h.ctx, evt.ID, evt.Type.Kind, h.count)
	if err != nil {
		h.log.Error("computing leaderboard", zap.Error(err))
		return
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		h.log.Error("encoding leaderboard", zap.Error(err))
		return
	}
	if to != "" {
		if ch, ok := h.subs[to]; ok {
			send(ch, payload)
		}
		return
	}
	for _, ch := range h.subs {
		send(ch, payload)
	}
}

// send never blocks the hub. A full outbox loses its oldest pending
// snapshot; only the latest matters to a viewer.
func send(ch chan []byte, payload []byte) {
	for {
		select {
		case ch <- payload:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.cancel()
}
