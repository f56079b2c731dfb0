// Package livesearch tracks the event-scoped search subscribers so the
// whole fleet can be terminated when the current event ends.
package livesearch

import (
	"context"

	"go.uber.org/zap"
)

type Msg interface{ isRegistryMsg() }

// Register hands the registry a stop handle for one subscriber. The
// registry closes the handle to tell the subscriber to shut its channel
// with a normal-closure frame.
type Register struct {
	ID   string
	Stop chan struct{}
}

type Deregister struct{ ID string }

// StopCurrent terminates every registered subscriber. Sent by the state
// machine when the current event clears.
type StopCurrent struct{}

type Shutdown struct{}

// GetView reflects internal state without data races; used by tests.
type GetView struct{ Reply chan View }

type View struct{ NumSubscribers int }

func (Register) isRegistryMsg()    {}
func (Deregister) isRegistryMsg()  {}
func (StopCurrent) isRegistryMsg() {}
func (Shutdown) isRegistryMsg()    {}
func (GetView) isRegistryMsg()     {}

type Registry struct {
	inbox  chan Msg
	subs   map[string]chan struct{}
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRegistry(parent context.Context, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:  make(chan Msg, 64),
		subs:   make(map[string]chan struct{}),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

// StopCurrent satisfies engine.SearchFleet. The registry never calls
// back into the machine, so delivering into the mailbox from inside the
// machine's critical section cannot deadlock.
func (r *Registry) StopCurrent() {
	r.inbox <- StopCurrent{}
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.stopAll()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Register:
				r.subs[msg.ID] = msg.Stop
				r.log.Debug("search subscriber registered", zap.Int("total", len(r.subs)))

			case Deregister:
				delete(r.subs, msg.ID)
				r.log.Debug("search subscriber deregistered", zap.Int("total", len(r.subs)))

			case StopCurrent:
				r.log.Debug("terminating search subscribers", zap.Int("total", len(r.subs)))
				r.stopAll()

			case GetView:
				msg.Reply <- View{NumSubscribers: len(r.subs)}

			case Shutdown:
				r.stopAll()
				r.cancel()
				return
			}
		}
	}
}

func (r *Registry) stopAll() {
	for id, stop := range r.subs {
		close(stop)
		delete(r.subs, id)
	}
}
