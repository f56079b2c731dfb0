// Package ws holds the websocket glue: the leaderboard subscription
// channel, the global search-as-you-type channels and the event-scoped
// search channels. Channels carry UTF-8 text; inbound frames are plain
// prefixes, outbound frames are JSON arrays. Binary frames are ignored
// and pings are answered by the transport.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaderboard-backend/internal/engine"
	"vaderboard-backend/internal/livesearch"
	"vaderboard-backend/internal/model"
	"vaderboard-backend/internal/store"
	"vaderboard-backend/internal/vadererr"
	"vaderboard-backend/internal/vboard"
)

const writeTimeout = 3 * time.Second

// FTSKind selects the population for the global search channels.
type FTSKind int

const (
	FTSEvents FTSKind = iota
	FTSTeams
	FTSUsers
)

type Deps struct {
	Machine  *engine.Machine
	Store    *store.Store
	Board    *vboard.Hub
	Registry *livesearch.Registry
	Log      *zap.Logger
}

// Board upgrades to the leaderboard subscription channel. The hub
// unicasts the current board on connect, broadcasts on every score
// change, and any inbound text frame pulls a fresh unicast.
func Board(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan []byte, 8)
		id := uuid.NewString()

		deps.Board.Inbox() <- vboard.Connect{ID: id, Outbox: out}
		defer func() { deps.Board.Inbox() <- vboard.Disconnect{ID: id} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for payload := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// Hub shut down and closed the outbox.
			conn.Close(websocket.StatusNormalClosure, "server shutdown")
		}()

		for {
			typ, _, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			deps.Board.Inbox() <- vboard.Get{To: id}
		}
	}
}

// FTS upgrades to a global prefix-search channel over events, teams or
// users. Each inbound prefix frame is answered with up to {count}
// matches; an empty prefix returns the most recent rows.
func FTS(deps Deps, kind FTSKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, ok := countParam(w, r)
		if !ok {
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			var res any
			switch kind {
			case FTSEvents:
				res, err = deps.Store.FTSEvents(r.Context(), string(data), count)
			case FTSTeams:
				res, err = deps.Store.FTSTeams(r.Context(), string(data), count)
			case FTSUsers:
				res, err = deps.Store.FTSUsers(r.Context(), string(data), count)
			}
			if err != nil {
				deps.Log.Error("search query failed", zap.Error(err))
				continue
			}
			if err := writeJSON(r.Context(), conn, res); err != nil {
				return
			}
		}
	}
}

// Scoped upgrades to an event-scoped search channel bound to the
// current event. The whole fleet is terminated with normal-closure
// frames when the event ends.
func Scoped(deps Deps, mode store.SearchMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, ok := countParam(w, r)
		if !ok {
			return
		}
		evt, _, ok := deps.Machine.Current()
		if !ok {
			http.Error(w, "no event added", http.StatusBadRequest)
			return
		}
		if err := validateMode(evt.Type.Kind, mode); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := uuid.NewString()
		stop := make(chan struct{})
		done := make(chan struct{})
		defer close(done)

		deps.Registry.Inbox() <- livesearch.Register{ID: id, Stop: stop}
		defer func() { deps.Registry.Inbox() <- livesearch.Deregister{ID: id} }()

		// Closing the connection unblocks the pending read below, so
		// the fleet-terminate signal tears the channel down promptly.
		go func() {
			select {
			case <-stop:
				conn.Close(websocket.StatusNormalClosure, "event ended")
			case <-done:
			}
		}()

		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			rows, err := deps.Store.EventScopedFTS(r.Context(), evt.ID, mode, string(data), count)
			if err != nil {
				deps.Log.Error("event-scoped search failed", zap.Error(err))
				continue
			}
			if err := writeJSON(r.Context(), conn, rows); err != nil {
				return
			}
		}
	}
}

func validateMode(kind model.ParticipantKind, mode store.SearchMode) error {
	switch mode {
	case store.ModeTeams, store.ModeRemainingUsers:
		if kind != model.KindTeam {
			return vadererr.New(vadererr.KindEventTypeMismatch, "team search is only valid for a team event")
		}
	case store.ModeEventUsers:
		if kind != model.KindUser {
			return vadererr.New(vadererr.KindEventTypeMismatch, "user search is only valid for a user event")
		}
	}
	return nil
}

func countParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	count, err := strconv.Atoi(chi.URLParam(r, "count"))
	if err != nil || count <= 0 {
		http.Error(w, "invalid count", http.StatusBadRequest)
		return 0, false
	}
	return count, true
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
