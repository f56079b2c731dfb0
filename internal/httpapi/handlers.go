// Package httpapi binds the command surface to the state machine: one
// mutation per command, each invoking exactly one transition or query.
package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaderboard-backend/internal/engine"
	"vaderboard-backend/internal/model"
	"vaderboard-backend/internal/session"
	"vaderboard-backend/internal/store"
)

type API struct {
	Machine  *engine.Machine
	Store    *store.Store
	Sessions *session.Store
	Log      *zap.Logger
}

type idReq struct {
	ID uuid.UUID `json:"id"`
}

type contestantReq struct {
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// eventSummary is the concrete current-event response; the API never
// exposes more than these fields.
type eventSummary struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Logo  string          `json:"logo,omitempty"`
	Type  model.EventType `json:"event_type"`
	State engine.State    `json:"state"`
}

/* ----- auth ----- */

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ok, err := a.Store.VerifyAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	if !ok {
		a.Log.Debug("invalid admin credential", zap.String("username", req.Username))
		writeJSON(w, http.StatusUnauthorized, CommandResponse{Msg: "invalid username/password"})
		return
	}
	if err := a.Sessions.IssueAdmin(w); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsg(w, "login successful")
}

/* ----- event commands ----- */

func (a *API) AddEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string          `json:"name"`
		Logo string          `json:"logo,omitempty"`
		Type model.EventType `json:"event_type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	evt, err := model.NewEvent(req.Name, req.Logo, req.Type)
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	if err := a.Machine.AddEvent(r.Context(), evt); err != nil {
		writeError(a.Log, w, err)
		return
	}
	if evt.Type.Kind == model.KindTeam {
		writeMsgID(w, "successfully added team event", evt.ID)
	} else {
		writeMsgID(w, "successfully added user event", evt.ID)
	}
}

func (a *API) StartEvent(w http.ResponseWriter, r *http.Request) {
	id, err := a.Machine.StartEvent(r.Context())
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "event started successfully", id)
}

func (a *API) StopEvent(w http.ResponseWriter, r *http.Request) {
	id, err := a.Machine.EndEvent(r.Context())
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "event stopped successfully", id)
}

func (a *API) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Machine.DeleteEvent(r.Context(), req.ID); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "successfully deleted event", req.ID)
}

/* ----- participant commands ----- */

func (a *API) AddTeam(w http.ResponseWriter, r *http.Request) {
	var req contestantReq
	if !decodeJSON(w, r, &req) {
		return
	}
	team := model.NewTeam(req.Name, req.Logo)
	if err := a.Machine.AddTeam(r.Context(), team); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "team added successfully", team.ID)
}

func (a *API) AddTeamWithMembers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamInfo contestantReq   `json:"team_info"`
		Members  []contestantReq `json:"members"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	team := model.NewTeam(req.TeamInfo.Name, req.TeamInfo.Logo)
	members := make([]model.User, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, model.NewUser(m.Name, m.Logo))
	}
	if err := a.Machine.AddTeamWithMembers(r.Context(), team, members); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "team added successfully", team.ID)
}

func (a *API) AddMembers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamID  uuid.UUID   `json:"team_id"`
		Members []uuid.UUID `json:"members"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Machine.AddMembers(r.Context(), req.TeamID, req.Members); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "team members added successfully", req.TeamID)
}

func (a *API) AddUser(w http.ResponseWriter, r *http.Request) {
	var req contestantReq
	if !decodeJSON(w, r, &req) {
		return
	}
	user := model.NewUser(req.Name, req.Logo)
	if err := a.Machine.AddUser(r.Context(), user); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "user added successfully", user.ID)
}

func (a *API) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Store.DeleteTeam(r.Context(), req.ID); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "successfully deleted team", req.ID)
}

func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Store.DeleteUser(r.Context(), req.ID); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "successfully deleted user", req.ID)
}

/* ----- score commands ----- */

func (a *API) UpdateScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    uuid.UUID `json:"id"`
		Score int64     `json:"score"` // signed delta
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := a.Machine.UpdateScore(r.Context(), req.ID, req.Score); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsgID(w, "score updated", req.ID)
}

func (a *API) ResetScore(w http.ResponseWriter, r *http.Request) {
	if err := a.Machine.ResetScore(r.Context()); err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeMsg(w, "score reset successful")
}

/* ----- queries ----- */

func (a *API) CurrentEventInfo(w http.ResponseWriter, r *http.Request) {
	evt, state, ok := a.Machine.Current()
	if !ok {
		writeJSON(w, http.StatusBadRequest, CommandResponse{Msg: "no event added"})
		return
	}
	writeJSON(w, http.StatusOK, eventSummary{
		ID: evt.ID, Name: evt.Name, Logo: evt.Logo, Type: evt.Type, State: state,
	})
}

func (a *API) EventInfo(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if !decodeJSON(w, r, &req) {
		return
	}
	evt, err := a.Store.GetEvent(r.Context(), req.ID)
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (a *API) EventInfoAll(w http.ResponseWriter, r *http.Request) {
	events, err := a.Store.ListEvents(r.Context())
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *API) TeamInfo(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if !decodeJSON(w, r, &req) {
		return
	}
	team, err := a.Store.GetTeam(r.Context(), req.ID)
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (a *API) TeamInfoAll(w http.ResponseWriter, r *http.Request) {
	teams, err := a.Store.ListTeams(r.Context())
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (a *API) UserInfo(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := a.Store.GetUser(r.Context(), req.ID)
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) UserInfoAll(w http.ResponseWriter, r *http.Request) {
	users, err := a.Store.ListUsers(r.Context())
	if err != nil {
		writeError(a.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
