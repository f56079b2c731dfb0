// Package engine holds the singleton current-event state machine. At
// most one event occupies the slot process-wide; every mutation checks
// its admission rule under the machine lock.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaderboard-backend/internal/model"
	"vaderboard-backend/internal/vadererr"
)

type State string

const (
	StateEmpty  State = "empty"
	StateAdded  State = "added"
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Store is the slice of the store adapter the machine mutates through.
type Store interface {
	InsertEvent(ctx context.Context, e model.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	InsertTeam(ctx context.Context, t model.Team) error
	InsertUser(ctx context.Context, u model.User) error
	AddEventTeam(ctx context.Context, eventID, teamID uuid.UUID) error
	AddEventUser(ctx context.Context, eventID, userID uuid.UUID) error
	AddTeamMembers(ctx context.Context, eventID, teamID uuid.UUID, userIDs []uuid.UUID) error
	CountTeamMembers(ctx context.Context, teamID uuid.UUID) (int, error)
	AddScore(ctx context.Context, kind model.ParticipantKind, id uuid.UUID, delta int64) (int64, error)
	ResetScoresForEvent(ctx context.Context, eventID uuid.UUID) error
}

// Board receives a broadcast intent after every committed score change.
// The call must not block; the hub is messaged fire-and-forget.
type Board interface {
	Broadcast()
}

// SearchFleet is told to terminate every event-scoped search subscriber
// when the current event clears.
type SearchFleet interface {
	StopCurrent()
}

type Machine struct {
	mu     sync.Mutex
	store  Store
	log    *zap.Logger
	board  Board
	search SearchFleet

	state State
	evt   model.Event
}

func New(store Store, log *zap.Logger) *Machine {
	return &Machine{store: store, log: log, state: StateEmpty}
}

// Attach wires the hubs in after construction; the hubs themselves need
// the machine, so ownership cannot be cyclic.
func (m *Machine) Attach(board Board, search SearchFleet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.board = board
	m.search = search
}

// Current snapshots the slot. ok is false when the slot is empty.
func (m *Machine) Current() (evt model.Event, state State, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateEmpty {
		return model.Event{}, StateEmpty, false
	}
	return m.evt, m.state, true
}

// AddEvent persists the event and occupies the slot. Fails with
// EventActive while any event occupies it.
func (m *Machine) AddEvent(ctx context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateEmpty {
		return vadererr.New(vadererr.KindEventActive, "another event already added, wait till the current event ends")
	}
	if err := m.store.InsertEvent(ctx, e); err != nil {
		return err
	}
	m.evt = e
	m.state = StateAdded
	m.log.Info("event added", zap.String("event_id", e.ID.String()), zap.String("event_type", string(e.Type.Kind)))
	return nil
}

// StartEvent resets scores to the all-zero baseline, then flips the
// slot to active. A failed reset aborts the start.
func (m *Machine) StartEvent(ctx context.Context) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateEmpty:
		return uuid.Nil, vadererr.New(vadererr.KindEventNotFound, "no event added to start")
	case StateActive:
		return uuid.Nil, vadererr.New(vadererr.KindEventActive, "event already started")
	case StateEnded:
		return uuid.Nil, vadererr.New(vadererr.KindEventEnded, "event already ended")
	}
	if err := m.store.ResetScoresForEvent(ctx, m.evt.ID); err != nil {
		m.log.Error("score reset failed, start aborted", zap.Error(err))
		return uuid.Nil, err
	}
	m.state = StateActive
	m.log.Info("event started", zap.String("event_id", m.evt.ID.String()))
	m.notifyBoard()
	return m.evt.ID, nil
}

// EndEvent flips to ended and clears the slot in the same critical
// section, so viewers observe the transition atomically. The search
// fleet is told to stop before the slot clears.
func (m *Machine) EndEvent(ctx context.Context) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateEmpty:
		return uuid.Nil, vadererr.New(vadererr.KindEventNotFound, "no event added to stop")
	case StateAdded:
		return uuid.Nil, vadererr.New(vadererr.KindEventNotActive, "event didn't start")
	case StateEnded:
		return uuid.Nil, vadererr.New(vadererr.KindEventEnded, "event already ended")
	}
	id := m.evt.ID
	m.state = StateEnded
	if m.search != nil {
		m.search.StopCurrent()
	}
	m.state = StateEmpty
	m.evt = model.Event{}
	m.log.Info("event ended", zap.String("event_id", id.String()))
	return id, nil
}

// AddTeam admits a new team into the current team event. Valid only in
// the added state.
func (m *Machine) AddTeam(ctx context.Context, t model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.admitParticipant(model.KindTeam, "cannot add team in user event"); err != nil {
		return err
	}
	if err := m.store.InsertTeam(ctx, t); err != nil {
		return err
	}
	return m.store.AddEventTeam(ctx, m.evt.ID, t.ID)
}

// AddUser admits a user. In a user event the user is enrolled as a
// participant; in a team event the user only joins the pool future
// members are picked from.
func (m *Machine) AddUser(ctx context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.admitWindow(); err != nil {
		return err
	}
	if err := m.store.InsertUser(ctx, u); err != nil {
		return err
	}
	if m.evt.Type.Kind == model.KindUser {
		return m.store.AddEventUser(ctx, m.evt.ID, u.ID)
	}
	return nil
}

// AddTeamWithMembers admits a team together with freshly created member
// users. The store's transaction brackets only the membership batch; if
// it fails the team stays admitted and the caller may retry AddMembers.
func (m *Machine) AddTeamWithMembers(ctx context.Context, t model.Team, members []model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.admitParticipant(model.KindTeam, "cannot add team in user event"); err != nil {
		return err
	}
	if len(members) > m.evt.Type.TeamSize {
		return vadererr.New(vadererr.KindTeamSizeMismatch, "member list exceeds the event team size")
	}
	if err := m.store.InsertTeam(ctx, t); err != nil {
		return err
	}
	if err := m.store.AddEventTeam(ctx, m.evt.ID, t.ID); err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, u := range members {
		if err := m.store.InsertUser(ctx, u); err != nil {
			return err
		}
		ids = append(ids, u.ID)
	}
	return m.store.AddTeamMembers(ctx, m.evt.ID, t.ID, ids)
}

// AddMembers appends existing users to a participating team. The team
// size cap is enforced here, at admission.
func (m *Machine) AddMembers(ctx context.Context, teamID uuid.UUID, userIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.admitParticipant(model.KindTeam, "cannot add team members in user event"); err != nil {
		return err
	}
	n, err := m.store.CountTeamMembers(ctx, teamID)
	if err != nil {
		return err
	}
	if n+len(userIDs) > m.evt.Type.TeamSize {
		return vadererr.New(vadererr.KindTeamSizeMismatch, "member list exceeds the event team size")
	}
	return m.store.AddTeamMembers(ctx, m.evt.ID, teamID, userIDs)
}

// UpdateScore applies a signed delta to a participant of the active
// event and signals the leaderboard hub on success.
func (m *Machine) UpdateScore(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return 0, vadererr.New(vadererr.KindEventNotActive, "event is not active to update score")
	}
	score, err := m.store.AddScore(ctx, m.evt.Type.Kind, id, delta)
	if err != nil {
		return 0, err
	}
	m.notifyBoard()
	return score, nil
}

// ResetScore re-zeroes the participants before a planned start. Only
// callable while the event is added; StartEvent bypasses this guard.
func (m *Machine) ResetScore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateEmpty:
		return vadererr.New(vadererr.KindEventNotFound, "no event added to reset score")
	case StateActive, StateEnded:
		return vadererr.New(vadererr.KindEventActive, "unable to reset score, event already started")
	}
	return m.store.ResetScoresForEvent(ctx, m.evt.ID)
}

// DeleteEvent refuses to delete the event occupying the slot; anything
// else is handed to the store, cascades included.
func (m *Machine) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateEmpty && m.evt.ID == id {
		return vadererr.New(vadererr.KindEventActive, "unable to remove the current event, stop the event to remove")
	}
	return m.store.DeleteEvent(ctx, id)
}

// admitWindow gates participant admission to the window between add and
// start.
func (m *Machine) admitWindow() error {
	switch m.state {
	case StateEmpty:
		return vadererr.New(vadererr.KindEventNotFound, "no event added")
	case StateActive, StateEnded:
		return vadererr.New(vadererr.KindEventActive, "participants cannot be added as event already started")
	}
	return nil
}

func (m *Machine) admitParticipant(kind model.ParticipantKind, mismatch string) error {
	if err := m.admitWindow(); err != nil {
		return err
	}
	if m.evt.Type.Kind != kind {
		return vadererr.New(vadererr.KindEventTypeMismatch, mismatch)
	}
	return nil
}

func (m *Machine) notifyBoard() {
	if m.board != nil {
		m.board.Broadcast()
	}
}
