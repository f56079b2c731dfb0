package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vaderboard-backend/internal/model"
	"vaderboard-backend/internal/vadererr"
)

// fakeStore keeps just enough durable state in memory to exercise the
// machine's admission rules.
type fakeStore struct {
	events     map[uuid.UUID]model.Event
	scores     map[uuid.UUID]int64
	members    map[uuid.UUID][]uuid.UUID
	eventTeams map[uuid.UUID][]uuid.UUID
	eventUsers map[uuid.UUID][]uuid.UUID

	resetErr    error
	resetCalls  int
	memberCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:     map[uuid.UUID]model.Event{},
		scores:     map[uuid.UUID]int64{},
		members:    map[uuid.UUID][]uuid.UUID{},
		eventTeams: map[uuid.UUID][]uuid.UUID{},
		eventUsers: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeStore) InsertEvent(_ context.Context, e model.Event) error {
	f.events[e.ID] = e
	return nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id uuid.UUID) error {
	if _, ok := f.events[id]; !ok {
		return vadererr.New(vadererr.KindEventNotFound, "no event found to delete")
	}
	delete(f.events, id)
	return nil
}

func (f *fakeStore) InsertTeam(_ context.Context, t model.Team) error {
	f.scores[t.ID] = t.Score
	return nil
}

func (f *fakeStore) InsertUser(_ context.Context, u model.User) error {
	f.scores[u.ID] = u.Score
	return nil
}

func (f *fakeStore) AddEventTeam(_ context.Context, eventID, teamID uuid.UUID) error {
	f.eventTeams[eventID] = append(f.eventTeams[eventID], teamID)
	return nil
}

func (f *fakeStore) AddEventUser(_ context.Context, eventID, userID uuid.UUID) error {
	f.eventUsers[eventID] = append(f.eventUsers[eventID], userID)
	return nil
}

func (f *fakeStore) AddTeamMembers(_ context.Context, eventID, teamID uuid.UUID, userIDs []uuid.UUID) error {
	f.memberCalls++
	linked := false
	for _, id := range f.eventTeams[eventID] {
		if id == teamID {
			linked = true
		}
	}
	if !linked {
		// Nothing committed: the store brackets the batch in one
		// transaction.
		return vadererr.New(vadererr.KindTeamNotFound, "no team found to add team members")
	}
	f.members[teamID] = append(f.members[teamID], userIDs...)
	return nil
}

func (f *fakeStore) CountTeamMembers(_ context.Context, teamID uuid.UUID) (int, error) {
	return len(f.members[teamID]), nil
}

func (f *fakeStore) AddScore(_ context.Context, _ model.ParticipantKind, id uuid.UUID, delta int64) (int64, error) {
	if _, ok := f.scores[id]; !ok {
		return 0, vadererr.New(vadererr.KindTeamNotFound, "no participant found to update score")
	}
	f.scores[id] += delta
	return f.scores[id], nil
}

func (f *fakeStore) ResetScoresForEvent(_ context.Context, _ uuid.UUID) error {
	f.resetCalls++
	if f.resetErr != nil {
		return f.resetErr
	}
	for id := range f.scores {
		f.scores[id] = 0
	}
	return nil
}

type fakeBoard struct{ broadcasts int }

func (b *fakeBoard) Broadcast() { b.broadcasts++ }

type fakeFleet struct{ stops int }

func (s *fakeFleet) StopCurrent() { s.stops++ }

func teamEvent(t *testing.T, size int) model.Event {
	t.Helper()
	evt, err := model.NewEvent("E1", "", model.EventType{Kind: model.KindTeam, TeamSize: size})
	require.NoError(t, err)
	return evt
}

func userEvent(t *testing.T) model.Event {
	t.Helper()
	evt, err := model.NewEvent("E1", "", model.EventType{Kind: model.KindUser})
	require.NoError(t, err)
	return evt
}

func newMachine(t *testing.T) (*Machine, *fakeStore, *fakeBoard, *fakeFleet) {
	t.Helper()
	fs := newFakeStore()
	m := New(fs, zap.NewNop())
	board := &fakeBoard{}
	fleet := &fakeFleet{}
	m.Attach(board, fleet)
	return m, fs, board, fleet
}

func TestMachine_SingletonSlot(t *testing.T) {
	m, _, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))

	err := m.AddEvent(ctx, userEvent(t))
	require.ErrorIs(t, err, vadererr.ErrEventActive)

	// The slot frees only after end_event.
	_, err = m.StartEvent(ctx)
	require.NoError(t, err)
	_, err = m.EndEvent(ctx)
	require.NoError(t, err)

	require.NoError(t, m.AddEvent(ctx, userEvent(t)))
}

func TestMachine_ScoreGating(t *testing.T) {
	m, fs, board, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))
	team := model.NewTeam("T1", "")
	require.NoError(t, m.AddTeam(ctx, team))

	_, err := m.UpdateScore(ctx, team.ID, 5)
	require.ErrorIs(t, err, vadererr.ErrEventNotActive)

	_, err = m.StartEvent(ctx)
	require.NoError(t, err)

	score, err := m.UpdateScore(ctx, team.ID, 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), score)
	require.Equal(t, int64(7), fs.scores[team.ID])
	require.Equal(t, 1+1, board.broadcasts) // one on start, one per score change

	_, err = m.EndEvent(ctx)
	require.NoError(t, err)

	_, err = m.UpdateScore(ctx, team.ID, 1)
	require.ErrorIs(t, err, vadererr.ErrEventNotActive)
}

func TestMachine_ParticipantGating(t *testing.T) {
	m, _, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))
	team := model.NewTeam("T1", "")
	require.NoError(t, m.AddTeam(ctx, team))

	_, err := m.StartEvent(ctx)
	require.NoError(t, err)

	err = m.AddTeam(ctx, model.NewTeam("T2", ""))
	require.ErrorIs(t, err, vadererr.ErrEventActive)

	err = m.AddUser(ctx, model.NewUser("U1", ""))
	require.ErrorIs(t, err, vadererr.ErrEventActive)

	err = m.AddMembers(ctx, team.ID, []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, vadererr.ErrEventActive)
}

func TestMachine_ResetOnStart(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))
	team := model.NewTeam("T1", "")
	require.NoError(t, m.AddTeam(ctx, team))
	fs.scores[team.ID] = 42

	_, err := m.StartEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), fs.scores[team.ID])
}

func TestMachine_StartAbortsWhenResetFails(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))
	fs.resetErr = vadererr.New(vadererr.KindStore, "boom")

	_, err := m.StartEvent(ctx)
	require.ErrorIs(t, err, vadererr.ErrStore)

	// The machine stays in added: a later start succeeds.
	fs.resetErr = nil
	_, err = m.StartEvent(ctx)
	require.NoError(t, err)
}

func TestMachine_TypeMismatchLeavesStoreUnchanged(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, userEvent(t)))

	err := m.AddTeam(ctx, model.NewTeam("Tx", ""))
	require.ErrorIs(t, err, vadererr.ErrEventTypeMismatch)
	require.Empty(t, fs.scores)

	err = m.AddMembers(ctx, uuid.New(), []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, vadererr.ErrEventTypeMismatch)
	require.Zero(t, fs.memberCalls)
}

func TestMachine_TeamSizeEnforcedOnAdmission(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 2)))

	team := model.NewTeam("T1", "")
	members := []model.User{model.NewUser("U1", ""), model.NewUser("U2", ""), model.NewUser("U3", "")}
	err := m.AddTeamWithMembers(ctx, team, members)
	require.ErrorIs(t, err, vadererr.ErrTeamSizeMismatch)

	require.NoError(t, m.AddTeamWithMembers(ctx, team, members[:2]))
	require.Len(t, fs.members[team.ID], 2)

	err = m.AddMembers(ctx, team.ID, []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, vadererr.ErrTeamSizeMismatch)
}

func TestMachine_AddMembersRequiresParticipatingTeam(t *testing.T) {
	m, _, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))

	err := m.AddMembers(ctx, uuid.New(), []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, vadererr.ErrTeamNotFound)
}

func TestMachine_UserEventEnrollsUsers(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	evt := userEvent(t)
	require.NoError(t, m.AddEvent(ctx, evt))

	u := model.NewUser("U1", "")
	require.NoError(t, m.AddUser(ctx, u))
	require.Equal(t, []uuid.UUID{u.ID}, fs.eventUsers[evt.ID])
}

func TestMachine_TeamEventUsersJoinPoolOnly(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	evt := teamEvent(t, 3)
	require.NoError(t, m.AddEvent(ctx, evt))

	u := model.NewUser("U1", "")
	require.NoError(t, m.AddUser(ctx, u))
	require.Empty(t, fs.eventUsers[evt.ID])
	require.Contains(t, fs.scores, u.ID)
}

func TestMachine_EndClearsSlotAndStopsSearchFleet(t *testing.T) {
	m, _, _, fleet := newMachine(t)
	ctx := context.Background()

	evt := teamEvent(t, 3)
	require.NoError(t, m.AddEvent(ctx, evt))
	_, err := m.StartEvent(ctx)
	require.NoError(t, err)

	id, err := m.EndEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, evt.ID, id)
	require.Equal(t, 1, fleet.stops)

	_, _, ok := m.Current()
	require.False(t, ok)
}

func TestMachine_EndRequiresActive(t *testing.T) {
	m, _, _, _ := newMachine(t)
	ctx := context.Background()

	_, err := m.EndEvent(ctx)
	require.ErrorIs(t, err, vadererr.ErrEventNotFound)

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))
	_, err = m.EndEvent(ctx)
	require.ErrorIs(t, err, vadererr.ErrEventNotActive)
}

func TestMachine_DeleteGuardsCurrentEvent(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	evt := teamEvent(t, 3)
	require.NoError(t, m.AddEvent(ctx, evt))

	err := m.DeleteEvent(ctx, evt.ID)
	require.ErrorIs(t, err, vadererr.ErrEventActive)
	require.Contains(t, fs.events, evt.ID)

	_, err = m.StartEvent(ctx)
	require.NoError(t, err)
	_, err = m.EndEvent(ctx)
	require.NoError(t, err)

	require.NoError(t, m.DeleteEvent(ctx, evt.ID))
	require.NotContains(t, fs.events, evt.ID)
}

func TestMachine_ResetScoreOnlyWhileAdded(t *testing.T) {
	m, fs, _, _ := newMachine(t)
	ctx := context.Background()

	require.NoError(t, m.AddEvent(ctx, teamEvent(t, 3)))
	require.NoError(t, m.ResetScore(ctx))
	require.Equal(t, 1, fs.resetCalls)

	_, err := m.StartEvent(ctx)
	require.NoError(t, err)

	err = m.ResetScore(ctx)
	require.ErrorIs(t, err, vadererr.ErrEventActive)
}
