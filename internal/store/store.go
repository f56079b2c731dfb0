// Package store is the typed adapter over Postgres. It exclusively owns
// durable state; every multi-row write runs in a single transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vaderboard-backend/internal/model"
	"vaderboard-backend/internal/vadererr"
)

// SearchMode selects the participant population for the event-scoped
// search channels.
type SearchMode int

const (
	// Teams that participate in the event.
	ModeTeams SearchMode = iota
	// Users who do not yet belong to any team of the event.
	ModeRemainingUsers
	// Users enrolled directly in a user event.
	ModeEventUsers
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New opens a connection pool and verifies it with a ping.
func New(ctx context.Context, databaseURL string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "parsing database URL", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "creating connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, vadererr.Wrap(vadererr.KindStore, "pinging database", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() { s.pool.Close() }

/* ----- events ----- */

func (s *Store) InsertEvent(ctx context.Context, e model.Event) error {
	var teamSize *int
	if e.Type.Kind == model.KindTeam {
		teamSize = &e.Type.TeamSize
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, name, logo, event_type, team_size) VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
		e.ID, e.Name, e.Logo, string(e.Type.Kind), teamSize,
	)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "inserting event", err)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "deleting event", err)
	}
	if tag.RowsAffected() == 0 {
		return vadererr.New(vadererr.KindEventNotFound, "no event found to delete")
	}
	return nil
}

const eventCols = `id, name, COALESCE(logo, ''), event_type, COALESCE(team_size, 0), created_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e    model.Event
		kind string
		size int
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Logo, &kind, &size, &e.CreatedAt); err != nil {
		return model.Event{}, err
	}
	e.Type = model.EventType{Kind: model.ParticipantKind(kind), TeamSize: size}
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (model.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, vadererr.New(vadererr.KindEventNotFound, "no event found")
	}
	if err != nil {
		return model.Event{}, vadererr.Wrap(vadererr.KindStore, "reading event", err)
	}
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventCols+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "listing events", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, vadererr.Wrap(vadererr.KindStore, "scanning event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "listing events", err)
	}
	return events, nil
}

/* ----- teams and users ----- */

func (s *Store) InsertTeam(ctx context.Context, t model.Team) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO teams (id, name, score, logo) VALUES ($1, $2, $3, NULLIF($4, ''))`,
		t.ID, t.Name, t.Score, t.Logo,
	)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "inserting team", err)
	}
	return nil
}

func (s *Store) InsertUser(ctx context.Context, u model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, score, logo) VALUES ($1, $2, $3, NULLIF($4, ''))`,
		u.ID, u.Name, u.Score, u.Logo,
	)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "inserting user", err)
	}
	return nil
}

// DeleteTeam removes the team row; memberships and event participations
// go with it through the FK cascades.
func (s *Store) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "deleting team", err)
	}
	if tag.RowsAffected() == 0 {
		return vadererr.New(vadererr.KindTeamNotFound, "no team found to delete")
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "deleting user", err)
	}
	if tag.RowsAffected() == 0 {
		return vadererr.New(vadererr.KindUserNotFound, "no user found to delete")
	}
	return nil
}

func (s *Store) GetTeam(ctx context.Context, id uuid.UUID) (model.Team, error) {
	var t model.Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, score, COALESCE(logo, ''), created_at FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Score, &t.Logo, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Team{}, vadererr.New(vadererr.KindTeamNotFound, "no team found")
	}
	if err != nil {
		return model.Team{}, vadererr.Wrap(vadererr.KindStore, "reading team", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM team_members WHERE team_id = $1`, id)
	if err != nil {
		return model.Team{}, vadererr.Wrap(vadererr.KindStore, "reading team members", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid uuid.UUID
		if err := rows.Scan(&uid); err != nil {
			return model.Team{}, vadererr.Wrap(vadererr.KindStore, "scanning team member", err)
		}
		t.Members = append(t.Members, uid)
	}
	if err := rows.Err(); err != nil {
		return model.Team{}, vadererr.Wrap(vadererr.KindStore, "reading team members", err)
	}
	return t, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, score, COALESCE(logo, ''), created_at FROM teams ORDER BY created_at DESC`)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "listing teams", err)
	}
	defer rows.Close()
	teams := []model.Team{}
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Score, &t.Logo, &t.CreatedAt); err != nil {
			return nil, vadererr.Wrap(vadererr.KindStore, "scanning team", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "listing teams", err)
	}
	return teams, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, score, COALESCE(logo, ''), created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Score, &u.Logo, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, vadererr.New(vadererr.KindUserNotFound, "no user found")
	}
	if err != nil {
		return model.User{}, vadererr.Wrap(vadererr.KindStore, "reading user", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, score, COALESCE(logo, ''), created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "listing users", err)
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Score, &u.Logo, &u.CreatedAt); err != nil {
			return nil, vadererr.Wrap(vadererr.KindStore, "scanning user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "listing users", err)
	}
	return users, nil
}

/* ----- participation ----- */

func (s *Store) AddEventTeam(ctx context.Context, eventID, teamID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_teams (event_id, team_id) VALUES ($1, $2)`, eventID, teamID)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "linking team to event", err)
	}
	return nil
}

func (s *Store) AddEventUser(ctx context.Context, eventID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_users (event_id, user_id) VALUES ($1, $2)`, eventID, userID)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "linking user to event", err)
	}
	return nil
}

// AddTeamMembers inserts the batch in one transaction. Membership is
// admitted through the event_teams link, so a team that does not
// participate in the event affects zero rows and the whole batch rolls
// back with TeamNotFound.
func (s *Store) AddTeamMembers(ctx context.Context, eventID, teamID uuid.UUID, userIDs []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "beginning member batch", err)
	}
	defer tx.Rollback(ctx)

	for _, uid := range userIDs {
		tag, err := tx.Exec(ctx,
			`INSERT INTO team_members (team_id, user_id)
			 SELECT et.team_id, $3 FROM event_teams et
			 WHERE et.event_id = $1 AND et.team_id = $2`,
			eventID, teamID, uid,
		)
		if err != nil {
			s.log.Error("unable to add member", zap.String("user_id", uid.String()), zap.Error(err))
			return vadererr.Wrap(vadererr.KindStore, "inserting team member", err)
		}
		if tag.RowsAffected() == 0 {
			return vadererr.New(vadererr.KindTeamNotFound, "no team found to add team members")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "committing member batch", err)
	}
	return nil
}

func (s *Store) CountTeamMembers(ctx context.Context, teamID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM team_members WHERE team_id = $1`, teamID).Scan(&n); err != nil {
		return 0, vadererr.Wrap(vadererr.KindStore, "counting team members", err)
	}
	return n, nil
}

/* ----- scores ----- */

// AddScore applies a signed delta atomically and returns the post-update
// score.
func (s *Store) AddScore(ctx context.Context, kind model.ParticipantKind, id uuid.UUID, delta int64) (int64, error) {
	table := "users"
	notFound := vadererr.KindUserNotFound
	if kind == model.KindTeam {
		table = "teams"
		notFound = vadererr.KindTeamNotFound
	}
	var score int64
	err := s.pool.QueryRow(ctx,
		`UPDATE `+table+` SET score = score + $1 WHERE id = $2 RETURNING score`,
		delta, id).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, vadererr.New(notFound, "no participant found to update score")
	}
	if err != nil {
		return 0, vadererr.Wrap(vadererr.KindStore, "updating score", err)
	}
	return score, nil
}

// ResetScoresForEvent zeroes every participant of the event in one
// transaction. For team events this includes every member of any
// participating team.
func (s *Store) ResetScoresForEvent(ctx context.Context, eventID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return vadererr.Wrap(vadererr.KindStore, "beginning score reset", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE teams SET score = 0
		 WHERE id IN (SELECT team_id FROM event_teams WHERE event_id = $1)`,
		eventID); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "resetting team scores", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET score = 0
		 WHERE id IN (
			SELECT tm.user_id FROM team_members tm
			JOIN event_teams et ON et.team_id = tm.team_id
			WHERE et.event_id = $1
		 )`,
		eventID); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "resetting member scores", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET score = 0
		 WHERE id IN (SELECT user_id FROM event_users WHERE event_id = $1)`,
		eventID); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "resetting user scores", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "committing score reset", err)
	}
	return nil
}

/* ----- leaderboard and search ----- */

// Leaderboard returns the top-n participants of the event by score
// descending; ties break by creation time ascending so the order is
// deterministic.
func (s *Store) Leaderboard(ctx context.Context, eventID uuid.UUID, kind model.ParticipantKind, n int) ([]model.BoardRow, error) {
	var query string
	if kind == model.KindTeam {
		query = `SELECT t.id, t.name, t.score, COALESCE(t.logo, '')
			 FROM teams t JOIN event_teams et ON et.team_id = t.id
			 WHERE et.event_id = $1
			 ORDER BY t.score DESC, t.created_at ASC LIMIT $2`
	} else {
		query = `SELECT u.id, u.name, u.score, COALESCE(u.logo, '')
			 FROM users u JOIN event_users eu ON eu.user_id = u.id
			 WHERE eu.event_id = $1
			 ORDER BY u.score DESC, u.created_at ASC LIMIT $2`
	}
	return s.boardRows(ctx, query, eventID, n)
}

// FTSTeams prefix-matches team names; an empty prefix returns the n
// most recent rows.
func (s *Store) FTSTeams(ctx context.Context, prefix string, n int) ([]model.BoardRow, error) {
	return s.boardRows(ctx,
		`SELECT id, name, score, COALESCE(logo, '') FROM teams
		 WHERE ($1 = '' OR lower(name) LIKE lower($1) || '%')
		 ORDER BY created_at DESC LIMIT $2`, prefix, n)
}

func (s *Store) FTSUsers(ctx context.Context, prefix string, n int) ([]model.BoardRow, error) {
	return s.boardRows(ctx,
		`SELECT id, name, score, COALESCE(logo, '') FROM users
		 WHERE ($1 = '' OR lower(name) LIKE lower($1) || '%')
		 ORDER BY created_at DESC LIMIT $2`, prefix, n)
}

func (s *Store) FTSEvents(ctx context.Context, prefix string, n int) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventCols+` FROM events
		 WHERE ($1 = '' OR lower(name) LIKE lower($1) || '%')
		 ORDER BY created_at DESC LIMIT $2`, prefix, n)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "searching events", err)
	}
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, vadererr.Wrap(vadererr.KindStore, "scanning event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "searching events", err)
	}
	return events, nil
}

// EventScopedFTS prefix-matches names inside the participant population
// the mode selects.
func (s *Store) EventScopedFTS(ctx context.Context, eventID uuid.UUID, mode SearchMode, prefix string, n int) ([]model.BoardRow, error) {
	var query string
	switch mode {
	case ModeTeams:
		query = `SELECT t.id, t.name, t.score, COALESCE(t.logo, '')
			 FROM teams t JOIN event_teams et ON et.team_id = t.id
			 WHERE et.event_id = $1 AND ($2 = '' OR lower(t.name) LIKE lower($2) || '%')
			 ORDER BY t.created_at DESC LIMIT $3`
	case ModeRemainingUsers:
		query = `SELECT u.id, u.name, u.score, COALESCE(u.logo, '')
			 FROM users u
			 WHERE u.id NOT IN (
				SELECT tm.user_id FROM team_members tm
				JOIN event_teams et ON et.team_id = tm.team_id
				WHERE et.event_id = $1
			 ) AND ($2 = '' OR lower(u.name) LIKE lower($2) || '%')
			 ORDER BY u.created_at DESC LIMIT $3`
	case ModeEventUsers:
		query = `SELECT u.id, u.name, u.score, COALESCE(u.logo, '')
			 FROM users u JOIN event_users eu ON eu.user_id = u.id
			 WHERE eu.event_id = $1 AND ($2 = '' OR lower(u.name) LIKE lower($2) || '%')
			 ORDER BY u.created_at DESC LIMIT $3`
	}
	return s.boardRows(ctx, query, eventID, prefix, n)
}

func (s *Store) boardRows(ctx context.Context, query string, args ...any) ([]model.BoardRow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "querying participants", err)
	}
	defer rows.Close()
	out := []model.BoardRow{}
	for rows.Next() {
		var r model.BoardRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Score, &r.Logo); err != nil {
			return nil, vadererr.Wrap(vadererr.KindStore, "scanning participant", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, vadererr.Wrap(vadererr.KindStore, "querying participants", err)
	}
	return out, nil
}

/* ----- admin ----- */

// VerifyAdmin compares the submitted credential against the seeded
// record. bcrypt's comparison is constant time; a missing record still
// burns a comparison so timing does not reveal usernames.
func (s *Store) VerifyAdmin(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password FROM admin_login WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B4TZZr9cnnmNcmCZIXZZWqEJOy5u"), []byte(password))
		return false, nil
	}
	if err != nil {
		return false, vadererr.Wrap(vadererr.KindStore, "reading admin credential", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, vadererr.Wrap(vadererr.KindAdminHash, "verifying admin password", err)
	}
	return true, nil
}
