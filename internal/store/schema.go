package store

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"vaderboard-backend/internal/vadererr"
)

// The name columns get lower(name) text_pattern_ops indexes so the
// prefix search-as-you-type queries stay on an index scan.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		logo       TEXT,
		event_type TEXT NOT NULL CHECK (event_type IN ('team_event', 'user_event')),
		team_size  INT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((event_type = 'team_event') = (team_size IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		score      BIGINT NOT NULL DEFAULT 0,
		logo       TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		score      BIGINT NOT NULL DEFAULT 0,
		logo       TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id UUID NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_teams (
		event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		team_id  UUID NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		PRIMARY KEY (event_id, team_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_users (
		event_id UUID NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		user_id  UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS admin_login (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS events_name_prefix ON events (lower(name) text_pattern_ops)`,
	`CREATE INDEX IF NOT EXISTS teams_name_prefix ON teams (lower(name) text_pattern_ops)`,
	`CREATE INDEX IF NOT EXISTS users_name_prefix ON users (lower(name) text_pattern_ops)`,
	`CREATE INDEX IF NOT EXISTS teams_score ON teams (score DESC, created_at ASC)`,
	`CREATE INDEX IF NOT EXISTS users_score ON users (score DESC, created_at ASC)`,
}

// Migrate creates the schema. Statements are idempotent so bring-up can
// run it unconditionally.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return vadererr.Wrap(vadererr.KindStore, "running migration", err)
		}
	}
	return nil
}

// SeedAdmin provisions the single admin credential if none exists yet.
// The clear password never touches the table.
func (s *Store) SeedAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM admin_login`).Scan(&n); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "checking admin credential", err)
	}
	if n > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return vadererr.Wrap(vadererr.KindAdminHash, "hashing admin password", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO admin_login (username, password) VALUES ($1, $2)`,
		username, string(hash),
	); err != nil {
		return vadererr.Wrap(vadererr.KindStore, "seeding admin credential", err)
	}
	s.log.Info("seeded admin credential")
	return nil
}
