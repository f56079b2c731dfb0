// Package model holds the value types shared between the state machine
// and the store: events, teams, users and the admin credential record.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vaderboard-backend/internal/vadererr"
)

// ParticipantKind discriminates team contests from individual contests.
type ParticipantKind string

const (
	KindTeam ParticipantKind = "team_event"
	KindUser ParticipantKind = "user_event"
)

// EventType is the wire form of the event discriminator. A team event
// carries its team size; a user event carries nothing. The JSON shape
// is externally tagged: {"TeamEvent":{"team_size":3}} or "UserEvent".
type EventType struct {
	Kind     ParticipantKind
	TeamSize int // meaningful only when Kind == KindTeam
}

func (t EventType) MarshalJSON() ([]byte, error) {
	if t.Kind == KindUser {
		return json.Marshal("UserEvent")
	}
	return json.Marshal(map[string]map[string]int{
		"TeamEvent": {"team_size": t.TeamSize},
	})
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "UserEvent" {
			*t = EventType{Kind: KindUser}
			return nil
		}
		if s == "TeamEvent" {
			return vadererr.New(vadererr.KindTeamSizeMismatch, "team event requires team_size")
		}
		return vadererr.New(vadererr.KindSerialization, "unknown event type "+s)
	}
	var tagged struct {
		TeamEvent *struct {
			TeamSize int `json:"team_size"`
		} `json:"TeamEvent"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return vadererr.Wrap(vadererr.KindSerialization, "decoding event type", err)
	}
	if tagged.TeamEvent == nil {
		return vadererr.New(vadererr.KindSerialization, "unknown event type")
	}
	*t = EventType{Kind: KindTeam, TeamSize: tagged.TeamEvent.TeamSize}
	return nil
}

// Event is a contest instance. Immutable after insertion except through
// cascading deletes.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Logo      string    `json:"logo,omitempty"`
	Type      EventType `json:"event_type"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// NewEvent assigns a fresh id. Team events must declare a positive
// team size; the cap itself is enforced on member admission.
func NewEvent(name, logo string, typ EventType) (Event, error) {
	if typ.Kind == KindTeam && typ.TeamSize <= 0 {
		return Event{}, vadererr.New(vadererr.KindTeamSizeMismatch, "team event requires a positive team_size")
	}
	return Event{ID: uuid.New(), Name: name, Logo: logo, Type: typ}, nil
}

// Team is a contestant in a team event. Members is derived from the
// membership relation, not stored on the row.
type Team struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Score     int64       `json:"score"`
	Logo      string      `json:"logo,omitempty"`
	Members   []uuid.UUID `json:"members,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitzero"`
}

func NewTeam(name, logo string) Team {
	return Team{ID: uuid.New(), Name: name, Logo: logo}
}

// User is a contestant in a user event, or a team member.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Score     int64     `json:"score"`
	Logo      string    `json:"logo,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func NewUser(name, logo string) User {
	return User{ID: uuid.New(), Name: name, Logo: logo}
}

// BoardRow is one leaderboard entry: the fields the API exposes for
// both participant kinds.
type BoardRow struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Score int64     `json:"score"`
	Logo  string    `json:"logo,omitempty"`
}

// AdminCredential is the single seeded admin record. Password is a
// bcrypt hash; the record is read-only at runtime.
type AdminCredential struct {
	Username string
	Password string
}
