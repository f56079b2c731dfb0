// Package session keeps the admin flag server-side and hands clients a
// signed cookie carrying only an opaque session id.
package session

import (
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vaderboard-backend/internal/vadererr"
)

const CookieName = "vader_session"

const sessionTTL = 24 * time.Hour

type claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

type Store struct {
	mu     sync.Mutex
	secret []byte
	admins map[string]bool
}

// NewStore builds a session store. An empty secret gets a random one,
// which invalidates sessions across restarts; that matches the original
// per-process session key.
func NewStore(secret string) *Store {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	return &Store{secret: key, admins: make(map[string]bool)}
}

// IssueAdmin creates a session with admin=true and writes the signed
// cookie on the response.
func (s *Store) IssueAdmin(w http.ResponseWriter) error {
	sid := uuid.NewString()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "vaderboard",
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return vadererr.Wrap(vadererr.KindSerialization, "signing session cookie", err)
	}

	s.mu.Lock()
	s.admins[sid] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// IsAdmin verifies the cookie signature and looks the session up. Any
// parse or lookup failure is simply "not admin".
func (s *Store) IsAdmin(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return false
	}
	tok, err := jwt.ParseWithClaims(c.Value, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return false
	}
	cl, ok := tok.Claims.(*claims)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[cl.SID]
}
