package api

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/gsa-finder/internal/auth"
	"github.com/david/gsa-finder/internal/metrics"
	"github.com/david/gsa-finder/internal/state"
)

const sessionContextKey = "session"

// Session is one dashboard, identified by a cookie.
type Session struct {
	ID       uuid.UUID
	Store    *state.Store
	Location *state.MemoryLocation

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// PersisterFactory returns the key-value backend of a session.
type PersisterFactory func(id uuid.UUID) state.Persister

// SessionConfig configures a Sessions registry. Without a Signer the
// cookie carries the bare session id.
type SessionConfig struct {
	Cookie    string
	Signer    *auth.Signer
	Persister PersisterFactory
	Delay     func() time.Duration
}

// Sessions tracks live sessions. A cookie naming a session that is not in
// memory (for example after a restart) restores it from its persister.
type Sessions struct {
	cookie    string
	signer    *auth.Signer
	persister PersisterFactory
	delay     func() time.Duration

	mu   sync.Mutex
	byID map[uuid.UUID]*Session
}

func NewSessions(cfg SessionConfig) *Sessions {
	if cfg.Cookie == "" {
		cfg.Cookie = "gsa_session"
	}
	if cfg.Persister == nil {
		cfg.Persister = func(uuid.UUID) state.Persister { return state.NewMemoryPersister() }
	}
	return &Sessions{
		cookie:    cfg.Cookie,
		signer:    cfg.Signer,
		persister: cfg.Persister,
		delay:     cfg.Delay,
		byID:      make(map[uuid.UUID]*Session),
	}
}

// Resolve returns the session for id, creating it when unknown. initial
// seeds the address bar of a new session. The store is built outside the
// registry lock so a slow persister only delays its own session.
func (r *Sessions) Resolve(ctx context.Context, id uuid.UUID, initial url.Values) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.byID[id]
	r.mu.Unlock()
	if ok {
		sess.touch()
		return sess, false
	}

	loc := state.NewMemoryLocation(initial)
	fresh := &Session{
		ID:       id,
		Location: loc,
		Store: state.New(ctx, state.Options{
			Persister: r.persister(id),
			Location:  loc,
			Delay:     r.delay,
		}),
		lastSeen: time.Now(),
	}

	r.mu.Lock()
	if sess, ok := r.byID[id]; ok {
		r.mu.Unlock()
		fresh.Store.Close()
		sess.touch()
		return sess, false
	}
	r.byID[id] = fresh
	metrics.SetActiveSessions(len(r.byID))
	r.mu.Unlock()
	return fresh, true
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Sweep drops sessions idle for longer than maxIdle and cancels their
// pending applies. Persisted entries stay.
func (r *Sessions) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Session
	for id, sess := range r.byID {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, sess)
			delete(r.byID, id)
		}
	}
	metrics.SetActiveSessions(len(r.byID))
	r.mu.Unlock()

	for _, sess := range stale {
		sess.Store.Close()
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Sessions) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				log.Printf("sessions: evicted %d idle sessions", n)
			}
		}
	}
}

// Middleware attaches the caller's session to the echo context, issuing a
// cookie on first contact.
func (r *Sessions) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := uuid.Nil
		if cookie, err := c.Cookie(r.cookie); err == nil {
			id = r.decode(cookie.Value)
		}
		if id == uuid.Nil {
			id = uuid.New()
		}

		sess, created := r.Resolve(c.Request().Context(), id, c.QueryParams())
		if created {
			value, maxAge, err := r.encode(id)
			if err != nil {
				c.Logger().Errorf("Failed to sign session cookie: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			}
			c.SetCookie(&http.Cookie{
				Name:     r.cookie,
				Value:    value,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   maxAge,
			})
		}
		c.Set(sessionContextKey, sess)
		return next(c)
	}
}

// decode returns uuid.Nil for cookies that do not name a session.
func (r *Sessions) decode(value string) uuid.UUID {
	if r.signer != nil {
		id, err := r.signer.Parse(value)
		if err != nil {
			return uuid.Nil
		}
		return id
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (r *Sessions) encode(id uuid.UUID) (string, int, error) {
	if r.signer == nil {
		return id.String(), int((365 * 24 * time.Hour).Seconds()), nil
	}
	token, err := r.signer.Issue(id)
	if err != nil {
		return "", 0, err
	}
	return token, int(r.signer.TTL().Seconds()), nil
}

func sessionFrom(c echo.Context) *Session {
	sess, _ := c.Get(sessionContextKey).(*Session)
	return sess
}
