// Package session gives each visitor a volatile key-value store scoped to
// their browsing session. The store is identified by a session cookie and
// lives in server memory, so it disappears when the session ends or the
// process restarts. The consent manager keeps its pageview marker here.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"consentgate/internal/consent/store"
)

// CookieName is the session ID cookie. It carries no MaxAge so browsers drop
// it when the session ends, matching the volatility of the stored state.
const CookieName = "cpm-sid"

// defaultIdleTTL bounds how long an untouched session's state is retained.
const defaultIdleTTL = 30 * time.Minute

type entry struct {
	kv       *store.MemoryKV
	lastSeen time.Time
}

// Registry hands out session-scoped stores keyed by the visitor's session
// cookie. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idleTTL  time.Duration
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTTL overrides how long idle session state is retained.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// NewRegistry constructs an empty session registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns the session store for the request's session, creating the
// session (and setting its cookie on the response) when none exists yet.
func (r *Registry) For(w http.ResponseWriter, req *http.Request) store.KV {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()

	id := sessionID(req)
	if id != "" {
		if e, ok := r.sessions[id]; ok {
			e.lastSeen = r.now()
			return e.kv
		}
	}

	id = uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	e := &entry{kv: store.NewMemoryKV(), lastSeen: r.now()}
	r.sessions[id] = e
	return e.kv
}

// prune drops sessions idle past the TTL. Caller holds the lock.
func (r *Registry) prune() {
	cutoff := r.now().Add(-r.idleTTL)
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}

func sessionID(req *http.Request) string {
	cookie, err := req.Cookie(CookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}
