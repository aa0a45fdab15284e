package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Divarin/Community-sub002/internal/observability"
	"github.com/Divarin/Community-sub002/internal/session"
)

// Scope names the admission limit a connection ran into.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeUser    Scope = "user"
	ScopeAddress Scope = "address"
)

// CapacityError reports a refused admission; the caller rejects the
// connection.
type CapacityError struct {
	Scope Scope
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session capacity exceeded: %s limit %d", e.Scope, e.Limit)
}

// Limits configures admission control. A zero limit means unlimited.
type Limits struct {
	MaxTotal      int
	MaxPerUser    int
	MaxPerAddress int
}

// Registry is the bounded set of live sessions. It holds non-owning
// references used for broadcast fan-out, presence listing, and
// cross-session read-set lookup; sessions deregister themselves through
// their dispose hook.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session.Session
	limits   Limits
}

// New builds an empty registry.
func New(limits Limits) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*session.Session),
		limits:   limits,
	}
}

// Add admits a session, enforcing the global and per-address limits (the
// per-user limit applies once the session authenticates, via
// AuthorizeUser). A fully constructed session must be passed; List never
// exposes partially built state because admission happens after New.
func (r *Registry) Add(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limits.MaxTotal > 0 && len(r.sessions) >= r.limits.MaxTotal {
		observability.IncSessionRejected(string(ScopeGlobal))
		return &CapacityError{Scope: ScopeGlobal, Limit: r.limits.MaxTotal}
	}

	if r.limits.MaxPerAddress > 0 {
		host := s.RemoteHost()
		count := 0
		for _, live := range r.sessions {
			if live.RemoteHost() == host {
				count++
			}
		}
		if count >= r.limits.MaxPerAddress {
			observability.IncSessionRejected(string(ScopeAddress))
			return &CapacityError{Scope: ScopeAddress, Limit: r.limits.MaxPerAddress}
		}
	}

	r.sessions[s.ID()] = s
	observability.IncSessionsActive()
	return nil
}

// AuthorizeUser enforces the per-user limit at login time, counting the
// authenticating session's siblings.
func (r *Registry) AuthorizeUser(s *session.Session, userID int) error {
	if r.limits.MaxPerUser <= 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, live := range r.sessions {
		if live.ID() == s.ID() {
			continue
		}
		if u := live.User(); u != nil && u.ID == userID {
			count++
		}
	}
	if count >= r.limits.MaxPerUser {
		observability.IncSessionRejected(string(ScopeUser))
		return &CapacityError{Scope: ScopeUser, Limit: r.limits.MaxPerUser}
	}
	return nil
}

// Remove drops a session from the live set.
func (r *Registry) Remove(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		delete(r.sessions, s.ID())
		observability.DecSessionsActive()
	}
}

// List returns a snapshot of the live sessions, safe to iterate while
// other goroutines add and remove concurrently.
func (r *Registry) List() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ForUser returns the live sessions authenticated as userID.
func (r *Registry) ForUser(userID int) []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*session.Session
	for _, s := range r.sessions {
		if u := s.User(); u != nil && u.ID == userID {
			out = append(out, s)
		}
	}
	return out
}

// InChannel returns the live sessions currently viewing the channel.
func (r *Registry) InChannel(channelID int) []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*session.Session
	for _, s := range r.sessions {
		if ch := s.Channel(); ch != nil && ch.ID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// Len reports the live session count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
