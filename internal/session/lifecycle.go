package session

import (
	"time"
)

// State is the connection state machine position.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateForcedLogout
	StateDisposed
)

// TerminationCause classifies why a session ended. The connection-owning
// goroutine consumes a TerminationReason instead of catching control-flow
// panics.
type TerminationCause int

const (
	CauseDisconnect TerminationCause = iota
	CauseLoginTimeout
	CauseIdleTimeout
	CauseForceLogout
	CauseTransport
)

var causeNames = map[TerminationCause]string{
	CauseDisconnect:   "disconnect",
	CauseLoginTimeout: "login_timeout",
	CauseIdleTimeout:  "idle_timeout",
	CauseForceLogout:  "force_logout",
	CauseTransport:    "transport",
}

func (c TerminationCause) String() string { return causeNames[c] }

// TerminationReason is the typed result of the liveness loop.
type TerminationReason struct {
	Cause  TerminationCause
	Detail string
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ForceLogout requests termination with a human-readable reason. The
// liveness loop observes the flag on its next poll.
func (s *Session) ForceLogout(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forced || s.state == StateDisposed {
		return
	}
	s.forced = true
	s.forcedReason = reason
	s.state = StateForcedLogout
}

// ForcedReason returns the recorded forced-logout reason.
func (s *Session) ForcedReason() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced, s.forcedReason
}

// RunLiveness polls the session's health on a fixed interval until a
// termination condition holds, then reports why. Polling rather than
// interrupting keeps shared state consistent: the loop only ever observes
// flags and exits. The caller performs teardown.
func (s *Session) RunLiveness(interval time.Duration) TerminationReason {
	for {
		if s.Disposed() {
			return TerminationReason{Cause: CauseDisconnect, Detail: "session disposed"}
		}

		if forced, reason := s.ForcedReason(); forced {
			return TerminationReason{Cause: CauseForceLogout, Detail: reason}
		}

		if !s.conn.Healthy() {
			s.ForceLogout("transport failure")
			return TerminationReason{Cause: CauseTransport, Detail: "transport failure"}
		}

		s.mu.Lock()
		state := s.state
		authDeadline := s.authDeadline
		last := s.lastActivity
		s.mu.Unlock()

		now := time.Now().UTC()
		if state == StateAuthenticating && now.After(authDeadline) {
			s.ForceLogout("login time exceeded")
			return TerminationReason{Cause: CauseLoginTimeout, Detail: "login time exceeded"}
		}
		if state == StateActive && s.limits.IdleTimeout > 0 && now.Sub(last) > s.limits.IdleTimeout {
			s.ForceLogout("idle timeout")
			return TerminationReason{Cause: CauseIdleTimeout, Detail: "idle timeout"}
		}

		time.Sleep(interval)
	}
}
