package session

import (
	"math/rand"
	"sync"
	"time"
)

// HeartbeatMode selects what a heartbeat tick emits.
type HeartbeatMode int

const (
	// HeartbeatFull writes a visible textual ping unless the user typed
	// recently.
	HeartbeatFull HeartbeatMode = iota
	// HeartbeatInvisible writes a zero-width probe that keeps the
	// transport warm without disturbing the screen.
	HeartbeatInvisible
	// HeartbeatScreenSaver draws randomized idle art.
	HeartbeatScreenSaver
	// HeartbeatReplay delegates each tick to an external callback.
	HeartbeatReplay
)

const typingGrace = 10 * time.Second

var screenSaverFrames = []string{".", "o", "O", "*", "+"}

type heartbeat struct {
	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	interval time.Duration
	mode     HeartbeatMode
	replay   func()
}

// SetHeartbeatReplay installs the callback used by HeartbeatReplay mode.
func (s *Session) SetHeartbeatReplay(fn func()) {
	s.hb.mu.Lock()
	defer s.hb.mu.Unlock()
	s.hb.replay = fn
}

// HeartbeatInterval returns the configured interval, 0 when stopped.
func (s *Session) HeartbeatInterval() time.Duration {
	s.hb.mu.Lock()
	defer s.hb.mu.Unlock()
	return s.hb.interval
}

// SetHeartbeat reconfigures the heartbeat loop. The previous loop is
// signalled to stop and waited for before a new one starts; a running
// tick always completes. An interval <= 0 leaves the heartbeat stopped.
func (s *Session) SetHeartbeat(interval time.Duration, mode HeartbeatMode) {
	s.hb.mu.Lock()
	s.stopHeartbeatLocked()
	s.hb.interval = interval
	s.hb.mode = mode
	if interval <= 0 || s.Disposed() {
		s.hb.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.hb.stop = stop
	s.hb.done = done
	replay := s.hb.replay
	s.hb.mu.Unlock()

	go s.runHeartbeat(interval, mode, replay, stop, done)
}

func (s *Session) stopHeartbeat() {
	s.hb.mu.Lock()
	defer s.hb.mu.Unlock()
	s.stopHeartbeatLocked()
	s.hb.interval = 0
}

func (s *Session) stopHeartbeatLocked() {
	if s.hb.stop == nil {
		return
	}
	close(s.hb.stop)
	<-s.hb.done
	s.hb.stop = nil
	s.hb.done = nil
}

func (s *Session) runHeartbeat(interval time.Duration, mode HeartbeatMode, replay func(), stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if s.Disposed() {
			return
		}
		s.beat(mode, replay)
	}
}

func (s *Session) beat(mode HeartbeatMode, replay func()) {
	switch mode {
	case HeartbeatFull:
		if s.IdleFor() >= typingGrace {
			s.term.Println("*ping*")
		}
	case HeartbeatInvisible:
		s.term.Print("\x00")
	case HeartbeatScreenSaver:
		s.term.Print(screenSaverFrames[rand.Intn(len(screenSaverFrames))])
	case HeartbeatReplay:
		if replay != nil {
			replay()
		}
	}
	_ = s.term.Flush()
}
