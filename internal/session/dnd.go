package session

import (
	buspkg "github.com/Divarin/Community-sub002/internal/bus"
)

// DoNotDisturb reports the deferral flag.
func (s *Session) DoNotDisturb() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dnd
}

// SuppressDeferredSummary disables the replay/discard prompt when
// do-not-disturb is turned off.
func (s *Session) SuppressDeferredSummary(suppress bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressSummary = suppress
}

// Notify runs fn immediately, or queues it when the session is in
// do-not-disturb mode. Deferred callbacks replay in enqueue order.
func (s *Session) Notify(fn func()) {
	s.mu.Lock()
	if s.dnd {
		s.deferred = append(s.deferred, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// DeferredCount reports how many notifications are queued.
func (s *Session) DeferredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deferred)
}

// SetDoNotDisturb toggles the flag. Turning it off with queued deferred
// notifications prompts the user to replay them in order or discard them,
// unless the summary is suppressed. Either way the toggle broadcasts a
// channel-scoped presence note, skipping recipients who are themselves in
// do-not-disturb mode.
func (s *Session) SetDoNotDisturb(on bool) {
	s.mu.Lock()
	if s.dnd == on {
		s.mu.Unlock()
		return
	}
	s.dnd = on
	var pending []func()
	prompt := false
	if !on && len(s.deferred) > 0 {
		pending = s.deferred
		s.deferred = nil
		prompt = !s.suppressSummary
	}
	channel := s.channel
	user := s.user
	s.mu.Unlock()

	if len(pending) > 0 {
		replay := true
		if prompt {
			s.term.Printf("%d notifications arrived while you were away. [R]eplay or [D]iscard? ", len(pending))
			key, err := s.term.ReadKey()
			s.term.Println("")
			replay = err == nil && (key == 'r' || key == 'R')
		}
		if replay {
			for _, fn := range pending {
				fn()
			}
		}
	}

	if channel != nil && user != nil {
		verb := "is no longer accepting messages"
		if !on {
			verb = "is accepting messages again"
		}
		s.bus.Publish(buspkg.ChannelMessage{
			SessionID:  s.id,
			ChannelID:  channel.ID,
			Text:       user.Name + " " + verb,
			ExcludeDND: true,
		})
	}
}
