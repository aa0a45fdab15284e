package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/observability"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/session"
)

// Queue is a per-channel FIFO of users waiting for speak permission. It
// exists only while at least one request is outstanding; the manager's
// watcher removes it once its expiry passes.
type Queue struct {
	ChannelID int

	mu       sync.Mutex
	users    []int
	expiry   time.Time
	onExpire func()
	expired  bool
}

// Enqueue adds userID, ignoring duplicates, and returns the 1-based queue
// position.
func (q *Queue) Enqueue(userID int) (pos int, added bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, u := range q.users {
		if u == userID {
			return i + 1, false
		}
	}
	q.users = append(q.users, userID)
	return len(q.users), true
}

// Users returns a copy of the queue in request order.
func (q *Queue) Users() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]int, len(q.users))
	copy(out, q.users)
	return out
}

// Extend pushes the expiry further out.
func (q *Queue) Extend(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expiry = q.expiry.Add(d)
}

func (q *Queue) expiredAt(now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return now.After(q.expiry)
}

// fireExpiry invokes the expiry callback exactly once.
func (q *Queue) fireExpiry() {
	q.mu.Lock()
	if q.expired {
		q.mu.Unlock()
		return
	}
	q.expired = true
	fn := q.onExpire
	q.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Manager owns the queue table and the single shared watcher. The watcher
// starts with the first queue and exits once the table is empty; any
// session goroutine may create or consume queues concurrently.
type Manager struct {
	bus       *buspkg.Bus
	flagRepo  repositories.UserChannelFlagRepository
	notifRepo repositories.NotificationRepository
	log       *zap.Logger

	duration time.Duration
	sweep    time.Duration

	mu       sync.Mutex
	queues   map[int]*Queue
	watching bool
}

// NewManager builds a Manager. duration is how long a queue stays open,
// sweep the watcher poll interval.
func NewManager(b *buspkg.Bus, flagRepo repositories.UserChannelFlagRepository, notifRepo repositories.NotificationRepository, duration, sweep time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		bus:       b,
		flagRepo:  flagRepo,
		notifRepo: notifRepo,
		log:       log,
		duration:  duration,
		sweep:     sweep,
		queues:    make(map[int]*Queue),
	}
}

// OpenQueue creates the queue for a channel, replacing any prior queue
// after firing its expiry callback. Starts the watcher if it is not
// running.
func (m *Manager) OpenQueue(channelID int, onExpire func()) *Queue {
	m.mu.Lock()
	prior := m.queues[channelID]
	q := &Queue{
		ChannelID: channelID,
		expiry:    time.Now().Add(m.duration),
		onExpire:  onExpire,
	}
	m.queues[channelID] = q
	startWatcher := !m.watching
	if startWatcher {
		m.watching = true
	}
	m.mu.Unlock()

	if prior != nil {
		prior.fireExpiry()
	} else {
		observability.IncVoiceQueues()
	}
	if startWatcher {
		go m.watch()
	}
	return q
}

// Get returns the active queue for a channel, if any.
func (m *Manager) Get(channelID int) (*Queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[channelID]
	return q, ok
}

// watch is the single shared watcher loop. It wakes on a fixed interval,
// fires and removes expired queues, and exits once none remain.
func (m *Manager) watch() {
	for {
		time.Sleep(m.sweep)
		now := time.Now()

		var fired []*Queue
		m.mu.Lock()
		for id, q := range m.queues {
			if q.expiredAt(now) {
				delete(m.queues, id)
				fired = append(fired, q)
			}
		}
		empty := len(m.queues) == 0
		if empty {
			m.watching = false
		}
		m.mu.Unlock()

		for _, q := range fired {
			q.fireExpiry()
			observability.DecVoiceQueues()
			m.log.Debug("voice queue expired", zap.Int("channel_id", q.ChannelID))
		}
		if empty {
			return
		}
	}
}

// RequestVoice enqueues the session's user when the channel has an open
// queue, announcing their position and alerting moderators present in the
// channel. Without a queue the request is one-off: moderators online hear
// it via the bus and every channel moderator gets a stored notification.
func (m *Manager) RequestVoice(ctx context.Context, s *session.Session, channelID int) error {
	user := s.User()
	if user == nil {
		return fmt.Errorf("voice request before login")
	}

	text := fmt.Sprintf("%s requests voice", user.Name)

	if q, ok := m.Get(channelID); ok {
		pos, added := q.Enqueue(user.ID)
		if added {
			s.Terminal().Printf("You are #%d in the voice queue.\r\n", pos)
		} else {
			s.Terminal().Printf("Already queued at #%d.\r\n", pos)
		}
		m.bus.Publish(buspkg.ChannelMessage{
			SessionID:      s.ID(),
			ChannelID:      channelID,
			Text:           fmt.Sprintf("%s (queue position %d)", text, pos),
			ModeratorsOnly: true,
		})
		return nil
	}

	m.bus.Publish(buspkg.ChannelMessage{
		SessionID:      s.ID(),
		ChannelID:      channelID,
		Text:           text,
		ModeratorsOnly: true,
	})

	mods, err := m.flagRepo.GetModerators(ctx, channelID)
	if err != nil {
		return fmt.Errorf("load channel moderators: %w", err)
	}
	for _, mod := range mods {
		if _, err := m.notifRepo.Insert(ctx, models.Notification{
			UserID:  mod.UserID,
			Message: text,
		}); err != nil {
			m.log.Warn("voice request notification failed",
				zap.Int("moderator_id", mod.UserID), zap.Error(err))
		}
	}
	return nil
}
