package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/chatcache"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/observability"
	"github.com/Divarin/Community-sub002/internal/reads"
	"github.com/Divarin/Community-sub002/internal/registry"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/session"
	"github.com/Divarin/Community-sub002/internal/telemetry"
)

const defaultHeaderFormat = "[{id}] {user}, {time}:"

// Options tunes the pipeline.
type Options struct {
	MaxChannelNameLen    int
	AllowChannelCreation bool
}

// Service is the channel posting pipeline: join/switch/create, the
// message pointer protocol, next-unread retrieval, and posting.
type Service struct {
	opts        Options
	cache       *chatcache.Cache
	chatRepo    repositories.ChatRepository
	channelRepo repositories.ChannelRepository
	flagRepo    repositories.UserChannelFlagRepository
	userRepo    repositories.UserRepository
	reads       *reads.Tracker
	bus         *buspkg.Bus
	registry    *registry.Registry
	audit       *telemetry.AuditEmitter
	log         *zap.Logger

	nameMu    sync.RWMutex
	nameCache map[int]string
}

// NewService builds the pipeline. audit may be nil.
func NewService(
	opts Options,
	cache *chatcache.Cache,
	chatRepo repositories.ChatRepository,
	channelRepo repositories.ChannelRepository,
	flagRepo repositories.UserChannelFlagRepository,
	userRepo repositories.UserRepository,
	tracker *reads.Tracker,
	b *buspkg.Bus,
	reg *registry.Registry,
	audit *telemetry.AuditEmitter,
	log *zap.Logger,
) *Service {
	return &Service{
		opts:        opts,
		cache:       cache,
		chatRepo:    chatRepo,
		channelRepo: channelRepo,
		flagRepo:    flagRepo,
		userRepo:    userRepo,
		reads:       tracker,
		bus:         b,
		registry:    reg,
		audit:       audit,
		log:         log,
		nameCache:   make(map[int]string),
	}
}

// SwitchOpts adjusts channel-switch behavior.
type SwitchOpts struct {
	// FirstJoin suppresses the "left channel" notice on the initial join
	// after login.
	FirstJoin bool
	// FromNavigation marks a switch caused by following a cross-reference,
	// which skips the auto-advance to the first unread message.
	FromNavigation bool
}

// SwitchOrMakeChannel validates the target name, creates the channel
// after interactive confirmation when it does not exist, checks access,
// and moves the session into it: cache reference, flag record, and
// message pointer swap together.
func (svc *Service) SwitchOrMakeChannel(ctx context.Context, s *session.Session, name string, opts SwitchOpts) (*models.Channel, error) {
	user := s.User()
	if user == nil {
		return nil, errors.New("not logged in")
	}
	if err := ValidateChannelName(name, svc.opts.MaxChannelNameLen); err != nil {
		return nil, err
	}

	term := s.Terminal()

	ch, err := svc.channelRepo.GetByName(ctx, name)
	switch {
	case errors.Is(err, repositories.ErrChannelNotFound):
		if !svc.opts.AllowChannelCreation {
			return nil, err
		}
		term.Printf("Channel %q does not exist. Create it? [y/N]: ", name)
		key, kerr := term.ReadKey()
		term.Println("")
		if kerr != nil || (key != 'y' && key != 'Y') {
			return nil, repositories.ErrChannelNotFound
		}
		ch, err = svc.channelRepo.Insert(ctx, models.Channel{Name: name})
		if err != nil {
			return nil, fmt.Errorf("create channel: %w", err)
		}
		// The creator moderates the channel they made.
		if _, err := svc.flagRepo.InsertOrUpdate(ctx, models.UserChannelFlag{
			UserID:    user.ID,
			ChannelID: ch.ID,
			Flags:     models.FlagModerator,
		}); err != nil {
			return nil, fmt.Errorf("grant creator moderator: %w", err)
		}
		svc.audit.Emit(ctx, "info", fmt.Sprintf("channel %q created by %s", ch.Name, user.Name), s.ID().String(), &user.ID)
	case err != nil:
		return nil, fmt.Errorf("look up channel: %w", err)
	}

	flag, err := svc.flagRepo.GetByUserChannel(ctx, user.ID, ch.ID)
	if errors.Is(err, repositories.ErrFlagNotFound) {
		flag = models.UserChannelFlag{UserID: user.ID, ChannelID: ch.ID}
	} else if err != nil {
		return nil, fmt.Errorf("look up channel flag: %w", err)
	}

	if ch.RequiresInvite &&
		!user.IsAdmin && !user.IsGlobalModerator &&
		!flag.Flags.Has(models.FlagInvited) && !flag.Flags.Has(models.FlagModerator) {
		return nil, ErrChannelAccessDenied
	}

	if prev := s.Channel(); prev != nil && !opts.FirstJoin {
		svc.bus.Publish(buspkg.ChannelMessage{
			SessionID: s.ID(),
			ChannelID: prev.ID,
			Text:      fmt.Sprintf("%s left %s", user.Name, prev.Name),
		})
	}

	chats, err := svc.cache.ChannelChats(ctx, ch.ID)
	if err != nil {
		return nil, err
	}

	channel := ch
	flagCopy := flag
	s.SetChannel(&channel, &flagCopy, chats, flag.LastReadID)

	svc.listPresent(s, ch.ID)

	svc.bus.Publish(buspkg.ChannelMessage{
		SessionID: s.ID(),
		ChannelID: ch.ID,
		Text:      fmt.Sprintf("%s joined %s", user.Name, ch.Name),
	})

	// Pointer bookkeeping only: skip messages already read so the next
	// read lands on the first unread one. A brand new member starts at 0
	// until their first explicit pointer move.
	if !opts.FromNavigation && flag.LastReadID > 0 {
		svc.advancePastRead(ctx, s)
	}

	return &channel, nil
}

// SetMessagePointer moves the cursor to the smallest existing id >= v
// (largest <= v in reverse mode), wrapping when no id qualifies; an empty
// channel pins it at 0. The resolved value is persisted to the user's
// channel flag only when it differs from the prior pointer. Reports
// whether the pointer changed.
func (svc *Service) SetMessagePointer(ctx context.Context, s *session.Session, v int64) (bool, error) {
	chats := s.Chats()
	if chats == nil {
		return false, ErrNoChannel
	}
	resolved := chats.Resolve(v, s.Reverse())
	if resolved == s.MsgPointer() {
		return false, nil
	}
	s.SetMsgPointer(resolved)
	svc.persistLastRead(ctx, s, resolved)
	return true, nil
}

// ShowNextMessage emits the message under the pointer and advances past
// it. At the end of the channel it re-displays the last-read message
// without advancing and reports that nothing newer exists.
func (svc *Service) ShowNextMessage(ctx context.Context, s *session.Session) error {
	chats := s.Chats()
	if chats == nil {
		return ErrNoChannel
	}
	term := s.Terminal()
	ptr := s.MsgPointer()

	// Ids are assigned globally, so the id under the pointer may not
	// exist in this channel. Land on the first id at or past it instead
	// of requiring an exact hit.
	if id, ok := chats.NextAfter(ptr - 1); ok {
		msg, _ := chats.Get(id)
		svc.emit(ctx, s, msg)
		svc.reads.MarkRead(ctx, s, msg.ID, true)
		svc.persistLastRead(ctx, s, msg.ID)
		if next, has := chats.NextAfter(msg.ID); has {
			s.SetMsgPointer(next)
		} else {
			// Move past the end so the next call reports exhaustion.
			s.SetMsgPointer(msg.ID + 1)
		}
		return nil
	}

	if flag := s.ChannelFlag(); flag != nil && flag.LastReadID > 0 {
		if last, ok := chats.Get(flag.LastReadID); ok {
			svc.emit(ctx, s, last)
		}
	}
	term.Println("No more messages.")
	return nil
}

// AddToChatLog posts text into the session's current channel.
// Authorization requires administrator, global moderator, or channel
// moderator rights, or voice where the channel demands it. The new
// message threads onto the last-read pointer unless the poster flagged a
// new topic.
func (svc *Service) AddToChatLog(ctx context.Context, s *session.Session, text string, newTopic bool) (*models.Chat, error) {
	user := s.User()
	ch := s.Channel()
	flag := s.ChannelFlag()
	chats := s.Chats()
	if user == nil || ch == nil || flag == nil || chats == nil {
		return nil, ErrNoChannel
	}

	allowed := user.IsAdmin || user.IsGlobalModerator ||
		flag.Flags.Has(models.FlagModerator) ||
		!ch.RequiresVoice || flag.Flags.Has(models.FlagVoice)
	if !allowed {
		return nil, ErrAuthorizationDenied
	}

	var responseTo *int64
	if !newTopic && flag.LastReadID > 0 {
		v := flag.LastReadID
		responseTo = &v
	}

	// Captured before insertion: whether the poster already saw the whole
	// channel. An exhausted reader's pointer rests one past the highest id.
	maxID := chats.Max()
	wasAtEnd := maxID == 0 || s.MsgPointer() >= maxID

	stored, err := svc.chatRepo.Insert(ctx, models.Chat{
		ChannelID:    ch.ID,
		FromUserID:   user.ID,
		ResponseToID: responseTo,
		Message:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("store chat: %w", err)
	}

	chats.Insert(&stored)
	svc.reads.MarkRead(ctx, s, stored.ID, true)
	svc.persistLastRead(ctx, s, stored.ID)

	if wasAtEnd {
		s.SetLastMsgPointer(stored.ID)
		s.SetMsgPointer(stored.ID)
	}

	observability.IncChatsPosted()
	svc.audit.Emit(ctx, "info", fmt.Sprintf("post %d in %s", stored.ID, ch.Name), s.ID().String(), &user.ID)

	svc.bus.Publish(buspkg.ChannelPostMessage{
		SessionID: s.ID(),
		Chat:      &stored,
	})

	return &stored, nil
}

// advancePastRead walks the pointer forward over already-read messages so
// it rests on the first unread one, or on the last message when all are
// read. Bookkeeping only, nothing is displayed.
func (svc *Service) advancePastRead(ctx context.Context, s *session.Session) {
	chats := s.Chats()
	ptr := chats.Resolve(s.MsgPointer(), false)
	if ptr == 0 {
		return
	}
	for svc.reads.HasRead(ctx, s, ptr) {
		next, ok := chats.NextAfter(ptr)
		if !ok {
			break
		}
		ptr = next
	}
	s.SetMsgPointer(ptr)
}

// listPresent prints the users currently in the channel, annotated with
// their presence state.
func (svc *Service) listPresent(s *session.Session, channelID int) {
	term := s.Terminal()
	term.Println("Users here:")
	for _, other := range svc.registry.InChannel(channelID) {
		u := other.User()
		if u == nil {
			continue
		}
		status := ""
		if afk, reason := other.Afk(); afk {
			status = " (AFK)"
			if reason != "" {
				status = fmt.Sprintf(" (AFK: %s)", reason)
			}
		} else if other.DoNotDisturb() {
			status = " (DND)"
		} else if other.Idle() {
			status = " (IDLE)"
		}
		term.Println("  " + u.Name + status)
	}
}

// persistLastRead records id as the user's last-read position on their
// channel flag, writing through only when the value changed.
func (svc *Service) persistLastRead(ctx context.Context, s *session.Session, id int64) {
	flag := s.ChannelFlag()
	if flag == nil || flag.LastReadID == id {
		return
	}
	flag.LastReadID = id
	stored, err := svc.flagRepo.InsertOrUpdate(ctx, *flag)
	if err != nil {
		svc.log.Warn("persist last-read failed",
			zap.Int("user_id", flag.UserID),
			zap.Int("channel_id", flag.ChannelID),
			zap.Error(err))
		return
	}
	flag.ID = stored.ID
}

// emit renders a chat through the session's header format.
func (svc *Service) emit(ctx context.Context, s *session.Session, chat *models.Chat) {
	format := defaultHeaderFormat
	if v, ok := s.Item(session.ItemChatHeaderFormat); ok {
		if f, ok := v.(string); ok && f != "" {
			format = f
		}
	}
	header := strings.NewReplacer(
		"{id}", fmt.Sprintf("%d", chat.ID),
		"{user}", svc.userName(ctx, chat.FromUserID),
		"{time}", chat.CreatedAt.UTC().Format("2006-01-02 15:04"),
	).Replace(format)

	term := s.Terminal()
	term.Println(header)
	if chat.ResponseToID != nil {
		term.Printf("  (re: %d)\r\n", *chat.ResponseToID)
	}
	term.Println(chat.Message)
}

func (svc *Service) userName(ctx context.Context, userID int) string {
	svc.nameMu.RLock()
	name, ok := svc.nameCache[userID]
	svc.nameMu.RUnlock()
	if ok {
		return name
	}

	u, err := svc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("user#%d", userID)
	}
	svc.nameMu.Lock()
	svc.nameCache[userID] = u.Name
	svc.nameMu.Unlock()
	return u.Name
}
