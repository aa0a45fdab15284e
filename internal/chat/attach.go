package chat

import (
	"fmt"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/session"
)

// Attach registers the session's bus subscribers. Each subscriber filters
// against the session's own live state, so channel switches take effect
// without resubscribing; disposal removes all of them.
func (svc *Service) Attach(s *session.Session) {
	term := s.Terminal()

	inChannel := func(channelID int) bool {
		ch := s.Channel()
		return ch != nil && ch.ID == channelID
	}

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindChannel,
		Filter: func(m buspkg.Message) bool {
			msg := m.(buspkg.ChannelMessage)
			if !inChannel(msg.ChannelID) {
				return false
			}
			if msg.ExcludeDND && s.DoNotDisturb() {
				return false
			}
			if msg.ModeratorsOnly {
				u := s.User()
				flag := s.ChannelFlag()
				isMod := (u != nil && (u.IsAdmin || u.IsGlobalModerator)) ||
					(flag != nil && flag.Flags.Has(models.FlagModerator))
				if !isMod {
					return false
				}
			}
			return true
		},
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.ChannelMessage)
			s.Notify(func() {
				term.Println(msg.Text)
				_ = term.Flush()
			})
		},
	})

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindGlobal,
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.GlobalMessage)
			s.Notify(func() {
				term.Println(msg.Text)
				_ = term.Flush()
			})
		},
	})

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindUser,
		Filter: func(m buspkg.Message) bool {
			msg := m.(buspkg.UserMessage)
			u := s.User()
			return u != nil && u.ID == msg.TargetUserID
		},
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.UserMessage)
			if msg.Notify != nil {
				s.Notify(msg.Notify)
				return
			}
			s.Notify(func() {
				term.Println(msg.Text)
				_ = term.Flush()
			})
		},
	})

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindEmote,
		Filter: func(m buspkg.Message) bool {
			return inChannel(m.(buspkg.EmoteMessage).ChannelID)
		},
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.EmoteMessage)
			s.Notify(func() {
				term.Println("* " + msg.Text)
				_ = term.Flush()
			})
		},
	})

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindChannelPost,
		Filter: func(m buspkg.Message) bool {
			msg := m.(buspkg.ChannelPostMessage)
			return msg.Chat != nil && inChannel(msg.Chat.ChannelID)
		},
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.ChannelPostMessage)
			s.Notify(func() {
				term.Printf("New message %d from %s.\r\n",
					msg.Chat.ID, svc.cachedUserName(msg.Chat.FromUserID))
				_ = term.Flush()
			})
		},
	})

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindUserLoginOrOut,
		Filter: func(m buspkg.Message) bool {
			mode, ok := s.Item(session.ItemNotificationMode)
			return !ok || mode != "none"
		},
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.UserLoginOrOutMessage)
			verb := "logged out"
			if msg.LoggedIn {
				verb = "logged in"
			}
			s.Notify(func() {
				term.Println(fmt.Sprintf("%s %s.", msg.UserName, verb))
				_ = term.Flush()
			})
		},
	})

	s.Subscribe(&buspkg.Subscriber{
		Kind: buspkg.KindNewUserRegistered,
		Receive: func(m buspkg.Message) {
			msg := m.(buspkg.NewUserRegisteredMessage)
			s.Notify(func() {
				term.Println(fmt.Sprintf("Welcome new user %s!", msg.UserName))
				_ = term.Flush()
			})
		},
	})
}

// cachedUserName resolves from the in-memory name cache only; bus fan-out
// must not block on storage.
func (svc *Service) cachedUserName(userID int) string {
	svc.nameMu.RLock()
	defer svc.nameMu.RUnlock()
	if name, ok := svc.nameCache[userID]; ok {
		return name
	}
	return fmt.Sprintf("user#%d", userID)
}
