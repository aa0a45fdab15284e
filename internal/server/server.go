package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/chat"
	"github.com/Divarin/Community-sub002/internal/config"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/observability"
	"github.com/Divarin/Community-sub002/internal/reads"
	"github.com/Divarin/Community-sub002/internal/registry"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/session"
	"github.com/Divarin/Community-sub002/internal/telemetry"
	"github.com/Divarin/Community-sub002/internal/terminal"
	"github.com/Divarin/Community-sub002/internal/transport"
	"github.com/Divarin/Community-sub002/internal/voice"
)

const defaultChannel = "general"

// Server owns the terminal listener and the per-connection workers.
type Server struct {
	cfg       *config.Config
	bus       *buspkg.Bus
	registry  *registry.Registry
	chatSvc   *chat.Service
	voice     *voice.Manager
	reads     *reads.Tracker
	userRepo  repositories.UserRepository
	notifRepo repositories.NotificationRepository
	metaRepo  repositories.MetadataRepository
	logRepo   repositories.LogRepository
	audit     *telemetry.AuditEmitter
	log       *zap.Logger
}

// New builds a Server.
func New(
	cfg *config.Config,
	b *buspkg.Bus,
	reg *registry.Registry,
	chatSvc *chat.Service,
	voiceMgr *voice.Manager,
	tracker *reads.Tracker,
	userRepo repositories.UserRepository,
	notifRepo repositories.NotificationRepository,
	metaRepo repositories.MetadataRepository,
	logRepo repositories.LogRepository,
	audit *telemetry.AuditEmitter,
	log *zap.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		bus:       b,
		registry:  reg,
		chatSvc:   chatSvc,
		voice:     voiceMgr,
		reads:     tracker,
		userRepo:  userRepo,
		notifRepo: notifRepo,
		metaRepo:  metaRepo,
		logRepo:   logRepo,
		audit:     audit,
		log:       log,
	}
}

// Listen accepts terminal connections until ctx is done, one goroutine
// per session.
func (srv *Server) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.cfg.ListenAddr, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	srv.log.Info("terminal listener started", zap.String("addr", srv.cfg.ListenAddr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			srv.log.Warn("accept failed", zap.Error(err))
			continue
		}
		go srv.HandleConn(ctx, transport.NewTCP(conn))
	}
}

// HandleConn runs one session from admission to teardown. Websocket
// connections arrive here too, wrapped by transport.NewWS.
func (srv *Server) HandleConn(ctx context.Context, conn transport.Conn) {
	term := terminal.NewANSI(conn)
	sess := session.New(conn, term, srv.bus, session.Limits{
		LoginTimeout: srv.cfg.LoginTimeout,
		IdleTimeout:  srv.cfg.IdleTimeout,
		AfkAfter:     srv.cfg.AfkAfter,
	}, srv.log)

	if err := srv.registry.Add(sess); err != nil {
		var capErr *registry.CapacityError
		if errors.As(err, &capErr) {
			term.Println("The system is full. Try again later.")
			_ = term.Flush()
		}
		_ = conn.Close()
		return
	}
	sess.OnDispose(func() {
		srv.registry.Remove(sess)
	})

	reasonCh := make(chan session.TerminationReason, 1)
	go func() {
		reasonCh <- sess.RunLiveness(srv.cfg.LivenessInterval)
	}()

	go srv.runSession(ctx, sess)

	reason := <-reasonCh
	srv.teardown(ctx, sess, reason)
}

func (srv *Server) runSession(ctx context.Context, sess *session.Session) {
	term := sess.Terminal()
	term.Println("Welcome to Community.")

	sess.BeginAuth()
	user, err := srv.login(ctx, sess)
	if err != nil {
		sess.ForceLogout(err.Error())
		return
	}

	srv.chatSvc.Attach(sess)
	if srv.cfg.HeartbeatInterval > 0 {
		sess.SetHeartbeat(srv.cfg.HeartbeatInterval, session.HeartbeatInvisible)
	}

	srv.bus.Publish(buspkg.UserLoginOrOutMessage{
		SessionID: sess.ID(),
		UserID:    user.ID,
		UserName:  user.Name,
		LoggedIn:  true,
	})
	srv.audit.Emit(ctx, "info", fmt.Sprintf("%s logged in", user.Name), sess.ID().String(), &user.ID)

	srv.loadPreferences(ctx, sess, user.ID)
	srv.deliverNotifications(ctx, sess, user.ID)

	if _, err := srv.chatSvc.SwitchOrMakeChannel(ctx, sess, defaultChannel, chat.SwitchOpts{FirstJoin: true}); err != nil {
		srv.log.Warn("initial channel join failed", zap.Error(err))
	}

	srv.repl(ctx, sess)
}

// login prompts for an account name. Password verification is the
// responsibility of an outer collaborator; the core only binds identity.
func (srv *Server) login(ctx context.Context, sess *session.Session) (*models.User, error) {
	term := sess.Terminal()
	for attempts := 0; attempts < 3; attempts++ {
		term.Print("login: ")
		name, err := term.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("transport closed during login")
		}
		sess.MarkActivity()
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		user, err := srv.userRepo.GetByName(ctx, name)
		if errors.Is(err, repositories.ErrUserNotFound) {
			term.Println("No such user.")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("user lookup failed")
		}

		if err := srv.registry.AuthorizeUser(sess, user.ID); err != nil {
			term.Println("Too many active logins for this account.")
			return nil, err
		}

		user.LastLoginAt = time.Now().UTC()
		_ = srv.userRepo.Update(ctx, user)
		sess.SetUser(&user)
		return &user, nil
	}
	return nil, fmt.Errorf("too many failed login attempts")
}

// loadPreferences restores the user's stored display preferences into the
// session's transient store.
func (srv *Server) loadPreferences(ctx context.Context, sess *session.Session, userID int) {
	prefs := []struct {
		metaType models.MetadataType
		item     string
	}{
		{models.MetaChatHeaderFormat, session.ItemChatHeaderFormat},
		{models.MetaNotificationMode, session.ItemNotificationMode},
	}
	for _, p := range prefs {
		rows, err := srv.metaRepo.GetByUserAndType(ctx, userID, p.metaType)
		if err != nil {
			srv.log.Warn("preference lookup failed",
				zap.String("type", string(p.metaType)), zap.Error(err))
			continue
		}
		if len(rows) > 0 {
			sess.SetItem(p.item, string(rows[0].Data))
		}
	}
}

// savePreference replaces the stored value for one preference type.
func (srv *Server) savePreference(ctx context.Context, userID int, metaType models.MetadataType, value string) error {
	if err := srv.metaRepo.DeleteByUserAndType(ctx, userID, metaType); err != nil {
		return err
	}
	_, err := srv.metaRepo.Insert(ctx, models.Metadata{
		UserID: userID,
		Type:   metaType,
		Data:   []byte(value),
	})
	return err
}

func (srv *Server) deliverNotifications(ctx context.Context, sess *session.Session, userID int) {
	pending, err := srv.notifRepo.GetUnseenByUser(ctx, userID)
	if err != nil {
		srv.log.Warn("notification lookup failed", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}
	term := sess.Terminal()
	term.Printf("You have %d notifications:\r\n", len(pending))
	for _, n := range pending {
		term.Println("  " + n.Message)
	}
	_ = srv.notifRepo.MarkSeen(ctx, userID)
}

// repl is the per-session command loop. Anything that is not a command
// posts into the current channel.
func (srv *Server) repl(ctx context.Context, sess *session.Session) {
	term := sess.Terminal()
	for {
		if sess.Disposed() {
			return
		}
		if forced, _ := sess.ForcedReason(); forced {
			return
		}

		term.Print("> ")
		line, err := term.ReadLine()
		if err != nil {
			sess.ForceLogout("transport failure")
			return
		}
		sess.MarkActivity()
		line = strings.TrimSpace(line)
		if line == "" {
			if err := srv.chatSvc.ShowNextMessage(ctx, sess); err != nil {
				term.Println(err.Error())
			}
			_ = term.Flush()
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := srv.command(ctx, sess, line); quit {
				sess.ForceLogout("logged off")
				return
			}
			_ = term.Flush()
			continue
		}

		if _, err := srv.chatSvc.AddToChatLog(ctx, sess, line, false); err != nil {
			term.Println(err.Error())
		}
		_ = term.Flush()
	}
}

func (srv *Server) command(ctx context.Context, sess *session.Session, line string) (quit bool) {
	term := sess.Terminal()
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/quit", "/off":
		return true
	case "/join":
		if _, err := srv.chatSvc.SwitchOrMakeChannel(ctx, sess, arg, chat.SwitchOpts{}); err != nil {
			term.Println(err.Error())
		}
	case "/goto":
		if v, err := strconv.ParseInt(arg, 10, 64); err == nil {
			if _, perr := srv.chatSvc.SetMessagePointer(ctx, sess, v); perr != nil {
				term.Println(perr.Error())
			}
		} else {
			term.Println("usage: /goto <message id>")
		}
	case "/rev":
		sess.SetReverse(!sess.Reverse())
	case "/topic":
		text := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if _, err := srv.chatSvc.AddToChatLog(ctx, sess, text, true); err != nil {
			term.Println(err.Error())
		}
	case "/dnd":
		sess.SetDoNotDisturb(!sess.DoNotDisturb())
	case "/afk":
		sess.SetAfk(strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "/voice":
		if ch := sess.Channel(); ch != nil {
			if err := srv.voice.RequestVoice(ctx, sess, ch.ID); err != nil {
				term.Println(err.Error())
			}
		} else {
			term.Println("join a channel first")
		}
	case "/header":
		format := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if format == "" {
			term.Println("usage: /header <format with {id} {user} {time}>")
			break
		}
		sess.SetItem(session.ItemChatHeaderFormat, format)
		if u := sess.User(); u != nil {
			if err := srv.savePreference(ctx, u.ID, models.MetaChatHeaderFormat, format); err != nil {
				term.Println("could not save header format")
			}
		}
	case "/notify":
		if arg != "all" && arg != "none" {
			term.Println("usage: /notify <all|none>")
			break
		}
		sess.SetItem(session.ItemNotificationMode, arg)
		if u := sess.User(); u != nil {
			if err := srv.savePreference(ctx, u.ID, models.MetaNotificationMode, arg); err != nil {
				term.Println("could not save notification mode")
			}
		}
	case "/save":
		if err := srv.reads.SaveReads(ctx, sess); err != nil {
			term.Println("could not save read positions")
		}
	default:
		term.Println("unknown command")
	}
	return false
}

func (srv *Server) teardown(ctx context.Context, sess *session.Session, reason session.TerminationReason) {
	user := sess.User()

	if user != nil {
		if err := srv.reads.SaveReads(ctx, sess); err != nil {
			srv.log.Warn("save reads on teardown failed", zap.Error(err))
		}
		srv.bus.Publish(buspkg.UserLoginOrOutMessage{
			SessionID: sess.ID(),
			UserID:    user.ID,
			UserName:  user.Name,
			LoggedIn:  false,
		})
	}

	entry := fmt.Sprintf("session ended: %s (%s)", reason.Cause, reason.Detail)
	var userID *int
	if user != nil {
		userID = &user.ID
	}
	if err := srv.logRepo.Insert(ctx, models.LogEntry{
		UserID:    userID,
		SessionID: sess.ID().String(),
		Message:   entry,
	}); err != nil {
		srv.log.Warn("log entry insert failed", zap.Error(err))
	}
	srv.audit.Emit(ctx, "info", entry, sess.ID().String(), userID)
	observability.IncSessionTerminated(reason.Cause.String())

	sess.Dispose()
	srv.log.Info("session torn down",
		zap.String("session_id", sess.ID().String()),
		zap.String("cause", reason.Cause.String()),
		zap.String("detail", reason.Detail))
}
