package server

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/chat"
	"github.com/Divarin/Community-sub002/internal/chatcache"
	"github.com/Divarin/Community-sub002/internal/config"
	"github.com/Divarin/Community-sub002/internal/mocks"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/reads"
	"github.com/Divarin/Community-sub002/internal/registry"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/session"
	"github.com/Divarin/Community-sub002/internal/terminal"
	"github.com/Divarin/Community-sub002/internal/voice"
)

// scriptConn feeds a scripted byte stream and collects output under a
// lock, since session goroutines flush concurrently.
type scriptConn struct {
	r io.Reader

	mu  sync.Mutex
	out bytes.Buffer
}

func newScriptConn(input string) *scriptConn {
	return &scriptConn{r: strings.NewReader(input)}
}

func (c *scriptConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *scriptConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *scriptConn) Close() error       { return nil }
func (c *scriptConn) RemoteHost() string { return "10.0.0.1" }
func (c *scriptConn) Healthy() bool      { return true }

func (c *scriptConn) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

type serverFixture struct {
	chatRepo    *mocks.ChatRepositoryMock
	channelRepo *mocks.ChannelRepositoryMock
	flagRepo    *mocks.UserChannelFlagRepositoryMock
	userRepo    *mocks.UserRepositoryMock
	metaRepo    *mocks.MetadataRepositoryMock
	notifRepo   *mocks.NotificationRepositoryMock
	logRepo     *mocks.LogRepositoryMock
	registry    *registry.Registry
	srv         *Server
}

func newServerFixture() *serverFixture {
	f := &serverFixture{
		chatRepo:    new(mocks.ChatRepositoryMock),
		channelRepo: new(mocks.ChannelRepositoryMock),
		flagRepo:    new(mocks.UserChannelFlagRepositoryMock),
		userRepo:    new(mocks.UserRepositoryMock),
		metaRepo:    new(mocks.MetadataRepositoryMock),
		notifRepo:   new(mocks.NotificationRepositoryMock),
		logRepo:     new(mocks.LogRepositoryMock),
		registry:    registry.New(registry.Limits{}),
	}

	cfg := &config.Config{
		LoginTimeout:       time.Minute,
		IdleTimeout:        time.Hour,
		AfkAfter:           time.Hour,
		LivenessInterval:   time.Millisecond,
		VoiceQueueDuration: time.Minute,
		VoiceSweepInterval: time.Minute,
		MaxChannelNameLen:  25,
	}

	log := zap.NewNop()
	b := buspkg.New(log)
	cache := chatcache.New(f.chatRepo, log)
	tracker := reads.NewTracker(f.registry, f.metaRepo, reads.GzipCompressor{}, log)
	voiceMgr := voice.NewManager(b, f.flagRepo, f.notifRepo, cfg.VoiceQueueDuration, cfg.VoiceSweepInterval, log)
	chatSvc := chat.NewService(chat.Options{MaxChannelNameLen: 25, AllowChannelCreation: true},
		cache, f.chatRepo, f.channelRepo, f.flagRepo, f.userRepo, tracker, b, f.registry, nil, log)

	f.srv = New(cfg, b, f.registry, chatSvc, voiceMgr, tracker,
		f.userRepo, f.notifRepo, f.metaRepo, f.logRepo, nil, log)
	return f
}

// expectLoginFlow wires the mocks that a successful login and initial
// channel join walk through.
func (f *serverFixture) expectLoginFlow(user models.User) {
	f.userRepo.On("GetByName", mock.Anything, user.Name).Return(user, nil).Once()
	f.userRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	f.metaRepo.On("GetByUserAndType", mock.Anything, user.ID, mock.Anything).
		Return(([]models.Metadata)(nil), nil)
	f.notifRepo.On("GetUnseenByUser", mock.Anything, user.ID).
		Return(([]models.Notification)(nil), nil).Once()
	f.channelRepo.On("GetByName", mock.Anything, "general").
		Return(models.Channel{ID: 1, Name: "general"}, nil).Once()
	f.flagRepo.On("GetByUserChannel", mock.Anything, user.ID, 1).
		Return(models.UserChannelFlag{}, repositories.ErrFlagNotFound).Once()
	f.chatRepo.On("GetByChannel", mock.Anything, 1).Return(([]models.Chat)(nil), nil).Once()
	f.logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()
	// teardown persists the read snapshot
	f.metaRepo.On("DeleteByUserAndType", mock.Anything, user.ID, models.MetaReadMessages).Return(nil)
	f.metaRepo.On("Insert", mock.Anything, mock.Anything).Return(models.Metadata{ID: 1}, nil)
}

// newParkedSession registers an already-authenticated session directly,
// bypassing the login flow.
func newParkedSession(t *testing.T, f *serverFixture, conn *scriptConn, user models.User) *session.Session {
	t.Helper()
	sess := session.New(conn, terminal.NewANSI(conn), buspkg.New(zap.NewNop()),
		session.Limits{}, zap.NewNop())
	sess.SetUser(&user)
	require.NoError(t, f.registry.Add(sess))
	sess.OnDispose(func() { f.registry.Remove(sess) })
	return sess
}

func TestHandleConnFullSession(t *testing.T) {
	f := newServerFixture()
	user := models.User{ID: 1, Name: "alice"}
	f.expectLoginFlow(user)

	stored := models.Chat{ID: 5, ChannelID: 1, FromUserID: 1, Message: "hello everyone"}
	f.chatRepo.On("Insert", mock.Anything, mock.MatchedBy(func(c models.Chat) bool {
		return c.Message == "hello everyone" && c.ChannelID == 1
	})).Return(stored, nil).Once()
	f.flagRepo.On("InsertOrUpdate", mock.Anything, mock.Anything).
		Return(models.UserChannelFlag{ID: 2}, nil)

	conn := newScriptConn("alice\r\n\r\nhello everyone\r\n")
	f.srv.HandleConn(context.Background(), conn)

	out := conn.Output()
	assert.Contains(t, out, "Welcome to Community.")
	assert.Contains(t, out, "login: ")
	assert.Contains(t, out, "Users here:")
	assert.Contains(t, out, "No more messages.")

	assert.Equal(t, 0, f.registry.Len(), "teardown must remove the session")
	f.chatRepo.AssertExpectations(t)
	f.userRepo.AssertExpectations(t)
	f.logRepo.AssertExpectations(t)
}

func TestHandleConnUnknownUserRetries(t *testing.T) {
	f := newServerFixture()
	f.userRepo.On("GetByName", mock.Anything, "ghost").
		Return(models.User{}, repositories.ErrUserNotFound).Times(3)
	f.logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

	conn := newScriptConn("ghost\r\nghost\r\nghost\r\n")
	f.srv.HandleConn(context.Background(), conn)

	out := conn.Output()
	assert.Contains(t, out, "No such user.")
	assert.Equal(t, 0, f.registry.Len())
	f.userRepo.AssertExpectations(t)
}

func TestHandleConnRejectsWhenFull(t *testing.T) {
	f := newServerFixture()
	limited := registry.New(registry.Limits{MaxTotal: 1})
	f.srv.registry = limited
	f.registry = limited
	f.logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	// the first connection parks at the login prompt and holds the slot
	pr, pw := io.Pipe()
	blockerConn := &scriptConn{r: pr}
	blockerDone := make(chan struct{})
	go func() {
		f.srv.HandleConn(context.Background(), blockerConn)
		close(blockerDone)
	}()
	require.Eventually(t, func() bool { return limited.Len() == 1 }, time.Second, time.Millisecond)

	rejected := newScriptConn("")
	f.srv.HandleConn(context.Background(), rejected)
	assert.Contains(t, rejected.Output(), "The system is full.")
	assert.Equal(t, 1, limited.Len())

	require.NoError(t, pw.Close())
	<-blockerDone
	assert.Equal(t, 0, limited.Len())
}

func TestLoginTooManySessionsForUser(t *testing.T) {
	f := newServerFixture()
	limited := registry.New(registry.Limits{MaxPerUser: 1})
	f.srv.registry = limited
	f.registry = limited

	user := models.User{ID: 1, Name: "alice"}
	f.userRepo.On("GetByName", mock.Anything, "alice").Return(user, nil).Once()
	f.logRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

	sibling := newScriptConn("")
	sess := newParkedSession(t, f, sibling, user)
	defer sess.Dispose()

	conn := newScriptConn("alice\r\n")
	f.srv.HandleConn(context.Background(), conn)

	assert.Contains(t, conn.Output(), "Too many active logins for this account.")
	assert.Equal(t, 1, limited.Len())
	f.userRepo.AssertExpectations(t)
	f.logRepo.AssertExpectations(t)
}
