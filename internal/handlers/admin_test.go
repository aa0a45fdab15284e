package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/mocks"
	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/registry"
	"github.com/Divarin/Community-sub002/internal/session"
	"github.com/Divarin/Community-sub002/internal/terminal"
)

type fakeConn struct {
	io.Reader
	io.Writer
}

func (fakeConn) Close() error       { return nil }
func (fakeConn) RemoteHost() string { return "10.0.0.1" }
func (fakeConn) Healthy() bool      { return true }

func setupAdminRouter(handler *AdminHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/sessions", handler.ListSessions)
	r.GET("/admin/channels", handler.ListChannels)
	return r
}

func TestListSessions(t *testing.T) {
	reg := registry.New(registry.Limits{})

	conn := fakeConn{Reader: strings.NewReader(""), Writer: &bytes.Buffer{}}
	limits := session.Limits{LoginTimeout: time.Minute, IdleTimeout: time.Hour, AfkAfter: time.Hour}
	s := session.New(conn, terminal.NewANSI(conn), buspkg.New(zap.NewNop()), limits, zap.NewNop())
	s.SetUser(&models.User{ID: 1, Name: "alice"})
	s.SetChannel(&models.Channel{ID: 3, Name: "general"}, nil, nil, 0)
	require.NoError(t, reg.Add(s))

	handler := NewAdminHandler(reg, new(mocks.ChannelRepositoryMock))
	router := setupAdminRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sessions []struct {
			ID       string `json:"id"`
			UserName string `json:"user_name"`
			Channel  string `json:"channel"`
			Host     string `json:"host"`
		} `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, s.ID().String(), resp.Sessions[0].ID)
	assert.Equal(t, "alice", resp.Sessions[0].UserName)
	assert.Equal(t, "general", resp.Sessions[0].Channel)
	assert.Equal(t, "10.0.0.1", resp.Sessions[0].Host)
}

func TestListChannelsSuccess(t *testing.T) {
	channelRepo := new(mocks.ChannelRepositoryMock)
	channelRepo.On("GetAll", mock.Anything).
		Return([]models.Channel{{ID: 1, Name: "general"}}, nil).Once()

	handler := NewAdminHandler(registry.New(registry.Limits{}), channelRepo)
	router := setupAdminRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/admin/channels", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	channelRepo.AssertExpectations(t)
}

func TestListChannelsRepoError(t *testing.T) {
	channelRepo := new(mocks.ChannelRepositoryMock)
	channelRepo.On("GetAll", mock.Anything).
		Return(([]models.Channel)(nil), assert.AnError).Once()

	handler := NewAdminHandler(registry.New(registry.Limits{}), channelRepo)
	router := setupAdminRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/admin/channels", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	channelRepo.AssertExpectations(t)
}
