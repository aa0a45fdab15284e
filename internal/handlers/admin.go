package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Divarin/Community-sub002/internal/registry"
	"github.com/Divarin/Community-sub002/internal/repositories"
)

// AdminHandler exposes read-only operator endpoints.
type AdminHandler struct {
	registry    *registry.Registry
	channelRepo repositories.ChannelRepository
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(reg *registry.Registry, channelRepo repositories.ChannelRepository) *AdminHandler {
	return &AdminHandler{registry: reg, channelRepo: channelRepo}
}

// ListSessions returns the live session set.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	type sessionResponse struct {
		ID       string `json:"id"`
		UserName string `json:"user_name,omitempty"`
		Channel  string `json:"channel,omitempty"`
		Host     string `json:"host"`
		IdleSecs int64  `json:"idle_seconds"`
		DND      bool   `json:"dnd"`
	}

	sessions := h.registry.List()
	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp := sessionResponse{
			ID:       s.ID().String(),
			Host:     s.RemoteHost(),
			IdleSecs: int64(s.IdleFor() / time.Second),
			DND:      s.DoNotDisturb(),
		}
		if u := s.User(); u != nil {
			resp.UserName = u.Name
		}
		if ch := s.Channel(); ch != nil {
			resp.Channel = ch.Name
		}
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, gin.H{"sessions": responses})
}

// ListChannels returns every channel.
func (h *AdminHandler) ListChannels(c *gin.Context) {
	channels, err := h.channelRepo.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load channels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}
