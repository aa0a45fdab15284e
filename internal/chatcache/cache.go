package chatcache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/repositories"
)

// Cache hands out one shared ChannelChats per channel. The first request
// for a channel loads its full message set from storage; every later
// request returns the same instance, so all sessions viewing the channel
// observe insertions immediately. Entries live for the process lifetime.
type Cache struct {
	mu       sync.Mutex
	channels map[int]*ChannelChats
	repo     repositories.ChatRepository
	log      *zap.Logger
}

// New builds an empty cache over the chat repository.
func New(repo repositories.ChatRepository, log *zap.Logger) *Cache {
	return &Cache{
		channels: make(map[int]*ChannelChats),
		repo:     repo,
		log:      log,
	}
}

// ChannelChats returns the shared collection for the channel, loading it
// on first use.
func (c *Cache) ChannelChats(ctx context.Context, channelID int) (*ChannelChats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if chats, ok := c.channels[channelID]; ok {
		return chats, nil
	}

	records, err := c.repo.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("load channel %d chats: %w", channelID, err)
	}

	chats := newChannelChats(records)
	c.channels[channelID] = chats
	c.log.Debug("channel chat cache loaded",
		zap.Int("channel_id", channelID),
		zap.Int("count", chats.Len()))
	return chats, nil
}

// ChannelChats is the ordered, id-keyed message collection for one
// channel. It is mutated by posting sessions while others iterate, so
// every accessor takes the lock and ordered reads work on copies.
type ChannelChats struct {
	mu   sync.RWMutex
	byID map[int64]*models.Chat
	ids  []int64 // ascending
}

func newChannelChats(records []models.Chat) *ChannelChats {
	c := &ChannelChats{byID: make(map[int64]*models.Chat, len(records))}
	for i := range records {
		chat := records[i]
		c.byID[chat.ID] = &chat
		c.ids = append(c.ids, chat.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c
}

// Insert places a stored chat into the collection. The first writer wins:
// if another session already placed the same id, the existing entry stays
// and Insert reports false.
func (c *ChannelChats) Insert(chat *models.Chat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[chat.ID]; ok {
		return false
	}
	c.byID[chat.ID] = chat

	i := sort.Search(len(c.ids), func(i int) bool { return c.ids[i] >= chat.ID })
	c.ids = append(c.ids, 0)
	copy(c.ids[i+1:], c.ids[i:])
	c.ids[i] = chat.ID
	return true
}

// Get looks up a chat by id.
func (c *ChannelChats) Get(id int64) (*models.Chat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chat, ok := c.byID[id]
	return chat, ok
}

// IDs returns a copy of the id sequence in ascending order.
func (c *ChannelChats) IDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len reports the number of cached chats.
func (c *ChannelChats) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Max returns the highest id, or 0 when the channel is empty.
func (c *ChannelChats) Max() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.ids) == 0 {
		return 0
	}
	return c.ids[len(c.ids)-1]
}

// NextAfter returns the smallest id greater than id.
func (c *ChannelChats) NextAfter(id int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := sort.Search(len(c.ids), func(i int) bool { return c.ids[i] > id })
	if i == len(c.ids) {
		return 0, false
	}
	return c.ids[i], true
}

// Resolve maps a requested pointer value onto an existing id. Forward
// resolution picks the smallest id >= v, wrapping to the first id when
// none qualifies; reverse picks the largest id <= v, wrapping to the last.
// An empty channel resolves to 0.
func (c *ChannelChats) Resolve(v int64, reverse bool) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.ids) == 0 {
		return 0
	}
	if reverse {
		i := sort.Search(len(c.ids), func(i int) bool { return c.ids[i] > v })
		if i == 0 {
			return c.ids[len(c.ids)-1]
		}
		return c.ids[i-1]
	}
	i := sort.Search(len(c.ids), func(i int) bool { return c.ids[i] >= v })
	if i == len(c.ids) {
		return c.ids[0]
	}
	return c.ids[i]
}
