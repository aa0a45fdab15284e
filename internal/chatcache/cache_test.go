package chatcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Divarin/Community-sub002/internal/mocks"
	"github.com/Divarin/Community-sub002/internal/models"
)

func sparseChats() *ChannelChats {
	return newChannelChats([]models.Chat{
		{ID: 1, ChannelID: 1, Message: "first"},
		{ID: 3, ChannelID: 1, Message: "second"},
		{ID: 7, ChannelID: 1, Message: "third"},
	})
}

func TestResolveForward(t *testing.T) {
	c := sparseChats()

	assert.Equal(t, int64(7), c.Resolve(4, false), "forward resolution picks the smallest id >= v")
	assert.Equal(t, int64(3), c.Resolve(3, false), "exact hit resolves to itself")
	assert.Equal(t, int64(1), c.Resolve(0, false))
	assert.Equal(t, int64(1), c.Resolve(8, false), "past the end wraps to the first id")
}

func TestResolveReverse(t *testing.T) {
	c := sparseChats()

	assert.Equal(t, int64(3), c.Resolve(4, true), "reverse resolution picks the largest id <= v")
	assert.Equal(t, int64(7), c.Resolve(0, true), "before the start wraps to the last id")
	assert.Equal(t, int64(7), c.Resolve(9, true))
}

func TestResolveEmptyChannel(t *testing.T) {
	c := newChannelChats(nil)

	assert.Equal(t, int64(0), c.Resolve(5, false))
	assert.Equal(t, int64(0), c.Resolve(5, true))
}

func TestInsertFirstWriterWins(t *testing.T) {
	c := sparseChats()

	first := &models.Chat{ID: 5, ChannelID: 1, Message: "mine"}
	require.True(t, c.Insert(first))
	assert.False(t, c.Insert(&models.Chat{ID: 5, ChannelID: 1, Message: "yours"}))

	got, ok := c.Get(5)
	require.True(t, ok)
	assert.Equal(t, "mine", got.Message)
	assert.Equal(t, []int64{1, 3, 5, 7}, c.IDs())
}

func TestNextAfter(t *testing.T) {
	c := sparseChats()

	next, ok := c.NextAfter(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), next)

	next, ok = c.NextAfter(4)
	require.True(t, ok)
	assert.Equal(t, int64(7), next)

	_, ok = c.NextAfter(7)
	assert.False(t, ok)
}

func TestMaxAndLen(t *testing.T) {
	c := sparseChats()
	assert.Equal(t, int64(7), c.Max())
	assert.Equal(t, 3, c.Len())

	empty := newChannelChats(nil)
	assert.Equal(t, int64(0), empty.Max())
	assert.Equal(t, 0, empty.Len())
}

func TestCacheSharesChannelInstance(t *testing.T) {
	repo := new(mocks.ChatRepositoryMock)
	repo.On("GetByChannel", mock.Anything, 1).
		Return([]models.Chat{{ID: 1, ChannelID: 1, Message: "hi"}}, nil).Once()

	cache := New(repo, zap.NewNop())

	a, err := cache.ChannelChats(context.Background(), 1)
	require.NoError(t, err)
	b, err := cache.ChannelChats(context.Background(), 1)
	require.NoError(t, err)

	assert.Same(t, a, b, "all sessions must share one collection per channel")

	// an insert through one handle is visible through the other
	require.True(t, a.Insert(&models.Chat{ID: 2, ChannelID: 1, Message: "shared"}))
	_, ok := b.Get(2)
	assert.True(t, ok)

	repo.AssertExpectations(t)
}

func TestCacheLoadError(t *testing.T) {
	repo := new(mocks.ChatRepositoryMock)
	repo.On("GetByChannel", mock.Anything, 9).
		Return(([]models.Chat)(nil), assert.AnError).Once()

	cache := New(repo, zap.NewNop())

	_, err := cache.ChannelChats(context.Background(), 9)
	require.Error(t, err)
	repo.AssertExpectations(t)
}
