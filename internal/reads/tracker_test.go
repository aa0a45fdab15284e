package reads

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/mocks"
	"github.com/Divarin/Community-sub002/internal/models"
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

type fakeSiblings struct {
	sessions []*session.Session
}

func (f *fakeSiblings) ForUser(userID int) []*session.Session {
	var out []*session.Session
	for _, s := range f.sessions {
		if u := s.User(); u != nil && u.ID == userID {
			out = append(out, s)
		}
	}
	return out
}

func newTestSession(user *models.User) *session.Session {
	conn := fakeConn{Reader: strings.NewReader(""), Writer: &bytes.Buffer{}}
	limits := session.Limits{LoginTimeout: time.Minute, IdleTimeout: time.Hour, AfkAfter: time.Hour}
	s := session.New(conn, terminal.NewANSI(conn), buspkg.New(zap.NewNop()), limits, zap.NewNop())
	if user != nil {
		s.SetUser(user)
	}
	return s
}

func snapshotData(t *testing.T, ids []int64) []byte {
	t.Helper()
	raw, err := json.Marshal(ids)
	require.NoError(t, err)
	packed, err := GzipCompressor{}.Compress(raw)
	require.NoError(t, err)
	return packed
}

func TestMarkReadAndHasRead(t *testing.T) {
	metaRepo := new(mocks.MetadataRepositoryMock)
	metaRepo.On("GetByUserAndType", mock.Anything, 1, models.MetaReadMessages).
		Return(([]models.Metadata)(nil), nil).Once()

	tr := NewTracker(&fakeSiblings{}, metaRepo, GzipCompressor{}, zap.NewNop())
	s := newTestSession(&models.User{ID: 1, Name: "alice"})
	ctx := context.Background()

	assert.False(t, tr.HasRead(ctx, s, 10))

	tr.MarkRead(ctx, s, 10, true)
	tr.MarkRead(ctx, s, 10, true)
	assert.True(t, tr.HasRead(ctx, s, 10))
	assert.Equal(t, []int64{10}, tr.ReadIds(ctx, s))

	tr.MarkRead(ctx, s, 10, false)
	assert.False(t, tr.HasRead(ctx, s, 10))
	assert.Empty(t, tr.ReadIds(ctx, s))

	metaRepo.AssertExpectations(t)
}

func TestSiblingSessionsShareOneSet(t *testing.T) {
	metaRepo := new(mocks.MetadataRepositoryMock)
	metaRepo.On("GetByUserAndType", mock.Anything, 1, models.MetaReadMessages).
		Return(([]models.Metadata)(nil), nil).Once()

	sibs := &fakeSiblings{}
	tr := NewTracker(sibs, metaRepo, GzipCompressor{}, zap.NewNop())
	ctx := context.Background()

	user := &models.User{ID: 1, Name: "alice"}
	first := newTestSession(user)
	second := newTestSession(user)
	sibs.sessions = []*session.Session{first, second}

	tr.MarkRead(ctx, first, 42, true)
	assert.True(t, tr.HasRead(ctx, second, 42), "second session must see the first session's live set")

	// the mark flows the other way too
	tr.MarkRead(ctx, second, 43, true)
	assert.True(t, tr.HasRead(ctx, first, 43))

	metaRepo.AssertExpectations(t)
}

func TestSnapshotRoundTrip(t *testing.T) {
	user := &models.User{ID: 2, Name: "bob"}
	ctx := context.Background()

	metaRepo := new(mocks.MetadataRepositoryMock)
	metaRepo.On("GetByUserAndType", mock.Anything, 2, models.MetaReadMessages).
		Return(([]models.Metadata)(nil), nil).Once()
	metaRepo.On("DeleteByUserAndType", mock.Anything, 2, models.MetaReadMessages).
		Return(nil).Once()

	var saved []byte
	metaRepo.On("Insert", mock.Anything, mock.MatchedBy(func(md models.Metadata) bool {
		saved = md.Data
		return md.UserID == 2 && md.Type == models.MetaReadMessages
	})).Return(models.Metadata{ID: 1}, nil).Once()

	tr := NewTracker(&fakeSiblings{}, metaRepo, GzipCompressor{}, zap.NewNop())
	s := newTestSession(user)
	tr.MarkRead(ctx, s, 5, true)
	tr.MarkRead(ctx, s, 9, true)
	require.NoError(t, tr.SaveReads(ctx, s))
	require.NotNil(t, saved)

	// a later session restores the same ids from the snapshot
	restoreRepo := new(mocks.MetadataRepositoryMock)
	restoreRepo.On("GetByUserAndType", mock.Anything, 2, models.MetaReadMessages).
		Return([]models.Metadata{{ID: 1, UserID: 2, Type: models.MetaReadMessages, Data: saved}}, nil).Once()

	tr2 := NewTracker(&fakeSiblings{}, restoreRepo, GzipCompressor{}, zap.NewNop())
	s2 := newTestSession(user)
	assert.Equal(t, []int64{5, 9}, tr2.ReadIds(ctx, s2))

	metaRepo.AssertExpectations(t)
	restoreRepo.AssertExpectations(t)
}

func TestDuplicateSnapshotRowsPruned(t *testing.T) {
	ctx := context.Background()

	metaRepo := new(mocks.MetadataRepositoryMock)
	metaRepo.On("GetByUserAndType", mock.Anything, 3, models.MetaReadMessages).
		Return([]models.Metadata{
			{ID: 12, UserID: 3, Type: models.MetaReadMessages, Data: snapshotData(t, []int64{7})},
			{ID: 11, UserID: 3, Type: models.MetaReadMessages, Data: snapshotData(t, []int64{1})},
			{ID: 10, UserID: 3, Type: models.MetaReadMessages, Data: snapshotData(t, []int64{2})},
		}, nil).Once()
	metaRepo.On("Delete", mock.Anything, int64(11)).Return(nil).Once()
	metaRepo.On("Delete", mock.Anything, int64(10)).Return(nil).Once()

	tr := NewTracker(&fakeSiblings{}, metaRepo, GzipCompressor{}, zap.NewNop())
	s := newTestSession(&models.User{ID: 3, Name: "carol"})

	// the newest row wins, the stale rows are deleted
	assert.Equal(t, []int64{7}, tr.ReadIds(ctx, s))
	metaRepo.AssertExpectations(t)
}

func TestUnauthenticatedSessionGetsEmptySet(t *testing.T) {
	tr := NewTracker(&fakeSiblings{}, new(mocks.MetadataRepositoryMock), GzipCompressor{}, zap.NewNop())
	s := newTestSession(nil)
	ctx := context.Background()

	assert.Empty(t, tr.ReadIds(ctx, s))
	require.NoError(t, tr.SaveReads(ctx, s), "saving without a user is a no-op")
}

func TestSetOperations(t *testing.T) {
	set := NewSet(3, 1, 2)
	assert.Equal(t, []int64{1, 2, 3}, set.IDs())
	assert.Equal(t, 3, set.Len())

	set.Add(2)
	assert.Equal(t, 3, set.Len())

	set.Remove(2)
	assert.False(t, set.Has(2))
	set.Remove(2)
	assert.Equal(t, []int64{1, 3}, set.IDs())
}

func TestGzipCompressorRoundTrip(t *testing.T) {
	payload := []byte(`[1,2,3,4,5]`)
	packed, err := GzipCompressor{}.Compress(payload)
	require.NoError(t, err)

	out, err := GzipCompressor{}.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}
