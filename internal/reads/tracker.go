package reads

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Divarin/Community-sub002/internal/models"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/session"
)

// Siblings enumerates live sessions; the registry implements it. The
// tracker scans it to find a read-set already resolved by another session
// of the same user.
type Siblings interface {
	ForUser(userID int) []*session.Session
}

// Tracker resolves, mutates, and persists per-user read-sets.
//
// Resolution order: (a) the set cached in this session's transient store;
// (b) a set attached to a live sibling session of the same user, returned
// as the sibling's live reference so users with multiple connections
// share one set; (c) the most recent persisted snapshot,
// pruning duplicate snapshot rows; (d) a fresh empty set.
type Tracker struct {
	siblings Siblings
	metaRepo repositories.MetadataRepository
	comp     Compressor
	log      *zap.Logger
}

// NewTracker builds a Tracker.
func NewTracker(siblings Siblings, metaRepo repositories.MetadataRepository, comp Compressor, log *zap.Logger) *Tracker {
	return &Tracker{
		siblings: siblings,
		metaRepo: metaRepo,
		comp:     comp,
		log:      log,
	}
}

// ReadIds returns a sorted copy of the session's read-set.
func (t *Tracker) ReadIds(ctx context.Context, s *session.Session) []int64 {
	return t.resolve(ctx, s).IDs()
}

// HasRead reports whether chatID is marked read for the session's user.
func (t *Tracker) HasRead(ctx context.Context, s *session.Session, chatID int64) bool {
	return t.resolve(ctx, s).Has(chatID)
}

// MarkRead sets or clears the read mark. Idempotent.
func (t *Tracker) MarkRead(ctx context.Context, s *session.Session, chatID int64, asRead bool) {
	set := t.resolve(ctx, s)
	if asRead {
		set.Add(chatID)
		return
	}
	set.Remove(chatID)
}

// SaveReads persists the session's read-set as a compressed snapshot,
// replacing any earlier snapshots for the user.
func (t *Tracker) SaveReads(ctx context.Context, s *session.Session) error {
	user := s.User()
	if user == nil {
		return nil
	}
	set := t.resolve(ctx, s)

	raw, err := json.Marshal(set.IDs())
	if err != nil {
		return fmt.Errorf("marshal read snapshot: %w", err)
	}
	packed, err := t.comp.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress read snapshot: %w", err)
	}

	if err := t.metaRepo.DeleteByUserAndType(ctx, user.ID, models.MetaReadMessages); err != nil {
		return fmt.Errorf("prune read snapshots: %w", err)
	}
	if _, err := t.metaRepo.Insert(ctx, models.Metadata{
		UserID: user.ID,
		Type:   models.MetaReadMessages,
		Data:   packed,
	}); err != nil {
		return fmt.Errorf("insert read snapshot: %w", err)
	}
	return nil
}

// resolve walks the resolution order. Sets found via a sibling are not
// attached to this session's own store: repeated calls re-scan siblings so
// the freshest shared state always wins. Sets loaded from a snapshot or
// created fresh are attached.
func (t *Tracker) resolve(ctx context.Context, s *session.Session) *Set {
	if v, ok := s.Item(session.ItemReadIDs); ok {
		if set, ok := v.(*Set); ok {
			return set
		}
	}

	user := s.User()
	if user == nil {
		set := NewSet()
		s.SetItem(session.ItemReadIDs, set)
		return set
	}

	for _, sib := range t.siblings.ForUser(user.ID) {
		if sib.ID() == s.ID() {
			continue
		}
		if v, ok := sib.Item(session.ItemReadIDs); ok {
			if set, ok := v.(*Set); ok {
				return set
			}
		}
	}

	if set := t.loadSnapshot(ctx, user.ID); set != nil {
		s.SetItem(session.ItemReadIDs, set)
		return set
	}

	set := NewSet()
	s.SetItem(session.ItemReadIDs, set)
	return set
}

// loadSnapshot reconstructs the set from the most recent persisted
// snapshot, deleting older duplicate rows. Returns nil when no usable
// snapshot exists.
func (t *Tracker) loadSnapshot(ctx context.Context, userID int) *Set {
	rows, err := t.metaRepo.GetByUserAndType(ctx, userID, models.MetaReadMessages)
	if err != nil {
		t.log.Warn("read snapshot lookup failed", zap.Int("user_id", userID), zap.Error(err))
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	for _, stale := range rows[1:] {
		if err := t.metaRepo.Delete(ctx, stale.ID); err != nil {
			t.log.Warn("stale read snapshot delete failed",
				zap.Int64("metadata_id", stale.ID), zap.Error(err))
		}
	}

	raw, err := t.comp.Decompress(rows[0].Data)
	if err != nil {
		t.log.Warn("read snapshot decompress failed", zap.Int("user_id", userID), zap.Error(err))
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		t.log.Warn("read snapshot decode failed", zap.Int("user_id", userID), zap.Error(err))
		return nil
	}
	return NewSet(ids...)
}
