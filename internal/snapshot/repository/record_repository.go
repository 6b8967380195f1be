package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"azsnap/internal/common/cache"
	"azsnap/internal/snapshot/model"
	appErr "azsnap/pkg/errors"
)

const (
	recordKeyPrefix   = "snapshot:record:"
	statusIndexPrefix = "snapshot:status:"
	allIndexKey       = "snapshot:all"
	sweepLockKey      = "snapshot:sweep:lock"

	// defaultTerminalRetention keeps deleted/failed records queryable for a
	// while before they expire out of the hot store. The MySQL archive holds
	// them permanently.
	defaultTerminalRetention = 7 * 24 * time.Hour
)

// RecordRepository stores snapshot records in the cache, indexed by status.
type RecordRepository struct {
	cache             cache.Cache
	terminalRetention time.Duration
}

// NewRecordRepository creates a RecordRepository backed by the given cache.
func NewRecordRepository(c cache.Cache) *RecordRepository {
	return &RecordRepository{cache: c, terminalRetention: defaultTerminalRetention}
}

// NewRecordRepositoryWithRetention overrides how long terminal records stay
// in the hot store. Zero or negative keeps them forever.
func NewRecordRepositoryWithRetention(c cache.Cache, retention time.Duration) *RecordRepository {
	return &RecordRepository{cache: c, terminalRetention: retention}
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

func statusKey(s model.Status) string {
	return statusIndexPrefix + string(s)
}

// Save persists a record and maintains the status indexes.
// For an existing record, prev must be the status currently stored so the
// old index entry can be removed. Pass the record's own status for new records.
func (r *RecordRepository) Save(ctx context.Context, rec *model.SnapshotRecord, prev model.Status) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "marshal snapshot record")
	}

	var ttl time.Duration
	if rec.Status.Terminal() && r.terminalRetention > 0 {
		ttl = r.terminalRetention
	}
	if err := r.cache.Set(ctx, recordKey(rec.SnapshotID), string(data), ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store snapshot record")
	}
	if err := r.cache.SAdd(ctx, allIndexKey, rec.SnapshotID); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "index snapshot record")
	}
	if prev != rec.Status {
		if err := r.cache.SRem(ctx, statusKey(prev), rec.SnapshotID); err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "remove old status index")
		}
	}
	if err := r.cache.SAdd(ctx, statusKey(rec.Status), rec.SnapshotID); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "add status index")
	}
	return nil
}

// Get returns the record with the given snapshot id.
func (r *RecordRepository) Get(ctx context.Context, id string) (*model.SnapshotRecord, error) {
	raw, err := r.cache.Get(ctx, recordKey(id))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "load snapshot record")
	}
	if raw == "" {
		return nil, appErr.Newf(appErr.SnapshotNotFound, "snapshot %s not found", id)
	}

	var rec model.SnapshotRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "decode snapshot record")
	}
	return &rec, nil
}

// List returns all stored records ordered by creation time.
func (r *RecordRepository) List(ctx context.Context) ([]*model.SnapshotRecord, error) {
	return r.listIndex(ctx, allIndexKey)
}

// ListByStatus returns records in the given status ordered by creation time.
func (r *RecordRepository) ListByStatus(ctx context.Context, s model.Status) ([]*model.SnapshotRecord, error) {
	return r.listIndex(ctx, statusKey(s))
}

func (r *RecordRepository) listIndex(ctx context.Context, key string) ([]*model.SnapshotRecord, error) {
	ids, err := r.cache.SMembers(ctx, key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "list snapshot index")
	}

	records := make([]*model.SnapshotRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, id)
		if err != nil {
			// Index entries can outlive records that were pruned directly.
			if appErr.GetCode(err) == appErr.SnapshotNotFound {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].SnapshotID < records[j].SnapshotID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// UpdateStatus applies a status transition and persists the result.
func (r *RecordRepository) UpdateStatus(ctx context.Context, id string, next model.Status, reason string) (*model.SnapshotRecord, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := rec.Status
	if err := rec.Transition(next); err != nil {
		return nil, err
	}
	if reason != "" {
		rec.FailureReason = reason
	}
	if err := r.Save(ctx, rec, prev); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record and its index entries.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.cache.Del(ctx, recordKey(id)); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "delete snapshot record")
	}
	if err := r.cache.SRem(ctx, allIndexKey, id); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "unindex snapshot record")
	}
	if err := r.cache.SRem(ctx, statusKey(rec.Status), id); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "remove status index")
	}
	return nil
}

// TrySweepLock acquires the cross-instance sweep lock.
func (r *RecordRepository) TrySweepLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := r.cache.TryLock(ctx, sweepLockKey, ttl)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.LockFailed, "acquire sweep lock")
	}
	return ok, nil
}

// ReleaseSweepLock releases the sweep lock.
func (r *RecordRepository) ReleaseSweepLock(ctx context.Context) error {
	return r.cache.Unlock(ctx, sweepLockKey)
}
