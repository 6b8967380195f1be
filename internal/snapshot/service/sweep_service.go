package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"azsnap/internal/snapshot/model"
	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"
)

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Checked int       `json:"checked"`
	Expired int       `json:"expired"`
	Deleted int       `json:"deleted"`
	Failed  int       `json:"failed"`
	SweptAt time.Time `json:"swept_at"`
}

// SweepService deletes snapshots whose TTL has elapsed.
type SweepService struct {
	az      azureClient
	records recordStore
	archive archiver
	events  *EventPublisher
	lockTTL time.Duration
	now     func() time.Time
}

// NewSweepService creates a SweepService. lockTTL bounds how long one sweep
// may hold the cross-instance lock before it expires on its own.
func NewSweepService(az azureClient, records recordStore, archive archiver, events *EventPublisher, lockTTL time.Duration) *SweepService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &SweepService{
		az:      az,
		records: records,
		archive: archive,
		events:  events,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// Sweep scans active records and deletes those at or past their expiry.
// Only one sweep runs at a time across instances; a concurrent call gets
// SweepInProgress. Deletion is sequential so a misbehaving az CLI cannot
// fan out, and one failure never blocks the remaining deletions.
func (s *SweepService) Sweep(ctx context.Context) (*SweepResult, error) {
	ok, err := s.records.TrySweepLock(ctx, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.New(appErr.SweepInProgress)
	}
	defer func() {
		if err := s.records.ReleaseSweepLock(ctx); err != nil {
			logger.Warn(ctx, "release sweep lock", zap.Error(err))
		}
	}()

	active, err := s.records.ListByStatus(ctx, model.StatusActive)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.SweepFailed)
	}

	now := s.now().UTC()
	result := &SweepResult{Checked: len(active), SweptAt: now}

	currentSubscription := ""
	for _, rec := range active {
		if !rec.Expired(now) {
			continue
		}
		result.Expired++

		if rec.SubscriptionID != "" && rec.SubscriptionID != currentSubscription {
			if err := s.az.SetSubscription(ctx, rec.SubscriptionID); err != nil {
				s.failRecord(ctx, rec, appErr.GetError(err).Message, result)
				continue
			}
			currentSubscription = rec.SubscriptionID
		}

		marked, err := s.records.UpdateStatus(ctx, rec.SnapshotID, model.StatusDeleting, "")
		if err != nil {
			logger.Error(ctx, "mark snapshot deleting",
				zap.String("snapshot_id", rec.SnapshotID),
				zap.Error(err))
			result.Failed++
			continue
		}

		if err := s.az.DeleteSnapshot(ctx, rec.SnapshotID); err != nil {
			s.failRecord(ctx, marked, appErr.GetError(err).Message, result)
			continue
		}

		deleted, err := s.records.UpdateStatus(ctx, rec.SnapshotID, model.StatusDeleted, "")
		if err != nil {
			logger.Error(ctx, "mark snapshot deleted",
				zap.String("snapshot_id", rec.SnapshotID),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Deleted++
		s.events.PublishRecord(ctx, EventSnapshotDeleted, deleted)
		s.archiveTerminal(ctx, deleted)
		logger.Info(ctx, "expired snapshot deleted",
			zap.String("snapshot", deleted.SnapshotName),
			zap.String("vm", deleted.VMName))
	}

	logger.Info(ctx, "sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("expired", result.Expired),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed))
	return result, nil
}

// failRecord moves a record to failed with the given reason. Failed records
// are terminal and never retried by later sweeps.
func (s *SweepService) failRecord(ctx context.Context, rec *model.SnapshotRecord, reason string, result *SweepResult) {
	result.Failed++

	if rec.Status != model.StatusDeleting {
		// SetSubscription failed before the record left active.
		if _, err := s.records.UpdateStatus(ctx, rec.SnapshotID, model.StatusDeleting, ""); err != nil {
			logger.Error(ctx, "mark snapshot deleting", zap.String("snapshot_id", rec.SnapshotID), zap.Error(err))
			return
		}
	}
	failed, err := s.records.UpdateStatus(ctx, rec.SnapshotID, model.StatusFailed, reason)
	if err != nil {
		logger.Error(ctx, "mark snapshot failed", zap.String("snapshot_id", rec.SnapshotID), zap.Error(err))
		return
	}
	s.events.PublishRecord(ctx, EventSnapshotDeleteFailed, failed)
	s.archiveTerminal(ctx, failed)
	logger.Error(ctx, "snapshot deletion failed",
		zap.String("snapshot", failed.SnapshotName),
		zap.String("reason", reason))
}

func (s *SweepService) archiveTerminal(ctx context.Context, rec *model.SnapshotRecord) {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveRecord(ctx, rec); err != nil {
		logger.Warn(ctx, "archive snapshot record",
			zap.String("snapshot_id", rec.SnapshotID),
			zap.Error(err))
	}
}
