package repository

import (
	"context"
	"encoding/json"

	"azsnap/internal/common/db"
	"azsnap/internal/snapshot/model"
	appErr "azsnap/pkg/errors"
)

// ArchiveRepository persists terminal snapshot records and run summaries
// to MySQL for audit. The cache remains the source of truth for live records.
type ArchiveRepository struct {
	db *db.MySQL
}

// NewArchiveRepository creates an ArchiveRepository.
func NewArchiveRepository(database *db.MySQL) *ArchiveRepository {
	return &ArchiveRepository{db: database}
}

const insertRecordSQL = `
INSERT INTO snapshot_archive
    (snapshot_id, snapshot_name, vm_id, vm_name, subscription_id,
     created_by, change_number, created_at, ttl_seconds, expires_at,
     status, failure_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE status = VALUES(status), failure_reason = VALUES(failure_reason)`

// ArchiveRecord writes a terminal record to the archive table.
func (r *ArchiveRepository) ArchiveRecord(ctx context.Context, rec *model.SnapshotRecord) error {
	if !rec.Status.Terminal() {
		return appErr.Newf(appErr.InvalidParams, "cannot archive non-terminal record %s in status %s", rec.SnapshotID, rec.Status)
	}

	_, err := r.db.Exec(ctx, insertRecordSQL,
		rec.SnapshotID, rec.SnapshotName, rec.VMID, rec.VMName, rec.SubscriptionID,
		rec.CreatedBy, rec.ChangeNumber, rec.CreatedAt, rec.TTLSeconds, rec.ExpiresAt,
		string(rec.Status), rec.FailureReason)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "archive snapshot record")
	}
	return nil
}

const insertRunSQL = `
INSERT INTO run_archive
    (run_id, change_number, requested_by, ttl_seconds,
     started_at, finished_at, total_hosts, succeeded, failed, detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ArchiveRun writes a completed run summary to the archive table.
// The full summary is stored as JSON in the detail column.
func (r *ArchiveRepository) ArchiveRun(ctx context.Context, summary *model.RunSummary) error {
	detail, err := json.Marshal(summary)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "marshal run summary")
	}

	_, err = r.db.Exec(ctx, insertRunSQL,
		summary.RunID, summary.ChangeNumber, summary.RequestedBy, summary.TTLSeconds,
		summary.StartedAt, summary.FinishedAt, summary.TotalHosts,
		summary.Succeeded(), summary.Failed(), string(detail))
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "archive run summary")
	}
	return nil
}
