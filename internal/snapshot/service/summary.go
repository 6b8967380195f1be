package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"azsnap/internal/common/storage"
	"azsnap/internal/snapshot/model"
	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"
)

// RenderSummary formats a run summary as the operator-facing text report.
func RenderSummary(s *model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Snapshot run %s (change %s)\n", s.RunID, s.ChangeNumber)
	fmt.Fprintf(&b, "Requested by %s, TTL %ds\n", s.RequestedBy, s.TTLSeconds)
	fmt.Fprintf(&b, "Started %s, finished %s\n",
		s.StartedAt.Format(time.RFC3339), s.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Hosts: %d total, %d snapshotted, %d failed, %d excluded, %d not in inventory\n",
		s.TotalHosts, s.Succeeded(), s.Failed(), len(s.Excluded), len(s.MissingHosts))

	if len(s.MissingHosts) > 0 {
		b.WriteString("\nNot in inventory:\n")
		for _, h := range s.MissingHosts {
			fmt.Fprintf(&b, "  %s\n", h)
		}
	}
	if len(s.Excluded) > 0 {
		b.WriteString("\nExcluded:\n")
		for _, line := range s.Excluded {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	b.WriteString("\nResults:\n")
	for _, r := range s.Results {
		if r.Error != "" {
			fmt.Fprintf(&b, "  FAIL %s: %s\n", r.VMName, r.Error)
		} else {
			fmt.Fprintf(&b, "  OK   %s -> %s\n", r.VMName, r.SnapshotName)
		}
	}
	return b.String()
}

// SummaryStore uploads run reports to object storage and hands out
// presigned download links.
type SummaryStore struct {
	storage    storage.ObjectStorage
	bucket     string
	presignTTL time.Duration
}

// NewSummaryStore creates a SummaryStore writing into the given bucket.
func NewSummaryStore(st storage.ObjectStorage, bucket string, presignTTL time.Duration) *SummaryStore {
	if presignTTL <= 0 {
		presignTTL = 24 * time.Hour
	}
	return &SummaryStore{storage: st, bucket: bucket, presignTTL: presignTTL}
}

func summaryTextKey(runID string) string {
	return fmt.Sprintf("runs/%s/summary.txt", runID)
}

func summaryJSONKey(runID string) string {
	return fmt.Sprintf("runs/%s/summary.json", runID)
}

// Upload stores the text report and the JSON summary, returning a presigned
// URL for the text report.
func (s *SummaryStore) Upload(ctx context.Context, summary *model.RunSummary) (string, error) {
	text := RenderSummary(summary)
	if err := s.storage.PutObject(ctx, s.bucket, summaryTextKey(summary.RunID),
		strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		return "", appErr.Wrap(err, appErr.InternalServerError).WithMessage("upload run summary")
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return "", appErr.Wrap(err, appErr.InternalServerError).WithMessage("marshal run summary")
	}
	if err := s.storage.PutObject(ctx, s.bucket, summaryJSONKey(summary.RunID),
		strings.NewReader(string(raw)), int64(len(raw)), "application/json"); err != nil {
		return "", appErr.Wrap(err, appErr.InternalServerError).WithMessage("upload run summary json")
	}

	url, err := s.storage.PresignDownload(ctx, s.bucket, summaryTextKey(summary.RunID), s.presignTTL)
	if err != nil {
		// The report is stored; a missing link is not fatal.
		logger.Warn(ctx, "presign run summary", zap.String("run_id", summary.RunID), zap.Error(err))
		return "", nil
	}
	return url, nil
}
