package service

import (
	"context"
	"testing"
	"time"

	"azsnap/internal/snapshot/model"
	appErr "azsnap/pkg/errors"
)

func activeRecord(id, vm, sub string, createdAt time.Time, ttl time.Duration) *model.SnapshotRecord {
	return &model.SnapshotRecord{
		SnapshotID:     id,
		SnapshotName:   "RH_CHG0042_" + vm + "_20260301120000",
		VMName:         vm,
		SubscriptionID: sub,
		CreatedAt:      createdAt,
		TTLSeconds:     int64(ttl / time.Second),
		ExpiresAt:      createdAt.Add(ttl),
		Status:         model.StatusActive,
	}
}

func newTestSweep(az *fakeAz, store *memStore, arch *fakeArchive, now time.Time) *SweepService {
	var a archiver
	if arch != nil {
		a = arch
	}
	svc := NewSweepService(az, store, a, NewEventPublisher(nil, ""), time.Minute)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSweepDeletesExpired(t *testing.T) {
	az := newFakeAz()
	store := newMemStore()
	arch := &fakeArchive{}
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := activeRecord("snap-old", "web-1", "sub-a", base, time.Hour)
	fresh := activeRecord("snap-new", "web-2", "sub-a", base.Add(30*time.Minute), time.Hour)
	for _, rec := range []*model.SnapshotRecord{expired, fresh} {
		if err := store.Save(ctx, rec, rec.Status); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	svc := newTestSweep(az, store, arch, base.Add(time.Hour))
	result, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if result.Checked != 2 || result.Expired != 1 || result.Deleted != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(az.deleted) != 1 || az.deleted[0] != "snap-old" {
		t.Fatalf("deleted = %v", az.deleted)
	}

	got, err := store.Get(ctx, "snap-old")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusDeleted {
		t.Fatalf("status = %s, want deleted", got.Status)
	}

	untouched, _ := store.Get(ctx, "snap-new")
	if untouched.Status != model.StatusActive {
		t.Fatalf("fresh record swept early: %s", untouched.Status)
	}

	if len(arch.records) != 1 || arch.records[0].SnapshotID != "snap-old" {
		t.Fatalf("archived = %+v", arch.records)
	}
}

func TestSweepBoundaryIsInclusive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	tests := []struct {
		name       string
		sweepAt    time.Time
		wantStatus model.Status
	}{
		{"one second early", base.Add(time.Hour - time.Second), model.StatusActive},
		{"exactly at expiry", base.Add(time.Hour), model.StatusDeleted},
		{"one second late", base.Add(time.Hour + time.Second), model.StatusDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			rec := activeRecord("snap-1", "web-1", "sub-a", base, time.Hour)
			if err := store.Save(ctx, rec, rec.Status); err != nil {
				t.Fatalf("save: %v", err)
			}

			svc := newTestSweep(newFakeAz(), store, nil, tt.sweepAt)
			if _, err := svc.Sweep(ctx); err != nil {
				t.Fatalf("sweep: %v", err)
			}

			got, _ := store.Get(ctx, "snap-1")
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestSweepDeleteFailureIsTerminal(t *testing.T) {
	az := newFakeAz()
	az.deleteErr["snap-1"] = appErr.New(appErr.SnapshotDeleteFailed).WithMessage("disk locked")
	store := newMemStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := activeRecord("snap-1", "web-1", "sub-a", base, time.Hour)
	if err := store.Save(ctx, rec, rec.Status); err != nil {
		t.Fatalf("save: %v", err)
	}

	svc := newTestSweep(az, store, nil, base.Add(2*time.Hour))
	result, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Failed != 1 || result.Deleted != 0 {
		t.Fatalf("result = %+v", result)
	}

	got, _ := store.Get(ctx, "snap-1")
	if got.Status != model.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.FailureReason != "disk locked" {
		t.Fatalf("reason = %q", got.FailureReason)
	}

	// A later sweep must not retry a failed record.
	again, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.Checked != 0 {
		t.Fatalf("failed record still visible to sweep: %+v", again)
	}
}

func TestSweepFailureDoesNotBlockOthers(t *testing.T) {
	az := newFakeAz()
	az.deleteErr["snap-bad"] = appErr.New(appErr.SnapshotDeleteFailed).WithMessage("disk locked")
	store := newMemStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, rec := range []*model.SnapshotRecord{
		activeRecord("snap-bad", "web-1", "sub-a", base, time.Hour),
		activeRecord("snap-ok", "web-2", "sub-a", base.Add(time.Minute), time.Hour),
	} {
		if err := store.Save(ctx, rec, rec.Status); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	svc := newTestSweep(az, store, nil, base.Add(3*time.Hour))
	result, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Deleted != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	ok, _ := store.Get(ctx, "snap-ok")
	if ok.Status != model.StatusDeleted {
		t.Fatalf("snap-ok status = %s", ok.Status)
	}
}

func TestSweepSwitchesSubscriptions(t *testing.T) {
	az := newFakeAz()
	store := newMemStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, rec := range []*model.SnapshotRecord{
		activeRecord("snap-a1", "web-1", "sub-a", base, time.Hour),
		activeRecord("snap-a2", "web-2", "sub-a", base.Add(time.Second), time.Hour),
		activeRecord("snap-b1", "db-1", "sub-b", base.Add(2*time.Second), time.Hour),
	} {
		if err := store.Save(ctx, rec, rec.Status); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	svc := newTestSweep(az, store, nil, base.Add(2*time.Hour))
	if _, err := svc.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(az.subCalls) != 2 {
		t.Fatalf("subscription switches = %v, want one per subscription", az.subCalls)
	}
}

func TestSweepLockContention(t *testing.T) {
	store := newMemStore()
	store.locked = true

	svc := newTestSweep(newFakeAz(), store, nil, time.Now())
	_, err := svc.Sweep(context.Background())
	if appErr.GetCode(err) != appErr.SweepInProgress {
		t.Fatalf("code = %d, want SweepInProgress", appErr.GetCode(err))
	}
}
