package model

import (
	"testing"
	"time"

	appErr "azsnap/pkg/errors"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusFailed, true},
		{StatusActive, StatusDeleting, true},
		{StatusDeleting, StatusDeleted, true},
		{StatusDeleting, StatusFailed, true},
		{StatusPending, StatusDeleted, false},
		{StatusActive, StatusDeleted, false},
		{StatusActive, StatusPending, false},
		{StatusDeleted, StatusActive, false},
		{StatusFailed, StatusActive, false},
		{StatusDeleted, StatusDeleting, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestTransitionRejectsIllegal(t *testing.T) {
	t.Parallel()

	rec := &SnapshotRecord{SnapshotID: "snap-1", Status: StatusActive}
	if err := rec.Transition(StatusDeleted); err == nil {
		t.Fatal("expected error for active -> deleted")
	} else if appErr.GetCode(err) != appErr.InvalidStatusTransition {
		t.Fatalf("unexpected code: %d", appErr.GetCode(err))
	}
	if rec.Status != StatusActive {
		t.Fatalf("status mutated on rejected transition: %s", rec.Status)
	}

	if err := rec.Transition(StatusDeleting); err != nil {
		t.Fatalf("legal transition failed: %v", err)
	}
	if rec.Status != StatusDeleting {
		t.Fatalf("status = %s, want deleting", rec.Status)
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusActive, StatusDeleting} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusDeleted, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestExpiredBoundaryInclusive(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &SnapshotRecord{
		CreatedAt:  base,
		TTLSeconds: 3600,
		ExpiresAt:  base.Add(3600 * time.Second),
	}

	if rec.Expired(base.Add(3599 * time.Second)) {
		t.Error("record expired one second early")
	}
	if !rec.Expired(base.Add(3600 * time.Second)) {
		t.Error("record not expired exactly at expires_at")
	}
	if !rec.Expired(base.Add(3601 * time.Second)) {
		t.Error("record not expired past expires_at")
	}
}
