package azure_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"azsnap/internal/azure"
	appErr "azsnap/pkg/errors"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return "", f.err
	}
	return f.stdout, nil
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stdout: "operator@example.com\n"}
	client := azure.NewClient(runner)

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if user != "operator@example.com" {
		t.Fatalf("unexpected user: %q", user)
	}
	if len(runner.calls) != 1 || runner.calls[0][0] != "account" {
		t.Fatalf("unexpected calls: %v", runner.calls)
	}
}

func TestCurrentUserNotLoggedIn(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{err: errors.New("az: not logged in")}
	client := azure.NewClient(runner)

	if _, err := client.CurrentUser(context.Background()); !appErr.Is(err, appErr.NotLoggedIn) {
		t.Fatalf("expected NotLoggedIn, got %v", err)
	}
}

func TestVMDetails(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stdout: `{"resourceGroup":"rg-prod","diskId":"/subscriptions/s1/disks/d1"}`}
	client := azure.NewClient(runner)

	details, err := client.VMDetails(context.Background(), "/subscriptions/s1/resourceGroups/rg-prod/providers/Microsoft.Compute/virtualMachines/web-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if details.ResourceGroup != "rg-prod" || details.DiskID != "/subscriptions/s1/disks/d1" {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestVMDetailsIncomplete(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stdout: `{"resourceGroup":"rg-prod"}`}
	client := azure.NewClient(runner)

	if _, err := client.VMDetails(context.Background(), "rid"); !appErr.Is(err, appErr.VMDetailsFailed) {
		t.Fatalf("expected VMDetailsFailed, got %v", err)
	}
}

func TestCreateSnapshot(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stdout: `{"id":"/subscriptions/s1/snapshots/snap-1","name":"snap-1"}`}
	client := azure.NewClient(runner)

	id, err := client.CreateSnapshot(context.Background(), azure.CreateSnapshotRequest{
		Name:          "RH_CHG001_web-1_20260830120000",
		ResourceGroup: "rg-prod",
		SourceDiskID:  "/subscriptions/s1/disks/d1",
		Tags:          map[string]string{"drtier": "NR", "CreatedByUserId": "operator@example.com"},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id != "/subscriptions/s1/snapshots/snap-1" {
		t.Fatalf("unexpected snapshot id: %q", id)
	}

	args := strings.Join(runner.calls[0], " ")
	if !strings.Contains(args, "--tags CreatedByUserId=operator@example.com drtier=NR") {
		t.Fatalf("tags not ordered deterministically: %s", args)
	}
}

func TestCreateSnapshotMissingID(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stdout: `{"name":"snap-1"}`}
	client := azure.NewClient(runner)

	_, err := client.CreateSnapshot(context.Background(), azure.CreateSnapshotRequest{
		Name:          "snap-1",
		ResourceGroup: "rg",
		SourceDiskID:  "disk",
	})
	if !appErr.Is(err, appErr.SnapshotIDMissing) {
		t.Fatalf("expected SnapshotIDMissing, got %v", err)
	}
}

func TestDeleteSnapshotFailed(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{err: errors.New("boom")}
	client := azure.NewClient(runner)

	if err := client.DeleteSnapshot(context.Background(), "snap-1"); !appErr.Is(err, appErr.SnapshotDeleteFailed) {
		t.Fatalf("expected SnapshotDeleteFailed, got %v", err)
	}
}

func TestStartLogin(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{stdout: `[{"verificationUrl":"https://microsoft.com/devicelogin","userCode":"ABCD1234"}]`}
	client := azure.NewClient(runner)

	info, err := client.StartLogin(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if info.VerificationURL != "https://microsoft.com/devicelogin" || info.UserCode != "ABCD1234" {
		t.Fatalf("unexpected login info: %+v", info)
	}
}

func TestSubscriptionFromResourceID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		rid     string
		want    string
		wantErr bool
	}{
		{
			name: "valid",
			rid:  "/subscriptions/sub-1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/web-1",
			want: "sub-1",
		},
		{name: "empty", rid: "", wantErr: true},
		{name: "wrong prefix", rid: "/resourceGroups/rg", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := azure.SubscriptionFromResourceID(tc.rid)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
