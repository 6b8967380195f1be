package inventory_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"azsnap/internal/inventory"
	appErr "azsnap/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAndResolve(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	invPath := writeFile(t, dir, "inventory.csv",
		"/subscriptions/s1/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/web-1 web-1\n"+
			"\n"+
			"/subscriptions/s2/resourceGroups/rg2/providers/Microsoft.Compute/virtualMachines/db-1 db-1\n")

	inv, err := inventory.Load(invPath)
	if err != nil {
		t.Fatalf("load inventory: %v", err)
	}

	entries, missing := inv.Resolve(context.Background(), []string{"web-1", "ghost-1", "db-1"})
	if got := []string{entries[0].Name, entries[1].Name}; !reflect.DeepEqual(got, []string{"web-1", "db-1"}) {
		t.Fatalf("unexpected entries: %v", got)
	}
	if !reflect.DeepEqual(missing, []string{"ghost-1"}) {
		t.Fatalf("unexpected missing: %v", missing)
	}
	if entries[1].ResourceID != "/subscriptions/s2/resourceGroups/rg2/providers/Microsoft.Compute/virtualMachines/db-1" {
		t.Fatalf("unexpected resource id: %s", entries[1].ResourceID)
	}
}

func TestLoadMissingInventory(t *testing.T) {
	t.Parallel()
	_, err := inventory.Load(filepath.Join(t.TempDir(), "nope.csv"))
	if !appErr.Is(err, appErr.InventoryNotFound) {
		t.Fatalf("expected InventoryNotFound, got %v", err)
	}
}

func TestLoadHostFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "hosts.txt", "web-1\n\n  db-1  \n")

	hosts, err := inventory.LoadHostFile(path)
	if err != nil {
		t.Fatalf("load host file: %v", err)
	}
	if !reflect.DeepEqual(hosts, []string{"web-1", "db-1"}) {
		t.Fatalf("unexpected hosts: %v", hosts)
	}
}

func TestLoadHostFileMissing(t *testing.T) {
	t.Parallel()
	_, err := inventory.LoadHostFile(filepath.Join(t.TempDir(), "nope.txt"))
	if !appErr.Is(err, appErr.HostFileNotFound) {
		t.Fatalf("expected HostFileNotFound, got %v", err)
	}
}
