package inventory_test

import (
	"reflect"
	"testing"

	"azsnap/internal/inventory"
)

func entriesFromNames(names ...string) []inventory.Entry {
	entries := make([]inventory.Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, inventory.Entry{
			ResourceID: "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name,
			Name:       name,
			Line:       "/subscriptions/s1/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/" + name + " " + name,
		})
	}
	return entries
}

func names(entries []inventory.Entry) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestFilter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		vms          []string
		keywords     []string
		wantKept     []string
		wantExcluded []string
	}{
		{
			name:     "keyword excludes matching vm",
			vms:      []string{"web-1", "web-2", "test-db"},
			keywords: []string{"test"},
			wantKept: []string{"web-1", "web-2"},

			wantExcluded: []string{"test-db"},
		},
		{
			name:     "no keywords keeps everything",
			vms:      []string{"web-1", "test-db"},
			keywords: nil,
			wantKept: []string{"web-1", "test-db"},
		},
		{
			name:         "match is case insensitive",
			vms:          []string{"WEB-1", "Test-DB"},
			keywords:     []string{"tEsT"},
			wantKept:     []string{"WEB-1"},
			wantExcluded: []string{"Test-DB"},
		},
		{
			name:         "multiple keywords",
			vms:          []string{"web-1", "db-1", "staging-2"},
			keywords:     []string{"db", "staging"},
			wantKept:     []string{"web-1"},
			wantExcluded: []string{"db-1", "staging-2"},
		},
		{
			name:         "all excluded",
			vms:          []string{"test-1", "test-2"},
			keywords:     []string{"test"},
			wantKept:     nil,
			wantExcluded: []string{"test-1", "test-2"},
		},
		{
			name:     "empty keyword ignored",
			vms:      []string{"web-1"},
			keywords: []string{""},
			wantKept: []string{"web-1"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			kept, excluded := inventory.Filter(entriesFromNames(tc.vms...), tc.keywords)
			if got := names(kept); !reflect.DeepEqual(got, tc.wantKept) {
				t.Fatalf("kept = %v, want %v", got, tc.wantKept)
			}
			if !reflect.DeepEqual(excluded, tc.wantExcluded) {
				t.Fatalf("excluded = %v, want %v", excluded, tc.wantExcluded)
			}
		})
	}
}

// Output must always be an order-preserving subsequence of the input.
func TestFilterPreservesOrder(t *testing.T) {
	t.Parallel()
	entries := entriesFromNames("a-1", "b-1", "a-2", "b-2", "a-3")
	kept, _ := inventory.Filter(entries, []string{"b"})
	if got, want := names(kept), []string{"a-1", "a-2", "a-3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("kept = %v, want %v", got, want)
	}
}
