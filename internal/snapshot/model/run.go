package model

import "time"

// VMResult records the outcome of one snapshot attempt inside a run.
type VMResult struct {
	VMName       string `json:"vm_name"`
	VMID         string `json:"vm_id"`
	SnapshotID   string `json:"snapshot_id,omitempty"`
	SnapshotName string `json:"snapshot_name,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RunSummary aggregates a full snapshot run over an inventory.
type RunSummary struct {
	RunID        string     `json:"run_id"`
	ChangeNumber string     `json:"change_number"`
	RequestedBy  string     `json:"requested_by"`
	TTLSeconds   int64      `json:"ttl_seconds"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
	TotalHosts   int        `json:"total_hosts"`
	Excluded     []string   `json:"excluded,omitempty"`
	MissingHosts []string   `json:"missing_hosts,omitempty"`
	Results      []VMResult `json:"results"`
}

// Succeeded counts results that produced a snapshot.
func (s *RunSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Error == "" {
			n++
		}
	}
	return n
}

// Failed counts results that errored.
func (s *RunSummary) Failed() int {
	return len(s.Results) - s.Succeeded()
}
