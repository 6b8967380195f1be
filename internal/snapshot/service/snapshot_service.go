package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"azsnap/internal/azure"
	"azsnap/internal/inventory"
	"azsnap/internal/snapshot/model"
	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"
)

// snapshotNameTimeLayout matches the timestamp embedded in snapshot names.
const snapshotNameTimeLayout = "20060102150405"

// azureClient is the subset of the az CLI client the service needs.
type azureClient interface {
	CurrentUser(ctx context.Context) (string, error)
	SetSubscription(ctx context.Context, subscriptionID string) error
	VMDetails(ctx context.Context, resourceID string) (azure.VMDetails, error)
	CreateSnapshot(ctx context.Context, req azure.CreateSnapshotRequest) (string, error)
	DeleteSnapshot(ctx context.Context, snapshotID string) error
	StartLogin(ctx context.Context) (azure.LoginInfo, error)
}

// recordStore is the record persistence the service needs.
type recordStore interface {
	Save(ctx context.Context, rec *model.SnapshotRecord, prev model.Status) error
	Get(ctx context.Context, id string) (*model.SnapshotRecord, error)
	List(ctx context.Context) ([]*model.SnapshotRecord, error)
	ListByStatus(ctx context.Context, s model.Status) ([]*model.SnapshotRecord, error)
	UpdateStatus(ctx context.Context, id string, next model.Status, reason string) (*model.SnapshotRecord, error)
	TrySweepLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLock(ctx context.Context) error
}

// archiver persists terminal records and run summaries for audit.
type archiver interface {
	ArchiveRecord(ctx context.Context, rec *model.SnapshotRecord) error
	ArchiveRun(ctx context.Context, summary *model.RunSummary) error
}

// Config holds tunables for the snapshot service.
type Config struct {
	// InventoryPath is the VM inventory file.
	InventoryPath string `yaml:"inventoryPath"`

	// MaxConcurrentCreates bounds parallel snapshot creation within one
	// subscription. Creation across subscriptions is sequential because
	// the az CLI holds a single active subscription.
	MaxConcurrentCreates int `yaml:"maxConcurrentCreates"`

	// DefaultTTL is applied when a run request carries no TTL.
	DefaultTTL time.Duration `yaml:"defaultTTL"`
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentCreates: 4,
		DefaultTTL:           24 * time.Hour,
	}
}

// SnapshotService orchestrates snapshot runs over an inventory.
type SnapshotService struct {
	cfg     Config
	az      azureClient
	records recordStore
	archive archiver
	events  *EventPublisher
	now     func() time.Time
}

// NewSnapshotService creates a SnapshotService. archive may be nil when
// no database is configured; events may be nil when no broker is configured.
func NewSnapshotService(cfg Config, az azureClient, records recordStore, archive archiver, events *EventPublisher) *SnapshotService {
	if cfg.MaxConcurrentCreates <= 0 {
		cfg.MaxConcurrentCreates = DefaultConfig().MaxConcurrentCreates
	}
	return &SnapshotService{
		cfg:     cfg,
		az:      az,
		records: records,
		archive: archive,
		events:  events,
		now:     time.Now,
	}
}

// RunRequest describes one snapshot run.
type RunRequest struct {
	// ChangeNumber is the change ticket the run is executed under.
	ChangeNumber string

	// HostFilePath points at the newline-separated hostname list.
	HostFilePath string

	// Hostnames can be supplied directly instead of HostFilePath.
	Hostnames []string

	// ExcludeKeywords filters inventory lines by case-insensitive substring.
	ExcludeKeywords []string

	// TTLSeconds is how long created snapshots live. Zero means the
	// configured default; negative is rejected.
	TTLSeconds int64
}

// Run executes a snapshot run: resolve hosts against the inventory, filter
// exclusions, then create one OS disk snapshot per remaining VM, grouped by
// subscription. Per-VM failures are recorded in the summary, not returned.
func (s *SnapshotService) Run(ctx context.Context, req RunRequest) (*model.RunSummary, error) {
	ttl, err := s.resolveTTL(req.TTLSeconds)
	if err != nil {
		return nil, err
	}
	if req.ChangeNumber == "" {
		return nil, appErr.ValidationError("change_number", "required")
	}

	hostnames := req.Hostnames
	if len(hostnames) == 0 {
		if req.HostFilePath == "" {
			return nil, appErr.ValidationError("hosts", "host file or hostnames required")
		}
		hostnames, err = inventory.LoadHostFile(req.HostFilePath)
		if err != nil {
			return nil, err
		}
	}

	inv, err := inventory.Load(s.cfg.InventoryPath)
	if err != nil {
		return nil, err
	}
	entries, missing := inv.Resolve(ctx, hostnames)
	kept, excluded := inventory.Filter(entries, req.ExcludeKeywords)
	if len(kept) == 0 {
		return nil, appErr.New(appErr.NoEligibleVMs).
			WithDetail("missing", len(missing)).
			WithDetail("excluded", len(excluded))
	}

	user, err := s.az.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	summary := &model.RunSummary{
		RunID:        uuid.NewString(),
		ChangeNumber: req.ChangeNumber,
		RequestedBy:  user,
		TTLSeconds:   int64(ttl / time.Second),
		StartedAt:    s.now().UTC(),
		TotalHosts:   len(hostnames),
		Excluded:     excluded,
		MissingHosts: missing,
	}

	logger.Info(ctx, "starting snapshot run",
		zap.String("run_id", summary.RunID),
		zap.String("change_number", req.ChangeNumber),
		zap.String("user", user),
		zap.Int("vms", len(kept)),
		zap.Int("excluded", len(excluded)),
		zap.Int("missing", len(missing)))

	for _, group := range groupBySubscription(ctx, kept) {
		if err := s.az.SetSubscription(ctx, group.subscriptionID); err != nil {
			for _, entry := range group.entries {
				summary.Results = append(summary.Results, model.VMResult{
					VMName: entry.Name,
					VMID:   entry.ResourceID,
					Error:  appErr.GetError(err).Message,
				})
			}
			continue
		}
		summary.Results = append(summary.Results, s.snapshotGroup(ctx, group, user, req.ChangeNumber, ttl)...)
	}

	summary.FinishedAt = s.now().UTC()
	s.events.PublishRun(ctx, summary)
	if s.archive != nil {
		if err := s.archive.ArchiveRun(ctx, summary); err != nil {
			logger.Warn(ctx, "archive run summary", zap.String("run_id", summary.RunID), zap.Error(err))
		}
	}
	return summary, nil
}

func (s *SnapshotService) resolveTTL(ttlSeconds int64) (time.Duration, error) {
	if ttlSeconds == 0 {
		return s.cfg.DefaultTTL, nil
	}
	if ttlSeconds < 0 {
		return 0, appErr.Newf(appErr.InvalidTTL, "ttl_seconds must be positive, got %d", ttlSeconds)
	}
	return time.Duration(ttlSeconds) * time.Second, nil
}

type subscriptionGroup struct {
	subscriptionID string
	entries        []inventory.Entry
}

// groupBySubscription splits entries by the subscription in their resource id,
// preserving first-seen order. Entries with malformed ids are dropped with a
// warning, mirroring how unresolvable hostnames are handled.
func groupBySubscription(ctx context.Context, entries []inventory.Entry) []subscriptionGroup {
	var groups []subscriptionGroup
	index := make(map[string]int)
	for _, entry := range entries {
		sub, err := azure.SubscriptionFromResourceID(entry.ResourceID)
		if err != nil {
			logger.Warn(ctx, "skipping vm with malformed resource id",
				zap.String("vm", entry.Name),
				zap.Error(err))
			continue
		}
		i, ok := index[sub]
		if !ok {
			i = len(groups)
			index[sub] = i
			groups = append(groups, subscriptionGroup{subscriptionID: sub})
		}
		groups[i].entries = append(groups[i].entries, entry)
	}
	return groups
}

// snapshotGroup creates snapshots for one subscription's VMs with bounded
// concurrency. Results come back in inventory order.
func (s *SnapshotService) snapshotGroup(ctx context.Context, group subscriptionGroup, user, changeNumber string, ttl time.Duration) []model.VMResult {
	results := make([]model.VMResult, len(group.entries))
	sem := make(chan struct{}, s.cfg.MaxConcurrentCreates)

	var wg sync.WaitGroup
	for i, entry := range group.entries {
		wg.Add(1)
		go func(i int, entry inventory.Entry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.snapshotVM(ctx, entry, group.subscriptionID, user, changeNumber, ttl)
		}(i, entry)
	}
	wg.Wait()
	return results
}

func (s *SnapshotService) snapshotVM(ctx context.Context, entry inventory.Entry, subscriptionID, user, changeNumber string, ttl time.Duration) model.VMResult {
	result := model.VMResult{VMName: entry.Name, VMID: entry.ResourceID}

	details, err := s.az.VMDetails(ctx, entry.ResourceID)
	if err != nil {
		result.Error = appErr.GetError(err).Message
		return result
	}

	createdAt := s.now().UTC()
	name := fmt.Sprintf("RH_%s_%s_%s", changeNumber, entry.Name, createdAt.Format(snapshotNameTimeLayout))
	rec := &model.SnapshotRecord{
		SnapshotName:   name,
		VMID:           entry.ResourceID,
		VMName:         entry.Name,
		SubscriptionID: subscriptionID,
		CreatedBy:      user,
		ChangeNumber:   changeNumber,
		CreatedAt:      createdAt,
		TTLSeconds:     int64(ttl / time.Second),
		ExpiresAt:      createdAt.Add(ttl),
		Status:         model.StatusPending,
	}

	snapshotID, err := s.az.CreateSnapshot(ctx, azure.CreateSnapshotRequest{
		Name:          name,
		ResourceGroup: details.ResourceGroup,
		SourceDiskID:  details.DiskID,
		Tags: map[string]string{
			"CreatedByUserId": user,
			"drtier":          "NR",
		},
	})
	if err != nil {
		rec.SnapshotID = name // no resource id to key by
		rec.Status = model.StatusFailed
		rec.FailureReason = appErr.GetError(err).Message
		result.Error = rec.FailureReason
		s.events.PublishRecord(ctx, EventSnapshotCreateFailed, rec)
		s.archiveTerminal(ctx, rec)
		logger.Error(ctx, "snapshot creation failed",
			zap.String("vm", entry.Name),
			zap.Error(err))
		return result
	}

	rec.SnapshotID = snapshotID
	rec.Status = model.StatusActive
	if err := s.records.Save(ctx, rec, model.StatusActive); err != nil {
		// The snapshot exists in Azure but is untracked. Surface loudly.
		result.SnapshotID = snapshotID
		result.SnapshotName = name
		result.Error = "snapshot created but record store failed: " + appErr.GetError(err).Message
		logger.Error(ctx, "snapshot record store failed",
			zap.String("snapshot_id", snapshotID),
			zap.Error(err))
		return result
	}

	result.SnapshotID = snapshotID
	result.SnapshotName = name
	s.events.PublishRecord(ctx, EventSnapshotCreated, rec)
	logger.Info(ctx, "snapshot created",
		zap.String("vm", entry.Name),
		zap.String("snapshot", name),
		zap.Time("expires_at", rec.ExpiresAt))
	return result
}

// Schedule registers an externally created snapshot for TTL deletion.
func (s *SnapshotService) Schedule(ctx context.Context, rec *model.SnapshotRecord, ttlSeconds int64) (*model.SnapshotRecord, error) {
	if ttlSeconds <= 0 {
		return nil, appErr.Newf(appErr.InvalidTTL, "ttl_seconds must be positive, got %d", ttlSeconds)
	}
	if rec.SnapshotID == "" {
		return nil, appErr.ValidationError("snapshot_id", "required")
	}

	now := s.now().UTC()
	rec.CreatedAt = now
	rec.TTLSeconds = ttlSeconds
	rec.ExpiresAt = now.Add(time.Duration(ttlSeconds) * time.Second)
	rec.Status = model.StatusActive
	if err := s.records.Save(ctx, rec, model.StatusActive); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns one snapshot record. The id may be the snapshot's Azure
// resource id or its name; names are what fits in a URL path.
func (s *SnapshotService) Get(ctx context.Context, id string) (*model.SnapshotRecord, error) {
	rec, err := s.records.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if appErr.GetCode(err) != appErr.SnapshotNotFound {
		return nil, err
	}

	all, listErr := s.records.List(ctx)
	if listErr != nil {
		return nil, listErr
	}
	for _, candidate := range all {
		if candidate.SnapshotName == id {
			return candidate, nil
		}
	}
	return nil, err
}

// List returns snapshot records, optionally filtered by status.
func (s *SnapshotService) List(ctx context.Context, status model.Status) ([]*model.SnapshotRecord, error) {
	if status == "" {
		return s.records.List(ctx)
	}
	return s.records.ListByStatus(ctx, status)
}

// Login starts an az device-flow login and returns the verification data.
func (s *SnapshotService) Login(ctx context.Context) (azure.LoginInfo, error) {
	return s.az.StartLogin(ctx)
}

func (s *SnapshotService) archiveTerminal(ctx context.Context, rec *model.SnapshotRecord) {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveRecord(ctx, rec); err != nil {
		logger.Warn(ctx, "archive snapshot record",
			zap.String("snapshot_id", rec.SnapshotID),
			zap.Error(err))
	}
}
