package inventory

import (
	"bufio"
	"context"
	"os"
	"strings"

	appErr "azsnap/pkg/errors"
	"azsnap/pkg/utils/logger"

	"go.uber.org/zap"
)

// Entry is one VM from the inventory file.
type Entry struct {
	// ResourceID is the ARM resource id of the VM.
	ResourceID string

	// Name is the VM name.
	Name string

	// Line is the raw inventory line. Exclusion keywords match against it.
	Line string
}

// Inventory holds the parsed VM inventory.
type Inventory struct {
	lines []string
}

// Load reads the inventory file. Each line is "<resource_id> <vm_name>".
func Load(path string) (*Inventory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InventoryNotFound, "inventory file '%s' not found", path)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.InventoryNotFound)
	}
	return &Inventory{lines: lines}, nil
}

// Lookup returns the first inventory entry whose line contains the hostname.
func (inv *Inventory) Lookup(hostname string) (Entry, bool) {
	for _, line := range inv.lines {
		if strings.Contains(line, hostname) {
			return parseLine(line), true
		}
	}
	return Entry{}, false
}

// Resolve maps hostnames to inventory entries, preserving order.
// Hostnames missing from the inventory are returned separately and logged
// as warnings, they do not fail the resolution.
func (inv *Inventory) Resolve(ctx context.Context, hostnames []string) (entries []Entry, missing []string) {
	for _, hostname := range hostnames {
		entry, ok := inv.Lookup(hostname)
		if !ok {
			logger.Warn(ctx, "hostname not found in inventory", zap.String("hostname", hostname))
			missing = append(missing, hostname)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, missing
}

// LoadHostFile reads the requested hostnames, one per line.
func LoadHostFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.HostFileNotFound, "list file '%s' not found", path)
	}

	var hostnames []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hostnames = append(hostnames, line)
	}
	return hostnames, nil
}

func parseLine(line string) Entry {
	fields := strings.Fields(line)
	entry := Entry{Line: line}
	if len(fields) > 0 {
		entry.ResourceID = fields[0]
	}
	if len(fields) > 1 {
		entry.Name = fields[1]
	}
	return entry
}
