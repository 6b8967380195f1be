package inventory

import "strings"

// Filter returns the entries eligible for snapshotting, preserving input
// order, plus the names of the excluded VMs. An entry is excluded when any
// keyword is a case-insensitive substring of its inventory line.
func Filter(entries []Entry, excludeKeywords []string) (kept []Entry, excluded []string) {
	for _, entry := range entries {
		if matchesAny(entry.Line, excludeKeywords) {
			name := entry.Name
			if name == "" {
				name = entry.ResourceID
			}
			excluded = append(excluded, name)
			continue
		}
		kept = append(kept, entry)
	}
	return kept, excluded
}

func matchesAny(line string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(line)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
