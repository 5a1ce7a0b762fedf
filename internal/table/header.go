package table

import (
	"fmt"
	"strings"
)

// NormalizeHeaders makes a header row usable as a set of column names.
//
// Blank names become "Unnamed: <index>" and repeated names get a ".N"
// suffix ("id", "id.1", "id.2") so every column can be selected by name.
// Non-blank names are otherwise kept exactly as written.
func NormalizeHeaders(header []string) []string {
	names := make([]string, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}

	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}

	seen := make(map[string]bool, len(names))
	suffix := make(map[string]int)
	for i, n := range names {
		if !seen[n] {
			seen[n] = true
			continue
		}
		for {
			suffix[n]++
			candidate := fmt.Sprintf("%s.%d", n, suffix[n])
			if !taken[candidate] {
				names[i] = candidate
				taken[candidate] = true
				break
			}
		}
	}

	return names
}
