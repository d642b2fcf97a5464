package data

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsDate reports whether s names a recording day folder (YYYY-MM-DD).
func IsDate(s string) bool {
	return datePattern.MatchString(s)
}

// DetectLatestDate scans dataDir for non-empty date folders and returns the
// most recent one.
func DetectLatestDate(dataDir string) (string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("reading data directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() || !IsDate(entry.Name()) {
			continue
		}
		subEntries, err := os.ReadDir(filepath.Join(dataDir, entry.Name()))
		if err == nil && len(subEntries) > 0 {
			dates = append(dates, entry.Name())
		}
	}

	if len(dates) == 0 {
		return "", fmt.Errorf("no date folders found in %s", dataDir)
	}

	// YYYY-MM-DD sorts lexicographically
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	return dates[0], nil
}

// ResolveDate returns date unchanged unless it is empty or "latest".
func ResolveDate(dataDir, date string) (string, error) {
	if date == "" || date == "latest" {
		return DetectLatestDate(dataDir)
	}
	if !IsDate(date) {
		return "", fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", date)
	}
	return date, nil
}
