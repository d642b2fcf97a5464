package main

import (
	"os"
	"path/filepath"
	"strings"
)

// SessionTracker remembers the last session whose summary was sent, so a
// restart late in the day does not report a partial session twice.
type SessionTracker struct {
	stateFile string
}

func NewSessionTracker(stateFile string) *SessionTracker {
	return &SessionTracker{stateFile: stateFile}
}

// LastReported reads the last reported session day from the state file.
func (t *SessionTracker) LastReported() string {
	data, err := os.ReadFile(t.stateFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (t *SessionTracker) SetLastReported(day string) error {
	if err := os.MkdirAll(filepath.Dir(t.stateFile), 0750); err != nil {
		return err
	}
	return os.WriteFile(t.stateFile, []byte(day+"\n"), 0600)
}

func (t *SessionTracker) AlreadyReported(day string) bool {
	return t.LastReported() == day
}
