package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/record"
)

type countingNotifier struct {
	success, failure int
	err              error
}

func (n *countingNotifier) SendSuccess(context.Context, *record.BatchResult, string, time.Duration) error {
	n.success++
	return n.err
}

func (n *countingNotifier) SendFailure(context.Context, *record.BatchResult, string, time.Duration, error) error {
	n.failure++
	return n.err
}

func TestLoadDaemonConfig(t *testing.T) {
	t.Setenv("DAEMON_SYMBOLS", " nifty, ,BankNifty ")
	t.Setenv("DAEMON_TIMEZONE", "")

	cfg := LoadDaemonConfig()
	assert.Equal(t, []string{"NIFTY", "BANKNIFTY"}, cfg.Symbols)
	assert.Equal(t, "Asia/Kolkata", cfg.Timezone)
	assert.Equal(t, "/app/configs/default.yaml", cfg.ConfigPath)
}

func TestSessionTracker(t *testing.T) {
	tracker := NewSessionTracker(filepath.Join(t.TempDir(), "state", ".daemon-state"))

	assert.Equal(t, "", tracker.LastReported())
	require.NoError(t, tracker.SetLastReported("2025-01-06"))
	assert.True(t, tracker.AlreadyReported("2025-01-06"))
	assert.False(t, tracker.AlreadyReported("2025-01-07"))
}

func TestReportSession_OncePerDay(t *testing.T) {
	tracker := NewSessionTracker(filepath.Join(t.TempDir(), ".daemon-state"))
	n := &countingNotifier{}
	total := &record.BatchResult{Total: 4, Success: 4}

	reportSession(context.Background(), n, tracker, "2025-01-06", total, time.Hour, zap.NewNop())
	reportSession(context.Background(), n, tracker, "2025-01-06", total, time.Hour, zap.NewNop())

	assert.Equal(t, 1, n.success)
	assert.Equal(t, "2025-01-06", tracker.LastReported())
}

func TestReportSession_FailureKeepsDayOpen(t *testing.T) {
	tracker := NewSessionTracker(filepath.Join(t.TempDir(), ".daemon-state"))
	n := &countingNotifier{err: errors.New("ntfy down")}
	total := &record.BatchResult{Total: 2, Failed: 2}

	reportSession(context.Background(), n, tracker, "2025-01-06", total, time.Minute, zap.NewNop())

	assert.Equal(t, 1, n.failure)
	assert.False(t, tracker.AlreadyReported("2025-01-06"))
}
