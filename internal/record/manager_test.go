package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/config"
	"github.com/dgnsrekt/gexdex/internal/data"
	"github.com/dgnsrekt/gexdex/internal/gex"
	"github.com/dgnsrekt/gexdex/internal/provider"
)

var recordedAt = time.Date(2025, 1, 6, 4, 0, 0, 0, time.UTC)

type stubProvider struct {
	mu       sync.Mutex
	calls    int
	notFound map[string]bool
	failing  map[string]bool
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Expiries(context.Context, string) ([]string, error) {
	return []string{"2025-01-09", "2025-01-16"}, nil
}

func (s *stubProvider) Chain(_ context.Context, req provider.Request) (*gex.RawChain, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.notFound[req.Symbol] {
		return nil, fmt.Errorf("%w: %s: %w", provider.ErrUnavailable, req.Symbol, provider.ErrNotFound)
	}
	if s.failing[req.Symbol] {
		return nil, fmt.Errorf("%w: %s: boom", provider.ErrUnavailable, req.Symbol)
	}
	expiries, _ := s.Expiries(context.Background(), req.Symbol)
	return &gex.RawChain{
		Symbol:          req.Symbol,
		UnderlyingPrice: 24500,
		Expiry:          expiries[req.ExpiryIndex%len(expiries)],
		Source:          "stub",
		Records:         []gex.RawRecord{{"strike_price": 24500.0, "option_type": "CE", "oi": 100.0}},
	}, nil
}

func newTestManager(t *testing.T, p provider.Provider, workers int) (*Manager, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "record-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	rec, err := data.NewRecorder(dir, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() })

	m := NewManager(p, rec, workers, zap.NewNop())
	m.now = func() time.Time { return recordedAt }
	return m, dir
}

func TestManager_Execute(t *testing.T) {
	p := &stubProvider{
		notFound: map[string]bool{"FINNIFTY": true},
		failing:  map[string]bool{"MIDCPNIFTY": true},
	}
	m, dir := newTestManager(t, p, 2)

	tasks := Tasks([]string{"NIFTY", "BANKNIFTY", "FINNIFTY", "MIDCPNIFTY"}, 0, 1)
	result, err := m.Execute(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Total != 8 {
		t.Errorf("expected total 8, got %d", result.Total)
	}
	if result.Success != 4 {
		t.Errorf("expected 4 successful, got %d", result.Success)
	}
	if result.NotFound != 2 {
		t.Errorf("expected 2 not found, got %d", result.NotFound)
	}
	if result.Failed != 2 || len(result.Errors) != 2 {
		t.Errorf("expected 2 failures with errors, got %d (%v)", result.Failed, result.Errors)
	}
	if p.calls != 8 {
		t.Errorf("expected 8 provider calls, got %d", p.calls)
	}

	want := []string{
		filepath.Join(dir, "2025-01-06", "BANKNIFTY.jsonl"),
		filepath.Join(dir, "2025-01-06", "NIFTY.jsonl"),
	}
	if fmt.Sprint(result.Files) != fmt.Sprint(want) {
		t.Errorf("expected files %v, got %v", want, result.Files)
	}
	if result.Bytes <= 0 {
		t.Errorf("expected bytes written, got %d", result.Bytes)
	}
}

func TestManager_RecordingIsReplayable(t *testing.T) {
	symbols := config.DefaultSymbols()
	m, dir := newTestManager(t, provider.NewSynthetic(symbols, 7, 20), 3)

	result, err := m.Execute(context.Background(), Tasks([]string{"NIFTY"}, 0, 1, 0))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success != 3 {
		t.Fatalf("expected 3 successful, got %d (%v)", result.Success, result.Errors)
	}

	loader, err := data.NewMemoryLoader(dir, "2025-01-06", zap.NewNop())
	if err != nil {
		t.Fatalf("loading archive: %v", err)
	}
	defer loader.Close()

	expiries, err := loader.Expiries("NIFTY")
	if err != nil {
		t.Fatal(err)
	}
	if len(expiries) != 2 {
		t.Fatalf("expected 2 recorded expiries, got %v", expiries)
	}
	total := 0
	for _, e := range expiries {
		n, err := loader.Length("NIFTY", e)
		if err != nil {
			t.Fatal(err)
		}
		total += n
	}
	if total != 3 {
		t.Errorf("expected 3 recorded chains, got %d", total)
	}
}

func TestManager_CancelledContext(t *testing.T) {
	m, _ := newTestManager(t, &stubProvider{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.Execute(ctx, Tasks([]string{"NIFTY", "BANKNIFTY"}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Failed != 0 {
		t.Errorf("unstarted tasks counted as failed: %d", result.Failed)
	}
}

func TestManager_Empty(t *testing.T) {
	m, _ := newTestManager(t, &stubProvider{}, 2)
	result, err := m.Execute(context.Background(), nil)
	if err != nil || result.Total != 0 {
		t.Fatalf("unexpected result %+v, err %v", result, err)
	}
}

func TestTasks(t *testing.T) {
	got := Tasks([]string{"NIFTY", "BANKNIFTY"})
	if len(got) != 2 || got[1] != (Task{Symbol: "BANKNIFTY"}) {
		t.Errorf("unexpected tasks %v", got)
	}
	if s := (Task{Symbol: "NIFTY", ExpiryIndex: 2}).String(); s != "NIFTY/2" {
		t.Errorf("unexpected String: %s", s)
	}
}
