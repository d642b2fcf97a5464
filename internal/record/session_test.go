package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func TestNSESession_IsOpen(t *testing.T) {
	s := NSESession(ist, []string{"2025-01-07"})

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday before open", time.Date(2025, 1, 6, 9, 14, 59, 0, ist), false},
		{"monday at open", time.Date(2025, 1, 6, 9, 15, 0, 0, ist), true},
		{"monday midday in UTC", time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC), true},
		{"monday at close", time.Date(2025, 1, 6, 15, 30, 0, 0, ist), false},
		{"saturday", time.Date(2025, 1, 11, 11, 0, 0, 0, ist), false},
		{"holiday", time.Date(2025, 1, 7, 11, 0, 0, 0, ist), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsOpen(tt.at); got != tt.want {
				t.Errorf("IsOpen(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestNSESession_NextOpen(t *testing.T) {
	s := NSESession(ist, []string{"2025-01-13"})

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"early morning", time.Date(2025, 1, 6, 7, 0, 0, 0, ist), time.Date(2025, 1, 6, 9, 15, 0, 0, ist)},
		{"while open", time.Date(2025, 1, 6, 10, 0, 0, 0, ist), time.Date(2025, 1, 6, 10, 0, 0, 0, ist)},
		{"after close", time.Date(2025, 1, 6, 16, 0, 0, 0, ist), time.Date(2025, 1, 7, 9, 15, 0, 0, ist)},
		{"friday evening skips weekend and holiday", time.Date(2025, 1, 10, 18, 0, 0, 0, ist), time.Date(2025, 1, 14, 9, 15, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.NextOpen(tt.at); !got.Equal(tt.want) {
				t.Errorf("NextOpen(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}

	if got := (Session{Location: ist}).NextOpen(time.Now()); !got.IsZero() {
		t.Errorf("session without trading days opened at %v", got)
	}
}

func TestBatchResult_Add(t *testing.T) {
	total := &BatchResult{Total: 2, Success: 2, Files: []string{"a"}}
	total.Add(&BatchResult{Total: 3, Success: 1, Failed: 1, NotFound: 1, Bytes: 10, Files: []string{"a", "b"}, Errors: []string{"x"}})
	total.Add(nil)

	if total.Total != 5 || total.Success != 3 || total.Failed != 1 || total.NotFound != 1 || total.Bytes != 10 {
		t.Errorf("unexpected totals %+v", total)
	}
	if len(total.Files) != 2 || len(total.Errors) != 1 {
		t.Errorf("unexpected files/errors %v %v", total.Files, total.Errors)
	}
}

func TestLoop_RecordsDuringSessionAndReportsAtClose(t *testing.T) {
	m, _ := newTestManager(t, &stubProvider{}, 1)
	loop := NewLoop(m, NSESession(ist, nil), time.Minute, zap.NewNop())

	clock := []time.Time{
		time.Date(2025, 1, 6, 10, 0, 0, 0, ist),
		time.Date(2025, 1, 6, 10, 1, 0, 0, ist),
		time.Date(2025, 1, 6, 15, 31, 0, 0, ist),
	}
	var mu sync.Mutex
	tick := 0
	loop.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := clock[min(tick, len(clock)-1)]
		tick++
		return t
	}
	var waits []time.Duration
	fired := make(chan time.Time)
	close(fired)
	loop.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		return fired
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotDay string
	var got *BatchResult
	var gotElapsed time.Duration
	loop.OnSessionEnd = func(_ context.Context, day string, total *BatchResult, elapsed time.Duration) {
		if got == nil {
			gotDay, got, gotElapsed = day, total, elapsed
		}
		cancel()
	}

	err := loop.Run(ctx, Tasks([]string{"NIFTY", "BANKNIFTY"}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if gotDay != "2025-01-06" {
		t.Errorf("expected session day 2025-01-06, got %q", gotDay)
	}
	if got == nil || got.Total != 4 || got.Success != 4 {
		t.Fatalf("expected 4 recorded chains, got %+v", got)
	}
	if gotElapsed != time.Minute {
		t.Errorf("expected session elapsed 1m, got %v", gotElapsed)
	}
	if len(got.Files) != 2 {
		t.Errorf("expected 2 files, got %v", got.Files)
	}
	if len(waits) < 2 || waits[0] != time.Minute || waits[1] != time.Minute {
		t.Errorf("unexpected waits %v", waits)
	}
}
