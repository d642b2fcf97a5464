package record

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Loop records tasks every Interval while Session is open and reports the
// accumulated result of each session when it closes.
type Loop struct {
	manager  *Manager
	session  Session
	interval time.Duration
	logger   *zap.Logger

	// OnSessionEnd receives the trading day, everything recorded in it and
	// the time from its first to its last pass.
	OnSessionEnd func(ctx context.Context, day string, total *BatchResult, elapsed time.Duration)

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewLoop(m *Manager, session Session, interval time.Duration, logger *zap.Logger) *Loop {
	return &Loop{
		manager:  m,
		session:  session,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
	}
}

// Add folds other into r.
func (r *BatchResult) Add(other *BatchResult) {
	if other == nil {
		return
	}
	r.Total += other.Total
	r.Success += other.Success
	r.NotFound += other.NotFound
	r.Failed += other.Failed
	r.Bytes += other.Bytes
	r.Errors = append(r.Errors, other.Errors...)

	seen := make(map[string]bool, len(r.Files))
	for _, f := range r.Files {
		seen[f] = true
	}
	for _, f := range other.Files {
		if !seen[f] {
			r.Files = append(r.Files, f)
			seen[f] = true
		}
	}
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context, tasks []Task) error {
	var (
		day         string
		total       *BatchResult
		first, last time.Time
	)
	flush := func() {
		if total != nil && l.OnSessionEnd != nil {
			l.OnSessionEnd(ctx, day, total, last.Sub(first))
		}
		total = nil
	}

	for {
		now := l.now()
		var wait time.Duration

		if l.session.IsOpen(now) {
			today := l.session.Day(now)
			if total != nil && today != day {
				flush()
			}
			if total == nil {
				day, total, first = today, &BatchResult{}, now
				l.logger.Info("session open, recording", zap.String("day", day), zap.Int("tasks", len(tasks)))
			}

			res, err := l.manager.Execute(ctx, tasks)
			total.Add(res)
			last = now
			if err != nil {
				flush()
				return err
			}
			wait = l.interval
		} else {
			flush()
			next := l.session.NextOpen(now)
			if next.IsZero() {
				return fmt.Errorf("no upcoming trading session")
			}
			wait = next.Sub(now)
			l.logger.Info("session closed, waiting", zap.Time("nextOpen", next), zap.Duration("wait", wait))
		}

		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case <-l.after(wait):
		}
	}
}
