// Package record snapshots option chains from a provider into the on-disk
// archive that replay mode serves.
package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/gex"
	"github.com/dgnsrekt/gexdex/internal/provider"
)

// Appender persists one chain; *data.Recorder satisfies it.
type Appender interface {
	Append(chain *gex.RawChain, at time.Time) (string, int64, error)
}

type Manager struct {
	provider provider.Provider
	archive  Appender
	workers  int
	now      func() time.Time
	logger   *zap.Logger
}

type BatchResult struct {
	Total    int
	Success  int
	NotFound int
	Failed   int
	Bytes    int64
	Files    []string
	Errors   []string
}

func NewManager(p provider.Provider, archive Appender, workers int, logger *zap.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		provider: p,
		archive:  archive,
		workers:  workers,
		now:      time.Now,
		logger:   logger,
	}
}

// Execute runs tasks on the worker pool. A cancelled context stops
// dispatching; tasks never started are not counted as failed.
func (m *Manager) Execute(ctx context.Context, tasks []Task) (*BatchResult, error) {
	result := &BatchResult{Total: len(tasks)}
	if len(tasks) == 0 {
		return result, nil
	}

	jobs := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make(map[string]struct{})
	for r := range results {
		switch {
		case r.NotFound:
			result.NotFound++
		case r.Success:
			result.Success++
			result.Bytes += r.Bytes
			files[r.Path] = struct{}{}
		default:
			result.Failed++
			if r.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Task, r.Error))
			}
		}
	}
	for f := range files {
		result.Files = append(result.Files, f)
	}
	sort.Strings(result.Files)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("recording interrupted: %w", err)
	}
	return result, nil
}

func (m *Manager) worker(ctx context.Context, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- m.processTask(ctx, task)
	}
}

func (m *Manager) processTask(ctx context.Context, task Task) TaskResult {
	result := TaskResult{Task: task}

	chain, err := m.provider.Chain(ctx, provider.Request{Symbol: task.Symbol, ExpiryIndex: task.ExpiryIndex})
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) || errors.Is(err, provider.ErrNoExpiries) {
			m.logger.Debug("no chain", zap.String("task", task.String()), zap.Error(err))
			result.NotFound = true
			return result
		}
		m.logger.Warn("fetching chain failed", zap.String("task", task.String()), zap.Error(err))
		result.Error = err
		return result
	}

	path, n, err := m.archive.Append(chain, m.now())
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Path = path
	result.Bytes = n
	m.logger.Info("recorded",
		zap.String("task", task.String()),
		zap.String("expiry", chain.Expiry),
		zap.String("source", chain.Source),
		zap.Int("records", len(chain.Records)),
		zap.Int64("bytes", n),
	)
	return result
}
