package stream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/analyzer"
	"github.com/dgnsrekt/gexdex/internal/config"
)

// ErrInvalidGroup is returned for group names that do not name a symbol.
var ErrInvalidGroup = errors.New("invalid group")

// ParseGroup reads SYMBOL or SYMBOL/EXPIRY_INDEX into a query.
func ParseGroup(group string, symbols config.Symbols) (analyzer.Query, error) {
	name, idx, hasIdx := strings.Cut(group, "/")
	sym, err := symbols.Lookup(name)
	if err != nil {
		return analyzer.Query{}, fmt.Errorf("%w %q: %w", ErrInvalidGroup, group, err)
	}
	q := analyzer.Query{Symbol: sym.Name}
	if hasIdx {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return analyzer.Query{}, fmt.Errorf("%w %q: expiry index must be a non-negative integer", ErrInvalidGroup, group)
		}
		q.ExpiryIndex = n
	}
	return q, nil
}

// GroupValidator adapts ParseGroup for NewHub.
func GroupValidator(symbols config.Symbols) func(string) error {
	return func(group string) error {
		_, err := ParseGroup(group, symbols)
		return err
	}
}

// Streamer analyzes every subscribed group on a fixed interval and
// broadcasts the result. Reports come through the service cache, so an
// interval shorter than the cache TTL repeats the same snapshot.
type Streamer struct {
	hub      *Hub
	service  *analyzer.Service
	encoder  *Encoder
	interval time.Duration
	logger   *zap.Logger
}

func NewStreamer(hub *Hub, service *analyzer.Service, interval time.Duration, logger *zap.Logger) (*Streamer, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	return &Streamer{
		hub:      hub,
		service:  service,
		encoder:  enc,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	defer s.encoder.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("streamer started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return
		case <-ticker.C:
			s.broadcastAll(ctx)
		}
	}
}

func (s *Streamer) broadcastAll(ctx context.Context) {
	for _, group := range s.hub.ActiveGroups() {
		if ctx.Err() != nil {
			return
		}
		if err := s.broadcast(ctx, group); err != nil {
			s.logger.Warn("stream analysis failed", zap.String("group", group), zap.Error(err))
		}
	}
}

func (s *Streamer) broadcast(ctx context.Context, group string) error {
	q, err := ParseGroup(group, s.service.Symbols())
	if err != nil {
		return err
	}
	rep, err := s.service.Analyze(ctx, q)
	if err != nil {
		return err
	}
	s.hub.Broadcast(group, NewFrames(s.encoder, NewSnapshot(group, rep)))
	s.logger.Debug("broadcast snapshot",
		zap.String("group", group),
		zap.String("id", rep.ID),
		zap.Bool("cached", rep.Cached),
	)
	return nil
}
