package data

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// MemoryLoader holds a whole recording day in memory.
type MemoryLoader struct {
	data     map[string][]Entry  // key: symbol/expiry
	expiries map[string][]string // key: symbol
	logger   *zap.Logger
}

var _ Archive = (*MemoryLoader)(nil)

// NewMemoryLoader reads every {SYMBOL}.jsonl and {SYMBOL}.jsonl.zst file in
// {dataDir}/{date}.
func NewMemoryLoader(dataDir, date string, logger *zap.Logger) (*MemoryLoader, error) {
	loader := &MemoryLoader{
		data:     make(map[string][]Entry),
		expiries: make(map[string][]string),
		logger:   logger,
	}

	dateDir := filepath.Join(dataDir, date)

	err := filepath.Walk(dateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		symbol, ok := symbolFromFile(info.Name())
		if !ok {
			return nil
		}

		entries, err := loadFile(path)
		if err != nil {
			logger.Warn("failed to load file", zap.String("path", path), zap.Error(err))
			return nil
		}

		for _, e := range entries {
			key := DataKey(symbol, e.Chain.Expiry)
			if _, seen := loader.data[key]; !seen {
				loader.expiries[symbol] = append(loader.expiries[symbol], e.Chain.Expiry)
			}
			loader.data[key] = append(loader.data[key], e)
		}
		logger.Info("loaded data",
			zap.String("symbol", symbol),
			zap.String("path", path),
			zap.Int("count", len(entries)),
		)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walking data directory: %w", err)
	}

	if len(loader.data) == 0 {
		return nil, fmt.Errorf("no recorded chains found in %s", dateDir)
	}

	for symbol := range loader.expiries {
		sort.Strings(loader.expiries[symbol])
	}

	return loader, nil
}

// symbolFromFile maps "NIFTY.jsonl" or "NIFTY.jsonl.zst" to NIFTY.
func symbolFromFile(name string) (string, bool) {
	for _, ext := range []string{extZstd, extJSONL} {
		if strings.HasSuffix(name, ext) {
			return strings.ToUpper(strings.TrimSuffix(name, ext)), true
		}
	}
	return "", false
}

func loadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, extZstd) {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return readJSONL(r)
}

func readJSONL(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)

	// Option chains can be large single lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e Entry
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (m *MemoryLoader) Get(ctx context.Context, symbol, expiry string, index int) (*Entry, error) {
	entries, ok := m.data[DataKey(symbol, expiry)]
	if !ok {
		return nil, ErrNotFound
	}
	if index < 0 || index >= len(entries) {
		return nil, ErrIndexOutOfBounds
	}
	return &entries[index], nil
}

func (m *MemoryLoader) Length(symbol, expiry string) (int, error) {
	entries, ok := m.data[DataKey(symbol, expiry)]
	if !ok {
		return 0, ErrNotFound
	}
	return len(entries), nil
}

func (m *MemoryLoader) Expiries(symbol string) ([]string, error) {
	exp, ok := m.expiries[symbol]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]string, len(exp))
	copy(out, exp)
	return out, nil
}

// Symbols returns all loaded symbols sorted.
func (m *MemoryLoader) Symbols() []string {
	symbols := make([]string, 0, len(m.expiries))
	for s := range m.expiries {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (m *MemoryLoader) Close() error {
	m.data = nil
	m.expiries = nil
	return nil
}
