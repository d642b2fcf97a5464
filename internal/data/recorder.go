package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/gex"
)

// Recorder appends raw chains to the archive layout read by MemoryLoader.
// With compression on, every line is written as its own zstd frame so files
// can be appended to and still decode as one stream.
type Recorder struct {
	dir     string
	encoder *zstd.Encoder
	mu      sync.Mutex
	logger  *zap.Logger
}

func NewRecorder(dir string, compress bool, logger *zap.Logger) (*Recorder, error) {
	r := &Recorder{dir: dir, logger: logger}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		r.encoder = enc
	}
	return r, nil
}

// Path returns the archive file for symbol on the day of t.
func (r *Recorder) Path(symbol string, t time.Time) string {
	ext := extJSONL
	if r.encoder != nil {
		ext = extZstd
	}
	return filepath.Join(r.dir, t.Format("2006-01-02"), strings.ToUpper(symbol)+ext)
}

// Append writes chain as one line and returns the file it went to and the
// number of bytes written.
func (r *Recorder) Append(chain *gex.RawChain, at time.Time) (string, int64, error) {
	line, err := json.Marshal(Entry{RecordedAt: at.UTC(), Chain: *chain})
	if err != nil {
		return "", 0, fmt.Errorf("encoding chain: %w", err)
	}
	line = append(line, '\n')

	path := r.Path(chain.Symbol, at)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder != nil {
		line = r.encoder.EncodeAll(line, nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("opening archive: %w", err)
	}
	n, err := f.Write(line)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("writing archive: %w", err)
	}

	r.logger.Debug("recorded chain",
		zap.String("symbol", chain.Symbol),
		zap.String("expiry", chain.Expiry),
		zap.String("path", path),
		zap.Int("bytes", n),
	)
	return path, int64(n), nil
}

func (r *Recorder) Close() error {
	if r.encoder != nil {
		return r.encoder.Close()
	}
	return nil
}
