package data

import (
	"time"

	"github.com/dgnsrekt/gexdex/internal/gex"
)

// Entry is one line of a recorded archive: a raw chain exactly as a provider
// returned it, plus when it was captured.
type Entry struct {
	RecordedAt time.Time    `json:"recorded_at"`
	Chain      gex.RawChain `json:"chain"`
}

const (
	extJSONL = ".jsonl"
	extZstd  = ".jsonl.zst"
)
