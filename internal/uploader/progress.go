package uploader

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Progress tracks the bytes moved by one upload job. The chunk loop is the
// only writer; the periodic reporter goroutine reads concurrently, so the
// counter is atomic.
type Progress struct {
	bytes   atomic.Int64
	started time.Time
}

// NewProgress creates a Progress with the clock started now.
func NewProgress() *Progress {
	return &Progress{started: time.Now()}
}

// Add records n more transferred bytes.
func (p *Progress) Add(n int64) {
	p.bytes.Add(n)
}

// Bytes returns the total bytes transferred so far.
func (p *Progress) Bytes() int64 {
	return p.bytes.Load()
}

// Snapshot is one progress sample handed to the reporting callback.
type Snapshot struct {
	Bytes   int64
	Elapsed time.Duration
}

// Snapshot samples the current state.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Bytes:   p.bytes.Load(),
		Elapsed: time.Since(p.started),
	}
}

// String renders the snapshot as "1.2 GB (12 MB/s)".
func (s Snapshot) String() string {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return humanize.Bytes(uint64(s.Bytes)) //nolint:gosec // byte counts are non-negative
	}

	rate := float64(s.Bytes) / secs

	return fmt.Sprintf("%s (%s/s)",
		humanize.Bytes(uint64(s.Bytes)),  //nolint:gosec // byte counts are non-negative
		humanize.Bytes(uint64(rate)),     //nolint:gosec // rates are non-negative
	)
}
