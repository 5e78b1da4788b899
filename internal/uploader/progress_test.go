package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Add(t *testing.T) {
	p := NewProgress()

	p.Add(100)
	p.Add(50)

	assert.Equal(t, int64(150), p.Bytes())

	snap := p.Snapshot()
	assert.Equal(t, int64(150), snap.Bytes)
	assert.GreaterOrEqual(t, snap.Elapsed, time.Duration(0))
}

func TestSnapshot_String(t *testing.T) {
	s := Snapshot{Bytes: 10 * 1000 * 1000, Elapsed: 10 * time.Second}

	assert.Equal(t, "10 MB (1.0 MB/s)", s.String())
}

func TestSnapshot_String_ZeroElapsed(t *testing.T) {
	s := Snapshot{Bytes: 1000}

	assert.Equal(t, "1.0 kB", s.String())
}
