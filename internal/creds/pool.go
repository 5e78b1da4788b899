// Package creds builds the OAuth2 token sources the upload engine
// authorizes with: a single user or bot token loaded from a token file, or
// an ordered pool of service-account identities that can be rotated when
// one identity's Drive quota is exhausted.
package creds

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned by Rotate once every identity in the pool has
// been consumed. Rotation then fails permanently for the job.
var ErrExhausted = errors.New("creds: service account pool exhausted")

// Source provides bearer tokens for one identity.
type Source interface {
	Token() (string, error)
}

// Pool is an ordered, bounded set of equivalent identities. It implements
// the drive client's TokenSource by delegating to the active identity, so a
// successful Rotate takes effect on the next request without re-wiring the
// client.
//
// The pool is not safe for concurrent rotation — the engine runs a single
// logical transfer flow, so exactly one goroutine rotates.
type Pool struct {
	sources  []Source
	active   int
	used     int
	capacity int
	logger   *slog.Logger
}

// NewPool creates a rotating pool over the given identities, in order.
// Capacity equals the number of identities: each may be consumed once.
func NewPool(sources []Source, logger *slog.Logger) (*Pool, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("creds: pool requires at least one identity")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		sources:  sources,
		capacity: len(sources),
		logger:   logger,
	}, nil
}

// NewSingle creates a non-rotatable pool around one identity. Quota errors
// under a single identity escalate instead of rotating.
func NewSingle(source Source, logger *slog.Logger) *Pool {
	p, _ := NewPool([]Source{source}, logger) //nolint:errcheck // one source is always valid

	p.capacity = 0 // rotation disabled

	return p
}

// Token returns a bearer token from the active identity.
func (p *Pool) Token() (string, error) {
	return p.sources[p.active].Token()
}

// CanRotate reports whether the pool has rotation capacity at all.
// Single-identity pools never rotate.
func (p *Pool) CanRotate() bool {
	return p.capacity > 1
}

// Rotate advances to the next identity in the pool, wrapping around.
// It fails with ErrExhausted once used >= capacity; after that every
// subsequent call fails the same way.
func (p *Pool) Rotate() error {
	if p.used >= p.capacity {
		p.logger.Info("service account pool exhausted",
			slog.Int("used", p.used),
			slog.Int("capacity", p.capacity),
		)

		return ErrExhausted
	}

	p.used++
	p.active = (p.active + 1) % len(p.sources)

	p.logger.Info("rotated service account",
		slog.Int("active", p.active),
		slog.Int("used", p.used),
		slog.Int("capacity", p.capacity),
	)

	return nil
}

// Used returns how many rotations have been consumed.
func (p *Pool) Used() int {
	return p.used
}

// Capacity returns the total rotation budget.
func (p *Pool) Capacity() int {
	return p.capacity
}
