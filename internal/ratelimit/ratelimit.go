// Package ratelimit implements the bulkhead gating every external call the
// sync engine makes: a bounded permit pool plus a minimum delay between
// acquisitions, scoped per external-system class so one slow or failing
// service cannot starve the others.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Acquire after Close. It signals a fatal wiring
// error upstream: limiters live for the whole process.
var ErrClosed = errors.New("rate limiter is closed")

// Limiter bounds in-flight operations against one external system and spaces
// them out by a minimum delay. At most maxConcurrent callers hold a permit at
// once, and no caller proceeds sooner than minDelay after obtaining one.
type Limiter struct {
	permits  chan struct{}
	minDelay time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a limiter with the given permit pool size and minimum delay.
func New(maxConcurrent int, minDelay time.Duration) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{
		permits:  make(chan struct{}, maxConcurrent),
		minDelay: minDelay,
		done:     make(chan struct{}),
	}
}

// ForExchange gates signed exchange REST calls: 3 concurrent, 100ms apart.
func ForExchange() *Limiter { return New(3, 100*time.Millisecond) }

// ForEVMRPC gates EVM JSON-RPC calls: 5 concurrent, 50ms apart.
func ForEVMRPC() *Limiter { return New(5, 50*time.Millisecond) }

// ForSolanaRPC gates Solana JSON-RPC calls against public endpoints:
// 3 concurrent, 100ms apart.
func ForSolanaRPC() *Limiter { return New(3, 100*time.Millisecond) }

// Acquire blocks until a permit is free, then waits the minimum delay and
// returns a release function. Release is idempotent and must be called on
// every exit path, typically via defer.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case l.permits <- struct{}{}:
	}

	if l.minDelay > 0 {
		timer := time.NewTimer(l.minDelay)
		defer timer.Stop()
		select {
		case <-l.done:
			<-l.permits
			return nil, ErrClosed
		case <-ctx.Done():
			<-l.permits
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-l.permits })
	}
	return release, nil
}

// Close tears the limiter down. Pending and future Acquire calls fail with
// ErrClosed; already-held permits stay valid until released.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}
