// Package denylist holds access credentials revoked before their natural expiry.
//
// The set is process-local and not persisted: a restart forgets every denial, and
// credentials issued before it stay valid until they expire on their own.
package denylist

import (
	"context"
	"log"
	"sync"
	"time"
)

// Denylist maps a credential to the instant its denial lapses. It is safe for
// concurrent use.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

type Option func(*Denylist)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Denylist) { d.now = now }
}

func New(opts ...Option) *Denylist {
	d := &Denylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deny records token as denied until now+ttl. An existing entry is only ever
// extended, never shortened; a non-positive ttl is ignored.
func (d *Denylist) Deny(token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	until := d.now().Add(ttl)
	if cur, ok := d.entries[token]; ok && cur.After(until) {
		return
	}
	d.entries[token] = until
}

// IsDenied reports whether token has an entry whose expiry is still ahead.
// An expired entry is removed on the way out.
func (d *Denylist) IsDenied(token string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[token]
	if !ok {
		return false
	}
	if !d.now().Before(until) {
		delete(d.entries, token)
		return false
	}
	return true
}

// Sweep drops every expired entry and returns how many were removed.
func (d *Denylist) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0
	for token, until := range d.entries {
		if !now.Before(until) {
			delete(d.entries, token)
			removed++
		}
	}
	return removed
}

func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Run sweeps every interval until ctx is done.
func (d *Denylist) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(); n > 0 {
				log.Printf("denylist_sweep removed=%d remaining=%d", n, d.Len())
			}
		}
	}
}
