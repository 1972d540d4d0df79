// Package idpool interns player identifiers as shared, immutable handles so
// every per-tick map in the simulation can key on pointer equality instead of
// repeatedly hashing and comparing raw strings.
package idpool

import "sync"

// Handle is a cheaply cloneable, equality-by-identity reference to an
// interned player id string. Two handles compare equal iff they were
// produced by the same GetOrCreate call chain for the same live id — after
// Remove, a subsequent GetOrCreate for the same string yields a new, distinct
// Handle.
type Handle struct {
	entry *entry
}

type entry struct {
	id string
}

// String returns the underlying id string.
func (h Handle) String() string {
	if h.entry == nil {
		return ""
	}
	return h.entry.id
}

// IsZero reports whether h is the zero Handle (never interned).
func (h Handle) IsZero() bool {
	return h.entry == nil
}

// Equal reports whether h and other reference the same interned entry.
func (h Handle) Equal(other Handle) bool {
	return h.entry == other.entry
}

// Pool interns string ids into Handles.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty Pool.
func New() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// GetOrCreate returns the interned Handle for id, allocating one on first
// sight. Idempotent: repeated calls for a live id return equal handles.
func (p *Pool) GetOrCreate(id string) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		return Handle{entry: e}
	}
	e := &entry{id: id}
	p.entries[id] = e
	return Handle{entry: e}
}

// Remove deintern id, returning the Handle that was removed, if any. A
// subsequent GetOrCreate for the same string produces a new Handle that does
// not compare equal to anything returned before this call.
func (p *Pool) Remove(id string) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return Handle{}, false
	}
	delete(p.entries, id)
	return Handle{entry: e}, true
}

// Len reports the number of currently interned ids.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Lookup returns the Handle for id without creating one.
func (p *Pool) Lookup(id string) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return Handle{}, false
	}
	return Handle{entry: e}, true
}
