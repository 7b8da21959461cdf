package sane

import (
	"sync"
	"sync/atomic"
)

// Anchor grants temporary, exclusive use of the Session. Implementations
// decide how that use is shared: see Shared, Locked and AnchorFunc.
// WithSession must not be called again from inside f on the same anchor.
type Anchor interface {
	WithSession(f func(s *Session))
}

// With calls f with the anchor's session and returns its result.
func With[R any](a Anchor, f func(s *Session) R) R {
	var r R
	a.WithSession(func(s *Session) { r = f(s) })
	return r
}

// With2 is With for functions returning two values, typically a result
// and an error.
func With2[R1, R2 any](a Anchor, f func(s *Session) (R1, R2)) (R1, R2) {
	var (
		r1 R1
		r2 R2
	)
	a.WithSession(func(s *Session) { r1, r2 = f(s) })
	return r1, r2
}

// AnchorFunc is a delegate anchor.
type AnchorFunc func(f func(s *Session))

func (fn AnchorFunc) WithSession(f func(s *Session)) { fn(f) }

// Shared is a reference-counted anchor. Each clone is released once; the
// last Release closes the inner anchor if it has a Close method.
type Shared struct {
	inner    Anchor
	refs     *atomic.Int64
	released atomic.Bool
}

// NewShared returns the first reference to inner.
func NewShared(inner Anchor) *Shared {
	refs := new(atomic.Int64)
	refs.Store(1)
	return &Shared{inner: inner, refs: refs}
}

// Clone returns another reference to the same anchor.
func (s *Shared) Clone() *Shared {
	if s.released.Load() {
		panic("sane: clone of released anchor")
	}
	s.refs.Add(1)
	return &Shared{inner: s.inner, refs: s.refs}
}

// Release drops this reference. Calling it more than once has no effect.
func (s *Shared) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	if s.refs.Add(-1) > 0 {
		return nil
	}
	if c, ok := s.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *Shared) WithSession(f func(s *Session)) {
	if s.released.Load() {
		panic("sane: use of released anchor")
	}
	s.inner.WithSession(f)
}

// Locked serializes access to the inner anchor with a mutex.
type Locked struct {
	mu    sync.Mutex
	inner Anchor
}

func NewLocked(inner Anchor) *Locked {
	return &Locked{inner: inner}
}

func (l *Locked) WithSession(f func(s *Session)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.WithSession(f)
}

// Close closes the inner anchor when it can be closed.
func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
