package sane

import (
	"log/slog"
	"sync/atomic"

	"github.com/mzyy94/airsane/internal/sane/sys"
)

var (
	// instance is set while a Session exists.
	instance atomic.Bool
	// authHandler is only written while no library call can be in
	// flight: before Init reaches the backend and after Exit.
	authHandler AuthorizationCallback
)

// Session is the initialized library. Exactly one may exist at a time.
type Session struct {
	backend sys.Backend
	version Version
	closed  atomic.Bool
}

// Init initializes the library through backend and installs auth as the
// authorization handler. A nil auth declines every request.
//
// Init panics if a Session already exists.
func Init(backend sys.Backend, auth AuthorizationCallback) (*Session, Version, error) {
	if !instance.CompareAndSwap(false, true) {
		panic("sane: library already initialized")
	}
	authHandler = auth

	code, st := backend.Init(authorize)
	if err := check(backend, st); err != nil {
		authHandler = nil
		instance.Store(false)
		return nil, 0, err
	}

	v := Version(code)
	slog.Debug("sane: initialized", "version", v.String())
	return &Session{backend: backend, version: v}, v, nil
}

// InitNoAuth is Init without an authorization handler.
func InitNoAuth(backend sys.Backend) (*Session, Version, error) {
	return Init(backend, nil)
}

// Version returns the version reported by the library.
func (s *Session) Version() Version {
	return s.version
}

// Close exits the library. Devices opened through the session must be
// closed first. Calling Close more than once has no effect.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.backend.Exit()
	authHandler = nil
	instance.Store(false)
	slog.Debug("sane: exited")
	return nil
}

// WithSession calls f with s.
func (s *Session) WithSession(f func(s *Session)) {
	f(s)
}

// sys returns the backend, panicking after Close.
func (s *Session) sys() sys.Backend {
	if s.closed.Load() {
		panic("sane: use of closed session")
	}
	return s.backend
}
