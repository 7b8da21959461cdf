package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mzyy94/airsane/internal/config"
	"github.com/mzyy94/airsane/internal/metrics"
	"github.com/mzyy94/airsane/internal/sane"
	"github.com/mzyy94/airsane/internal/sane/sys"
	"github.com/mzyy94/airsane/internal/sane/sys/mock"
	"github.com/mzyy94/airsane/internal/scanner"
)

// session is an initialized library shared through a locked anchor.
type session struct {
	anchor  *sane.Locked
	version sane.Version
}

func openSession(cfg *config.Config) (*session, error) {
	var backend sys.Backend
	switch cfg.Backend {
	case config.BackendMock:
		backend = mock.Demo()
	default:
		backend = sys.NewLibSANE()
	}

	sess, v, err := sane.Init(backend, authorizer(cfg.Username, cfg.Password))
	if err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", cfg.Backend, err)
	}
	metrics.SessionsActive.Inc()
	slog.Debug("session opened", "backend", cfg.Backend, "version", v.String())
	return &session{anchor: sane.NewLocked(sess), version: v}, nil
}

func (s *session) Close() error {
	metrics.SessionsActive.Dec()
	return s.anchor.Close()
}

// connect opens the configured device, or the first one found.
func (s *session) connect(ctx context.Context, device string) (*scanner.Scanner, error) {
	sc := scanner.New(s.anchor, device)
	if err := sc.Connect(ctx); err != nil {
		return nil, err
	}
	return sc, nil
}

// authorizer answers backend credential requests with the configured
// username and password. With neither set every request is declined.
func authorizer(username, password string) sane.AuthorizationCallback {
	return sane.AuthorizeFunc(func(resource sane.Str, a *sane.Authorizer) sane.AuthOK {
		if username == "" && password == "" {
			slog.Warn("backend requested credentials but none are configured", "resource", resource.String())
			metrics.AuthRequestsTotal.WithLabelValues("declined").Inc()
			return sane.AuthOK{}
		}
		ok, err := a.ProvideCredentials(username, password)
		if err != nil {
			slog.Error("cannot provide credentials", "resource", resource.String(), "err", err)
			metrics.AuthRequestsTotal.WithLabelValues("declined").Inc()
			return sane.AuthOK{}
		}
		metrics.AuthRequestsTotal.WithLabelValues("provided").Inc()
		return ok
	})
}
