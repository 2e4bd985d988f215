package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tambourine/internal/bootstrap"
	"tambourine/internal/domain"
	"tambourine/internal/observability/logging"
	"tambourine/internal/surfacesync"
)

// cliSink buffers results for the running command and logs errors.
type cliSink struct {
	results chan domain.DictationResult
	configs chan domain.ConfigResult
	log     zerolog.Logger
}

func newCLISink() *cliSink {
	return &cliSink{
		results: make(chan domain.DictationResult, 4),
		configs: make(chan domain.ConfigResult, 4),
		log:     logging.WithComponent("cli"),
	}
}

func (s *cliSink) FinalTranscript(result domain.DictationResult) {
	select {
	case s.results <- result:
	default:
		s.log.Warn().Msg("dropping unread dictation result")
	}
}

func (s *cliSink) ConfigResult(result domain.ConfigResult) {
	select {
	case s.configs <- result:
	default:
		s.log.Warn().Str("setting", result.Setting).Msg("dropping unread config result")
	}
}

func (s *cliSink) SessionError(code domain.ErrorCode, detail string) {
	s.log.Error().Str("code", string(code)).Msg(detail)
}

// cliSession is a connected controller plus a mirror of its state.
type cliSession struct {
	services bootstrap.Services
	sink     *cliSink
	mirror   *surfacesync.Mirror
}

func openSession(ctx context.Context, registerer prometheus.Registerer) (*cliSession, error) {
	sink := newCLISink()
	// Headless runs never reconnect; a lost connection ends the command.
	sessionCfg := cfg
	sessionCfg.Session.ReconnectDelay = 0

	services, err := bootstrap.Build(sessionCfg, bootstrap.Dependencies{Events: sink, Registerer: registerer})
	if err != nil {
		return nil, err
	}
	session := &cliSession{
		services: services,
		sink:     sink,
		mirror:   surfacesync.NewMirror(services.Bus, logging.WithComponent("cli")),
	}

	if err := services.Controller.Connect(ctx); err != nil {
		session.close()
		return nil, err
	}
	if err := waitForState(ctx, session.mirror, domain.ConnectionStateIdle); err != nil {
		session.close()
		return nil, err
	}
	return session, nil
}

func (s *cliSession) close() {
	s.mirror.Close()
	if err := s.services.Controller.Close(); err != nil {
		s.sink.log.Debug().Err(err).Msg("closing controller failed")
	}
}

// waitForState blocks until mirror reports want or ctx ends.
func waitForState(ctx context.Context, mirror *surfacesync.Mirror, want domain.ConnectionState) error {
	reached := make(chan struct{}, 1)
	off := mirror.OnChange(func(state domain.ConnectionState) {
		if state != want {
			return
		}
		select {
		case reached <- struct{}{}:
		default:
		}
	})
	defer off()
	if mirror.State() == want {
		return nil
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", want, ctx.Err())
	}
}
