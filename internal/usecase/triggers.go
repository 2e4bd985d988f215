package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"tambourine/internal/domain"
	"tambourine/internal/ports"
)

// RecordingController is the part of DictationController driven by recording triggers.
type RecordingController interface {
	Start(ctx context.Context) error
	Stop() error
}

// BindRecordingTriggers starts and stops recordings on the shared bus topics, so any
// surface (hotkey, overlay button) can trigger dictation. Failures are logged only.
// The returned function removes both subscriptions.
func BindRecordingTriggers(ctx context.Context, bus ports.EventBus, controller RecordingController, logger zerolog.Logger) func() {
	offStart := bus.Subscribe(domain.EventRecordingStart, func(any) {
		if err := controller.Start(ctx); err != nil {
			logger.Warn().Err(err).Str("trigger", domain.EventRecordingStart).Msg("recording trigger ignored")
		}
	})
	offStop := bus.Subscribe(domain.EventRecordingStop, func(any) {
		if err := controller.Stop(); err != nil {
			logger.Warn().Err(err).Str("trigger", domain.EventRecordingStop).Msg("recording trigger ignored")
		}
	})
	return func() {
		offStart()
		offStop()
	}
}
