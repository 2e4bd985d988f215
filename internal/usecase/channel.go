package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tambourine/internal/domain"
	"tambourine/internal/observability/metrics"
	"tambourine/internal/ports"
)

var ErrChannelSend = errors.New("channel send failed")

// SendError classifies a message the handle failed to send.
type SendError struct {
	Kind string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %q: %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Is(target error) bool {
	return target == ErrChannelSend
}

// messageChannel sends control and configuration messages through a handle.
// Each send builds its own payload, so one failure never affects another send.
type messageChannel struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func (c messageChannel) sendControl(handle ports.CapabilityHandle, kind domain.ControlKind) error {
	return c.send(handle, string(kind), map[string]any{})
}

func (c messageChannel) sendConfig(handle ports.CapabilityHandle, kind string, payload any) error {
	if strings.TrimSpace(kind) == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidConfig)
	}
	return c.send(handle, kind, payload)
}

func (c messageChannel) send(handle ports.CapabilityHandle, kind string, payload any) error {
	if err := handle.SendMessage(kind, payload); err != nil {
		c.log.Warn().Str("kind", kind).Err(err).Msg("message send failed")
		c.metrics.ObserveSendFailure(kind)
		return &SendError{Kind: kind, Err: err}
	}
	return nil
}
