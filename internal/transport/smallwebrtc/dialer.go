package smallwebrtc

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"tambourine/internal/ports"
)

// Dialer builds unopened Clients sharing one signaling client and audio capture.
type Dialer struct {
	cfg       Config
	signaling *SignalingClient
	capture   ports.AudioCapture
	log       zerolog.Logger
}

func NewDialer(cfg Config, capture ports.AudioCapture, logger zerolog.Logger) *Dialer {
	return &Dialer{
		cfg:       cfg,
		signaling: NewSignalingClient(cfg.ServerURL, cfg.RequestTimeout),
		capture:   capture,
		log:       logger,
	}
}

func (d *Dialer) NewConnection(events ports.TransportEvents) (ports.Connection, error) {
	if strings.TrimSpace(d.cfg.ServerURL) == "" {
		return nil, errors.New("server url is not configured")
	}
	if events == nil {
		return nil, errors.New("transport events are required")
	}
	return NewClient(d.cfg, d.signaling, d.capture, events, d.log), nil
}

// Providers lists the STT and LLM providers available on the server.
func (d *Dialer) Providers(ctx context.Context) (*AvailableProviders, error) {
	return d.signaling.Providers(ctx)
}
