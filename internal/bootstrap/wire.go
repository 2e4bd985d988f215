package bootstrap

import (
	"fmt"
	"net/url"

	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"

	"tambourine/internal/audio"
	"tambourine/internal/config"
	"tambourine/internal/eventbus"
	"tambourine/internal/observability/logging"
	"tambourine/internal/observability/metrics"
	"tambourine/internal/ports"
	"tambourine/internal/surfacesync"
	"tambourine/internal/transport/smallwebrtc"
	"tambourine/internal/usecase"
)

// Dependencies are the surface-specific adapters the graph is built around.
type Dependencies struct {
	// Bus defaults to an in-process LocalBus.
	Bus       ports.EventBus
	Events    ports.EventSink
	Clipboard ports.Clipboard
	// Registerer defaults to a fresh registry.
	Registerer prometheus.Registerer
}

// Services is the assembled runtime graph of the owning surface.
type Services struct {
	Controller *usecase.DictationController
	Dialer     *smallwebrtc.Dialer
	Bus        ports.EventBus
	Metrics    *metrics.Metrics
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(cfg config.Config, deps Dependencies) (Services, error) {
	if err := validateServerURL(cfg.Server.URL); err != nil {
		return Services{}, err
	}
	if deps.Events == nil {
		return Services{}, fmt.Errorf("event sink is required")
	}

	bus := deps.Bus
	if bus == nil {
		bus = eventbus.NewLocalBus(logging.WithComponent("eventbus"))
	}
	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m := metrics.New(registerer)

	session := usecase.NewSession(
		usecase.WithLogger(logging.WithComponent("session")),
		usecase.WithMetrics(m),
		usecase.WithObserver(surfacesync.NewBroadcaster(bus)),
	)

	capture := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logging.WithComponent("audio"))
	dialer := smallwebrtc.NewDialer(smallwebrtc.Config{
		ServerURL:      cfg.Server.URL,
		ICEServers:     iceServers(cfg.Server.ICEServers),
		RequestTimeout: cfg.Server.RequestTimeout,
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
	}, capture, logging.WithComponent("transport"))

	controller := usecase.NewDictationController(
		session,
		dialer,
		deps.Clipboard,
		deps.Events,
		usecase.ControllerConfig{
			ConnectTimeout: cfg.Session.ConnectTimeout,
			ReconnectDelay: cfg.Session.ReconnectDelay,
		},
		logging.WithComponent("controller"),
	)

	return Services{
		Controller: controller,
		Dialer:     dialer,
		Bus:        bus,
		Metrics:    m,
		Config:     cfg,
	}, nil
}

func validateServerURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", raw, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid server url %q: expected http(s)://host[:port]", raw)
	}
	return nil
}

func iceServers(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: urls}}
}
