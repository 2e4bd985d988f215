package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"tambourine/internal/bootstrap"
	"tambourine/internal/config"
	"tambourine/internal/domain"
	"tambourine/internal/observability/logging"
	"tambourine/internal/ports"
	"tambourine/internal/transport/smallwebrtc"
	"tambourine/internal/usecase"
)

const (
	eventResult = "tambourine:result"
	eventConfig = "tambourine:config"
	eventError  = "tambourine:error"
)

// App is the Wails application root and the owning surface of the session.
type App struct {
	ctx context.Context
	log zerolog.Logger

	controller *usecase.DictationController
	dialer     *smallwebrtc.Dialer
	cfg        config.Config
	bootErr    error

	overlay        *Overlay
	unbindTriggers func()
}

func NewApp(overlay *Overlay) *App {
	return &App{overlay: overlay, log: zerolog.Nop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load()
	if err != nil {
		a.fail(err)
		return
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	a.log = logging.WithComponent("app")

	bus := newWailsBus(ctx)
	services, err := bootstrap.Build(cfg, bootstrap.Dependencies{
		Bus:       bus,
		Events:    a,
		Clipboard: &wailsClipboard{},
	})
	if err != nil {
		a.fail(err)
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.dialer = services.Dialer
	a.unbindTriggers = usecase.BindRecordingTriggers(ctx, bus, a.controller, logging.WithComponent("triggers"))
	if a.overlay != nil {
		a.overlay.attach(bus)
	}

	go func() {
		if err := a.controller.Connect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("initial connect failed")
		}
	}()
}

func (a *App) shutdown(_ context.Context) {
	if a.unbindTriggers != nil {
		a.unbindTriggers()
	}
	if a.overlay != nil {
		a.overlay.close()
	}
	if a.controller != nil {
		if err := a.controller.Close(); err != nil {
			a.log.Debug().Err(err).Msg("closing controller failed")
		}
	}
}

func (a *App) fail(err error) {
	a.bootErr = err
	a.SessionError(domain.ErrorCodeStartup, err.Error())
}

// Connect opens a fresh connection to the dictation server.
func (a *App) Connect() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Connect(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StartRecording enables the microphone and asks the server to start listening.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		a.reportRecordingError(err)
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopRecording releases the microphone. The result is emitted as tambourine:result.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Stop(); err != nil {
		a.reportRecordingError(err)
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// SendConfig forwards a configuration message to the server.
func (a *App) SendConfig(kind string, payload map[string]any) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.SendConfig(kind, payload); err != nil {
		a.SessionError(domain.ErrorCodeConfig, err.Error())
		return err
	}
	return nil
}

// SelectMicrophone sets the input device used by the next recording.
func (a *App) SelectMicrophone(deviceID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SelectMicrophone(deviceID)
	return nil
}

// GetProviders lists the providers the server can switch between.
func (a *App) GetProviders() (*smallwebrtc.AvailableProviders, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.dialer.Providers(a.ctx)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{State: domain.ConnectionStateDisconnected}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"serverUrl":        a.cfg.Server.URL,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"reconnectDelay":   a.cfg.Session.ReconnectDelay.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// reportRecordingError surfaces capability and channel failures. Rejected
// transitions are answered through the binding's return value only.
func (a *App) reportRecordingError(err error) {
	if errors.Is(err, usecase.ErrInvalidTransition) || errors.Is(err, usecase.ErrOperationInFlight) {
		return
	}
	a.SessionError(domain.ErrorCodeRecording, err.Error())
}

// FinalTranscript emits the cleaned dictation text.
func (a *App) FinalTranscript(result domain.DictationResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventResult, result)
}

// ConfigResult emits the server's answer to a configuration message.
func (a *App) ConfigResult(result domain.ConfigResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventConfig, result)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeConnection:
		return "Connection to the dictation server failed"
	case domain.ErrorCodeRecording:
		return "Recording issue"
	case domain.ErrorCodeConfig:
		return "Configuration update failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}

// wailsBus carries bus topics over the Wails event system, which reaches both
// Go listeners and every frontend window.
type wailsBus struct {
	ctx context.Context
}

var _ ports.EventBus = (*wailsBus)(nil)

func newWailsBus(ctx context.Context) *wailsBus {
	return &wailsBus{ctx: ctx}
}

func (b *wailsBus) Publish(topic string, payload any) {
	runtime.EventsEmit(b.ctx, topic, payload)
}

func (b *wailsBus) Subscribe(topic string, handler func(payload any)) func() {
	return runtime.EventsOn(b.ctx, topic, func(data ...interface{}) {
		var payload any
		if len(data) > 0 {
			payload = data[0]
		}
		handler(payload)
	})
}
