package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tambourine/internal/domain"
	"tambourine/internal/ports"
)

var ErrControllerClosed = errors.New("dictation controller closed")

// ControllerConfig controls connection behavior of the owning surface.
type ControllerConfig struct {
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	ResultTimeout  time.Duration
}

// DictationController drives one Session over connections built by a Connector.
// Only the owning surface constructs it.
type DictationController struct {
	session   *Session
	connector ports.Connector
	events    ports.EventSink
	finalizer resultFinalizer
	log       zerolog.Logger
	cfg       ControllerConfig
	afterFunc func(time.Duration, func()) *time.Timer

	mu         sync.Mutex
	conn       ports.Connection
	generation uint64
	microphone string
	closed     bool
	reconnect  *time.Timer
}

func NewDictationController(
	session *Session,
	connector ports.Connector,
	clipboard ports.Clipboard,
	events ports.EventSink,
	cfg ControllerConfig,
	logger zerolog.Logger,
) *DictationController {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 5 * time.Second
	}
	return &DictationController{
		session:   session,
		connector: connector,
		events:    events,
		finalizer: newResultFinalizer(clipboard, events),
		log:       logger,
		cfg:       cfg,
		afterFunc: time.AfterFunc,
	}
}

// Session exposes the controlled session for observers and status reporting.
func (c *DictationController) Session() *Session {
	return c.session
}

// Connect establishes a new connection and stores it as the session handle.
// The previous connection, if any, is closed and its events are ignored from here on.
func (c *DictationController) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	c.mu.Unlock()

	if err := c.session.OnConnecting(); err != nil {
		return err
	}

	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	conn, err := c.connector.NewConnection(connectionEvents{controller: c, generation: generation})
	if err != nil {
		c.connectFailed(generation, err)
		return fmt.Errorf("create connection: %w", err)
	}

	c.mu.Lock()
	if c.closed || c.generation != generation {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrControllerClosed
	}
	previous := c.conn
	c.conn = conn
	if c.microphone != "" {
		conn.SelectMicrophone(c.microphone)
	}
	c.mu.Unlock()

	c.session.SetHandle(conn)
	if previous != nil {
		if err := previous.Close(); err != nil {
			c.log.Debug().Err(err).Msg("closing replaced connection failed")
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := conn.Open(openCtx); err != nil {
		c.connectFailed(generation, err)
		return fmt.Errorf("open connection: %w", err)
	}

	c.log.Info().Uint64("generation", generation).Msg("connection established")
	return nil
}

// Start begins a recording on the current connection.
func (c *DictationController) Start(ctx context.Context) error {
	return c.session.StartRecording(ctx)
}

// Stop ends the current recording. The cleaned text arrives later as a server message.
func (c *DictationController) Stop() error {
	return c.session.StopRecording()
}

// SendConfig validates a configuration message and forwards it to the server.
func (c *DictationController) SendConfig(kind string, payload any) error {
	if err := ValidateConfigMessage(kind, payload); err != nil {
		return err
	}
	return c.session.SendConfigMessage(kind, payload)
}

// SelectMicrophone records the input device used by the next recording.
func (c *DictationController) SelectMicrophone(deviceID string) {
	c.mu.Lock()
	c.microphone = deviceID
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.SelectMicrophone(deviceID)
	}
}

// Status returns a snapshot of the session for the surfaces.
func (c *DictationController) Status() domain.Status {
	state := c.session.State()
	_, hasHandle := c.session.Handle()

	c.mu.Lock()
	microphone := c.microphone
	c.mu.Unlock()

	return domain.Status{
		State:      state,
		Connected:  state.CanSendMessages(),
		HasHandle:  hasHandle,
		Microphone: microphone,
	}
}

// Close tears down the connection and stops reconnecting.
func (c *DictationController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.session.SetHandle(nil)
	c.session.OnDisconnected()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *DictationController) connectFailed(generation uint64, err error) {
	if !c.isCurrent(generation) {
		return
	}
	c.log.Warn().Err(err).Msg("connection attempt failed")
	c.session.OnDisconnected()
	c.events.SessionError(domain.ErrorCodeConnection, err.Error())
	c.scheduleReconnect()
}

func (c *DictationController) isCurrent(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.generation == generation
}

func (c *DictationController) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.cfg.ReconnectDelay <= 0 || c.reconnect != nil {
		return
	}
	c.log.Info().Dur("delay", c.cfg.ReconnectDelay).Msg("reconnect scheduled")
	c.reconnect = c.afterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if err := c.Connect(context.Background()); err != nil {
			c.log.Debug().Err(err).Msg("reconnect attempt failed")
		}
	})
}

func (c *DictationController) transportConnected(generation uint64) {
	if !c.isCurrent(generation) {
		return
	}
	if err := c.session.OnConnected(); err != nil {
		c.log.Debug().Err(err).Msg("ignoring connected notification")
	}
}

func (c *DictationController) transportDisconnected(generation uint64, permanent bool) {
	if !c.isCurrent(generation) {
		return
	}
	c.log.Warn().Bool("permanent", permanent).Msg("transport disconnected")
	wasRecording := c.session.State() == domain.ConnectionStateRecording
	c.session.OnDisconnected()
	if wasRecording {
		c.session.ReleaseMicrophone()
	}
	if permanent {
		c.scheduleReconnect()
	}
}

func (c *DictationController) serverMessage(generation uint64, msg domain.ServerMessage) {
	if !c.isCurrent(generation) {
		return
	}
	switch msg.Kind {
	case domain.ServerMessageResult:
		// Results outside processing are dropped without touching the clipboard.
		if err := c.session.OnServerResult(); err != nil {
			c.log.Debug().Err(err).Msg("dropping result that arrived outside processing")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ResultTimeout)
		defer cancel()
		c.finalizer.Finalize(ctx, msg.Text)
	case domain.ServerMessageConfigResult:
		if !msg.Config.Success {
			c.log.Warn().Str("setting", msg.Config.Setting).Str("error", msg.Config.Error).Msg("server rejected configuration")
		}
		c.events.ConfigResult(msg.Config)
	default:
		c.log.Debug().Str("type", msg.Type).Msg("unhandled server message")
	}
}

// connectionEvents tags transport callbacks with the connection that produced them.
type connectionEvents struct {
	controller *DictationController
	generation uint64
}

func (e connectionEvents) TransportConnected() {
	e.controller.transportConnected(e.generation)
}

func (e connectionEvents) TransportDisconnected(permanent bool) {
	e.controller.transportDisconnected(e.generation, permanent)
}

func (e connectionEvents) ServerMessage(msg domain.ServerMessage) {
	e.controller.serverMessage(e.generation, msg)
}
