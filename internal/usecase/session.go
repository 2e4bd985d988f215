package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"tambourine/internal/domain"
	"tambourine/internal/observability/metrics"
	"tambourine/internal/ports"
)

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNoHandle          = errors.New("no capability handle")
	ErrOperationInFlight = errors.New("session operation already in flight")
	ErrInterrupted       = errors.New("session disconnected during operation")
	ErrCapability        = errors.New("capability failure")
)

const (
	opConnecting        = "on_connecting"
	opConnected         = "on_connected"
	opStartRecording    = "start_recording"
	opStopRecording     = "stop_recording"
	opServerResult      = "on_server_result"
	opSendConfig        = "send_config_message"
	opSwitchMicrophone  = "switch_microphone"
	opEnableMicrophone  = "enable_microphone"
	opDisableMicrophone = "disable_microphone"
	opStopTrack         = "stop_track"
)

var connectableStates = []domain.ConnectionState{
	domain.ConnectionStateDisconnected,
	domain.ConnectionStateConnecting,
}

// TransitionError reports an operation that is not legal from the current state.
type TransitionError struct {
	Op    string
	State domain.ConnectionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.State)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CapabilityError wraps a microphone, track or device failure raised by the handle.
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapability
}

// SessionOption configures a Session.
type SessionOption func(*Session)

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = logger }
}

func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

func WithObserver(observer ports.StateObserver) SessionOption {
	return func(s *Session) { s.observers = append(s.observers, observer) }
}

// Session owns the connection state and the capability handle of one surface.
//
// State transitions:
//
//	disconnected/connecting ── OnConnected ──→ idle
//	idle ── StartRecording ──→ recording
//	recording ── StopRecording ──→ processing (or disconnected when the stop send fails)
//	processing ── OnServerResult ──→ idle
//	any ── OnDisconnected ──→ disconnected
//
// Guards are evaluated under the lock before any handle call. While StartRecording
// or StopRecording is suspended on the handle, other state-changing operations fail
// with ErrOperationInFlight or ErrInvalidTransition; OnDisconnected always wins.
type Session struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
	channel messageChannel
	now     func() time.Time

	mu             sync.Mutex
	state          domain.ConnectionState
	handle         ports.CapabilityHandle
	inFlight       string
	epoch          uint64
	earlyResult    bool
	recordingSince time.Time
	observers      []ports.StateObserver
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		log:   zerolog.Nop(),
		now:   time.Now,
		state: domain.ConnectionStateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.channel = messageChannel{log: s.log, metrics: s.metrics}
	return s
}

// Observe registers an observer for every committed transition.
func (s *Session) Observe(observer ports.StateObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// State returns the current connection state.
func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the stored capability handle, if any.
func (s *Session) Handle() (ports.CapabilityHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.handle != nil
}

// SetHandle replaces the stored handle without changing state. Nil clears it.
func (s *Session) SetHandle(handle ports.CapabilityHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

// OnConnecting marks session establishment as in progress.
func (s *Session) OnConnecting() error {
	s.mu.Lock()
	if s.state != domain.ConnectionStateDisconnected {
		err := s.rejectLocked(opConnecting)
		s.mu.Unlock()
		return err
	}
	notify := s.commitLocked(domain.ConnectionStateConnecting)
	s.mu.Unlock()
	notify()
	return nil
}

// OnConnected moves a connecting or disconnected session to idle.
// A stray notification from any other state is a no-op.
func (s *Session) OnConnected() error {
	s.mu.Lock()
	if !lo.Contains(connectableStates, s.state) {
		err := s.rejectLocked(opConnected)
		s.mu.Unlock()
		return err
	}
	notify := s.commitLocked(domain.ConnectionStateIdle)
	s.mu.Unlock()
	notify()
	return nil
}

// OnDisconnected forces the disconnected state. The handle is kept for reconnection
// and no microphone call is made. A suspended StartRecording observes the
// disconnect even if the session reconnects before it resumes.
func (s *Session) OnDisconnected() {
	s.mu.Lock()
	s.epoch++
	s.earlyResult = false
	notify := s.commitLocked(domain.ConnectionStateDisconnected)
	s.mu.Unlock()
	notify()
}

// StartRecording signals the server, reacquires the selected microphone and enables it.
// Any failure leaves the session idle.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guardLocked(opStartRecording, domain.ConnectionStateIdle); err != nil {
		s.mu.Unlock()
		return err
	}
	handle := s.handle
	epoch := s.epoch
	s.inFlight = opStartRecording
	s.mu.Unlock()

	err := s.acquireMicrophone(ctx, handle)

	s.mu.Lock()
	s.inFlight = ""
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != domain.ConnectionStateIdle || s.epoch != epoch || s.handle != handle {
		state := s.state
		s.mu.Unlock()
		s.releaseMicrophone(handle)
		return fmt.Errorf("%w: session is %s", ErrInterrupted, state)
	}
	s.recordingSince = s.now()
	notify := s.commitLocked(domain.ConnectionStateRecording)
	s.mu.Unlock()
	notify()
	return nil
}

// StopRecording releases the microphone, then sends the stop signal.
// The microphone is released before any network call. A failed stop send
// leaves the session disconnected; the call still succeeds because the
// microphone has been released.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	if err := s.guardLocked(opStopRecording, domain.ConnectionStateRecording); err != nil {
		s.mu.Unlock()
		return err
	}
	handle := s.handle
	since := s.recordingSince
	s.inFlight = opStopRecording
	s.earlyResult = false
	s.mu.Unlock()

	s.releaseMicrophone(handle)
	s.metrics.ObserveRecording(s.now().Sub(since))

	sendErr := s.channel.sendControl(handle, domain.ControlStopRecording)

	s.mu.Lock()
	s.inFlight = ""
	var notifications []func()
	switch {
	case sendErr != nil:
		s.log.Warn().Err(sendErr).Msg("stop-recording was not delivered; session considered lost")
		notifications = append(notifications, s.commitLocked(domain.ConnectionStateDisconnected))
	case s.state != domain.ConnectionStateRecording:
		// Disconnected while the stop message was in flight.
	case s.earlyResult:
		notifications = append(notifications,
			s.commitLocked(domain.ConnectionStateProcessing),
			s.commitLocked(domain.ConnectionStateIdle),
		)
	default:
		notifications = append(notifications, s.commitLocked(domain.ConnectionStateProcessing))
	}
	s.earlyResult = false
	s.mu.Unlock()

	for _, notify := range notifications {
		notify()
	}
	return nil
}

// OnServerResult returns a processing session to idle.
func (s *Session) OnServerResult() error {
	s.mu.Lock()
	switch {
	case s.state == domain.ConnectionStateProcessing:
		notify := s.commitLocked(domain.ConnectionStateIdle)
		s.mu.Unlock()
		notify()
		return nil
	case s.inFlight == opStopRecording:
		s.earlyResult = true
		s.mu.Unlock()
		return nil
	default:
		err := s.rejectLocked(opServerResult)
		s.mu.Unlock()
		return err
	}
}

// SendConfigMessage forwards an opaque configuration message. Send failures
// are reported without a state change.
func (s *Session) SendConfigMessage(kind string, payload any) error {
	s.mu.Lock()
	if !s.state.CanSendMessages() {
		err := s.rejectLocked(opSendConfig)
		s.mu.Unlock()
		return err
	}
	if s.handle == nil {
		s.metrics.ObserveRejected(opSendConfig)
		s.mu.Unlock()
		return ErrNoHandle
	}
	handle := s.handle
	s.mu.Unlock()

	return s.channel.sendConfig(handle, kind, payload)
}

// ReleaseMicrophone disables the microphone on the stored handle and stops its
// track. Owners call it when the transport drops during a recording.
func (s *Session) ReleaseMicrophone() {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == nil {
		return
	}
	s.releaseMicrophone(handle)
}

func (s *Session) acquireMicrophone(ctx context.Context, handle ports.CapabilityHandle) error {
	if err := s.channel.sendControl(handle, domain.ControlStartRecording); err != nil {
		return err
	}
	if device, ok := handle.SelectedMicrophone(); ok && device != "" {
		if err := handle.SwitchMicrophone(ctx, device); err != nil {
			return s.capabilityFailure(opSwitchMicrophone, err)
		}
	}
	if err := handle.EnableMicrophone(true); err != nil {
		return s.capabilityFailure(opEnableMicrophone, err)
	}
	return nil
}

// releaseMicrophone runs both steps regardless of failures.
func (s *Session) releaseMicrophone(handle ports.CapabilityHandle) {
	if err := handle.EnableMicrophone(false); err != nil {
		s.capabilityFailure(opDisableMicrophone, err)
	}
	if track, ok := handle.LocalAudioTrack(); ok && track != nil {
		if err := track.Stop(); err != nil {
			s.capabilityFailure(opStopTrack, err)
		}
	}
}

func (s *Session) capabilityFailure(op string, err error) error {
	s.log.Warn().Str("op", op).Err(err).Msg("microphone capability failed")
	s.metrics.ObserveCapabilityFailure(op)
	return &CapabilityError{Op: op, Err: err}
}

func (s *Session) guardLocked(op string, required domain.ConnectionState) error {
	if s.state != required {
		return s.rejectLocked(op)
	}
	if s.handle == nil {
		s.metrics.ObserveRejected(op)
		return ErrNoHandle
	}
	if s.inFlight != "" {
		s.metrics.ObserveRejected(op)
		return fmt.Errorf("%w: %s", ErrOperationInFlight, s.inFlight)
	}
	return nil
}

func (s *Session) rejectLocked(op string) error {
	s.metrics.ObserveRejected(op)
	return &TransitionError{Op: op, State: s.state}
}

// commitLocked sets the state and returns the observer notification to run after unlocking.
func (s *Session) commitLocked(to domain.ConnectionState) func() {
	from := s.state
	s.state = to
	if from == to {
		return func() {}
	}
	s.metrics.ObserveTransition(string(from), string(to))
	observers := append([]ports.StateObserver(nil), s.observers...)
	return func() {
		for _, observer := range observers {
			observer.StateChanged(from, to)
		}
	}
}
