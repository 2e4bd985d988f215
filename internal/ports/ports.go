package ports

import (
	"context"
	"io"

	"tambourine/internal/domain"
)

// LocalAudioTrack is the local microphone track feeding the session.
type LocalAudioTrack interface {
	Stop() error
}

// CapabilityHandle is an established session with the dictation server.
type CapabilityHandle interface {
	SendMessage(kind string, payload any) error
	EnableMicrophone(enabled bool) error
	SwitchMicrophone(ctx context.Context, deviceID string) error
	LocalAudioTrack() (LocalAudioTrack, bool)
	SelectedMicrophone() (string, bool)
}

// Connection is a capability handle whose transport lifecycle is owned by the caller.
type Connection interface {
	CapabilityHandle
	Open(ctx context.Context) error
	SelectMicrophone(deviceID string)
	Close() error
}

// TransportEvents receives lifecycle notifications from a Connection.
type TransportEvents interface {
	TransportConnected()
	TransportDisconnected(permanent bool)
	ServerMessage(msg domain.ServerMessage)
}

// Connector creates unopened connections to the dictation server.
type Connector interface {
	NewConnection(events TransportEvents) (Connection, error)
}

// EventBus is a best-effort in-process broadcast channel shared by all surfaces.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string, handler func(payload any)) (unsubscribe func())
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing an Ogg/Opus stream.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend results and errors to the owning surface.
type EventSink interface {
	FinalTranscript(result domain.DictationResult)
	ConfigResult(result domain.ConfigResult)
	SessionError(code domain.ErrorCode, detail string)
}

// StateObserver is notified after every committed state transition.
type StateObserver interface {
	StateChanged(from domain.ConnectionState, to domain.ConnectionState)
}
