package domain

// ConnectionState models the dictation session lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateIdle         ConnectionState = "idle"
	ConnectionStateRecording    ConnectionState = "recording"
	ConnectionStateProcessing   ConnectionState = "processing"
)

// ConnectionStates lists every state in lifecycle order.
var ConnectionStates = []ConnectionState{
	ConnectionStateDisconnected,
	ConnectionStateConnecting,
	ConnectionStateIdle,
	ConnectionStateRecording,
	ConnectionStateProcessing,
}

// Valid reports whether s is one of the five defined states.
func (s ConnectionState) Valid() bool {
	switch s {
	case ConnectionStateDisconnected,
		ConnectionStateConnecting,
		ConnectionStateIdle,
		ConnectionStateRecording,
		ConnectionStateProcessing:
		return true
	default:
		return false
	}
}

// CanSendMessages reports whether control or configuration messages may leave the client.
func (s ConnectionState) CanSendMessages() bool {
	return s == ConnectionStateIdle || s == ConnectionStateRecording || s == ConnectionStateProcessing
}

// ControlKind names the fixed-payload lifecycle signals sent to the server.
type ControlKind string

const (
	ControlStartRecording ControlKind = "start-recording"
	ControlStopRecording  ControlKind = "stop-recording"
)

// Configuration message kinds understood by the dictation server.
const (
	ConfigSetSTTProvider   = "set-stt-provider"
	ConfigSetLLMProvider   = "set-llm-provider"
	ConfigSetPromptSection = "set-prompt-sections"
	ConfigSetSTTTimeout    = "set-stt-timeout"
)

// Bounds accepted by the server for set-stt-timeout.
const (
	MinSTTTimeoutSeconds = 0.1
	MaxSTTTimeoutSeconds = 10.0
)

// Event bus topics shared by every surface in the process.
const (
	EventConnectionStateChanged = "connection-state-changed"
	EventRecordingStart         = "recording-start"
	EventRecordingStop          = "recording-stop"
)

// StateChange is the payload published on the connection-state-changed topic.
type StateChange struct {
	State ConnectionState `json:"state"`
}

// ServerMessageKind classifies inbound data channel messages.
type ServerMessageKind string

const (
	ServerMessageResult       ServerMessageKind = "result"
	ServerMessageConfigResult ServerMessageKind = "config-result"
	ServerMessageOther        ServerMessageKind = "other"
)

// ServerMessage is a decoded message received from the dictation server.
type ServerMessage struct {
	Kind    ServerMessageKind
	Text    string
	Config  ConfigResult
	Type    string
	Payload map[string]any
}

// ConfigResult reports whether the server applied a configuration message.
type ConfigResult struct {
	Setting string `json:"setting"`
	Value   any    `json:"value,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeConnection ErrorCode = "connection"
	ErrorCodeRecording  ErrorCode = "recording"
	ErrorCodeConfig     ErrorCode = "config"
	ErrorCodeClipboard  ErrorCode = "clipboard"
)

// DictationResult is delivered once the server returns cleaned text.
type DictationResult struct {
	Text   string `json:"text"`
	Copied bool   `json:"copied"`
}

// Status summarizes the current runtime status.
type Status struct {
	State      ConnectionState `json:"state"`
	Connected  bool            `json:"connected"`
	HasHandle  bool            `json:"hasHandle"`
	Microphone string          `json:"microphone,omitempty"`
	Message    string          `json:"message,omitempty"`
}
