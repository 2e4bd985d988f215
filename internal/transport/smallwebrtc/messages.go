package smallwebrtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tambourine/internal/domain"
)

const (
	rtviLabel         = "rtvi-ai"
	typeClientMessage = "client-message"
	typeServerMessage = "server-message"

	dataTypeConfigUpdated = "config-updated"
	dataTypeConfigError   = "config-error"
)

type clientEnvelope struct {
	Label string      `json:"label"`
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Data  clientInner `json:"data"`
}

type clientInner struct {
	T string `json:"t"`
	D any    `json:"d"`
}

type serverEnvelope struct {
	Label string          `json:"label"`
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// EncodeClientMessage wraps a kind and payload in the RTVI client-message envelope.
func EncodeClientMessage(kind string, payload any) ([]byte, error) {
	if kind == "" {
		return nil, errors.New("message kind is empty")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(clientEnvelope{
		Label: rtviLabel,
		Type:  typeClientMessage,
		ID:    uuid.NewString(),
		Data:  clientInner{T: kind, D: payload},
	})
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", kind, err)
	}
	return raw, nil
}

// ParseServerMessage classifies an inbound data channel message.
// Configuration replies carry data.type; cleaned text carries data.text.
func ParseServerMessage(raw []byte) (domain.ServerMessage, error) {
	var envelope serverEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return domain.ServerMessage{}, fmt.Errorf("decode server message: %w", err)
	}

	payload := map[string]any{}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return domain.ServerMessage{}, fmt.Errorf("decode server message data: %w", err)
		}
	}

	msg := domain.ServerMessage{Kind: domain.ServerMessageOther, Type: envelope.Type, Payload: payload}
	dataType, _ := payload["type"].(string)
	if dataType != "" {
		msg.Type = dataType
	}

	switch dataType {
	case dataTypeConfigUpdated, dataTypeConfigError:
		var result domain.ConfigResult
		if err := json.Unmarshal(envelope.Data, &result); err != nil {
			return domain.ServerMessage{}, fmt.Errorf("decode config result: %w", err)
		}
		if dataType == dataTypeConfigError {
			result.Success = false
		}
		msg.Kind = domain.ServerMessageConfigResult
		msg.Config = result
		return msg, nil
	}

	if text, ok := payload["text"].(string); ok {
		msg.Kind = domain.ServerMessageResult
		msg.Text = text
	}
	return msg, nil
}
