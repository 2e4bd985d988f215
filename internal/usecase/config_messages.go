package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tambourine/internal/domain"
)

var ErrInvalidConfig = errors.New("invalid configuration message")

type providerPayload struct {
	Provider string `json:"provider"`
}

type sttTimeoutPayload struct {
	TimeoutSeconds *float64 `json:"timeout_seconds"`
}

// ValidateConfigMessage checks the payload of the configuration kinds the server is known
// to understand. Any other kind is passed through untouched.
func ValidateConfigMessage(kind string, payload any) error {
	if strings.TrimSpace(kind) == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidConfig)
	}

	switch kind {
	case domain.ConfigSetSTTProvider, domain.ConfigSetLLMProvider:
		var p providerPayload
		if err := decodePayload(payload, &p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, kind, err)
		}
		if strings.TrimSpace(p.Provider) == "" {
			return fmt.Errorf("%w: %s: provider is required", ErrInvalidConfig, kind)
		}
	case domain.ConfigSetSTTTimeout:
		var p sttTimeoutPayload
		if err := decodePayload(payload, &p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, kind, err)
		}
		if p.TimeoutSeconds == nil {
			return fmt.Errorf("%w: %s: timeout_seconds is required", ErrInvalidConfig, kind)
		}
		if *p.TimeoutSeconds < domain.MinSTTTimeoutSeconds || *p.TimeoutSeconds > domain.MaxSTTTimeoutSeconds {
			return fmt.Errorf("%w: %s: timeout must be between %.1f and %.1f seconds",
				ErrInvalidConfig, kind, domain.MinSTTTimeoutSeconds, domain.MaxSTTTimeoutSeconds)
		}
	}
	return nil
}

// decodePayload accepts typed structs and generic maps alike by round-tripping through JSON.
func decodePayload(payload any, out any) error {
	if payload == nil {
		return errors.New("payload is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
