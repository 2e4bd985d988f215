package usecase

import (
	"errors"
	"testing"

	"tambourine/internal/domain"
)

func TestValidateConfigMessage(t *testing.T) {
	t.Parallel()

	timeout := func(v float64) map[string]any { return map[string]any{"timeout_seconds": v} }

	cases := []struct {
		name    string
		kind    string
		payload any
		valid   bool
	}{
		{name: "stt provider", kind: domain.ConfigSetSTTProvider, payload: map[string]any{"provider": "whisper"}, valid: true},
		{name: "llm provider struct", kind: domain.ConfigSetLLMProvider, payload: providerPayload{Provider: "ollama"}, valid: true},
		{name: "blank provider", kind: domain.ConfigSetSTTProvider, payload: map[string]any{"provider": "  "}},
		{name: "missing provider payload", kind: domain.ConfigSetLLMProvider},
		{name: "provider wrong type", kind: domain.ConfigSetSTTProvider, payload: map[string]any{"provider": 3}},
		{name: "timeout lower bound", kind: domain.ConfigSetSTTTimeout, payload: timeout(0.1), valid: true},
		{name: "timeout upper bound", kind: domain.ConfigSetSTTTimeout, payload: timeout(10), valid: true},
		{name: "timeout too small", kind: domain.ConfigSetSTTTimeout, payload: timeout(0.05)},
		{name: "timeout too large", kind: domain.ConfigSetSTTTimeout, payload: timeout(10.5)},
		{name: "timeout missing", kind: domain.ConfigSetSTTTimeout, payload: map[string]any{}},
		{name: "prompt sections opaque", kind: domain.ConfigSetPromptSection, payload: map[string]any{"sections": []string{"main"}}, valid: true},
		{name: "unknown kind passes", kind: "set-voice", payload: nil, valid: true},
		{name: "empty kind", kind: " "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateConfigMessage(tc.kind, tc.payload)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
