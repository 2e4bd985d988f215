package main

import (
	"errors"
	"testing"

	"tambourine/internal/domain"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:    "Startup failed",
		domain.ErrorCodeConnection: "Connection to the dictation server failed",
		domain.ErrorCodeRecording:  "Recording issue",
		domain.ErrorCodeConfig:     "Configuration update failed",
		domain.ErrorCodeClipboard:  "Clipboard write failed",
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("custom", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("custom", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestAppBeforeStartup(t *testing.T) {
	t.Parallel()

	app := NewApp(nil)
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected not initialized error")
	}
	if _, err := app.StartRecording(); err == nil {
		t.Fatalf("expected start to fail before startup")
	}
	if err := app.SendConfig("set-stt-provider", map[string]any{"provider": "whisper"}); err == nil {
		t.Fatalf("expected config to fail before startup")
	}

	status := app.GetStatus()
	if status.State != domain.ConnectionStateDisconnected || status.Connected {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Emitting without a Wails context is a no-op.
	app.FinalTranscript(domain.DictationResult{Text: "hello"})
	app.ConfigResult(domain.ConfigResult{Setting: "stt-provider"})
	app.SessionError(domain.ErrorCodeRecording, "boom")
}

func TestAppReportsBootError(t *testing.T) {
	t.Parallel()

	app := NewApp(nil)
	bootErr := errors.New("invalid server url")
	app.fail(bootErr)

	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if status := app.GetStatus(); status.Message != bootErr.Error() {
		t.Fatalf("unexpected status message: %+v", status)
	}
	if info := app.GetRuntimeInfo(); info["error"] != bootErr.Error() {
		t.Fatalf("unexpected runtime info: %v", info)
	}
}
