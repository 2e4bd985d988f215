package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tambourine/internal/domain"
	"tambourine/internal/eventbus"
	"tambourine/internal/observability/logging"
	"tambourine/internal/surfacesync"
)

func TestParsePayload(t *testing.T) {
	t.Parallel()

	payload, err := parsePayload("")
	if err != nil {
		t.Fatalf("empty payload failed: %v", err)
	}
	if m, ok := payload.(map[string]any); !ok || len(m) != 0 {
		t.Fatalf("expected empty object, got %#v", payload)
	}

	payload, err = parsePayload(`{"timeout_seconds":1.5}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.(map[string]any)["timeout_seconds"] != 1.5 {
		t.Fatalf("unexpected payload: %#v", payload)
	}

	if _, err := parsePayload("{nope"); err == nil {
		t.Fatalf("expected invalid json error")
	}
}

func TestWaitForState(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewLocalBus(logging.WithComponent("test"))
	mirror := surfacesync.NewMirror(bus, logging.WithComponent("test"))
	defer mirror.Close()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- waitForState(ctx, mirror, domain.ConnectionStateIdle)
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Publish(domain.EventConnectionStateChanged, domain.StateChange{State: domain.ConnectionStateConnecting})
	bus.Publish(domain.EventConnectionStateChanged, domain.StateChange{State: domain.ConnectionStateIdle})

	if err := <-done; err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitForState(ctx, mirror, domain.ConnectionStateRecording); err == nil {
		t.Fatalf("expected cancelled wait to fail")
	}
}

func TestCLISinkDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := newCLISink()
	for i := 0; i < cap(sink.results)+2; i++ {
		sink.FinalTranscript(domain.DictationResult{Text: "hello"})
	}
	if len(sink.results) != cap(sink.results) {
		t.Fatalf("unexpected buffered results: %d", len(sink.results))
	}
	sink.SessionError(domain.ErrorCodeConnection, "lost")
}

func TestProvidersCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/providers/available" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stt":[{"value":"whisper","label":"Whisper"}],"llm":[{"value":"ollama","label":"Ollama"}]}`))
	}))
	defer server.Close()

	t.Setenv("TAMBOURINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	out := runCLI(t, "providers", "--server", server.URL)

	for _, want := range []string{"KIND", "stt", "whisper", "Whisper", "llm", "ollama"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigShowCommand(t *testing.T) {
	t.Setenv("TAMBOURINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("TAMBOURINE_AUDIO_INPUT_DEVICE", "hw:3")

	out := runCLI(t, "config", "show", "--server", "http://dictation.local:9000/")
	if !strings.Contains(out, "url: http://dictation.local:9000\n") {
		t.Fatalf("expected overridden server url:\n%s", out)
	}
	if !strings.Contains(out, "input_device: hw:3") {
		t.Fatalf("expected environment override:\n%s", out)
	}
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		serverURL = ""
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v\nstderr: %s", args, err, errOut.String())
	}
	return out.String()
}
