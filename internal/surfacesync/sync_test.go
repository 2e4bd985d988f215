package surfacesync

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"tambourine/internal/domain"
	"tambourine/internal/eventbus"
	"tambourine/internal/usecase"
)

func TestMirrorFollowsOwningSession(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewLocalBus(zerolog.Nop())
	mirror := NewMirror(bus, zerolog.Nop())
	defer mirror.Close()

	var seen []domain.ConnectionState
	mirror.OnChange(func(state domain.ConnectionState) { seen = append(seen, state) })

	session := usecase.NewSession(usecase.WithObserver(NewBroadcaster(bus)))
	if err := session.OnConnecting(); err != nil {
		t.Fatalf("connecting failed: %v", err)
	}
	if err := session.OnConnected(); err != nil {
		t.Fatalf("connected failed: %v", err)
	}

	if mirror.State() != domain.ConnectionStateIdle {
		t.Fatalf("mirror did not follow: %s", mirror.State())
	}
	if len(seen) != 2 || seen[0] != domain.ConnectionStateConnecting || seen[1] != domain.ConnectionStateIdle {
		t.Fatalf("unexpected mirrored changes: %v", seen)
	}

	// The mirror never holds a handle, so it cannot drive recordings.
	if err := session.StartRecording(context.Background()); err == nil {
		t.Fatalf("expected start without handle to fail")
	}
}

func TestMirrorDecodesGenericPayloads(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewLocalBus(zerolog.Nop())
	mirror := NewMirror(bus, zerolog.Nop())
	defer mirror.Close()

	bus.Publish(domain.EventConnectionStateChanged, map[string]any{"state": "recording"})
	if mirror.State() != domain.ConnectionStateRecording {
		t.Fatalf("map payload not decoded: %s", mirror.State())
	}

	bus.Publish(domain.EventConnectionStateChanged, &domain.StateChange{State: domain.ConnectionStateProcessing})
	if mirror.State() != domain.ConnectionStateProcessing {
		t.Fatalf("pointer payload not decoded: %s", mirror.State())
	}

	bus.Publish(domain.EventConnectionStateChanged, "idle")
	if mirror.State() != domain.ConnectionStateIdle {
		t.Fatalf("string payload not decoded: %s", mirror.State())
	}
}

func TestMirrorIgnoresMalformedPayloads(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewLocalBus(zerolog.Nop())
	mirror := NewMirror(bus, zerolog.Nop())
	defer mirror.Close()

	bus.Publish(domain.EventConnectionStateChanged, map[string]any{"state": "exploded"})
	bus.Publish(domain.EventConnectionStateChanged, 42)
	bus.Publish(domain.EventConnectionStateChanged, nil)

	if mirror.State() != domain.ConnectionStateDisconnected {
		t.Fatalf("malformed payload changed state to %s", mirror.State())
	}
}

func TestMirrorCloseStopsUpdates(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewLocalBus(zerolog.Nop())
	mirror := NewMirror(bus, zerolog.Nop())
	mirror.Close()

	NewBroadcaster(bus).StateChanged(domain.ConnectionStateDisconnected, domain.ConnectionStateIdle)
	if mirror.State() != domain.ConnectionStateDisconnected {
		t.Fatalf("closed mirror still updated: %s", mirror.State())
	}
}

func TestMirrorOnChangeUnregister(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewLocalBus(zerolog.Nop())
	mirror := NewMirror(bus, zerolog.Nop())
	defer mirror.Close()

	var first, second int
	offFirst := mirror.OnChange(func(domain.ConnectionState) { first++ })
	mirror.OnChange(func(domain.ConnectionState) { second++ })

	bus.Publish(domain.EventConnectionStateChanged, domain.StateChange{State: domain.ConnectionStateConnecting})
	offFirst()
	offFirst()
	bus.Publish(domain.EventConnectionStateChanged, domain.StateChange{State: domain.ConnectionStateIdle})

	if first != 1 || second != 2 {
		t.Fatalf("unexpected callback counts: first=%d second=%d", first, second)
	}
	mirror.mu.Lock()
	registered := len(mirror.onChange)
	mirror.mu.Unlock()
	if registered != 1 {
		t.Fatalf("expected one registered callback, got %d", registered)
	}
}
