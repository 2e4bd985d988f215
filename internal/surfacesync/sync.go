// Package surfacesync keeps non-owning surfaces in step with the owning surface's
// connection state via the shared event bus.
package surfacesync

import (
	"sync"

	"github.com/rs/zerolog"

	"tambourine/internal/domain"
	"tambourine/internal/ports"
)

// Broadcaster publishes every committed session transition on the bus.
type Broadcaster struct {
	bus ports.EventBus
}

func NewBroadcaster(bus ports.EventBus) *Broadcaster {
	return &Broadcaster{bus: bus}
}

func (b *Broadcaster) StateChanged(_ domain.ConnectionState, to domain.ConnectionState) {
	b.bus.Publish(domain.EventConnectionStateChanged, domain.StateChange{State: to})
}

// Mirror is a read-only copy of the owner's state for surfaces that never hold a handle.
type Mirror struct {
	log zerolog.Logger

	mu       sync.Mutex
	state    domain.ConnectionState
	nextID   uint64
	onChange []changeCallback
	off      func()
}

type changeCallback struct {
	id uint64
	fn func(domain.ConnectionState)
}

func NewMirror(bus ports.EventBus, logger zerolog.Logger) *Mirror {
	m := &Mirror{log: logger, state: domain.ConnectionStateDisconnected}
	m.off = bus.Subscribe(domain.EventConnectionStateChanged, m.handle)
	return m
}

// State returns the last state seen on the bus.
func (m *Mirror) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to run after each mirrored state change. The returned
// function removes it.
func (m *Mirror) OnChange(fn func(domain.ConnectionState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.onChange = append(m.onChange, changeCallback{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			kept := make([]changeCallback, 0, len(m.onChange))
			for _, cb := range m.onChange {
				if cb.id != id {
					kept = append(kept, cb)
				}
			}
			m.onChange = kept
		})
	}
}

// Close stops mirroring.
func (m *Mirror) Close() {
	m.off()
}

func (m *Mirror) handle(payload any) {
	state, ok := decodeState(payload)
	if !ok {
		m.log.Warn().Interface("payload", payload).Msg("ignoring malformed state change")
		return
	}

	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	callbacks := append([]changeCallback(nil), m.onChange...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb.fn(state)
	}
}

// decodeState accepts the typed payload and the generic map form produced by the
// Wails runtime after a JSON round trip.
func decodeState(payload any) (domain.ConnectionState, bool) {
	var state domain.ConnectionState
	switch p := payload.(type) {
	case domain.StateChange:
		state = p.State
	case *domain.StateChange:
		if p == nil {
			return "", false
		}
		state = p.State
	case map[string]any:
		raw, _ := p["state"].(string)
		state = domain.ConnectionState(raw)
	case string:
		state = domain.ConnectionState(p)
	default:
		return "", false
	}
	return state, state.Valid()
}
