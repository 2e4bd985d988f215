package main

import (
	"fmt"
	"sync"

	"tambourine/internal/domain"
	"tambourine/internal/observability/logging"
	"tambourine/internal/ports"
	"tambourine/internal/surfacesync"
)

// Overlay is the floating recording indicator. It only mirrors the owner's
// state and asks the owner for recordings over the bus.
type Overlay struct {
	mu     sync.Mutex
	bus    ports.EventBus
	mirror *surfacesync.Mirror
}

func NewOverlay() *Overlay {
	return &Overlay{}
}

func (o *Overlay) attach(bus ports.EventBus) {
	mirror := surfacesync.NewMirror(bus, logging.WithComponent("overlay"))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mirror != nil {
		o.mirror.Close()
	}
	o.bus = bus
	o.mirror = mirror
}

func (o *Overlay) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mirror != nil {
		o.mirror.Close()
		o.mirror = nil
	}
	o.bus = nil
}

// GetState returns the last connection state published by the owner.
func (o *Overlay) GetState() domain.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mirror == nil {
		return domain.ConnectionStateDisconnected
	}
	return o.mirror.State()
}

// ToggleRecording requests a start while idle and a stop while recording.
func (o *Overlay) ToggleRecording() error {
	o.mu.Lock()
	bus, mirror := o.bus, o.mirror
	o.mu.Unlock()
	if mirror == nil {
		return fmt.Errorf("overlay is not attached")
	}

	switch state := mirror.State(); state {
	case domain.ConnectionStateIdle:
		bus.Publish(domain.EventRecordingStart, nil)
	case domain.ConnectionStateRecording:
		bus.Publish(domain.EventRecordingStop, nil)
	default:
		return fmt.Errorf("cannot toggle recording while %s", state)
	}
	return nil
}
