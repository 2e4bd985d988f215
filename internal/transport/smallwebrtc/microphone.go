package smallwebrtc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"

	"tambourine/internal/ports"
)

const (
	opusClockRate      = 48000
	defaultFrameLength = 20 * time.Millisecond
	maxPlausibleSample = time.Second
	opusTagsSignature  = "OpusTags"
)

// sampleWriter is the subset of webrtc.TrackLocalStaticSample used by the microphone.
type sampleWriter interface {
	WriteSample(sample media.Sample) error
}

// microphone owns the capture feeding the local audio track. A capture may run
// while disabled; samples only reach the track while enabled.
type microphone struct {
	capture ports.AudioCapture
	audio   ports.AudioConfig
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	track    sampleWriter
	device   string
	selected bool
	enabled  bool
	current  *captureTrack
}

func newMicrophone(capture ports.AudioCapture, audio ports.AudioConfig, logger zerolog.Logger) *microphone {
	ctx, cancel := context.WithCancel(context.Background())
	m := &microphone{capture: capture, audio: audio, log: logger, ctx: ctx, cancel: cancel}
	if audio.InputDevice != "" {
		m.device = audio.InputDevice
		m.selected = true
	}
	return m
}

func (m *microphone) attach(track sampleWriter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track = track
}

func (m *microphone) selectDevice(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = deviceID
	m.selected = deviceID != ""
}

func (m *microphone) selectedDevice() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device, m.selected
}

// enable starts a capture on the selected device when none is running.
func (m *microphone) enable(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = enabled
	if !enabled || m.current != nil {
		return nil
	}
	current, err := m.startLocked()
	if err != nil {
		m.enabled = false
		return err
	}
	m.current = current
	return nil
}

// switchDevice replaces the running capture with one on deviceID.
func (m *microphone) switchDevice(ctx context.Context, deviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	previous := m.current
	m.current = nil
	m.device = deviceID
	m.selected = deviceID != ""
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Stop(); err != nil {
			m.log.Debug().Err(err).Msg("stopping previous capture failed")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.startLocked()
	if err != nil {
		return err
	}
	m.current = current
	return nil
}

// localTrack returns the running capture, if any.
func (m *microphone) localTrack() (ports.LocalAudioTrack, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false
	}
	return m.current, true
}

// release disables the microphone and stops the running capture. Unlike close,
// the microphone can be enabled again.
func (m *microphone) release() {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.enabled = false
	m.mu.Unlock()

	if current != nil {
		if err := current.Stop(); err != nil {
			m.log.Debug().Err(err).Msg("stopping capture failed")
		}
	}
}

func (m *microphone) close() {
	m.cancel()
	m.release()
}

func (m *microphone) startLocked() (*captureTrack, error) {
	if m.capture == nil {
		return nil, errors.New("no audio capture configured")
	}
	cfg := m.audio
	if m.selected {
		cfg.InputDevice = m.device
	}
	session, err := m.capture.Start(m.ctx, cfg)
	if err != nil {
		return nil, err
	}
	track := &captureTrack{session: session, mic: m, done: make(chan struct{})}
	go track.pump()
	return track, nil
}

func (m *microphone) write(page []byte, duration time.Duration) error {
	m.mu.Lock()
	enabled, track := m.enabled, m.track
	m.mu.Unlock()

	if !enabled || track == nil {
		return nil
	}
	return track.WriteSample(media.Sample{Data: page, Duration: duration})
}

func (m *microphone) finished(track *captureTrack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == track {
		m.current = nil
	}
}

// captureTrack is one running capture. Stop terminates ffmpeg and waits for the pump.
type captureTrack struct {
	session ports.AudioSession
	mic     *microphone
	done    chan struct{}

	stopOnce sync.Once
	stopErr  error
}

func (t *captureTrack) Stop() error {
	t.stopOnce.Do(func() {
		t.stopErr = t.session.Stop()
		<-t.done
		t.mic.finished(t)
	})
	return t.stopErr
}

func (t *captureTrack) pump() {
	defer close(t.done)
	defer t.mic.finished(t)

	reader, _, err := oggreader.NewWith(t.session)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			t.mic.log.Warn().Err(err).Msg("capture stream is not ogg/opus")
		}
		return
	}

	var lastGranule uint64
	for {
		page, header, err := reader.ParseNextPage()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				t.mic.log.Debug().Err(err).Msg("capture stream ended")
			}
			return
		}
		if bytes.HasPrefix(page, []byte(opusTagsSignature)) {
			continue
		}

		duration := pageDuration(lastGranule, header.GranulePosition)
		lastGranule = header.GranulePosition
		if err := t.mic.write(page, duration); err != nil {
			t.mic.log.Warn().Err(err).Msg("writing audio sample failed")
		}
	}
}

// pageDuration derives the audio length of a page from the 48 kHz granule delta.
func pageDuration(previous, current uint64) time.Duration {
	if previous == 0 || current <= previous {
		return defaultFrameLength
	}
	duration := time.Duration(current-previous) * time.Second / opusClockRate
	if duration <= 0 || duration > maxPlausibleSample {
		return defaultFrameLength
	}
	return duration
}
