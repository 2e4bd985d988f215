// Package smallwebrtc connects to a dictation server speaking the SmallWebRTC
// protocol: SDP exchange over HTTP, one send-only Opus track, and an ordered
// data channel carrying RTVI messages.
package smallwebrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"tambourine/internal/ports"
)

var (
	ErrChannelClosed = errors.New("data channel is not open")
	ErrClientClosed  = errors.New("client closed")
)

const (
	dataChannelLabel          = "chat"
	defaultGatherTimeout      = 10 * time.Second
	defaultDataChannelTimeout = 10 * time.Second
)

// Config describes how to reach the dictation server.
type Config struct {
	ServerURL          string
	ICEServers         []webrtc.ICEServer
	Audio              ports.AudioConfig
	RequestTimeout     time.Duration
	GatherTimeout      time.Duration
	DataChannelTimeout time.Duration
}

// Client is one peer connection to the server. It is created unopened; Open runs
// the offer/answer exchange. Transport events are reported without holding locks.
type Client struct {
	cfg       Config
	signaling *SignalingClient
	events    ports.TransportEvents
	mic       *microphone
	log       zerolog.Logger

	mu          sync.Mutex
	pc          *webrtc.PeerConnection
	dc          *webrtc.DataChannel
	pcID        string
	dcOpen      bool
	pcConnected bool
	ready       bool
	readyCh     chan struct{}
	lostCh      chan struct{}
	lost        bool
	closed      bool
}

func NewClient(cfg Config, signaling *SignalingClient, capture ports.AudioCapture, events ports.TransportEvents, logger zerolog.Logger) *Client {
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = defaultGatherTimeout
	}
	if cfg.DataChannelTimeout <= 0 {
		cfg.DataChannelTimeout = defaultDataChannelTimeout
	}
	return &Client{
		cfg:       cfg,
		signaling: signaling,
		events:    events,
		mic:       newMicrophone(capture, cfg.Audio, logger),
		log:       logger,
		readyCh:   make(chan struct{}),
		lostCh:    make(chan struct{}),
	}
}

// Open negotiates the peer connection and returns once the data channel is usable.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.pc != nil {
		c.mu.Unlock()
		return errors.New("client already opened")
	}
	c.mu.Unlock()

	pc, err := newPeerConnection(c.cfg.ICEServers)
	if err != nil {
		return fmt.Errorf("creating peer connection: %w", err)
	}

	if err := c.negotiate(ctx, pc); err != nil {
		_ = c.Close()
		_ = pc.Close()
		return err
	}

	select {
	case <-c.readyCh:
	case <-c.lostCh:
		_ = c.Close()
		return errors.New("peer connection failed before the data channel opened")
	case <-time.After(c.cfg.DataChannelTimeout):
		_ = c.Close()
		return fmt.Errorf("data channel did not open within %s", c.cfg.DataChannelTimeout)
	case <-ctx.Done():
		_ = c.Close()
		return ctx.Err()
	}

	c.log.Info().Str("pc_id", c.PeerID()).Msg("connected to dictation server")
	return nil
}

func (c *Client) negotiate(ctx context.Context, pc *webrtc.PeerConnection) error {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2},
		"audio", "tambourine",
	)
	if err != nil {
		return fmt.Errorf("creating audio track: %w", err)
	}
	transceiver, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return fmt.Errorf("adding audio transceiver: %w", err)
	}
	go drainRTCP(transceiver.Sender())
	c.mic.attach(track)

	ordered := true
	dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("creating data channel: %w", err)
	}
	dc.OnOpen(c.handleChannelOpen)
	dc.OnClose(c.handleChannelClose)
	dc.OnMessage(c.handleChannelMessage)
	pc.OnConnectionStateChange(c.handleConnectionState)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pc = pc
	c.dc = dc
	c.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating SDP offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(c.cfg.GatherTimeout):
		return fmt.Errorf("ICE gathering timed out after %s", c.cfg.GatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := c.signaling.Offer(ctx, SessionDescription{
		SDP:  pc.LocalDescription().SDP,
		Type: webrtc.SDPTypeOffer.String(),
	})
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}

	c.mu.Lock()
	c.pcID = answer.PCID
	c.mu.Unlock()
	return nil
}

// PeerID returns the server-assigned connection id once negotiated.
func (c *Client) PeerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pcID
}

func (c *Client) SendMessage(kind string, payload any) error {
	c.mu.Lock()
	dc, open := c.dc, c.dcOpen && !c.closed
	c.mu.Unlock()
	if !open || dc == nil {
		return ErrChannelClosed
	}

	raw, err := EncodeClientMessage(kind, payload)
	if err != nil {
		return err
	}
	return dc.SendText(string(raw))
}

func (c *Client) EnableMicrophone(enabled bool) error {
	return c.mic.enable(enabled)
}

func (c *Client) SwitchMicrophone(ctx context.Context, deviceID string) error {
	return c.mic.switchDevice(ctx, deviceID)
}

func (c *Client) LocalAudioTrack() (ports.LocalAudioTrack, bool) {
	return c.mic.localTrack()
}

func (c *Client) SelectedMicrophone() (string, bool) {
	return c.mic.selectedDevice()
}

func (c *Client) SelectMicrophone(deviceID string) {
	c.mic.selectDevice(deviceID)
}

// Close stops the capture and the peer connection. No events are reported afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pc := c.pc
	c.mu.Unlock()

	c.mic.close()
	if pc == nil {
		return nil
	}
	return pc.Close()
}

func (c *Client) handleChannelOpen() {
	c.log.Debug().Str("label", dataChannelLabel).Msg("data channel opened")
	c.mu.Lock()
	c.dcOpen = true
	notify := c.readyLocked()
	c.mu.Unlock()
	notify()
}

func (c *Client) handleChannelClose() {
	c.mu.Lock()
	c.dcOpen = false
	notify := c.lostLocked()
	c.mu.Unlock()
	notify()
}

func (c *Client) handleChannelMessage(msg webrtc.DataChannelMessage) {
	parsed, err := ParseServerMessage(msg.Data)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed server message")
		return
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.events.ServerMessage(parsed)
}

func (c *Client) handleConnectionState(state webrtc.PeerConnectionState) {
	c.log.Debug().Str("state", state.String()).Msg("peer connection state changed")

	c.mu.Lock()
	var notify func()
	release := false
	switch state {
	case webrtc.PeerConnectionStateConnected:
		c.pcConnected = true
		notify = c.readyLocked()
	case webrtc.PeerConnectionStateDisconnected:
		c.pcConnected = false
		release = !c.closed
		if c.ready && !c.closed && !c.lost {
			c.ready = false
			notify = func() { c.events.TransportDisconnected(false) }
		}
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		c.pcConnected = false
		notify = c.lostLocked()
	}
	c.mu.Unlock()

	// The capture never outlives the media path; recovery starts a fresh one.
	if release {
		c.mic.release()
	}
	if notify != nil {
		notify()
	}
}

// readyLocked reports the transport connected once both the peer connection and the
// data channel are up. It fires again after recovering from a transient disconnect.
func (c *Client) readyLocked() func() {
	if !c.pcConnected || !c.dcOpen || c.ready || c.closed || c.lost {
		return func() {}
	}
	c.ready = true
	select {
	case <-c.readyCh:
	default:
		close(c.readyCh)
	}
	return func() { c.events.TransportConnected() }
}

// lostLocked stops the capture and reports the permanent loss of this connection once.
func (c *Client) lostLocked() func() {
	if c.lost || c.closed {
		return func() {}
	}
	c.lost = true
	c.ready = false
	close(c.lostCh)
	return func() {
		c.mic.release()
		c.events.TransportDisconnected(true)
	}
}

// newPeerConnection creates a pion PeerConnection with default codecs and
// loopback candidates enabled for same-machine servers.
func newPeerConnection(iceServers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("registering codecs: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settingEngine),
	)
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
}

// drainRTCP reads receiver reports so the sender's interceptors keep running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
