package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	voicemodel "github.com/apexrevenue/atlas-agent/internal/model/voice"
)

// Client streams microphone audio to the transcription service and
// surfaces transcript events. Leaf component: it knows nothing about the
// interaction state machine.
type Client struct {
	cfg          voicemodel.Config
	source       CaptureSource
	onTranscript voicemodel.TranscriptFunc
	onLevel      voicemodel.LevelFunc
	dialer       *websocket.Dialer

	mu      sync.Mutex
	session *captureSession
}

// NewClient binds callbacks for the client's lifetime. onLevel may be nil.
func NewClient(cfg voicemodel.Config, source CaptureSource, onTranscript voicemodel.TranscriptFunc, onLevel voicemodel.LevelFunc) *Client {
	return &Client{
		cfg:          cfg,
		source:       source,
		onTranscript: onTranscript,
		onLevel:      onLevel,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// captureSession is one start/stop cycle. Nothing is reused across cycles
// except the callback closures held by the client. The microphone opens
// before the uplink, so the conn is attached after construction; frames
// captured in between are dropped.
type captureSession struct {
	connMu sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
}

func (s *captureSession) attach(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *captureSession) attached() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *captureSession) close() {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// configMessage tunes end-of-turn detection and biases recognition toward
// the domain vocabulary.
type configMessage struct {
	Type                             string   `json:"type"`
	EndOfTurnConfidenceThreshold     float64  `json:"end_of_turn_confidence_threshold"`
	MinEndOfTurnSilenceWhenConfident int64    `json:"min_end_of_turn_silence_when_confident"`
	MaxTurnSilence                   int64    `json:"max_turn_silence"`
	FilterRemoval                    []string `json:"filter_removal"`
	WordBoost                        []string `json:"word_boost"`
}

type audioMessage struct {
	AudioData string `json:"audio_data"`
}

type terminateMessage struct {
	TerminateSession bool `json:"terminate_session"`
}

type serverMessage struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	EndOfTurn   bool   `json:"end_of_turn"`
}

// Start opens the uplink and begins streaming. Callers must Stop an active
// session before starting another. Microphone failures reject the call
// with ErrMicrophoneAccess wrapped inside; connection and protocol errors
// after startup are logged, not retried.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return fmt.Errorf("voice client already started")
	}
	c.mu.Unlock()

	endpoint, err := c.buildEndpoint()
	if err != nil {
		return err
	}

	// Microphone first: a permission failure must not cost a service
	// connection, and a service outage must not mask a permission error.
	session := &captureSession{done: make(chan struct{})}
	if err := c.source.Start(c.cfg.SampleRate, c.cfg.FrameSamples(), func(samples []float32) {
		c.handleFrame(session, samples)
	}); err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if stopErr := c.source.Stop(); stopErr != nil {
			log.Printf("[voice] stop capture source: %v", stopErr)
		}
		return fmt.Errorf("connect transcription service: %w", err)
	}

	// Config goes out before the session is attached so no audio frame can
	// race ahead of it.
	cfg := configMessage{
		Type:                             "UpdateConfiguration",
		EndOfTurnConfidenceThreshold:     c.cfg.EndOfTurnConfidence,
		MinEndOfTurnSilenceWhenConfident: c.cfg.MinEndOfTurnSilence.Milliseconds(),
		MaxTurnSilence:                   c.cfg.MaxTurnSilence.Milliseconds(),
		FilterRemoval:                    c.cfg.FilterRemoval,
		WordBoost:                        c.cfg.WordBoost,
	}
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		if stopErr := c.source.Stop(); stopErr != nil {
			log.Printf("[voice] stop capture source: %v", stopErr)
		}
		return fmt.Errorf("send recognition config: %w", err)
	}

	session.attach(conn)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	go c.readLoop(session)

	log.Printf("[voice] uplink established (%d Hz)", c.cfg.SampleRate)
	return nil
}

// Stop tears the session down completely: termination notice, socket,
// microphone. Idempotent; safe before Start. The level callback is reset
// to zero so UI meters settle.
func (c *Client) Stop() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		if err := session.writeJSON(terminateMessage{TerminateSession: true}); err != nil {
			log.Printf("[voice] send termination notice: %v", err)
		}
		session.close()
		<-session.done
	}

	if err := c.source.Stop(); err != nil {
		log.Printf("[voice] stop capture source: %v", err)
	}

	if c.onLevel != nil {
		c.onLevel(0)
	}
}

// Active reports whether a capture session is running.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Client) buildEndpoint() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid transcription endpoint: %w", err)
	}

	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	if c.cfg.AccessToken != "" {
		q.Set("token", c.cfg.AccessToken)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// handleFrame runs on the capture goroutine; frames are transmitted one at
// a time in capture order.
func (c *Client) handleFrame(session *captureSession, samples []float32) {
	if c.onLevel != nil {
		c.onLevel(Level(samples, c.cfg.LevelGain))
	}

	// The microphone opens ahead of the uplink; frames captured before the
	// socket is ready are dropped.
	if !session.attached() {
		return
	}

	pcm := EncodePCM16LE(samples)
	msg := audioMessage{AudioData: base64.StdEncoding.EncodeToString(pcm)}
	if err := session.writeJSON(msg); err != nil {
		// Transport errors are non-fatal; the read loop notices closure.
		log.Printf("[voice] send audio frame: %v", err)
	}
}

// readLoop dispatches partial and final transcripts until the connection
// closes. Malformed messages are logged and skipped, best-effort.
func (c *Client) readLoop(session *captureSession) {
	defer close(session.done)

	session.connMu.Lock()
	conn := session.conn
	session.connMu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[voice] uplink read error: %v", err)
			} else {
				log.Printf("[voice] uplink closed")
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[voice] malformed service message: %v", err)
			continue
		}
		if msg.Text == "" {
			continue
		}

		switch {
		case msg.MessageType == "FinalTranscript" || msg.EndOfTurn:
			c.onTranscript(msg.Text, true)
		case msg.MessageType == "PartialTranscript":
			// Repeated partials are not deduplicated here; the caller
			// decides what to do with them.
			c.onTranscript(msg.Text, false)
		}
	}
}

func (s *captureSession) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("uplink not connected")
	}
	return s.conn.WriteJSON(v)
}
