package gateway

import (
	"context"
	"log"
	"time"

	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
)

// Request is the JSON body sent to the decision service.
type Request struct {
	SessionID      string         `json:"session_id"`
	EventType      string         `json:"event_type"`
	UserIntent     string         `json:"user_intent"`
	UserMessageRaw string         `json:"user_message_raw,omitempty"`
	TimeOnPage     int            `json:"time_on_page"` // seconds
	Metadata       map[string]any `json:"metadata"`
}

// Reply pairs a sanitized decision with an optional synthesized speech
// payload.
type Reply struct {
	Decision *model.Decision
	AudioWAV []byte
}

// Backend answers one decision request. Implementations: the remote
// webhook and the embedded engine.
type Backend interface {
	Decide(ctx context.Context, req *Request) (*Reply, error)
}

// AudioPlayer plays synthesized replies out-of-band.
type AudioPlayer interface {
	Play(wav []byte)
	Stop()
}

// Gateway translates UI events into decision-service exchanges. Network
// and protocol failures never escape as raw errors; they come back as a
// connection_error decision with an empty spoken response.
type Gateway struct {
	backend Backend
	player  AudioPlayer
	timeout time.Duration
}

// New wires a gateway over the given backend. timeout bounds each exchange
// and must stay shorter than the state machine's failsafe.
func New(backend Backend, player AudioPlayer, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Gateway{backend: backend, player: player, timeout: timeout}
}

// ProcessEvent performs one exchange with the decision service.
func (g *Gateway) ProcessEvent(ctx context.Context, sessionID string, timeOnPage time.Duration, event string, payload model.Payload) (*model.Decision, error) {
	t := Translate(event, payload)

	req := &Request{
		SessionID:      sessionID,
		EventType:      t.EventType,
		UserIntent:     t.UserIntent,
		UserMessageRaw: t.UserMessageRaw,
		TimeOnPage:     int(timeOnPage.Seconds()),
		Metadata:       t.Metadata,
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.backend.Decide(ctx, req)
	if err != nil {
		log.Printf("[gateway] decision exchange failed: %v", err)
		return model.ConnectionErrorDecision(), nil
	}
	if reply == nil || reply.Decision == nil {
		log.Printf("[gateway] decision backend returned no output")
		return model.ConnectionErrorDecision(), nil
	}

	if len(reply.AudioWAV) > 0 && g.player != nil {
		go g.player.Play(reply.AudioWAV)
	}

	return reply.Decision, nil
}

// StopAudio halts any playing synthesized reply.
func (g *Gateway) StopAudio() {
	if g.player != nil {
		g.player.Stop()
	}
}
