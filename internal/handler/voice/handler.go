package voice

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apexrevenue/atlas-agent/internal/config"
	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
	voicemodel "github.com/apexrevenue/atlas-agent/internal/model/voice"
	agentservice "github.com/apexrevenue/atlas-agent/internal/service/agent"
	voiceservice "github.com/apexrevenue/atlas-agent/internal/service/voice"
	"github.com/apexrevenue/atlas-agent/pkg/utils"
)

// Capturer is the slice of the voice client the handler needs.
type Capturer interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
}

// Handler bridges voice capture to the interaction state machine: final
// transcripts become user messages, partials become floating captions.
type Handler struct {
	store  *agentservice.Store
	policy config.TranscriptConfig

	mu       sync.Mutex
	capturer Capturer
	level    float64
	captions []caption
}

type caption struct {
	voicemodel.Transcript
	expiresAt time.Time
}

// New creates the voice bridge. The capturer is attached afterwards so the
// client can be constructed with this handler's callbacks.
func New(store *agentservice.Store, policy config.TranscriptConfig) *Handler {
	return &Handler{store: store, policy: policy}
}

// SetCapturer attaches the voice client.
func (h *Handler) SetCapturer(c Capturer) {
	h.mu.Lock()
	h.capturer = c
	h.mu.Unlock()
}

// RegisterRoutes mounts the voice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice/start", h.handleStart)
	r.Post("/voice/stop", h.handleStop)
	r.Get("/voice/status", h.handleStatus)
}

// OnTranscript is the voice client's transcript callback. Finals append a
// user message and dispatch the interaction; the microphone stays open for
// speech-to-speech continuity.
func (h *Handler) OnTranscript(text string, isFinal bool) {
	h.recordCaption(text, isFinal)

	if !isFinal {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	h.store.AddChatMessage(model.RoleUser, text)
	go func() {
		_ = h.store.HandleInteraction(context.Background(), model.EventUserMessage, model.Payload{Text: text})
	}()
}

// OnLevel is the voice client's loudness callback.
func (h *Handler) OnLevel(level float64) {
	h.mu.Lock()
	h.level = level
	h.mu.Unlock()
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	capturer := h.capturer
	h.mu.Unlock()

	if capturer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "voice capture unavailable")
		return
	}
	if capturer.Active() {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"listening": true})
		return
	}

	// Interrupt any spoken reply before listening, then show the
	// listening affordance while the device opens.
	h.store.InterruptAudio()
	h.store.SetListening(true)

	if err := capturer.Start(r.Context()); err != nil {
		h.store.SetListening(false)
		if errors.Is(err, voiceservice.ErrMicrophoneAccess) {
			utils.RespondError(w, http.StatusForbidden, "could not access microphone, check permissions")
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "voice uplink failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"listening": true})
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	capturer := h.capturer
	h.mu.Unlock()

	if capturer != nil {
		capturer.Stop()
	}
	h.store.SetListening(false)

	utils.RespondJSON(w, http.StatusOK, map[string]any{"listening": false})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	active := h.capturer != nil && h.capturer.Active()

	now := time.Now()
	live := h.captions[:0]
	for _, c := range h.captions {
		if c.expiresAt.After(now) {
			live = append(live, c)
		}
	}
	h.captions = live

	out := make([]caption, len(live))
	copy(out, live)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"listening": active,
		"level":     h.level,
		"captions":  out,
	})
}

// recordCaption keeps a short-lived caption trail. The TTL is product
// policy from config, not a correctness constraint.
func (h *Handler) recordCaption(text string, isFinal bool) {
	if strings.TrimSpace(text) == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()

	// A partial supersedes the previous partial rather than stacking.
	if !isFinal && len(h.captions) > 0 && !h.captions[len(h.captions)-1].IsFinal {
		h.captions = h.captions[:len(h.captions)-1]
	}

	h.captions = append(h.captions, caption{
		Transcript: voicemodel.Transcript{Text: text, IsFinal: isFinal},
		expiresAt:  now.Add(h.policy.CaptionTTL),
	})

	// Keep the trail short, matching the three-caption HUD.
	if len(h.captions) > 3 {
		h.captions = h.captions[len(h.captions)-3:]
	}
}
