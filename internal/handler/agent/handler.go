package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
	agentservice "github.com/apexrevenue/atlas-agent/internal/service/agent"
	"github.com/apexrevenue/atlas-agent/pkg/utils"
)

// Handler exposes the interaction state machine over HTTP. It is the sole
// write path; everything else reads snapshots.
type Handler struct {
	store *agentservice.Store
}

// New creates the agent handler.
func New(store *agentservice.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/interactions", h.handleInteraction)
	r.Post("/interactions/retry", h.handleRetry)
	r.Post("/interrupt", h.handleInterrupt)
	r.Get("/state", h.handleState)
	r.Get("/state/stream", h.handleStateStream)
	r.Get("/history", h.handleHistory)
}

type interactionRequest struct {
	Event   string        `json:"event"`
	Payload model.Payload `json:"payload"`
}

// handleInteraction accepts a typed UI intent and dispatches it. The
// exchange runs asynchronously; the response carries the immediate
// post-dispatch snapshot so callers see processing right away.
func (h *Handler) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Event == "" {
		utils.RespondError(w, http.StatusBadRequest, "event is required")
		return
	}

	// A typed user message shows up in the log before the agent answers,
	// same as the spoken path.
	if req.Event == model.EventUserMessage {
		text := strings.TrimSpace(req.Payload.Text)
		if text == "" {
			utils.RespondError(w, http.StatusBadRequest, "user_message requires text")
			return
		}
		h.store.AddChatMessage(model.RoleUser, text)
	}

	go func() {
		// Detached from the request context: the exchange outlives the
		// HTTP call and is bounded by the gateway timeout plus failsafe.
		_ = h.store.HandleInteraction(context.Background(), req.Event, req.Payload)
	}()

	utils.RespondJSON(w, http.StatusAccepted, h.store.Snapshot())
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	go func() {
		_ = h.store.RetryLastInteraction(context.Background())
	}()
	utils.RespondJSON(w, http.StatusAccepted, h.store.Snapshot())
}

func (h *Handler) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	h.store.InterruptAudio()
	utils.RespondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Snapshot().ChatHistory)
}

// handleStateStream pushes a snapshot over SSE after every state change.
func (h *Handler) handleStateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	snapshots := h.store.Subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			utils.SendSSEChunk(w, flusher, snap)
		}
	}
}
