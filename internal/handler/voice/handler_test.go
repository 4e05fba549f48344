package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apexrevenue/atlas-agent/internal/config"
	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
	agentservice "github.com/apexrevenue/atlas-agent/internal/service/agent"
	voiceservice "github.com/apexrevenue/atlas-agent/internal/service/voice"
)

type fakeGateway struct {
	mu       sync.Mutex
	decision *model.Decision
	events   []string
}

func (f *fakeGateway) ProcessEvent(ctx context.Context, sessionID string, timeOnPage time.Duration, event string, payload model.Payload) (*model.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.decision, nil
}

func (f *fakeGateway) StopAudio() {}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeCapturer struct {
	mu       sync.Mutex
	active   bool
	startErr error
	stops    int
}

func (f *fakeCapturer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeCapturer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.stops++
}

func (f *fakeCapturer) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func testPolicy() config.TranscriptConfig {
	return config.TranscriptConfig{RecentWindow: time.Second, CaptionTTL: 6 * time.Second}
}

func newTestHandler(gw *fakeGateway, capt *fakeCapturer) (http.Handler, *Handler, *agentservice.Store) {
	store := agentservice.NewStore(gw, time.Minute)
	h := New(store, testPolicy())
	if capt != nil {
		h.SetCapturer(capt)
	}

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, h, store
}

type statusResponse struct {
	Listening bool    `json:"listening"`
	Level     float64 `json:"level"`
	Captions  []struct {
		Text    string `json:"text"`
		IsFinal bool   `json:"isFinal"`
	} `json:"captions"`
}

func getStatus(t *testing.T, router http.Handler) statusResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/voice/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return out
}

func TestVoiceStartStop(t *testing.T) {
	capt := &fakeCapturer{}
	router, _, store := newTestHandler(&fakeGateway{}, capt)

	req := httptest.NewRequest(http.MethodPost, "/voice/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", rec.Code)
	}
	if !capt.Active() {
		t.Error("capturer not started")
	}
	if store.Snapshot().SystemState != model.StateListening {
		t.Errorf("state = %q, want listening", store.Snapshot().SystemState)
	}

	// A second start while live is a no-op success.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/voice/start", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat start status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/voice/stop", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", rec.Code)
	}
	if capt.Active() {
		t.Error("capturer still active after stop")
	}
	if store.Snapshot().SystemState != model.StateIdle {
		t.Errorf("state = %q, want idle after stop", store.Snapshot().SystemState)
	}
}

func TestVoiceStartMicrophoneDenied(t *testing.T) {
	capt := &fakeCapturer{startErr: voiceservice.ErrMicrophoneAccess}
	router, _, store := newTestHandler(&fakeGateway{}, capt)

	req := httptest.NewRequest(http.MethodPost, "/voice/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if store.Snapshot().SystemState != model.StateIdle {
		t.Errorf("state = %q, want idle restored after failure", store.Snapshot().SystemState)
	}
}

func TestVoiceStartWithoutCapturer(t *testing.T) {
	router, _, _ := newTestHandler(&fakeGateway{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/voice/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestOnTranscriptFinalDispatchesInteraction(t *testing.T) {
	gw := &fakeGateway{decision: &model.Decision{Stage: model.StageQualify, UIAction: model.ActionNone, SpokenResponse: "Got it."}}
	_, h, store := newTestHandler(gw, &fakeCapturer{})

	h.OnTranscript("book a", false)
	if gw.callCount() != 0 {
		t.Errorf("gateway calls after partial = %d, want 0", gw.callCount())
	}

	h.OnTranscript("book a demo", true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hist := store.Snapshot().ChatHistory
		if len(hist) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	history := store.Snapshot().ChatHistory
	if len(history) != 2 {
		t.Fatalf("history = %+v, want user turn plus agent reply", history)
	}
	if history[0].Role != model.RoleUser || history[0].Text != "book a demo" {
		t.Errorf("user turn = %+v", history[0])
	}
	if history[1].Role != model.RoleAgent || history[1].Text != "Got it." {
		t.Errorf("agent turn = %+v", history[1])
	}
}

func TestOnTranscriptIgnoresBlankFinal(t *testing.T) {
	gw := &fakeGateway{}
	_, h, store := newTestHandler(gw, &fakeCapturer{})

	h.OnTranscript("   ", true)

	time.Sleep(20 * time.Millisecond)
	if gw.callCount() != 0 {
		t.Errorf("gateway calls = %d, want 0", gw.callCount())
	}
	if len(store.Snapshot().ChatHistory) != 0 {
		t.Errorf("history = %+v, want empty", store.Snapshot().ChatHistory)
	}
}

func TestVoiceStatusCaptions(t *testing.T) {
	router, h, _ := newTestHandler(&fakeGateway{decision: &model.Decision{Stage: model.StageIntro, UIAction: model.ActionNone}}, &fakeCapturer{})

	// A newer partial replaces the previous partial instead of stacking.
	h.OnTranscript("boo", false)
	h.OnTranscript("book a", false)
	h.OnLevel(0.4)

	status := getStatus(t, router)
	if status.Level != 0.4 {
		t.Errorf("level = %v, want 0.4", status.Level)
	}
	if len(status.Captions) != 1 {
		t.Fatalf("captions = %+v, want one live partial", status.Captions)
	}
	if status.Captions[0].Text != "book a" || status.Captions[0].IsFinal {
		t.Errorf("caption = %+v", status.Captions[0])
	}
}

func TestVoiceStatusExpiresCaptions(t *testing.T) {
	gw := &fakeGateway{decision: &model.Decision{Stage: model.StageIntro, UIAction: model.ActionNone}}
	store := agentservice.NewStore(gw, time.Minute)
	h := New(store, config.TranscriptConfig{RecentWindow: time.Second, CaptionTTL: 10 * time.Millisecond})
	h.SetCapturer(&fakeCapturer{})

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	h.OnTranscript("fading", false)
	time.Sleep(30 * time.Millisecond)

	status := getStatus(t, r)
	if len(status.Captions) != 0 {
		t.Errorf("captions = %+v, want expired", status.Captions)
	}
}
