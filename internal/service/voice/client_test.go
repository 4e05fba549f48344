package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	voicemodel "github.com/apexrevenue/atlas-agent/internal/model/voice"
)

type fakeSource struct {
	mu           sync.Mutex
	sampleRate   int
	frameSamples int
	onFrame      func([]float32)
	startErr     error
	stopCalls    int
}

func (f *fakeSource) Start(sampleRate, frameSamples int, onFrame func([]float32)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.sampleRate = sampleRate
	f.frameSamples = frameSamples
	f.onFrame = onFrame
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.onFrame = nil
	return nil
}

func (f *fakeSource) emit(samples []float32) {
	f.mu.Lock()
	onFrame := f.onFrame
	f.mu.Unlock()
	if onFrame != nil {
		onFrame(samples)
	}
}

// voiceServer is a scripted stand-in for the transcription service.
type voiceServer struct {
	srv      *httptest.Server
	received chan map[string]any
	send     chan string
	queries  chan url.Values
}

func newVoiceServer(t *testing.T) *voiceServer {
	t.Helper()

	vs := &voiceServer{
		received: make(chan map[string]any, 16),
		send:     make(chan string, 16),
		queries:  make(chan url.Values, 1),
	}

	upgrader := websocket.Upgrader{}
	vs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs.queries <- r.URL.Query()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		go func() {
			for msg := range vs.send {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Errorf("server received malformed message: %v", err)
				continue
			}
			vs.received <- m
		}
	}))
	t.Cleanup(vs.srv.Close)

	return vs
}

func (vs *voiceServer) wsURL() string {
	return "ws" + strings.TrimPrefix(vs.srv.URL, "http")
}

func (vs *voiceServer) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m := <-vs.received:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from client")
		return nil
	}
}

type transcriptEvent struct {
	text  string
	final bool
}

func TestClientStreamsFramesAndTranscripts(t *testing.T) {
	vs := newVoiceServer(t)

	cfg := voicemodel.DefaultConfig()
	cfg.Endpoint = vs.wsURL()
	cfg.AccessToken = "tok-1"

	transcripts := make(chan transcriptEvent, 8)
	var levelMu sync.Mutex
	var levels []float64

	source := &fakeSource{}
	client := NewClient(cfg, source,
		func(text string, isFinal bool) { transcripts <- transcriptEvent{text, isFinal} },
		func(level float64) {
			levelMu.Lock()
			levels = append(levels, level)
			levelMu.Unlock()
		},
	)

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !client.Active() {
		t.Error("client not active after Start")
	}

	q := <-vs.queries
	if q.Get("sample_rate") != "16000" {
		t.Errorf("sample_rate = %q", q.Get("sample_rate"))
	}
	if q.Get("token") != "tok-1" {
		t.Errorf("token = %q", q.Get("token"))
	}

	// The recognition config goes out before any audio.
	first := vs.next(t)
	if first["type"] != "UpdateConfiguration" {
		t.Errorf("first message type = %v", first["type"])
	}
	if _, ok := first["word_boost"]; !ok {
		t.Error("config message missing word_boost")
	}
	if _, ok := first["filter_removal"]; !ok {
		t.Error("config message missing filter_removal")
	}
	if first["end_of_turn_confidence_threshold"] != 0.5 {
		t.Errorf("confidence threshold = %v", first["end_of_turn_confidence_threshold"])
	}

	source.mu.Lock()
	gotRate, gotFrame := source.sampleRate, source.frameSamples
	source.mu.Unlock()
	if gotRate != cfg.SampleRate {
		t.Errorf("source sample rate = %d, want %d", gotRate, cfg.SampleRate)
	}
	if gotFrame != cfg.FrameSamples() {
		t.Errorf("source frame size = %d, want %d", gotFrame, cfg.FrameSamples())
	}

	// One frame of audio goes out as base64 PCM.
	frame := []float32{0.5, -0.25, 0.125, 0}
	source.emit(frame)

	msg := vs.next(t)
	encoded, ok := msg["audio_data"].(string)
	if !ok {
		t.Fatalf("audio message = %v", msg)
	}
	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode audio payload: %v", err)
	}
	want := EncodePCM16LE(frame)
	if string(pcm) != string(want) {
		t.Errorf("pcm = %v, want %v", pcm, want)
	}

	levelMu.Lock()
	levelCount := len(levels)
	levelMu.Unlock()
	if levelCount == 0 {
		t.Error("level callback never fired")
	}

	// Transcripts flow back: partial first, then the end of turn.
	vs.send <- `{"message_type":"PartialTranscript","text":"book a"}`
	vs.send <- `{"message_type":"FinalTranscript","text":"book a demo","end_of_turn":true}`
	vs.send <- `{"message_type":"PartialTranscript","text":""}` // empty text skipped

	for _, want := range []transcriptEvent{{"book a", false}, {"book a demo", true}} {
		select {
		case got := <-transcripts:
			if got != want {
				t.Errorf("transcript = %+v, want %+v", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("transcript %+v never arrived", want)
		}
	}

	// A second Start on a live session is rejected.
	if err := client.Start(context.Background()); err == nil {
		t.Error("second Start succeeded, want error")
	}

	client.Stop()

	if client.Active() {
		t.Error("client still active after Stop")
	}

	// Termination notice is the last thing on the wire.
	last := vs.next(t)
	if last["terminate_session"] != true {
		t.Errorf("final message = %v, want terminate_session", last)
	}

	source.mu.Lock()
	stops := source.stopCalls
	source.mu.Unlock()
	if stops != 1 {
		t.Errorf("source stop calls = %d, want 1", stops)
	}

	levelMu.Lock()
	lastLevel := levels[len(levels)-1]
	levelMu.Unlock()
	if lastLevel != 0 {
		t.Errorf("final level = %v, want 0 so meters settle", lastLevel)
	}
}

func TestClientStopBeforeStart(t *testing.T) {
	source := &fakeSource{}
	client := NewClient(voicemodel.DefaultConfig(), source, func(string, bool) {}, nil)

	client.Stop()
	client.Stop()

	if client.Active() {
		t.Error("client reports active without Start")
	}
}

func TestClientStartMicrophoneFailureSkipsUplink(t *testing.T) {
	vs := newVoiceServer(t)

	cfg := voicemodel.DefaultConfig()
	cfg.Endpoint = vs.wsURL()

	source := &fakeSource{startErr: ErrMicrophoneAccess}
	client := NewClient(cfg, source, func(string, bool) {}, nil)

	err := client.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded with broken microphone")
	}
	if !errors.Is(err, ErrMicrophoneAccess) {
		t.Errorf("error = %v, want microphone access failure, not a transport error", err)
	}
	if client.Active() {
		t.Error("client active after microphone failure")
	}

	// The microphone is acquired first; a denied microphone must not cost
	// a service connection.
	select {
	case <-vs.queries:
		t.Error("transcription service dialed despite microphone failure")
	default:
	}
}

func TestClientDialFailureReleasesMicrophone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := voicemodel.DefaultConfig()
	cfg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")

	source := &fakeSource{}
	client := NewClient(cfg, source, func(string, bool) {}, nil)

	if err := client.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded against non-websocket endpoint")
	}
	if client.Active() {
		t.Error("client active after failed Start")
	}

	source.mu.Lock()
	stops := source.stopCalls
	source.mu.Unlock()
	if stops != 1 {
		t.Errorf("source stop calls = %d, want microphone released on dial failure", stops)
	}
}
