package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/apexrevenue/atlas-agent/internal/model/agent"
)

// Gateway performs the decision-service exchange on behalf of the store.
// Implementations must bound the call with their own timeout, shorter than
// the store's failsafe.
type Gateway interface {
	ProcessEvent(ctx context.Context, sessionID string, timeOnPage time.Duration, event string, payload model.Payload) (*model.Decision, error)
	StopAudio()
}

// Store is the process-wide interaction state machine. One instance lives
// for the application lifetime; presentation code reads snapshots and
// dispatches events, nothing else.
type Store struct {
	gateway  Gateway
	failsafe time.Duration

	mu             sync.Mutex
	sessionID      string
	startTime      time.Time
	systemState    model.SystemState
	orbEmotion     model.OrbEmotion
	isLocked       bool
	isHudOpen      bool
	isAudioPlaying bool
	atlas          model.AtlasState
	lastEvent      *model.Interaction
	history        []model.ChatMessage

	// generation increments per accepted interaction so a stale failsafe
	// timer cannot knock out a newer exchange.
	generation uint64

	subscribers map[uint64]chan model.Snapshot
	nextSubID   uint64
}

// NewStore constructs the state container. failsafe guards against the UI
// being left in processing forever.
func NewStore(gateway Gateway, failsafe time.Duration) *Store {
	if failsafe <= 0 {
		failsafe = 60 * time.Second
	}
	return &Store{
		gateway:     gateway,
		failsafe:    failsafe,
		startTime:   time.Now(),
		systemState: model.StateIdle,
		orbEmotion:  model.EmotionNeutral,
		isHudOpen:   true,
		atlas:       model.DefaultAtlasState(),
		subscribers: make(map[uint64]chan model.Snapshot),
	}
}

// HandleInteraction runs one interaction through the machine. A call while
// a request is in flight is dropped silently unless the event is an
// interrupt. The error return is reserved for future use; all failures are
// absorbed and re-expressed as the fallback state.
func (s *Store) HandleInteraction(ctx context.Context, event string, payload model.Payload) error {
	s.mu.Lock()
	if s.isLocked && !model.IsInterrupt(event) {
		s.mu.Unlock()
		log.Printf("[atlas] interaction %q blocked by lock", event)
		return nil
	}

	s.lastEvent = &model.Interaction{Event: event, Payload: payload}
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	sessionID := s.sessionID
	timeOnPage := time.Since(s.startTime)

	wasPlaying := s.isAudioPlaying
	s.isLocked = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if wasPlaying {
		s.gateway.StopAudio()
	}

	// Immediate feedback: the caller never waits in silence.
	s.mu.Lock()
	s.systemState = model.StateProcessing
	s.isHudOpen = true
	s.publishLocked()
	s.mu.Unlock()

	timer := time.AfterFunc(s.failsafe, func() { s.failsafeFired(gen) })
	defer timer.Stop()

	decision, err := s.gateway.ProcessEvent(ctx, sessionID, timeOnPage, event, payload)
	if err != nil || decision == nil {
		if err != nil {
			log.Printf("[atlas] interaction %q failed: %v", event, err)
		}
		s.enterFallback()
		return nil
	}

	s.applyDecision(decision)
	return nil
}

// RetryLastInteraction re-runs the stored last event. With no history it
// resets to idle instead of erroring.
func (s *Store) RetryLastInteraction(ctx context.Context) error {
	s.mu.Lock()
	last := s.lastEvent
	if last == nil {
		s.systemState = model.StateIdle
		s.orbEmotion = model.EmotionNeutral
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	log.Printf("[atlas] retrying last interaction: %s", last.Event)
	return s.HandleInteraction(ctx, last.Event, last.Payload)
}

// AddChatMessage appends one turn to the visible conversation log.
func (s *Store) AddChatMessage(role model.Role, text string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Visible:   true,
	}

	s.mu.Lock()
	s.history = append(s.history, msg)
	s.publishLocked()
	s.mu.Unlock()

	return msg
}

// InterruptAudio halts playback immediately and resets state without
// waiting for any in-flight request.
func (s *Store) InterruptAudio() {
	s.gateway.StopAudio()

	s.mu.Lock()
	s.isAudioPlaying = false
	s.systemState = model.StateIdle
	s.publishLocked()
	s.mu.Unlock()
}

// SetListening reflects voice-capture start/stop. Only the idle<->listening
// edge is driven here.
func (s *Store) SetListening(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if on {
		if s.systemState == model.StateIdle {
			s.systemState = model.StateListening
		}
	} else if s.systemState == model.StateListening {
		s.systemState = model.StateIdle
	}
	s.publishLocked()
}

// OnPlaybackStart implements the gateway's playback lifecycle sink.
func (s *Store) OnPlaybackStart() {
	s.mu.Lock()
	s.isAudioPlaying = true
	s.systemState = model.StateSpeaking
	s.publishLocked()
	s.mu.Unlock()
}

// OnPlaybackEnd implements the gateway's playback lifecycle sink.
func (s *Store) OnPlaybackEnd() {
	s.mu.Lock()
	s.isAudioPlaying = false
	if s.systemState == model.StateSpeaking {
		s.systemState = model.StateIdle
	}
	s.publishLocked()
	s.mu.Unlock()
}

// OnPlaybackError implements the gateway's playback lifecycle sink.
func (s *Store) OnPlaybackError(err error) {
	log.Printf("[atlas] audio playback error: %v", err)
	s.OnPlaybackEnd()
}

// Snapshot returns the published state. The chat history is copied so
// callers cannot mutate the log.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe delivers a snapshot after every state change until ctx ends.
// Slow consumers miss intermediate snapshots rather than blocking the
// machine.
func (s *Store) Subscribe(ctx context.Context) <-chan model.Snapshot {
	ch := make(chan model.Snapshot, 8)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (s *Store) applyDecision(d *model.Decision) {
	s.mu.Lock()

	s.atlas = model.AtlasState{
		Stage:      d.Stage,
		UIAction:   d.UIAction,
		Data:       d.Data,
		LastSpoken: d.SpokenResponse,
	}
	s.orbEmotion = model.EmotionForStage(d.Stage)
	s.isLocked = false
	switch {
	case d.Stage == model.StageConnectionError:
		// The gateway reports transport and protocol failures as a
		// connection_error stage; the retry affordance hangs off fallback.
		s.systemState = model.StateFallback
	case s.isAudioPlaying:
		s.systemState = model.StateSpeaking
	default:
		s.systemState = model.StateIdle
	}
	s.publishLocked()
	s.mu.Unlock()

	if d.SpokenResponse != "" {
		s.AddChatMessage(model.RoleAgent, d.SpokenResponse)
	}
}

func (s *Store) enterFallback() {
	s.mu.Lock()
	s.systemState = model.StateFallback
	s.orbEmotion = model.EmotionConcerned
	s.isLocked = false
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Store) failsafeFired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen || s.systemState != model.StateProcessing {
		return
	}

	log.Printf("[atlas] failsafe triggered: request timed out")
	s.systemState = model.StateFallback
	s.orbEmotion = model.EmotionConcerned
	s.isLocked = false
	s.publishLocked()
}

func (s *Store) snapshotLocked() model.Snapshot {
	history := make([]model.ChatMessage, len(s.history))
	copy(history, s.history)

	var last *model.Interaction
	if s.lastEvent != nil {
		copied := *s.lastEvent
		last = &copied
	}

	return model.Snapshot{
		SessionID:      s.sessionID,
		SystemState:    s.systemState,
		OrbEmotion:     s.orbEmotion,
		IsLocked:       s.isLocked,
		IsHudOpen:      s.isHudOpen,
		IsAudioPlaying: s.isAudioPlaying,
		StatusLine:     statusLine(s.systemState, s.lastEvent),
		Atlas:          s.atlas,
		LastEvent:      last,
		ChatHistory:    history,
	}
}

func (s *Store) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
