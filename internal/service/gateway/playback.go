package gateway

import (
	"bytes"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// PlaybackEvents is the lifecycle sink consumed by the state machine. The
// playback engine never touches shared flags directly.
type PlaybackEvents interface {
	OnPlaybackStart()
	OnPlaybackEnd()
	OnPlaybackError(err error)
}

// SpeakerPlayer plays synthesized WAV replies through the default output
// device. At most one reply plays at a time; starting a new one stops the
// previous.
type SpeakerPlayer struct {
	mu      sync.Mutex
	events  PlaybackEvents
	otoCtx  *oto.Context
	rate    int
	current *playbackSession
}

// NewSpeakerPlayer builds the player. The audio context is initialized
// lazily from the first reply's format.
func NewSpeakerPlayer() *SpeakerPlayer {
	return &SpeakerPlayer{}
}

// SetEvents binds the lifecycle sink. Must be called before the first Play.
func (p *SpeakerPlayer) SetEvents(events PlaybackEvents) {
	p.mu.Lock()
	p.events = events
	p.mu.Unlock()
}

// Play decodes and plays one WAV reply. Errors are reported through the
// lifecycle sink, never returned; playback is best-effort.
func (p *SpeakerPlayer) Play(wav []byte) {
	audio, err := parseWAV(wav)
	if err != nil {
		p.reportError(fmt.Errorf("decode reply audio: %w", err))
		return
	}

	p.Stop()

	p.mu.Lock()
	if p.otoCtx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   audio.SampleRate,
			ChannelCount: audio.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.mu.Unlock()
			p.reportError(fmt.Errorf("init audio output: %w", err))
			return
		}
		<-ready
		p.otoCtx = ctx
		p.rate = audio.SampleRate
	} else if p.rate != audio.SampleRate {
		// The context's rate is fixed for the process; a mismatched reply
		// plays pitch-shifted rather than not at all.
		log.Printf("[playback] reply sample rate %d differs from context %d", audio.SampleRate, p.rate)
	}

	session := &playbackSession{
		player: p.otoCtx.NewPlayer(bytes.NewReader(audio.Data)),
		events: p.events,
	}
	p.current = session
	p.mu.Unlock()

	session.start()
}

// Stop halts the current reply, if any. Safe to call at any time.
func (p *SpeakerPlayer) Stop() {
	p.mu.Lock()
	session := p.current
	p.current = nil
	p.mu.Unlock()

	if session != nil {
		session.halt()
	}
}

func (p *SpeakerPlayer) reportError(err error) {
	p.mu.Lock()
	events := p.events
	p.mu.Unlock()

	if events != nil {
		events.OnPlaybackError(err)
	} else {
		log.Printf("[playback] %v", err)
	}
}

// playbackSession is one reply being played. halt is idempotent so the
// watcher goroutine and an explicit Stop cannot double-fire the end event.
type playbackSession struct {
	player *oto.Player
	events PlaybackEvents
	once   sync.Once
}

func (s *playbackSession) start() {
	if s.events != nil {
		s.events.OnPlaybackStart()
	}
	s.player.Play()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if !s.player.IsPlaying() {
				s.halt()
				return
			}
		}
	}()
}

func (s *playbackSession) halt() {
	s.once.Do(func() {
		if err := s.player.Close(); err != nil {
			log.Printf("[playback] close player: %v", err)
		}
		if s.events != nil {
			s.events.OnPlaybackEnd()
		}
	})
}

// NopPlayer discards audio. Used when no output device is wanted; the
// decision text still flows through the store.
type NopPlayer struct{}

func (NopPlayer) Play([]byte) {}
func (NopPlayer) Stop()       {}
