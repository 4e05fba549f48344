package voice

import "time"

// Config tunes one capture session. Recognition parameters are a tuning
// concern, not a correctness one.
type Config struct {
	Endpoint    string // transcription service websocket URL
	AccessToken string

	SampleRate int // Hz, mono PCM16LE

	// End-of-turn detection.
	EndOfTurnConfidence float64       // 0..1
	MinEndOfTurnSilence time.Duration // when confident
	MaxTurnSilence      time.Duration // forced end of turn
	WordBoost           []string      // domain vocabulary bias
	FilterRemoval       []string      // disfluencies stripped from transcripts
	ChunkDuration       time.Duration // frame size, latency vs overhead
	LevelGain           float64       // RMS gain so speech peaks near 1.0
	HandshakeTimeout    time.Duration
}

// Defaults mirror the tuning the product shipped with.
func DefaultConfig() Config {
	return Config{
		Endpoint:            "wss://api.assemblyai.com/v2/realtime/ws",
		SampleRate:          16000,
		EndOfTurnConfidence: 0.5,
		MinEndOfTurnSilence: 500 * time.Millisecond,
		MaxTurnSilence:      1200 * time.Millisecond,
		WordBoost:           []string{"Apex", "Revenue", "SDR", "ROI", "Lead", "Gen", "Pipeline"},
		FilterRemoval:       []string{"um", "uh", "hmm", "mhm", "uh-huh", "ah", "huh", "hm", "m"},
		ChunkDuration:       250 * time.Millisecond,
		LevelGain:           5,
		HandshakeTimeout:    30 * time.Second,
	}
}

// FrameSamples is the number of float32 samples per capture frame.
func (c Config) FrameSamples() int {
	n := int(float64(c.SampleRate) * c.ChunkDuration.Seconds())
	if n <= 0 {
		n = 4096
	}
	return n
}
