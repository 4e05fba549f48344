package voice

// Transcript is one speech-to-text result. Partial transcripts are
// provisional and may be superseded; final transcripts are authoritative
// utterance boundaries.
type Transcript struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// TranscriptFunc receives every non-empty transcript in arrival order.
type TranscriptFunc func(text string, isFinal bool)

// LevelFunc receives a normalized loudness value in [0, 1]. Advisory UI
// feedback only, never used for transcription logic.
type LevelFunc func(level float64)
