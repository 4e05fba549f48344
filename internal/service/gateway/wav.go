package gateway

import (
	"encoding/binary"
	"fmt"
)

// wavAudio is the decoded PCM content of a RIFF/WAVE container.
type wavAudio struct {
	SampleRate int
	Channels   int
	Bits       int
	Data       []byte
}

// parseWAV extracts 16-bit PCM from a WAV container. Only the fmt and data
// chunks are consulted; everything else is skipped.
func parseWAV(b []byte) (*wavAudio, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	audio := &wavAudio{}
	offset := 12
	for offset+8 <= len(b) {
		chunkID := string(b[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(b) {
			return nil, fmt.Errorf("truncated %s chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 { // PCM
				return nil, fmt.Errorf("unsupported WAV format %d", format)
			}
			audio.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			audio.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			audio.Bits = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))

		case "data":
			audio.Data = b[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		offset = body + chunkSize + chunkSize%2
	}

	if audio.SampleRate == 0 || len(audio.Data) == 0 {
		return nil, fmt.Errorf("WAV missing fmt or data chunk")
	}
	if audio.Bits != 16 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d", audio.Bits)
	}

	return audio, nil
}
