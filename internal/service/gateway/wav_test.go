package gateway

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildWAV assembles a minimal RIFF/WAVE container around pcm.
func buildWAV(t *testing.T, format uint16, channels uint16, sampleRate uint32, bits uint16, pcm []byte) []byte {
	t.Helper()

	var fmtChunk bytes.Buffer
	binary.Write(&fmtChunk, binary.LittleEndian, format)
	binary.Write(&fmtChunk, binary.LittleEndian, channels)
	binary.Write(&fmtChunk, binary.LittleEndian, sampleRate)
	binary.Write(&fmtChunk, binary.LittleEndian, sampleRate*uint32(channels)*uint32(bits)/8) // byte rate
	binary.Write(&fmtChunk, binary.LittleEndian, channels*bits/8)                            // block align
	binary.Write(&fmtChunk, binary.LittleEndian, bits)

	var body bytes.Buffer
	body.WriteString("WAVE")
	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(fmtChunk.Len()))
	body.Write(fmtChunk.Bytes())
	body.WriteString("data")
	binary.Write(&body, binary.LittleEndian, uint32(len(pcm)))
	body.Write(pcm)
	if len(pcm)%2 == 1 {
		body.WriteByte(0) // word alignment pad
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestParseWAV(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := buildWAV(t, 1, 1, 24000, 16, pcm)

	audio, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if audio.SampleRate != 24000 {
		t.Errorf("sample rate = %d", audio.SampleRate)
	}
	if audio.Channels != 1 {
		t.Errorf("channels = %d", audio.Channels)
	}
	if audio.Bits != 16 {
		t.Errorf("bits = %d", audio.Bits)
	}
	if !bytes.Equal(audio.Data, pcm) {
		t.Errorf("data = %v, want %v", audio.Data, pcm)
	}
}

func TestParseWAVSkipsUnknownChunks(t *testing.T) {
	pcm := []byte{0xAA, 0xBB}
	wav := buildWAV(t, 1, 2, 44100, 16, pcm)

	// Splice a LIST chunk between fmt and data.
	list := append([]byte("LIST"), 0x04, 0x00, 0x00, 0x00, 'I', 'N', 'F', 'O')
	dataAt := bytes.Index(wav, []byte("data"))
	spliced := append(append(append([]byte{}, wav[:dataAt]...), list...), wav[dataAt:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	audio, err := parseWAV(spliced)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if !bytes.Equal(audio.Data, pcm) {
		t.Errorf("data = %v, want %v", audio.Data, pcm)
	}
}

func TestParseWAVRejections(t *testing.T) {
	tests := []struct {
		name string
		wav  []byte
	}{
		{"empty", nil},
		{"not riff", []byte("JUNKxxxxWAVE")},
		{"float format", buildWAV(t, 3, 1, 16000, 16, []byte{0, 0})},
		{"8-bit depth", buildWAV(t, 1, 1, 16000, 8, []byte{0, 0})},
		{"truncated data chunk", func() []byte {
			wav := buildWAV(t, 1, 1, 16000, 16, []byte{0, 0, 0, 0})
			return wav[:len(wav)-2]
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseWAV(tt.wav); err == nil {
				t.Error("parseWAV succeeded, want error")
			}
		})
	}
}
