package synth

import (
	"context"
	"encoding/binary"
)

// mockCharsPerSecond controls how much silence the mock emits per
// character of input, so measured durations track text length.
const mockCharsPerSecond = 15.0

type mockSynth struct {
	sampleRate int
}

// NewMockSynth returns a synthesizer that renders deterministic silent
// WAV audio whose duration is proportional to the text length. Useful
// for tests and dry runs without provider credentials.
func NewMockSynth(sampleRate int) Synthesizer {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &mockSynth{sampleRate: sampleRate}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seconds := float64(len(req.Text)) / mockCharsPerSecond
	if req.Voice.SpeakingRate > 0 {
		seconds /= req.Voice.SpeakingRate
	}
	return SilentWAV(seconds, m.sampleRate), nil
}

// SilentWAV builds a valid 16-bit mono PCM WAV file containing silence.
func SilentWAV(seconds float64, sampleRate int) []byte {
	if seconds < 0 {
		seconds = 0
	}
	samples := int(seconds * float64(sampleRate))
	dataLen := samples * 2 // 16-bit mono

	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                    // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)                     // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1)                     // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))    // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))  // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                     // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                    // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	return buf
}
