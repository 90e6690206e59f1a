// Package testutil builds audio fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
)

// WAV returns a 16-bit mono PCM WAV file of the given length. Samples form a
// repeating ramp so that every byte range of the payload is distinguishable.
func WAV(seconds, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	frames := seconds * sampleRate
	dataSize := frames * channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	le(uint32(36 + dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1)) // PCM
	le(uint16(channels))
	le(uint32(sampleRate))
	le(uint32(sampleRate * channels * bitsPerSample / 8))
	le(uint16(channels * bitsPerSample / 8))
	le(uint16(bitsPerSample))

	buf.WriteString("data")
	le(uint32(dataSize))
	for i := 0; i < frames; i++ {
		le(int16((i*37)%4096 - 2048))
	}
	return buf.Bytes()
}
