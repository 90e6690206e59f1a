package audio

import (
	"context"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// BeepProber decodes WAV and MP3 headers in process.
type BeepProber struct{}

func (BeepProber) Probe(ctx context.Context, src io.ReadSeeker, mimeType string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind audio: %w", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		streamer, format, err = wav.Decode(src)
	case "audio/mpeg", "audio/mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(src))
	default:
		return 0, ErrUnsupported
	}
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", mimeType, err)
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return 0, fmt.Errorf("decode %s: invalid sample rate %d", mimeType, format.SampleRate)
	}
	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}
