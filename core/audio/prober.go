// Package audio measures the duration of uploaded audio.
//
// Probing is best effort: a track whose duration cannot be measured is still
// stored, just with an unknown duration.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"WaveDeck/config"
)

// ErrUnsupported is returned when a prober cannot handle the given MIME type.
var ErrUnsupported = errors.New("unsupported audio format")

// Prober returns the duration in seconds of the audio in src.
type Prober interface {
	Probe(ctx context.Context, src io.ReadSeeker, mimeType string) (float64, error)
}

// NopProber never measures anything. It is the default.
type NopProber struct{}

func (NopProber) Probe(context.Context, io.ReadSeeker, string) (float64, error) {
	return 0, ErrUnsupported
}

// NewProber picks the prober named by cfg.DurationProbe.
func NewProber(cfg *config.Config) (Prober, error) {
	switch cfg.DurationProbe {
	case config.ProbeNone, "":
		return NopProber{}, nil
	case config.ProbeBeep:
		return BeepProber{}, nil
	case config.ProbeFFprobe:
		return NewFFprobeProber(cfg.FFprobePath), nil
	default:
		return nil, fmt.Errorf("unknown duration prober %q", cfg.DurationProbe)
	}
}
