package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"WaveDeck/logger"
)

// FFprobeProber shells out to ffprobe and reads the container duration.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a prober using the ffprobe binary at path.
func NewFFprobeProber(path string) *FFprobeProber {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: path}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobeProber) Probe(ctx context.Context, src io.ReadSeeker, mimeType string) (float64, error) {
	// ffprobe wants a path; anything that is not already a file is spooled.
	if f, ok := src.(*os.File); ok {
		return p.probeFile(ctx, f.Name())
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind audio: %w", err)
	}
	tmp, err := os.CreateTemp("", "wavedeck-probe-*")
	if err != nil {
		return 0, fmt.Errorf("create probe file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			logger.Warn("failed to remove probe file", logger.String("path", tmp.Name()), logger.ErrorField(err))
		}
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		return 0, fmt.Errorf("spool audio for ffprobe: %w", err)
	}
	return p.probeFile(ctx, tmp.Name())
}

func (p *FFprobeProber) probeFile(ctx context.Context, inputFile string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w: %s", inputFile, err, stderr.String())
	}
	return parseFFprobeDuration(out.Bytes())
}

func parseFFprobeDuration(raw []byte) (float64, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(raw, &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative duration %v", duration)
	}
	return duration, nil
}
