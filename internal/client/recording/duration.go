package recording

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

// EstimateBytesPerSecond assumes a 128 kbps stream.
const EstimateBytesPerSecond = 16000

// EstimateDuration guesses playback length from file size alone.
func EstimateDuration(size int64) float64 {
	if size <= 0 {
		return 0
	}
	return float64(size) / EstimateBytesPerSecond
}

// DurationDetector reads the duration from container metadata via ffprobe
// and falls back to EstimateDuration when that is unavailable.
type DurationDetector struct {
	logger logging.Logger
	probe  func(ctx context.Context, path string) (float64, error)
}

func NewDurationDetector(ffprobePath string, logger logging.Logger) *DurationDetector {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &DurationDetector{
		logger: logger,
		probe: func(ctx context.Context, path string) (float64, error) {
			return ffprobeDuration(ctx, ffprobePath, path)
		},
	}
}

func (d *DurationDetector) Detect(ctx context.Context, path string, size int64) float64 {
	secs, err := d.probe(ctx, path)
	if err == nil && secs > 0 {
		return secs
	}
	d.logger.Debug(ctx, "duration metadata unavailable, estimating from size", "path", path, "error", err)
	return EstimateDuration(size)
}

func ffprobeDuration(ctx context.Context, ffprobe, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeDuration(string(out))
}

func parseProbeDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration in ffprobe output")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", s, err)
	}
	return v, nil
}
