package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// probeDuration asks ffprobe for the total duration of an audio file in
// seconds. It fails when ffprobe is not installed or the file cannot be
// parsed as audio; callers are expected to degrade rather than abort.
func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}
