package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Info - what the editor needs to know about a media file
type Info struct {
	Duration float64 // seconds
	Width    int
	Height   int
	HasAudio bool
	Still    bool
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// runProbe executes ffprobe against path and returns its JSON output.
func runProbe(ctx context.Context, binary, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ffprobe: empty path")
	}
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return output, nil
}

// parseProbe turns ffprobe JSON into Info. Still images get stillSeconds as duration.
func parseProbe(output []byte, still bool, stillSeconds float64) (Info, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := Info{Still: still}
	hasVideo := false
	var streamDuration float64
	for _, s := range result.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			if !hasVideo {
				hasVideo = true
				info.Width, info.Height = s.Width, s.Height
				streamDuration = parseSeconds(s.Duration)
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !hasVideo {
		return Info{}, errors.New("no video stream")
	}

	if still {
		info.Duration = stillSeconds
		info.HasAudio = false
		return info, nil
	}

	info.Duration = parseSeconds(result.Format.Duration)
	if info.Duration <= 0 {
		info.Duration = streamDuration
	}
	if info.Duration <= 0 {
		return Info{}, errors.New("unknown duration")
	}
	return info, nil
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
