package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"media-studio-server/modules/common/config"
)

const (
	outputFPS        = 30
	audioSampleRate  = 44100
	fallbackWidth    = 1280
	fallbackHeight   = 720
	probeCacheSize   = 256
	maxErrorTailSize = 2048
)

var stillExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

type probeKey struct {
	path    string
	size    int64
	modNano int64
}

// FFmpeg - Engine backed by the ffmpeg / ffprobe binaries
type FFmpeg struct {
	ffmpegPath   string
	ffprobePath  string
	stillSeconds float64
	probes       *lru.Cache[probeKey, Info]
}

// NewFFmpeg - engine using FFMPEG_PATH, FFPROBE_PATH and STILL_IMAGE_SECONDS
func NewFFmpeg(cfg *config.Config) (*FFmpeg, error) {
	return NewFFmpegWith(cfg.FFmpegPath, cfg.FFprobePath, cfg.StillImageSeconds)
}

// NewFFmpegWith - engine with explicit binaries
func NewFFmpegWith(ffmpegPath, ffprobePath string, stillSeconds float64) (*FFmpeg, error) {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if stillSeconds <= 0 {
		return nil, errors.New("still image duration must be positive")
	}
	cache, err := lru.New[probeKey, Info](probeCacheSize)
	if err != nil {
		return nil, err
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, stillSeconds: stillSeconds, probes: cache}, nil
}

// Open - open and probe a media file; images become still clips
func (f *FFmpeg) Open(ctx context.Context, path string) (Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.probe(ctx, file, path)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return &sourceClip{file: file, path: path, info: info}, nil
}

func (f *FFmpeg) probe(ctx context.Context, file *os.File, path string) (Info, error) {
	stat, err := file.Stat()
	if err != nil {
		return Info{}, err
	}
	key := probeKey{path: path, size: stat.Size(), modNano: stat.ModTime().UnixNano()}
	if info, ok := f.probes.Get(key); ok {
		return info, nil
	}

	output, err := runProbe(ctx, f.ffprobePath, path)
	if err != nil {
		return Info{}, err
	}
	still := stillExtensions[strings.ToLower(filepath.Ext(path))]
	info, err := parseProbe(output, still, f.stillSeconds)
	if err != nil {
		return Info{}, err
	}
	f.probes.Add(key, info)
	return info, nil
}

// Compose - play clips back to back; frame sizes may differ
func (f *FFmpeg) Compose(clips []Clip) (Clip, error) {
	return compose(clips)
}

// Write - render clip to dst as H.264 + AAC
func (f *FFmpeg) Write(ctx context.Context, clip Clip, dst string) error {
	r, ok := clip.(renderable)
	if !ok {
		return errors.New("clip was not produced by this engine")
	}
	segs, err := r.segments()
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return errors.New("nothing to render")
	}

	args := buildArgs(segs, dst)
	log.Printf("🎬 [Media] Rendering %d segment(s) → %s", len(segs), filepath.Base(dst))
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(output))
	}
	return nil
}

// buildArgs - one input per segment, normalized and joined by the concat filter
//
// Every segment is scaled to fit and padded to the largest frame, resampled to
// a common rate and given a silent track when it has no audio.
func buildArgs(segs []segment, dst string) []string {
	width, height := canvasSize(segs)
	minLength := 1.0 / outputFPS

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}
	var filters []string
	var labels strings.Builder
	for i, s := range segs {
		length := s.length()
		if length < minLength {
			length = minLength
		}
		if s.info.Still {
			args = append(args, "-loop", "1", "-framerate", strconv.Itoa(outputFPS), "-t", seconds(length), "-i", s.path)
		} else {
			args = append(args, "-ss", seconds(seekStart(s, minLength)), "-t", seconds(length), "-i", s.path)
		}

		filters = append(filters, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%d,format=yuv420p,setpts=PTS-STARTPTS[v%d]",
			i, width, height, width, height, outputFPS, i))
		if s.info.HasAudio {
			filters = append(filters, fmt.Sprintf(
				"[%d:a]aresample=%d,aformat=sample_fmts=fltp:channel_layouts=stereo,apad,atrim=duration=%s,asetpts=PTS-STARTPTS[a%d]",
				i, audioSampleRate, seconds(length), i))
		} else {
			filters = append(filters, fmt.Sprintf(
				"anullsrc=channel_layout=stereo:sample_rate=%d,atrim=duration=%s,aformat=sample_fmts=fltp,asetpts=PTS-STARTPTS[a%d]",
				audioSampleRate, seconds(length), i))
		}
		fmt.Fprintf(&labels, "[v%d][a%d]", i, i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[outv][outa]", labels.String(), len(segs)))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[outv]", "-map", "[outa]",
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		dst,
	)
	return args
}

// canvasSize - largest width and height across segments, rounded up to even
// seekStart - a segment pinned to the end of its source seeks back one frame so it still decodes a picture
func seekStart(s segment, minLength float64) float64 {
	d := s.info.Duration
	if d > 0 && s.start > d-minLength {
		return math.Max(0, d-minLength)
	}
	return s.start
}

func canvasSize(segs []segment) (int, int) {
	width, height := 0, 0
	for _, s := range segs {
		if s.info.Width > width {
			width = s.info.Width
		}
		if s.info.Height > height {
			height = s.info.Height
		}
	}
	if width <= 0 || height <= 0 {
		return fallbackWidth, fallbackHeight
	}
	return width + width%2, height + height%2
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tail(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > maxErrorTailSize {
		s = s[len(s)-maxErrorTailSize:]
	}
	return s
}
