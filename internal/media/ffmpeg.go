package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"clipfinder/internal/contextutil"
)

// Safety margins in seconds applied around segment boundaries so that
// clips cut from transcript hits do not clip mid-word.
const (
	safetyPre  = 0.3
	safetyPost = 0.5
)

// Runner executes ffmpeg and ffprobe for clip cutting and media probing.
type Runner struct {
	FFmpegPath  string
	FFprobePath string
	CRF         int
	Preset      string
}

// NewRunner creates a Runner. Empty paths fall back to binaries on PATH.
func NewRunner(ffmpegPath, ffprobePath string, crf int, preset string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if crf <= 0 {
		crf = 23
	}
	if preset == "" {
		preset = "fast"
	}
	return &Runner{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		CRF:         crf,
		Preset:      preset,
	}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the duration of a media file in seconds.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if out.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", out.Format.Duration, err)
	}
	return duration, nil
}

// CutRequest describes one clip extraction.
type CutRequest struct {
	Src   string
	Dst   string
	Start float64
	End   float64
	// Precise re-encodes for frame-accurate boundaries. When false the
	// streams are copied, which is fast but snaps to keyframes.
	Precise bool
	// WithMargins widens the range by the safety margins. Manual cuts
	// pass false to honor the exact requested boundaries.
	WithMargins bool
}

// applyMargins widens a segment range by the safety margins, clamping at zero.
func applyMargins(start, end float64, withMargins bool) (float64, float64) {
	if withMargins {
		start -= safetyPre
		end += safetyPost
	}
	if start < 0 {
		start = 0
	}
	if end < start+0.1 {
		end = start + 0.1
	}
	return start, end
}

// buildCutArgs assembles the ffmpeg argument list for a cut.
func buildCutArgs(req CutRequest, start, end float64, crf int, preset string) []string {
	duration := end - start
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", req.Src,
		"-t", fmt.Sprintf("%.3f", duration),
	}
	if req.Precise {
		args = append(args,
			"-c:v", "libx264", "-preset", preset, "-crf", strconv.Itoa(crf),
			"-c:a", "aac", "-b:a", "192k",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	return append(args, req.Dst)
}

// CutClip extracts a clip from a source video. The destination file is
// verified to exist and be non-empty afterwards.
func (r *Runner) CutClip(ctx context.Context, req CutRequest) error {
	logger := contextutil.LoggerFromContext(ctx)

	start, end := applyMargins(req.Start, req.End, req.WithMargins)
	args := buildCutArgs(req, start, end, r.CRF, r.Preset)

	cmd := exec.CommandContext(ctx, r.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.ErrorContext(ctx, "ffmpeg cut failed",
			"src", req.Src, "start", start, "end", end, "error", err, "stderr", truncate(stderr.String(), 500))
		return fmt.Errorf("ffmpeg cut failed: %w", err)
	}

	info, err := os.Stat(req.Dst)
	if err != nil {
		return fmt.Errorf("clip file missing after cut: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("clip file is empty: %s", req.Dst)
	}

	logger.InfoContext(ctx, "clip cut", "dst", req.Dst, "start", start, "end", end, "precise", req.Precise)
	return nil
}

// ExtractAudio produces a mono 16 kHz mp3 from a video file, the input
// format speech-to-text services expect.
func (r *Runner) ExtractAudio(ctx context.Context, src, dst string) error {
	logger := contextutil.LoggerFromContext(ctx)

	cmd := exec.CommandContext(ctx, r.FFmpegPath,
		"-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "64k",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.ErrorContext(ctx, "ffmpeg audio extraction failed",
			"src", src, "error", err, "stderr", truncate(stderr.String(), 500))
		return fmt.Errorf("ffmpeg audio extraction failed: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("audio file missing after extraction: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio file is empty: %s", dst)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
