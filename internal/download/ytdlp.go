package download

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"clipfinder/internal/contextutil"
)

// Quality selects the download format profile.
const (
	Quality720p = "720p"
	QualityBest = "best"
)

// ValidQuality reports whether q is a supported quality profile.
func ValidQuality(q string) bool {
	return q == Quality720p || q == QualityBest
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// Client downloads videos through the yt-dlp binary.
type Client struct {
	Path        string // yt-dlp binary, falls back to PATH lookup
	VideoDir    string
	CookiesFile string
	Retries     int // extra attempts after a transient failure
}

// NewClient creates a download client.
func NewClient(path, videoDir, cookiesFile string, retries int) *Client {
	if path == "" {
		path = "yt-dlp"
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		Path:        path,
		VideoDir:    videoDir,
		CookiesFile: cookiesFile,
		Retries:     retries,
	}
}

// Metadata holds video metadata fetched without downloading.
type Metadata struct {
	Title           string
	ChannelName     string
	UploadedAt      string // YYYY-MM-DD
	DurationSeconds int
	ThumbnailURL    string
}

// Result describes a completed download.
type Result struct {
	VideoID string
	Title   string
	Path    string
}

// FetchMetadata queries title, channel, upload date, duration, and thumbnail
// for a URL without downloading the video.
func (c *Client) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	args := []string{
		"--no-playlist",
		"--skip-download",
		"--print", "%(title)s",
		"--print", "%(channel)s",
		"--print", "%(upload_date)s",
		"--print", "%(duration)s",
		"--print", "%(thumbnail)s",
	}
	if c.CookiesFile != "" {
		args = append(args, "--cookies", c.CookiesFile)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp metadata query failed: %w: %s", err, truncate(stderr.String(), 500))
	}

	meta := parseMetadata(stdout.String())
	if meta.Title == "" {
		return nil, fmt.Errorf("yt-dlp returned no title for %s", url)
	}
	return meta, nil
}

// parseMetadata reads the --print output lines in request order.
func parseMetadata(out string) *Metadata {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		lines = append(lines, strings.TrimSpace(l))
	}

	meta := &Metadata{}
	get := func(i int) string {
		if i < len(lines) && lines[i] != "NA" {
			return lines[i]
		}
		return ""
	}

	meta.Title = get(0)
	meta.ChannelName = get(1)
	meta.UploadedAt = formatUploadDate(get(2))
	if d := get(3); d != "" {
		if f, err := strconv.ParseFloat(d, 64); err == nil {
			meta.DurationSeconds = int(f)
		}
	}
	meta.ThumbnailURL = get(4)
	return meta
}

// formatUploadDate converts yt-dlp's YYYYMMDD to YYYY-MM-DD.
func formatUploadDate(d string) string {
	if len(d) == 8 {
		if _, err := strconv.Atoi(d); err == nil {
			return d[:4] + "-" + d[4:6] + "-" + d[6:8]
		}
	}
	return d
}

// buildDownloadArgs assembles the yt-dlp argument list for a quality profile.
func buildDownloadArgs(quality, outputTemplate, cookiesFile, url string) []string {
	args := []string{
		"--no-playlist",
		"--newline",
		"--user-agent", userAgent,
		"--referer", "https://www.youtube.com/",
	}

	switch quality {
	case QualityBest:
		args = append(args,
			"-f", "bestvideo+bestaudio/best",
			"--merge-output-format", "mp4",
			"--remux-video", "mp4",
		)
	default: // 720p, fast path without re-encoding
		args = append(args,
			"-f", "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720]/best",
			"--remux-video", "mp4",
		)
	}
	args = append(args, "-o", outputTemplate)

	if cookiesFile != "" {
		args = append(args, "--cookies", cookiesFile)
	}
	return append(args, url)
}

var (
	destinationRe = regexp.MustCompile(`\[download\] Destination:\s*(.+)`)
	alreadyRe     = regexp.MustCompile(`\[download\]\s+(.+?) has already been downloaded`)
	mergerRe      = regexp.MustCompile(`\[Merger\] Merging formats into "(.+?)"`)
)

// extractDestination pulls the output file path from a yt-dlp output line.
// Merger lines win over download lines since merging produces the final file.
func extractDestination(line string) string {
	if m := mergerRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := destinationRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := alreadyRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

var transientMarkers = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"http error 5",
	"urlopen error",
	"incomplete read",
}

// isTransient reports whether a failure looks like a retryable network error.
func isTransient(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Download fetches a video to VideoDir and returns the resulting file.
// Transient network failures are retried up to Retries extra times.
func (c *Client) Download(ctx context.Context, url, quality string) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			logger.WarnContext(ctx, "retrying download", "url", url, "attempt", attempt+1)
		}
		res, err := c.downloadOnce(ctx, url, quality)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err.Error()) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) downloadOnce(ctx context.Context, url, quality string) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := os.MkdirAll(c.VideoDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create video dir: %w", err)
	}
	outputTemplate := filepath.Join(c.VideoDir, "%(title)s.%(ext)s")
	args := buildDownloadArgs(quality, outputTemplate, c.CookiesFile, url)

	cmd := exec.CommandContext(ctx, c.Path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open yt-dlp stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	var finalPath string
	var tail []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if p := extractDestination(line); p != "" {
			finalPath = p
		}
		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}
		logger.DebugContext(ctx, "yt-dlp", "line", line)
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, truncate(strings.Join(tail, "\n"), 1000))
	}

	if finalPath != "" && !filepath.IsAbs(finalPath) {
		finalPath = filepath.Join(c.VideoDir, filepath.Base(finalPath))
	}
	if finalPath == "" || !fileExists(finalPath) {
		// yt-dlp remuxes change the extension; fall back to the newest mp4
		finalPath = newestMP4(c.VideoDir)
	}
	if finalPath == "" {
		return nil, fmt.Errorf("no output file found after download")
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("output file missing after download: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("output file is empty: %s", finalPath)
	}

	title := stem(finalPath)
	return &Result{
		VideoID: title,
		Title:   title,
		Path:    finalPath,
	}, nil
}

// stem returns the file name without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func newestMP4(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest = filepath.Join(dir, e.Name())
			newestMod = mod
		}
	}
	return newest
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
