package download

import (
	"strings"
	"testing"
)

func TestValidQuality(t *testing.T) {
	for q, want := range map[string]bool{
		"720p":  true,
		"best":  true,
		"1080p": false,
		"":      false,
	} {
		if got := ValidQuality(q); got != want {
			t.Errorf("ValidQuality(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestBuildDownloadArgs_720p(t *testing.T) {
	args := buildDownloadArgs(Quality720p, "/data/videos/%(title)s.%(ext)s", "", "https://youtube.com/watch?v=abc")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720]/best") {
		t.Errorf("720p format selector missing: %s", joined)
	}
	if !strings.Contains(joined, "--remux-video mp4") {
		t.Errorf("remux flag missing: %s", joined)
	}
	if strings.Contains(joined, "--merge-output-format") {
		t.Errorf("720p profile must not merge: %s", joined)
	}
	if strings.Contains(joined, "--cookies") {
		t.Errorf("cookies flag present without a cookies file: %s", joined)
	}
	if args[len(args)-1] != "https://youtube.com/watch?v=abc" {
		t.Errorf("last arg = %q, want URL", args[len(args)-1])
	}
}

func TestBuildDownloadArgs_Best(t *testing.T) {
	args := buildDownloadArgs(QualityBest, "/data/videos/%(title)s.%(ext)s", "/etc/cookies.txt", "https://youtube.com/watch?v=abc")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-f bestvideo+bestaudio/best") {
		t.Errorf("best format selector missing: %s", joined)
	}
	if !strings.Contains(joined, "--merge-output-format mp4") {
		t.Errorf("merge flag missing: %s", joined)
	}
	if !strings.Contains(joined, "--cookies /etc/cookies.txt") {
		t.Errorf("cookies flag missing: %s", joined)
	}
}

func TestExtractDestination(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "download destination",
			line: "[download] Destination: /data/videos/My Talk.f137.mp4",
			want: "/data/videos/My Talk.f137.mp4",
		},
		{
			name: "already downloaded",
			line: "[download] /data/videos/My Talk.mp4 has already been downloaded",
			want: "/data/videos/My Talk.mp4",
		},
		{
			name: "merger output",
			line: `[Merger] Merging formats into "/data/videos/My Talk.mp4"`,
			want: "/data/videos/My Talk.mp4",
		},
		{
			name: "progress line",
			line: "[download]  42.0% of 120.00MiB at 4.20MiB/s ETA 00:17",
			want: "",
		},
		{
			name: "unrelated line",
			line: "[youtube] abc: Downloading webpage",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDestination(tt.line); got != tt.want {
				t.Errorf("extractDestination(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseMetadata(t *testing.T) {
	out := "My Talk\nchannelA\n20240115\n3723.0\nhttps://img.youtube.com/vi/abc/0.jpg\n"
	meta := parseMetadata(out)

	if meta.Title != "My Talk" {
		t.Errorf("Title = %q, want My Talk", meta.Title)
	}
	if meta.ChannelName != "channelA" {
		t.Errorf("ChannelName = %q, want channelA", meta.ChannelName)
	}
	if meta.UploadedAt != "2024-01-15" {
		t.Errorf("UploadedAt = %q, want 2024-01-15", meta.UploadedAt)
	}
	if meta.DurationSeconds != 3723 {
		t.Errorf("DurationSeconds = %d, want 3723", meta.DurationSeconds)
	}
	if meta.ThumbnailURL != "https://img.youtube.com/vi/abc/0.jpg" {
		t.Errorf("ThumbnailURL = %q", meta.ThumbnailURL)
	}
}

func TestParseMetadata_MissingFields(t *testing.T) {
	meta := parseMetadata("Only Title\nNA\nNA\nNA\nNA\n")
	if meta.Title != "Only Title" {
		t.Errorf("Title = %q, want Only Title", meta.Title)
	}
	if meta.ChannelName != "" || meta.UploadedAt != "" || meta.DurationSeconds != 0 || meta.ThumbnailURL != "" {
		t.Errorf("NA fields should be empty: %+v", meta)
	}
}

func TestFormatUploadDate(t *testing.T) {
	for in, want := range map[string]string{
		"20240115":   "2024-01-15",
		"2024-01-15": "2024-01-15",
		"notadate":   "notadate",
		"":           "",
	} {
		if got := formatUploadDate(in); got != want {
			t.Errorf("formatUploadDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"ERROR: unable to download video data: The read operation timed out", true},
		{"ERROR: Connection reset by peer", true},
		{"HTTP Error 503: Service Unavailable", true},
		{"ERROR: Video unavailable", false},
		{"ERROR: Sign in to confirm your age", false},
	}
	for _, tt := range tests {
		if got := isTransient(tt.output); got != tt.want {
			t.Errorf("isTransient(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestStem(t *testing.T) {
	for in, want := range map[string]string{
		"/data/videos/My Talk.mp4": "My Talk",
		"clip.webm":                "clip",
		"noext":                    "noext",
	} {
		if got := stem(in); got != want {
			t.Errorf("stem(%q) = %q, want %q", in, got, want)
		}
	}
}
