package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBuildFetchArgsAudioOnly(t *testing.T) {
	args := buildFetchArgs("abc123", "", true, "/tmp/out.m4a")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-x", "--audio-format m4a", "--audio-quality 0", "-f bestaudio/b", "--newline"} {
		if !strings.Contains(joined, want) {
			t.Errorf("audio args missing %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("last arg = %q, want canonical watch URL", args[len(args)-1])
	}
	if args[len(args)-2] != "/tmp/out.m4a" {
		t.Errorf("destination arg = %q", args[len(args)-2])
	}
}

func TestBuildFetchArgsVideoMerge(t *testing.T) {
	args := buildFetchArgs("abc123", "137", false, "/tmp/out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f 137+bestaudio/b") {
		t.Errorf("video args missing format selector with audio fallback: %q", joined)
	}
	if !strings.Contains(joined, "--merge-output-format mp4") {
		t.Errorf("video args missing merge container: %q", joined)
	}
	if strings.Contains(joined, "-x") {
		t.Errorf("video args must not extract audio: %q", joined)
	}
}

func TestClassifyToolFailure(t *testing.T) {
	exitErr := errors.New("exit status 1")

	err := classifyToolFailure(exitErr, "ERROR: Sign in to confirm you're not a bot")
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("bot-check stderr classified as %v, want ErrAccessDenied", err)
	}
	if !strings.Contains(err.Error(), "AccessDenied") {
		t.Errorf("access-denied error text %q lacks recognizable token", err.Error())
	}

	err = classifyToolFailure(exitErr, "ERROR: [youtube] xyz: Video unavailable")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unavailable stderr classified as %v, want ErrNotFound", err)
	}

	err = classifyToolFailure(exitErr, "something exploded")
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("generic stderr classified as %v, want ErrExtraction", err)
	}
	if !strings.Contains(err.Error(), "something exploded") {
		t.Errorf("cause text dropped: %q", err.Error())
	}

	err = classifyToolFailure(exitErr, "")
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("empty stderr classified as %v, want ErrExtraction", err)
	}
}

func TestIsAccessDenied(t *testing.T) {
	denied := []string{
		"Sign in to confirm you're not a bot. Use --cookies",
		"ERROR: HTTP Error 429: Too Many Requests",
		"sign in to CONFIRM YOUR AGE",
	}
	for _, s := range denied {
		if !isAccessDenied(s) {
			t.Errorf("isAccessDenied(%q) = false", s)
		}
	}
	if isAccessDenied("ERROR: ffmpeg not found") {
		t.Error("generic failure misclassified as access denied")
	}
}

func TestNormalizeInfo(t *testing.T) {
	info := ytdlpInfo{
		ID:        "abc123",
		Title:     "Test Video",
		Thumbnail: "https://example.com/t.jpg",
		Duration:  125,
		ViewCount: 1500,
		Formats: []ytdlpFormat{
			{FormatID: "sb0", ACodec: "none", VCodec: "none"},
			{FormatID: "140", Ext: "m4a", ACodec: "mp4a.40.2", VCodec: "none", ABR: 128, Filesize: 3 << 20},
			{FormatID: "137", Ext: "mp4", ACodec: "none", VCodec: "avc1", Width: 1920, Height: 1080, FilesizeApprox: 50 << 20, FormatNote: "1080p"},
		},
	}
	meta := normalizeInfo(info)

	if meta.ID != "abc123" || meta.Title != "Test Video" {
		t.Fatalf("identity fields wrong: %+v", meta)
	}
	if meta.Duration != "02:05" || meta.DurationSecs != 125 {
		t.Errorf("duration = %q (%d)", meta.Duration, meta.DurationSecs)
	}
	if meta.Views != "1.5K views" {
		t.Errorf("views = %q", meta.Views)
	}
	if len(meta.Formats) != 2 {
		t.Fatalf("formats = %d, want 2 (storyboard dropped)", len(meta.Formats))
	}

	video := meta.Formats[0]
	if video.ID != "137" || video.Resolution != "1920x1080" || video.Quality != "1080p" || video.AudioOnly {
		t.Errorf("video format = %+v", video)
	}
	if video.SizeBytes != 50<<20 {
		t.Errorf("video size fell back wrong: %d", video.SizeBytes)
	}

	audio := meta.Formats[1]
	if audio.ID != "140" || audio.Resolution != "audio only" || !audio.AudioOnly {
		t.Errorf("audio format = %+v", audio)
	}
}

func TestWatchURLTemplate(t *testing.T) {
	if got := fmt.Sprintf(watchURLTemplate, "dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("watch URL = %q", got)
	}
}
