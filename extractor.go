package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const watchURLTemplate = "https://www.youtube.com/watch?v=%s"

// ProgressFunc receives raw extractor percentages plus opportunistic byte
// counters.
type ProgressFunc func(rawPercent float64, downloaded, total int64)

// Extractor wraps the external yt-dlp binary. It exposes Describe for
// metadata and Fetch for the long-running retrieval+transcode run.
type Extractor struct {
	binaryPath string
	log        zerolog.Logger
}

func NewExtractor(binaryPath string, log zerolog.Logger) *Extractor {
	return &Extractor{binaryPath: binaryPath, log: log}
}

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	ACodec         string  `json:"acodec"`
	VCodec         string  `json:"vcodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	FormatNote     string  `json:"format_note"`
	ABR            float64 `json:"abr"`
}

type ytdlpInfo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Thumbnail string        `json:"thumbnail"`
	Duration  float64       `json:"duration"`
	ViewCount int64         `json:"view_count"`
	Formats   []ytdlpFormat `json:"formats"`
}

// Describe runs the extractor in metadata-only mode and normalizes its
// JSON dump.
func (e *Extractor) Describe(ctx context.Context, url string) (*VideoMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, DescribeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binaryPath, "-J", "--no-warnings", "--no-playlist", "--skip-download", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classifyToolFailure(err, stderr.String())
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata: %v", ErrExtraction, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: metadata has no video id", ErrExtraction)
	}
	return normalizeInfo(info), nil
}

// normalizeInfo converts a raw extractor dump into the cached metadata
// shape. Video formats keep their own container ext; audio-only formats
// are marked as such.
func normalizeInfo(info ytdlpInfo) *VideoMetadata {
	formats := make([]Format, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f.FormatID == "" {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		switch {
		case f.VCodec != "" && f.VCodec != "none":
			quality := f.FormatNote
			if quality == "" && f.Height > 0 {
				quality = fmt.Sprintf("%dp", f.Height)
			}
			formats = append(formats, Format{
				ID:         f.FormatID,
				Ext:        f.Ext,
				Resolution: fmt.Sprintf("%dx%d", f.Width, f.Height),
				SizeBytes:  size,
				Size:       formatSize(size),
				Quality:    quality,
			})
		case f.ACodec != "" && f.ACodec != "none":
			quality := f.FormatNote
			if quality == "" && f.ABR > 0 {
				quality = fmt.Sprintf("%dkbps", int(f.ABR))
			}
			formats = append(formats, Format{
				ID:         f.FormatID,
				Ext:        f.Ext,
				Resolution: "audio only",
				SizeBytes:  size,
				Size:       formatSize(size),
				Quality:    quality,
				AudioOnly:  true,
			})
		}
	}
	// Highest quality first: video by resolution, then audio.
	sort.SliceStable(formats, func(i, j int) bool {
		if formats[i].AudioOnly != formats[j].AudioOnly {
			return !formats[i].AudioOnly
		}
		return formats[i].SizeBytes > formats[j].SizeBytes
	})

	return &VideoMetadata{
		ID:           info.ID,
		Title:        info.Title,
		Thumbnail:    info.Thumbnail,
		DurationSecs: int(info.Duration),
		Duration:     formatDuration(int(info.Duration)),
		Views:        formatViews(info.ViewCount),
		Formats:      formats,
	}
}

// buildFetchArgs assembles the extractor invocation for one job. Audio
// jobs extract the best audio track into m4a at maximum quality; video
// jobs merge the chosen format with the best available audio into mp4,
// letting the merge remux the audio losslessly when the container allows.
func buildFetchArgs(videoID, formatID string, audioOnly bool, destPath string) []string {
	args := []string{"--newline", "--no-warnings", "--no-playlist"}
	if audioOnly {
		args = append(args, "-f", "bestaudio/b", "-x", "--audio-format", "m4a", "--audio-quality", "0")
	} else {
		args = append(args, "-f", formatID+"+bestaudio/b", "--merge-output-format", "mp4")
	}
	return append(args, "-o", destPath, fmt.Sprintf(watchURLTemplate, videoID))
}

// Fetch invokes the extractor against the canonical watch URL for videoID
// and streams progress ticks into onProgress. It returns only once the
// process has exited and destPath holds a non-empty file; the tool's own
// "100%" download line is not trusted because the merge stage may still
// be rewriting the file.
func (e *Extractor) Fetch(ctx context.Context, videoID, formatID string, audioOnly bool, destPath string, onProgress ProgressFunc) error {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binaryPath, buildFetchArgs(videoID, formatID, audioOnly, destPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrExtraction, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrExtraction, e.binaryPath, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	for scanner.Scan() {
		if upd, ok := parseProgressLine(scanner.Text()); ok && onProgress != nil {
			onProgress(upd.Percent, upd.Downloaded, upd.Total)
		}
	}

	if err := cmd.Wait(); err != nil {
		return classifyToolFailure(err, stderr.String())
	}

	fi, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("%w: output file missing after extraction: %v", ErrExtraction, err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: output file is empty after extraction", ErrExtraction)
	}
	e.log.Debug().Str("video_id", videoID).Int64("size", fi.Size()).Msg("extraction finished")
	return nil
}

// classifyToolFailure distinguishes the upstream bot-check rejection from
// a generic extractor failure.
func classifyToolFailure(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if isAccessDenied(detail) {
		return fmt.Errorf("%w: %s", ErrAccessDenied, detail)
	}
	if isUnavailable(detail) {
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	}
	if detail == "" {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return fmt.Errorf("%w: %v | %s", ErrExtraction, err, detail)
}

func isAccessDenied(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{
		"sign in to confirm",
		"not a bot",
		"confirm your age",
		"http error 429",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isUnavailable(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{
		"video unavailable",
		"is not a valid url",
		"unable to download webpage",
		"http error 404",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
