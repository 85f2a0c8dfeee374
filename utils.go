package main

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// sanitizeFileName maps a title onto a safe attachment name: every
// character outside [A-Za-z0-9] becomes an underscore, 1:1.
func sanitizeFileName(title, ext string) string {
	return nonAlnum.ReplaceAllString(title, "_") + "." + ext
}

// displayFileName derives the name served to clients, falling back to the
// video ID when the title is blank.
func displayFileName(title, videoID, ext string) string {
	if strings.TrimSpace(title) == "" {
		return "video_" + videoID + "." + ext
	}
	return sanitizeFileName(title, ext)
}

// workFileName composes the working-directory name for one fetch attempt.
// The timestamp keeps retries of the same video/format pair from
// colliding.
func workFileName(videoID, selector, ext string) string {
	return fmt.Sprintf("%s_%s_%d.%s", videoID, selector, time.Now().UnixNano(), ext)
}

// workFilePrefix is the part of a work-file name stable across retries,
// used by the retrieval recovery scan.
func workFilePrefix(videoID, selector string) string {
	return videoID + "_" + selector + "_"
}

// formatDuration renders seconds as MM:SS, or HH:MM:SS past an hour.
func formatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// formatViews buckets a raw view count into an approximate display string.
func formatViews(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB views", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM views", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK views", float64(n)/1_000)
	case n <= 0:
		return ""
	default:
		return fmt.Sprintf("%d views", n)
	}
}

// formatSize renders a byte count with binary units.
func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	case bytes <= 0:
		return ""
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
