package main

import (
	"regexp"
	"strconv"
)

// yt-dlp progress lines look like:
//
//	[download]  42.7% of 12.34MiB at 1.20MiB/s ETA 00:07
//
// The percent is taken from the first match in the line; byte counters are
// parsed opportunistically. A line matching neither simply carries no
// tick.
var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	bytesPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(B|KiB|MiB|GiB)\s+of\s+~?\s*(\d+(?:\.\d+)?)\s*(B|KiB|MiB|GiB)`)
)

var byteUnits = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
}

// ProgressUpdate is one parsed tick of extractor output. Downloaded and
// Total are zero when the line carried no byte counters.
type ProgressUpdate struct {
	Percent    float64
	Downloaded int64
	Total      int64
}

// parseProgressLine extracts a progress tick from one line of extractor
// output. ok is false when the line carries no percentage.
func parseProgressLine(line string) (ProgressUpdate, bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return ProgressUpdate{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct < 0 || pct > 100 {
		return ProgressUpdate{}, false
	}

	upd := ProgressUpdate{Percent: pct}
	if bm := bytesPattern.FindStringSubmatch(line); bm != nil {
		upd.Downloaded = toBytes(bm[1], bm[2])
		upd.Total = toBytes(bm[3], bm[4])
	}
	return upd, true
}

func toBytes(value, unit string) int64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int64(v * byteUnits[unit])
}
