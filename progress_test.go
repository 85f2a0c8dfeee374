package main

import "testing"

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		ok         bool
		percent    float64
		downloaded int64
		total      int64
	}{
		{
			name:    "plain percent",
			line:    "[download]  42.7% of 12.34MiB at 1.20MiB/s ETA 00:07",
			ok:      true,
			percent: 42.7,
		},
		{
			name:    "download done",
			line:    "[download] 100% of 10.00MiB in 00:05",
			ok:      true,
			percent: 100,
		},
		{
			name:       "byte counters",
			line:       "512.0KiB of 2.0MiB downloaded (25.0%)",
			ok:         true,
			percent:    25,
			downloaded: 512 << 10,
			total:      2 << 20,
		},
		{
			name:       "approximate total",
			line:       "1.0GiB of ~2.0GiB (50.0%)",
			ok:         true,
			percent:    50,
			downloaded: 1 << 30,
			total:      2 << 30,
		},
		{name: "merger line", line: "[Merger] Merging formats into output.mp4"},
		{name: "no progress", line: "some unrelated text"},
		{name: "empty", line: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd, ok := parseProgressLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if upd.Percent != tt.percent {
				t.Errorf("percent = %v, want %v", upd.Percent, tt.percent)
			}
			if upd.Downloaded != tt.downloaded {
				t.Errorf("downloaded = %d, want %d", upd.Downloaded, tt.downloaded)
			}
			if upd.Total != tt.total {
				t.Errorf("total = %d, want %d", upd.Total, tt.total)
			}
		})
	}
}
