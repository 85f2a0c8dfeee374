package main

import "time"

type JobStatus string

const (
	StatusCreated   JobStatus = "created"
	StatusRunning   JobStatus = "running"
	StatusComplete  JobStatus = "complete"
	StatusRetrieved JobStatus = "retrieved"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status accepts no further progress updates.
func (s JobStatus) Terminal() bool {
	return s == StatusComplete || s == StatusRetrieved || s == StatusFailed
}

// Job is one fetch-and-prepare work unit, tracked from creation through
// file retrieval and purge. OutputPath is a key into the blob store, not
// an absolute filesystem path.
type Job struct {
	ID          string
	VideoID     string
	FormatID    string
	AudioOnly   bool
	Status      JobStatus
	Percent     int
	OutputPath  string
	FileName    string // sanitized display name served to clients
	Ext         string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	RetrievedAt time.Time
	Error       string
}

// selector is the token a job's working file is named after.
func (j *Job) selector() string {
	if j.AudioOnly {
		return "audio"
	}
	return j.FormatID
}

type Format struct {
	ID         string `json:"formatId"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	SizeBytes  int64  `json:"sizeBytes,omitempty"`
	Size       string `json:"size,omitempty"`
	Quality    string `json:"quality,omitempty"`
	AudioOnly  bool   `json:"isAudioOnly"`
}

type VideoMetadata struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Thumbnail    string   `json:"thumbnail"`
	DurationSecs int      `json:"durationSeconds"`
	Duration     string   `json:"duration"`
	Views        string   `json:"views"`
	Formats      []Format `json:"formats"`
}
