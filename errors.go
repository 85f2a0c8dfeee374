package main

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotReady   = errors.New("job not ready")
	ErrOutputMissing = errors.New("output file missing")
	ErrExtraction    = errors.New("extraction failed")
	ErrQueueFull     = errors.New("job queue full")

	// ErrAccessDenied keeps the "AccessDenied" token in its text. Clients
	// match on it to switch to the bot-check guidance view instead of the
	// generic error view.
	ErrAccessDenied = errors.New("AccessDenied: the platform rejected automated access")
)
