package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Fixed policy values. These are deliberate constants, not tunables.
const (
	// Worker Configuration
	WorkerPoolSize   = 4
	JobQueueCapacity = 100

	// Rate Limiting
	RequestsPerSecond = 50
	BurstSize         = 100

	// Progress display split: the extractor's raw 0-100 maps onto [0,90];
	// [90,100) belongs to the merge/finalize phase. 100 is set only after
	// the output file has been validated. -1 is the terminal failure value.
	FetchPhaseCeiling = 90
	FailedPercent     = -1

	// Progress stream poll cadence
	ProgressPollInterval = 1 * time.Second

	// Retention: how long a job (and its file) survives after it was first
	// downloaded, and after a terminal state that was never downloaded.
	RetainAfterDownload = 10 * time.Minute
	RetainAfterTerminal = 30 * time.Minute

	// Working-directory sweep
	SweepInterval = 10 * time.Minute
	SweepMaxAge   = 2 * time.Hour

	// External tool timeouts
	DescribeTimeout = 45 * time.Second
	FetchTimeout    = 30 * time.Minute

	// Metadata cache expiry in Redis
	MetadataTTL = 24 * time.Hour
)

// Config holds the environment-driven settings.
type Config struct {
	Port          string
	AppEnv        string
	WorkDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	YtdlpPath     string
}

// LoadConfig reads settings from the environment, after loading a .env
// file when one is present.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:          envOr("PORT", "8080"),
		AppEnv:        envOr("APP_ENV", "production"),
		WorkDir:       envOr("WORK_DIR", "downloads"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		YtdlpPath:     envOr("YTDLP_PATH", "yt-dlp"),
	}
	if v, err := strconv.Atoi(envOr("REDIS_DB", "0")); err == nil {
		cfg.RedisDB = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
