package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MetadataCache keeps describe results keyed by video ID. Entries are held
// in memory and, when Redis is reachable, written through so a restarted
// process can still serve fetch requests for previously described videos.
type MetadataCache struct {
	mu    sync.RWMutex
	items map[string]*VideoMetadata
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewMetadataCache(cfg Config, log zerolog.Logger) *MetadataCache {
	c := &MetadataCache{
		items: make(map[string]*VideoMetadata),
		log:   log,
	}
	if cfg.RedisAddr == "" {
		return c
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available, metadata cache is in-memory only")
		return c
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	c.rdb = rdb
	return c
}

// Put stores or overwrites the metadata for a video.
func (c *MetadataCache) Put(ctx context.Context, meta *VideoMetadata) {
	c.mu.Lock()
	c.items[meta.ID] = meta
	c.mu.Unlock()

	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, "meta:"+meta.ID, data, MetadataTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("video_id", meta.ID).Msg("metadata write-through failed")
	}
}

// Get returns the cached metadata for a video, falling back to Redis on a
// memory miss.
func (c *MetadataCache) Get(ctx context.Context, videoID string) (*VideoMetadata, bool) {
	c.mu.RLock()
	meta, ok := c.items[videoID]
	c.mu.RUnlock()
	if ok {
		return meta, true
	}

	if c.rdb == nil {
		return nil, false
	}
	val, err := c.rdb.Get(ctx, "meta:"+videoID).Result()
	if err != nil {
		return nil, false
	}
	var m VideoMetadata
	if err := json.Unmarshal([]byte(val), &m); err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.items[videoID] = &m
	c.mu.Unlock()
	return &m, true
}
