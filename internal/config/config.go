// Package config flattens env-config into one immutable struct built at
// startup and handed to every component constructor.
package config

import (
	"time"

	"github.com/wb-go/wbf/config"
)

// EncodeProfiles - per-format encode policy plus the global resize ceiling
// and the thumbnail box. Read-only after Load.
type EncodeProfiles struct {
	MaxWidth  int
	MaxHeight int

	JPEGQuality int
	WebPQuality int

	ThumbWidth   int
	ThumbHeight  int
	ThumbQuality int
}

// CDN holds the content-distribution credentials. Active is detected once at
// startup from credentials presence; there is no runtime re-detection.
type CDN struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	BaseURL   string
	Category  string
	Active    bool

	ResponsiveWidths []int
}

type Kafka struct {
	Broker  string
	Topic   string
	GroupID string
}

// Config is the process-wide configuration. Constructed once in main,
// never written after that.
type Config struct {
	OptimizedDir string
	ThumbnailDir string
	AltFormatDir string

	Profiles EncodeProfiles
	CDN      CDN
	Kafka    Kafka

	BatchConcurrency int
	RetentionMaxAge  time.Duration
	SweepInterval    time.Duration

	PostgresDSN string
}

// Load reads the wbf-config (env + .env) into an explicit Config, filling
// defaults for everything the environment leaves empty.
func Load(cfg *config.Config) *Config {
	c := &Config{
		OptimizedDir: stringOr(cfg, "OPTIMIZED_DIR", "./data/optimized"),
		ThumbnailDir: stringOr(cfg, "THUMBNAIL_DIR", "./data/thumbnails"),
		AltFormatDir: stringOr(cfg, "ALTFORMAT_DIR", "./data/webp"),

		Profiles: EncodeProfiles{
			MaxWidth:     intOr(cfg, "MAX_WIDTH", 2000),
			MaxHeight:    intOr(cfg, "MAX_HEIGHT", 2000),
			JPEGQuality:  intOr(cfg, "JPEG_QUALITY", 80),
			WebPQuality:  intOr(cfg, "WEBP_QUALITY", 75),
			ThumbWidth:   intOr(cfg, "THUMB_WIDTH", 300),
			ThumbHeight:  intOr(cfg, "THUMB_HEIGHT", 300),
			ThumbQuality: intOr(cfg, "THUMB_QUALITY", 75),
		},

		CDN: CDN{
			Endpoint:         cfg.GetString("CDN_ENDPOINT"),
			AccessKey:        cfg.GetString("CDN_ACCESS_KEY"),
			SecretKey:        cfg.GetString("CDN_SECRET_KEY"),
			Bucket:           stringOr(cfg, "CDN_BUCKET", "images"),
			BaseURL:          cfg.GetString("CDN_BASE_URL"),
			Category:         stringOr(cfg, "CDN_CATEGORY", "images"),
			ResponsiveWidths: []int{320, 640, 768, 1024, 1280, 1920},
		},

		Kafka: Kafka{
			Broker:  cfg.GetString("KAFKA_BROKER"),
			Topic:   stringOr(cfg, "KAFKA_TOPIC", "image-tasks"),
			GroupID: stringOr(cfg, "KAFKA_GROUPID", "deriver"),
		},

		BatchConcurrency: intOr(cfg, "BATCH_CONCURRENCY", 3),
		RetentionMaxAge:  durationOr(cfg, "RETENTION_MAX_AGE", 7*24*time.Hour),
		SweepInterval:    durationOr(cfg, "SWEEP_INTERVAL", time.Hour),

		PostgresDSN: cfg.GetString("POSTGRES_DSN"),
	}

	// No credentials - no CDN calls for the whole process lifetime.
	c.CDN.Active = c.CDN.Endpoint != "" && c.CDN.AccessKey != "" && c.CDN.SecretKey != ""

	return c
}

// ArtifactDirs lists the derived-artifact stores in a fixed order:
// optimized, thumbnail, alt-format.
func (c *Config) ArtifactDirs() []string {
	return []string{c.OptimizedDir, c.ThumbnailDir, c.AltFormatDir}
}

func stringOr(cfg *config.Config, key, def string) string {
	if v := cfg.GetString(key); v != "" {
		return v
	}
	return def
}

func intOr(cfg *config.Config, key string, def int) int {
	if v := cfg.GetInt(key); v > 0 {
		return v
	}
	return def
}

func durationOr(cfg *config.Config, key string, def time.Duration) time.Duration {
	if v := cfg.GetString(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
