// Package config loads the graph service settings from DYNGRAPH_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string // DYNGRAPH_HTTP_ADDR (default ":8080")
	GRPCAddr    string // DYNGRAPH_GRPC_ADDR (default ":9090"; empty = no gRPC health)
	DatabaseURL string // DYNGRAPH_DATABASE_URL (optional, empty = in-memory event log)
	NATSURL     string // DYNGRAPH_NATS_URL (optional, empty = no events)

	// EventRetention prunes Postgres audit events older than this; 0 keeps them.
	EventRetention time.Duration // DYNGRAPH_EVENT_RETENTION (default 0)

	// Graph growth
	Seed      uint64  // DYNGRAPH_SEED (0 = random)
	Isolation float64 // DYNGRAPH_ISOLATION (default 0.3)
	MaxEdges  int     // DYNGRAPH_MAX_EDGES (default 3; edges per streamed node)

	// Construction stream pacing
	StreamInterval time.Duration // DYNGRAPH_STREAM_INTERVAL (default 20ms between events; 0 = unpaced)
	StreamBatch    int           // DYNGRAPH_STREAM_BATCH (default 1 node per event)

	// Snapshot export
	ExportS3Bucket   string        // DYNGRAPH_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // DYNGRAPH_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // DYNGRAPH_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // DYNGRAPH_EXPORT_S3_KEY (default "dyngraph/snapshot.jsonl")
	ExportFile       string        // DYNGRAPH_EXPORT_FILE (local JSONL path; optional)
	ExportInterval   time.Duration // DYNGRAPH_EXPORT_INTERVAL (default 5m)
}

func Load() (*Config, error) {
	c := &Config{
		HTTPAddr:         envOrDefault("DYNGRAPH_HTTP_ADDR", ":8080"),
		GRPCAddr:         envOrDefault("DYNGRAPH_GRPC_ADDR", ":9090"),
		DatabaseURL:      os.Getenv("DYNGRAPH_DATABASE_URL"),
		NATSURL:          os.Getenv("DYNGRAPH_NATS_URL"),
		ExportS3Bucket:   os.Getenv("DYNGRAPH_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("DYNGRAPH_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("DYNGRAPH_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("DYNGRAPH_EXPORT_S3_KEY", "dyngraph/snapshot.jsonl"),
		ExportFile:       os.Getenv("DYNGRAPH_EXPORT_FILE"),
	}

	var err error
	if c.Seed, err = strconv.ParseUint(envOrDefault("DYNGRAPH_SEED", "0"), 10, 64); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_SEED: %w", err)
	}
	if c.Isolation, err = strconv.ParseFloat(envOrDefault("DYNGRAPH_ISOLATION", "0.3"), 64); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_ISOLATION: %w", err)
	}
	if c.Isolation < 0 || c.Isolation > 1 {
		return nil, fmt.Errorf("DYNGRAPH_ISOLATION: %v is not a probability", c.Isolation)
	}
	if c.MaxEdges, err = strconv.Atoi(envOrDefault("DYNGRAPH_MAX_EDGES", "3")); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_MAX_EDGES: %w", err)
	}
	if c.MaxEdges < 0 {
		return nil, fmt.Errorf("DYNGRAPH_MAX_EDGES: must not be negative")
	}
	if c.StreamInterval, err = time.ParseDuration(envOrDefault("DYNGRAPH_STREAM_INTERVAL", "20ms")); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_STREAM_INTERVAL: %w", err)
	}
	if c.StreamBatch, err = strconv.Atoi(envOrDefault("DYNGRAPH_STREAM_BATCH", "1")); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_STREAM_BATCH: %w", err)
	}
	if c.StreamBatch < 1 {
		return nil, fmt.Errorf("DYNGRAPH_STREAM_BATCH: must be at least 1")
	}

	if c.EventRetention, err = time.ParseDuration(envOrDefault("DYNGRAPH_EVENT_RETENTION", "0s")); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_EVENT_RETENTION: %w", err)
	}
	if c.EventRetention < 0 {
		return nil, fmt.Errorf("DYNGRAPH_EVENT_RETENTION: must not be negative")
	}

	if c.ExportInterval, err = time.ParseDuration(envOrDefault("DYNGRAPH_EXPORT_INTERVAL", "5m")); err != nil {
		return nil, fmt.Errorf("DYNGRAPH_EXPORT_INTERVAL: %w", err)
	}
	if c.ExportInterval <= 0 {
		return nil, fmt.Errorf("DYNGRAPH_EXPORT_INTERVAL: must be positive")
	}

	return c, nil
}

// ExportEnabled reports whether any export destination is configured.
func (c *Config) ExportEnabled() bool {
	return c.ExportS3Bucket != "" || c.ExportFile != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
