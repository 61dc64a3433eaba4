package config

import (
	"testing"
	"time"
)

var allEnvVars = []string{
	"DYNGRAPH_HTTP_ADDR", "DYNGRAPH_GRPC_ADDR", "DYNGRAPH_DATABASE_URL", "DYNGRAPH_NATS_URL",
	"DYNGRAPH_EVENT_RETENTION",
	"DYNGRAPH_SEED", "DYNGRAPH_ISOLATION", "DYNGRAPH_MAX_EDGES",
	"DYNGRAPH_STREAM_INTERVAL", "DYNGRAPH_STREAM_BATCH",
	"DYNGRAPH_EXPORT_S3_BUCKET", "DYNGRAPH_EXPORT_S3_ENDPOINT",
	"DYNGRAPH_EXPORT_S3_REGION", "DYNGRAPH_EXPORT_S3_KEY",
	"DYNGRAPH_EXPORT_FILE", "DYNGRAPH_EXPORT_INTERVAL",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.HTTPAddr != ":8080" || c.GRPCAddr != ":9090" {
		t.Errorf("addrs = %q %q", c.HTTPAddr, c.GRPCAddr)
	}
	if c.DatabaseURL != "" || c.NATSURL != "" || c.EventRetention != 0 {
		t.Errorf("optional backends set: %+v", c)
	}
	if c.Seed != 0 || c.Isolation != 0.3 || c.MaxEdges != 3 {
		t.Errorf("growth = seed %d isolation %v max edges %d", c.Seed, c.Isolation, c.MaxEdges)
	}
	if c.StreamInterval != 20*time.Millisecond || c.StreamBatch != 1 {
		t.Errorf("stream = %v x %d", c.StreamInterval, c.StreamBatch)
	}
	if c.ExportS3Region != "us-east-1" || c.ExportS3Key != "dyngraph/snapshot.jsonl" {
		t.Errorf("export = %q %q", c.ExportS3Region, c.ExportS3Key)
	}
	if c.ExportInterval != 5*time.Minute || c.ExportEnabled() {
		t.Errorf("export interval = %v, enabled = %v", c.ExportInterval, c.ExportEnabled())
	}
}

func TestLoad_Custom(t *testing.T) {
	clearAllEnv(t)
	for k, v := range map[string]string{
		"DYNGRAPH_HTTP_ADDR":        ":3000",
		"DYNGRAPH_GRPC_ADDR":        ":5050",
		"DYNGRAPH_DATABASE_URL":     "postgres://db:5432/dyngraph",
		"DYNGRAPH_NATS_URL":         "nats://localhost:4222",
		"DYNGRAPH_EVENT_RETENTION":  "72h",
		"DYNGRAPH_SEED":             "42",
		"DYNGRAPH_ISOLATION":        "0.5",
		"DYNGRAPH_MAX_EDGES":        "0",
		"DYNGRAPH_STREAM_INTERVAL":  "0s",
		"DYNGRAPH_STREAM_BATCH":     "10",
		"DYNGRAPH_EXPORT_S3_BUCKET": "graphs",
		"DYNGRAPH_EXPORT_FILE":      "/tmp/graph.jsonl",
		"DYNGRAPH_EXPORT_INTERVAL":  "30s",
	} {
		t.Setenv(k, v)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.HTTPAddr != ":3000" || c.GRPCAddr != ":5050" {
		t.Errorf("addrs = %q %q", c.HTTPAddr, c.GRPCAddr)
	}
	if c.DatabaseURL != "postgres://db:5432/dyngraph" || c.NATSURL != "nats://localhost:4222" {
		t.Errorf("backends = %q %q", c.DatabaseURL, c.NATSURL)
	}
	if c.EventRetention != 72*time.Hour {
		t.Errorf("retention = %v", c.EventRetention)
	}
	if c.Seed != 42 || c.Isolation != 0.5 || c.MaxEdges != 0 {
		t.Errorf("growth = seed %d isolation %v max edges %d", c.Seed, c.Isolation, c.MaxEdges)
	}
	if c.StreamInterval != 0 || c.StreamBatch != 10 {
		t.Errorf("stream = %v x %d", c.StreamInterval, c.StreamBatch)
	}
	if c.ExportS3Bucket != "graphs" {
		t.Errorf("bucket = %q", c.ExportS3Bucket)
	}
	if c.ExportFile != "/tmp/graph.jsonl" || c.ExportInterval != 30*time.Second || !c.ExportEnabled() {
		t.Errorf("export = %q every %v", c.ExportFile, c.ExportInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	for _, tc := range []struct {
		key, value string
	}{
		{"DYNGRAPH_SEED", "-1"},
		{"DYNGRAPH_ISOLATION", "abc"},
		{"DYNGRAPH_ISOLATION", "1.5"},
		{"DYNGRAPH_MAX_EDGES", "-2"},
		{"DYNGRAPH_MAX_EDGES", "many"},
		{"DYNGRAPH_STREAM_INTERVAL", "fast"},
		{"DYNGRAPH_STREAM_BATCH", "0"},
		{"DYNGRAPH_EVENT_RETENTION", "-1h"},
		{"DYNGRAPH_EXPORT_INTERVAL", "0s"},
		{"DYNGRAPH_EXPORT_INTERVAL", "often"},
	} {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearAllEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
