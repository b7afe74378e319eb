package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	if cfg.Exporter.Transport() != TransportGRPC {
		t.Fatalf("expected grpc transport by default, got %s", cfg.Exporter.Transport())
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{
			name:   "zero queue",
			mutate: func(c *Config) { c.Batch.MaxQueueSize = 0 },
		},
		{
			name:   "batch larger than queue",
			mutate: func(c *Config) { c.Batch.MaxExportBatchSize = c.Batch.MaxQueueSize + 1 },
		},
		{
			name:   "sub-millisecond scheduled delay",
			mutate: func(c *Config) { c.Batch.ScheduledDelay = 5 * time.Microsecond },
		},
		{
			name:   "sub-millisecond export timeout",
			mutate: func(c *Config) { c.Batch.ExportTimeout = 30 * time.Microsecond },
		},
		{
			name:   "negative exporter timeout",
			mutate: func(c *Config) { c.Exporter.Timeout = -time.Second },
		},
		{
			name:   "unknown overflow policy",
			mutate: func(c *Config) { c.Batch.OverflowPolicy = "block" },
		},
		{
			name:   "kafka without brokers",
			mutate: func(c *Config) { c.Exporter.Kafka = KafkaConfig{Enabled: true, Topic: "logs"} },
		},
		{
			name:   "malformed resource",
			mutate: func(c *Config) { c.Service.Resources = []string{"no-separator"} },
			target: ErrParseResources,
		},
		{
			name:   "malformed attribute",
			mutate: func(c *Config) { c.Record.Attributes = []string{"=value"} },
			target: ErrParseAttributes,
		},
		{
			name:   "malformed header",
			mutate: func(c *Config) { c.Exporter.Headers = "api-key" },
			target: ErrParseHeaders,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}

			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestParseKeyValuesKeepsOrder(t *testing.T) {
	t.Parallel()

	got, err := ParseKeyValues([]string{"b=2,a=1", "b=3", "url=http://x?y=z"})
	if err != nil {
		t.Fatalf("ParseKeyValues returned error: %v", err)
	}

	want := []KeyValue{{"b", "2"}, {"a", "1"}, {"b", "3"}, {"url", "http://x?y=z"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseHeadersDecodesValues(t *testing.T) {
	t.Parallel()

	headers, err := ParseHeaders("Api-Key=abc%20123, x-tenant=acme")
	if err != nil {
		t.Fatalf("ParseHeaders returned error: %v", err)
	}

	if headers["api-key"] != "abc 123" {
		t.Fatalf("expected decoded api-key, got %q", headers["api-key"])
	}

	if headers["x-tenant"] != "acme" {
		t.Fatalf("expected x-tenant header, got %q", headers["x-tenant"])
	}
}

func TestResolveHeadersFallsBackToEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer%20token")

	headers, err := ResolveHeaders("")
	if err != nil {
		t.Fatalf("ResolveHeaders returned error: %v", err)
	}

	if headers["authorization"] != "Bearer token" {
		t.Fatalf("expected env header, got %#v", headers)
	}
}

func TestEndpointNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		insecure bool
		grpc     string
		http     string
	}{
		{"http://localhost:4317", false, "localhost:4317", "http://localhost:4317/v1/logs"},
		{"collector:4318", true, "collector:4318", "http://collector:4318/v1/logs"},
		{"https://otel.example.com/v1/logs", false, "otel.example.com", "https://otel.example.com/v1/logs"},
		{"https://otel.example.com/ingest/", false, "otel.example.com", "https://otel.example.com/ingest/v1/logs"},
	}

	for _, tc := range tests {
		cfg := ExporterConfig{Endpoint: tc.endpoint, Insecure: tc.insecure}

		if got := cfg.GRPCTarget(); got != tc.grpc {
			t.Fatalf("%s: expected grpc target %q, got %q", tc.endpoint, tc.grpc, got)
		}

		if got := cfg.HTTPURL(); got != tc.http {
			t.Fatalf("%s: expected http url %q, got %q", tc.endpoint, tc.http, got)
		}
	}
}
