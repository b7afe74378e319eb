package config_test

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/hyp3rd/otlplog/pkg/config"
)

func TestLoadLayers(t *testing.T) {
	t.Setenv("OTLPLOG_SERVICE__NAME", "env-service")
	t.Setenv("OTLPLOG_EXPORTER__USE_HTTP", "true")
	t.Setenv("OTLPLOG_RECORD__EXCLUDE_PROPERTIES", "message,someProperty")

	fs := fstest.MapFS{
		"otlplog.yaml": {
			Data: []byte(`
service:
  name: file-service
  environment: staging
  resources:
    - deployment.region=eu-west-1
exporter:
  endpoint: http://collector:4318
batch:
  scheduled_delay: 250ms
  max_export_batch_size: 128
`),
		},
	}

	cfg, err := config.Load(context.Background(),
		config.FileLoader{FS: fs},
		config.EnvLoader{},
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Service.Name != "env-service" {
		t.Fatalf("expected env override for service.name, got %q", cfg.Service.Name)
	}

	if cfg.Service.Environment != "staging" {
		t.Fatalf("expected service.environment from file, got %q", cfg.Service.Environment)
	}

	if cfg.Exporter.Endpoint != "http://collector:4318" {
		t.Fatalf("expected exporter endpoint from file, got %q", cfg.Exporter.Endpoint)
	}

	if !cfg.Exporter.UseHTTP {
		t.Fatal("expected use_http enabled by env override")
	}

	if cfg.Batch.ScheduledDelay != 250*time.Millisecond {
		t.Fatalf("expected scheduled delay from file, got %s", cfg.Batch.ScheduledDelay)
	}

	if cfg.Batch.MaxQueueSize != 2048 {
		t.Fatalf("expected default max queue size, got %d", cfg.Batch.MaxQueueSize)
	}

	if got := cfg.Record.ExcludeProperties; len(got) != 2 || got[0] != "message" || got[1] != "someProperty" {
		t.Fatalf("unexpected exclude properties: %#v", got)
	}

	if got := cfg.Service.Resources; len(got) != 1 || got[0] != "deployment.region=eu-west-1" {
		t.Fatalf("unexpected resources: %#v", got)
	}
}

func TestLoadRejectsMalformedResources(t *testing.T) {
	fs := fstest.MapFS{
		"otlplog.yaml": {
			Data: []byte(`
service:
  resources:
    - "=missing-key"
`),
		},
	}

	_, err := config.Load(context.Background(), config.FileLoader{FS: fs})
	if err == nil {
		t.Fatal("expected malformed resource entry to fail loading")
	}
}

func TestLoadSkipsMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(context.Background(), config.FileLoader{FS: fstest.MapFS{}})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Exporter.Endpoint != "http://localhost:4317" {
		t.Fatalf("expected default endpoint, got %q", cfg.Exporter.Endpoint)
	}
}

func TestLoadReadsBareDurationsAsMilliseconds(t *testing.T) {
	t.Parallel()

	fs := fstest.MapFS{
		"otlplog.yaml": {
			Data: []byte(`
exporter:
  timeout: 2500
batch:
  scheduled_delay: 5000
  export_timeout: "30000"
`),
		},
	}

	cfg, err := config.Load(context.Background(), config.FileLoader{FS: fs})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Batch.ScheduledDelay != 5*time.Second {
		t.Fatalf("expected 5s scheduled delay, got %s", cfg.Batch.ScheduledDelay)
	}

	if cfg.Batch.ExportTimeout != 30*time.Second {
		t.Fatalf("expected 30s export timeout, got %s", cfg.Batch.ExportTimeout)
	}

	if cfg.Exporter.Timeout != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s exporter timeout, got %s", cfg.Exporter.Timeout)
	}
}

func TestLoadReadsBareDurationsFromEnv(t *testing.T) {
	t.Setenv("OTLPLOG_BATCH__SCHEDULED_DELAY", "5000")
	t.Setenv("OTLPLOG_BATCH__EXPORT_TIMEOUT", "1m")

	cfg, err := config.Load(context.Background(), config.EnvLoader{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Batch.ScheduledDelay != 5*time.Second {
		t.Fatalf("expected 5s scheduled delay, got %s", cfg.Batch.ScheduledDelay)
	}

	if cfg.Batch.ExportTimeout != time.Minute {
		t.Fatalf("expected 1m export timeout, got %s", cfg.Batch.ExportTimeout)
	}
}

func TestLoadAcceptsFlatOptionNames(t *testing.T) {
	t.Setenv("OTLPLOG_SCHEDULED_DELAY_MILLISECONDS", "750")
	t.Setenv("OTLPLOG_EXCLUDE_PROPERTIES", "password, token")

	fs := fstest.MapFS{
		"otlplog.yaml": {
			Data: []byte(`
endpoint: http://collector:4318
useHttp: true
maxQueueSize: 4096
maxExportBatchSize: 256
serviceName: checkout
resources:
  - team=payments
batch:
  max_queue_size: 1024
`),
		},
	}

	cfg, err := config.Load(context.Background(), config.FileLoader{FS: fs}, config.EnvLoader{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Exporter.Endpoint != "http://collector:4318" || !cfg.Exporter.UseHTTP {
		t.Fatalf("unexpected exporter config %+v", cfg.Exporter)
	}

	if cfg.Batch.MaxQueueSize != 4096 || cfg.Batch.MaxExportBatchSize != 256 {
		t.Fatalf("unexpected batch config %+v", cfg.Batch)
	}

	if cfg.Batch.ScheduledDelay != 750*time.Millisecond {
		t.Fatalf("expected 750ms scheduled delay, got %s", cfg.Batch.ScheduledDelay)
	}

	if cfg.Service.Name != "checkout" || len(cfg.Service.Resources) != 1 {
		t.Fatalf("unexpected service config %+v", cfg.Service)
	}

	if got := cfg.Record.ExcludeProperties; len(got) != 2 || got[0] != "password" || got[1] != "token" {
		t.Fatalf("unexpected exclude properties: %#v", got)
	}
}

func TestLoadRejectsSubMillisecondDelay(t *testing.T) {
	t.Parallel()

	loader := config.LoaderFunc(func(context.Context) (map[string]any, error) {
		return map[string]any{"batch": map[string]any{"scheduled_delay": "500us"}}, nil
	})

	_, err := config.Load(context.Background(), loader)
	if err == nil {
		t.Fatal("expected a sub-millisecond scheduled delay to be rejected")
	}
}
