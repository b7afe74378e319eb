// Package config defines the configuration structures for the log export pipeline.
package config

import (
	"time"
)

// Config is the canonical, immutable configuration consumed by the pipeline.
// It is intentionally verbose to capture all required knobs up front.
type Config struct {
	Service     ServiceConfig     `yaml:"service"     json:"service"`
	Exporter    ExporterConfig    `yaml:"exporter"    json:"exporter"`
	Batch       BatchConfig       `yaml:"batch"       json:"batch"`
	Record      RecordConfig      `yaml:"record"      json:"record"`
	Logging     LoggingConfig     `yaml:"logging"     json:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" json:"diagnostics"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"   json:"telemetry"`
}

// ServiceConfig captures metadata propagated as OTLP resource attributes.
type ServiceConfig struct {
	Name                string `yaml:"name"                  json:"name"`
	Namespace           string `yaml:"namespace"             json:"namespace"`
	Version             string `yaml:"version"               json:"version"`
	Environment         string `yaml:"environment"           json:"environment"`
	UseDefaultResources bool   `yaml:"use_default_resources" json:"use_default_resources"`
	// Resources holds extra resource attributes as key=value entries.
	Resources []string `yaml:"resources" json:"resources"`
}

// BatchConfig defines queue and scheduler settings.
type BatchConfig struct {
	MaxQueueSize       int           `yaml:"max_queue_size"        json:"max_queue_size"`
	MaxExportBatchSize int           `yaml:"max_export_batch_size" json:"max_export_batch_size"`
	ScheduledDelay     time.Duration `yaml:"scheduled_delay"       json:"scheduled_delay"`
	ExportTimeout      time.Duration `yaml:"export_timeout"        json:"export_timeout"`
	// OverflowPolicy is either drop_oldest or reject_new.
	OverflowPolicy string `yaml:"overflow_policy" json:"overflow_policy"`
}

// RecordConfig drives how events become log records.
type RecordConfig struct {
	IncludeFormattedMessage bool     `yaml:"include_formatted_message" json:"include_formatted_message"`
	IncludeEventParameters  bool     `yaml:"include_event_parameters"  json:"include_event_parameters"`
	OnlyIncludeProperties   []string `yaml:"only_include_properties"   json:"only_include_properties"`
	ExcludeProperties       []string `yaml:"exclude_properties"        json:"exclude_properties"`
	// Attributes are static key=layout entries appended to every record.
	Attributes []string `yaml:"attributes" json:"attributes"`
}

// TLSConfig encapsulates TLS dial settings.
type TLSConfig struct {
	CAFile   string `yaml:"ca_file"   json:"ca_file"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file"  json:"key_file"`
	Insecure bool   `yaml:"insecure"  json:"insecure"`
}

// SamplingConfig defines the sampling strategy for the pipeline's own spans.
type SamplingConfig struct {
	Mode     string  `yaml:"mode"     json:"mode"`
	Argument float64 `yaml:"argument" json:"argument"`
}

// TelemetryConfig controls the pipeline's self-telemetry (metrics and spans about exports).
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Endpoint defaults to the log exporter endpoint when empty.
	Endpoint        string         `yaml:"endpoint"         json:"endpoint"`
	UseHTTP         bool           `yaml:"use_http"         json:"use_http"`
	Insecure        bool           `yaml:"insecure"         json:"insecure"`
	Timeout         time.Duration  `yaml:"timeout"          json:"timeout"`
	Compression     string         `yaml:"compression"      json:"compression"`
	MetricsInterval time.Duration  `yaml:"metrics_interval" json:"metrics_interval"`
	Traces          bool           `yaml:"traces"           json:"traces"`
	RuntimeMetrics  bool           `yaml:"runtime_metrics"  json:"runtime_metrics"`
	Sampling        SamplingConfig `yaml:"sampling"         json:"sampling"`
	TLS             TLSConfig      `yaml:"tls"              json:"tls"`
}

// LoggingConfig controls the diagnostic logger used by the pipeline internals.
type LoggingConfig struct {
	Level       string  `yaml:"level"        json:"level"`
	Format      string  `yaml:"format"       json:"format"`
	Adapter     string  `yaml:"adapter"      json:"adapter"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

// DiagnosticsConfig toggles self-observation endpoints.
type DiagnosticsConfig struct {
	Enabled   bool   `yaml:"enabled"    json:"enabled"`
	HTTPAddr  string `yaml:"http_addr"  json:"http_addr"`
	AuthToken string `yaml:"auth_token" json:"auth_token"`
}
