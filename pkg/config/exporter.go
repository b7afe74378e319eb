package config

import (
	"net/url"
	"strings"
	"time"
)

// ExporterConfig defines the transport used to ship log batches.
type ExporterConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// UseHTTP selects OTLP/HTTP protobuf instead of OTLP/gRPC.
	UseHTTP bool `yaml:"use_http" json:"use_http"`
	// Headers are sent with every export, formatted as k1=v1,k2=v2 with URL-escaped values.
	Headers     string        `yaml:"headers"     json:"headers"`
	Insecure    bool          `yaml:"insecure"    json:"insecure"`
	Timeout     time.Duration `yaml:"timeout"     json:"timeout"`
	Compression string        `yaml:"compression" json:"compression"`
	TLS         TLSConfig     `yaml:"tls"         json:"tls"`
	Kafka       KafkaConfig   `yaml:"kafka"       json:"kafka"`
}

// KafkaConfig routes serialized export requests to a Kafka topic instead of a collector.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"       json:"enabled"`
	Brokers      []string      `yaml:"brokers"       json:"brokers"`
	Topic        string        `yaml:"topic"         json:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
}

// Transport names the transport selected by the configuration.
func (c ExporterConfig) Transport() string {
	switch {
	case c.Kafka.Enabled:
		return TransportKafka
	case c.UseHTTP:
		return TransportHTTP
	default:
		return TransportGRPC
	}
}

// Transport names.
const (
	TransportGRPC  = "grpc"
	TransportHTTP  = "http"
	TransportKafka = "kafka"
)

// GRPCTarget returns host:port for a gRPC dial, stripping any scheme and path.
func (c ExporterConfig) GRPCTarget() string {
	return grpcTarget(c.Endpoint)
}

// HTTPURL returns the absolute OTLP/HTTP logs URL, appending /v1/logs when missing.
func (c ExporterConfig) HTTPURL() string {
	return httpLogsURL(c.Endpoint, c.Insecure)
}

// SecureScheme reports whether the endpoint explicitly asks for TLS.
func (c ExporterConfig) SecureScheme() bool {
	return strings.HasPrefix(strings.ToLower(c.Endpoint), "https://")
}

// Plaintext reports whether the transport should skip TLS: either insecure is
// set or the endpoint uses the http scheme without a TLS configuration.
func (c ExporterConfig) Plaintext() bool {
	if c.Insecure {
		return true
	}

	return !c.TLS.Enabled() && strings.HasPrefix(strings.ToLower(c.Endpoint), "http://")
}

func grpcTarget(endpoint string) string {
	if !strings.Contains(endpoint, "://") {
		return endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}

	return u.Host
}

func httpLogsURL(endpoint string, insecure bool) string {
	if !strings.Contains(endpoint, "://") {
		if insecure {
			endpoint = "http://" + endpoint
		} else {
			endpoint = "https://" + endpoint
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}

	if !strings.HasSuffix(u.Path, logsPath) {
		u.Path = strings.TrimSuffix(u.Path, "/") + logsPath
	}

	return u.String()
}

const logsPath = "/v1/logs"
