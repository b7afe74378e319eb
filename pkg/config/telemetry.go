package config

import "strings"

// ResolvedTelemetry returns the telemetry settings with the endpoint, transport
// security and TLS inherited from the log exporter when no endpoint is set.
func (c Config) ResolvedTelemetry() TelemetryConfig {
	t := c.Telemetry
	if t.Endpoint != "" {
		return t
	}

	t.Endpoint = c.Exporter.Endpoint
	t.UseHTTP = t.UseHTTP || c.Exporter.UseHTTP
	t.Insecure = t.Insecure || c.Exporter.Plaintext()

	if !t.TLS.Enabled() {
		t.TLS = c.Exporter.TLS
	}

	if t.Compression == "" {
		t.Compression = c.Exporter.Compression
	}

	return t
}

// Target returns host:port for the OpenTelemetry SDK exporters.
func (c TelemetryConfig) Target() string {
	return grpcTarget(c.Endpoint)
}

// Protocol names the self-telemetry transport.
func (c TelemetryConfig) Protocol() string {
	if c.UseHTTP {
		return TransportHTTP
	}

	return TransportGRPC
}

// Gzip reports whether gzip compression is requested.
func (c TelemetryConfig) Gzip() bool {
	return strings.EqualFold(c.Compression, "gzip")
}
