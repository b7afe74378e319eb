package exporter

import (
	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/hyp3rd/otlplog/pkg/config"
)

// NewResource describes the emitting process. Service fields come first, then
// the configured extra attributes, so an extra key=value overrides a service
// field with the same key. With UseDefaultResources the SDK defaults
// (telemetry.sdk.*, OTEL_RESOURCE_ATTRIBUTES, the unknown_service fallback) are merged underneath.
func NewResource(svc config.ServiceConfig) (*resource.Resource, error) {
	extra, err := config.ParseKeyValues(svc.Resources)
	if err != nil {
		return nil, ewrap.Wrap(config.ErrParseResources, err.Error())
	}

	attrs := make([]attribute.KeyValue, 0, len(extra)+6)
	if svc.Name != "" {
		attrs = append(attrs, semconv.ServiceNameKey.String(svc.Name))
	}

	if svc.Namespace != "" {
		attrs = append(attrs, semconv.ServiceNamespaceKey.String(svc.Namespace))
	}

	if svc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(svc.Version))
	}

	if svc.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(svc.Environment))
	}

	attrs = append(attrs, semconv.ServiceInstanceIDKey.String(uuid.NewString()))

	for _, kv := range extra {
		attrs = append(attrs, attribute.String(kv.Key, kv.Value))
	}

	configured := resource.NewSchemaless(attrs...)
	if !svc.UseDefaultResources {
		return configured, nil
	}

	merged, err := resource.Merge(resource.Default(), configured)
	if err != nil {
		return nil, ewrap.Wrap(err, "merge default resource")
	}

	return merged, nil
}
