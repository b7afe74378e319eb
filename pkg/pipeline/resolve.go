package pipeline

import (
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otlplog/pkg/config"
	"github.com/hyp3rd/otlplog/pkg/record"
)

// ResolveLayouts renders the layout tokens in the endpoint, the headers and the
// service name once, against an empty event. Values without tokens are unchanged.
func ResolveLayouts(cfg config.Config) config.Config {
	var empty record.Event

	cfg.Exporter.Endpoint = record.Layout(cfg.Exporter.Endpoint).Render(empty)
	cfg.Exporter.Headers = record.Layout(cfg.Exporter.Headers).Render(empty)
	cfg.Service.Name = record.Layout(cfg.Service.Name).Render(empty)

	return cfg
}

// RecordOptions translates the record section of the configuration into builder options.
func RecordOptions(cfg config.RecordConfig) (record.Options, error) {
	entries, err := config.ParseKeyValues(cfg.Attributes)
	if err != nil {
		return record.Options{}, ewrap.Wrap(config.ErrParseAttributes, err.Error())
	}

	static := make([]record.StaticAttribute, 0, len(entries))
	for _, entry := range entries {
		static = append(static, record.StaticAttribute{Key: entry.Key, Layout: record.Layout(entry.Value)})
	}

	return record.Options{
		IncludeFormattedMessage: cfg.IncludeFormattedMessage,
		IncludeEventParameters:  cfg.IncludeEventParameters,
		OnlyIncludeProperties:   cfg.OnlyIncludeProperties,
		ExcludeProperties:       cfg.ExcludeProperties,
		Attributes:              static,
	}, nil
}
