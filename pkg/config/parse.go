package config

import (
	"net/url"
	"os"
	"strings"

	"github.com/hyp3rd/ewrap"
)

var (
	// ErrParseResources is returned when service.resources holds a malformed entry.
	ErrParseResources = ewrap.New("failed to parse resources").WithContext(
		&ewrap.ErrorContext{
			Severity: ewrap.SeverityError,
			Type:     ewrap.ErrorTypeConfiguration,
		},
	)
	// ErrParseAttributes is returned when record.attributes holds a malformed entry.
	ErrParseAttributes = ewrap.New("failed to parse attributes").WithContext(
		&ewrap.ErrorContext{
			Severity: ewrap.SeverityError,
			Type:     ewrap.ErrorTypeConfiguration,
		},
	)
	// ErrParseHeaders is returned when exporter.headers is malformed.
	ErrParseHeaders = ewrap.New("failed to parse headers").WithContext(
		&ewrap.ErrorContext{
			Severity: ewrap.SeverityError,
			Type:     ewrap.ErrorTypeConfiguration,
		},
	)
)

// KeyValue is an ordered key/value entry parsed from a key=value string.
type KeyValue struct {
	Key   string
	Value string
}

// ParseKeyValues parses key=value entries. Each entry may itself hold several
// comma separated pairs. Order is preserved, duplicates are kept.
func ParseKeyValues(entries []string) ([]KeyValue, error) {
	out := make([]KeyValue, 0, len(entries))

	for _, entry := range entries {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			key, value, ok := strings.Cut(part, "=")
			key = strings.TrimSpace(key)

			if !ok || key == "" {
				return nil, ewrap.Newf("malformed key=value entry %q", part)
			}

			out = append(out, KeyValue{Key: key, Value: strings.TrimSpace(value)})
		}
	}

	return out, nil
}

// ParseHeaders parses the OTLP header format k1=v1,k2=v2 with URL-escaped keys and values.
func ParseHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ewrap.Newf("malformed header %q", part)
		}

		decodedKey, err := url.QueryUnescape(strings.TrimSpace(key))
		if err != nil || decodedKey == "" {
			return nil, ewrap.Newf("malformed header key %q", key)
		}

		decodedValue, err := url.QueryUnescape(strings.TrimSpace(value))
		if err != nil {
			return nil, ewrap.Wrapf(err, "decode header %q", decodedKey)
		}

		headers[strings.ToLower(decodedKey)] = decodedValue
	}

	return headers, nil
}

// ResolveHeaders returns the configured headers, falling back to the standard
// OTEL_EXPORTER_OTLP_LOGS_HEADERS and OTEL_EXPORTER_OTLP_HEADERS variables.
func ResolveHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		for _, name := range []string{"OTEL_EXPORTER_OTLP_LOGS_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS"} {
			if value := os.Getenv(name); value != "" {
				raw = value

				break
			}
		}
	}

	headers, err := ParseHeaders(raw)
	if err != nil {
		return nil, ewrap.Wrap(ErrParseHeaders, err.Error())
	}

	return headers, nil
}
