package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is the YAML file read by FileLoader when no path is set.
	DefaultFileName = "otlplog.yaml"
	// DefaultEnvPrefix is the prefix EnvLoader uses when none is set.
	DefaultEnvPrefix = "OTLPLOG_"
)

// errNothingToLoad tells Load that a source is absent, which is not a failure.
var errNothingToLoad = ewrap.New("config source has nothing to load")

// Loader produces a layer of raw configuration values. Keys follow the YAML
// layout of Config; the flat option names listed in Aliases are accepted too.
type Loader interface {
	Load(ctx context.Context) (map[string]any, error)
}

// LoaderFunc adapts ordinary functions into Loader.
type LoaderFunc func(ctx context.Context) (map[string]any, error)

// Load implements Loader.
func (lf LoaderFunc) Load(ctx context.Context) (map[string]any, error) {
	return lf(ctx)
}

// Aliases maps the flat pipeline option names onto their place in Config.
// Lookups ignore case and underscores, so maxQueueSize, MAX_QUEUE_SIZE and
// max_queue_size all land on batch.max_queue_size.
var Aliases = map[string]string{
	"endpoint":                   "exporter.endpoint",
	"usehttp":                    "exporter.use_http",
	"headers":                    "exporter.headers",
	"maxqueuesize":               "batch.max_queue_size",
	"maxexportbatchsize":         "batch.max_export_batch_size",
	"scheduleddelaymilliseconds": "batch.scheduled_delay",
	"exporttimeoutmilliseconds":  "batch.export_timeout",
	"includeformattedmessage":    "record.include_formatted_message",
	"includeeventparameters":     "record.include_event_parameters",
	"onlyincludeproperties":      "record.only_include_properties",
	"excludeproperties":          "record.exclude_properties",
	"usedefaultresources":        "service.use_default_resources",
	"servicename":                "service.name",
	"resources":                  "service.resources",
}

func aliasPath(key string) ([]string, bool) {
	canonical, ok := Aliases[strings.ToLower(strings.ReplaceAll(key, "_", ""))]
	if !ok {
		return nil, false
	}

	return strings.Split(canonical, "."), true
}

// Load layers every loader over DefaultConfig() in order and validates the result.
// A loader whose source is absent is skipped.
func Load(ctx context.Context, loaders ...Loader) (Config, error) {
	cfg := DefaultConfig()

	for _, loader := range loaders {
		if loader == nil {
			continue
		}

		values, err := loader.Load(ctx)
		if errors.Is(err, errNothingToLoad) {
			continue
		}

		if err != nil {
			return Config{}, err
		}

		err = decodeInto(&cfg, expandAliases(values))
		if err != nil {
			return Config{}, err
		}
	}

	err := Validate(cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// expandAliases moves top-level flat option names to their nested keys. An alias
// wins over the nested key of the same layer.
func expandAliases(values map[string]any) map[string]any {
	type aliased struct {
		path  []string
		value any
	}

	out := make(map[string]any, len(values))

	var flat []aliased

	for key, value := range values {
		if path, ok := aliasPath(key); ok {
			flat = append(flat, aliased{path: path, value: value})

			continue
		}

		out[key] = value
	}

	for _, entry := range flat {
		setPath(out, entry.path, entry.value)
	}

	return out
}

func decodeInto(target *Config, input map[string]any) error {
	if len(input) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisecondsHook,
			mapstructure.StringToTimeDurationHookFunc(),
			commaListHook,
		),
	})
	if err != nil {
		return ewrap.Wrap(err, "create config decoder")
	}

	err = decoder.Decode(input)
	if err != nil {
		return ewrap.Wrap(err, "decode config").WithContext(&ewrap.ErrorContext{
			Severity: ewrap.SeverityError,
			Type:     ewrap.ErrorTypeConfiguration,
		})
	}

	return nil
}

var durationType = reflect.TypeFor[time.Duration]()

// millisecondsHook reads a bare number bound for a duration as milliseconds,
// the unit of scheduledDelayMilliseconds. Strings with a unit ("250ms", "5s")
// are left to the duration parser.
func millisecondsHook(_, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}

	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case string:
		ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return data, nil
		}

		return time.Duration(ms) * time.Millisecond, nil
	default:
		return data, nil
	}
}

// commaListHook splits "a, b" into a trimmed []string, dropping empty entries.
func commaListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeFor[[]string]() {
		return data, nil
	}

	raw, _ := data.(string)

	var out []string

	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out, nil
}

// FileLoader reads a YAML document shaped like Config. A missing file is skipped.
type FileLoader struct {
	Path string
	// FS replaces the working directory when set.
	FS fs.FS
}

// Load implements Loader.
func (fl FileLoader) Load(_ context.Context) (map[string]any, error) {
	path := filepath.Clean(fl.Path)
	if fl.Path == "" {
		path = DefaultFileName
	}

	var (
		data []byte
		err  error
	)

	if fl.FS != nil {
		data, err = fs.ReadFile(fl.FS, path)
	} else {
		data, err = os.ReadFile(path)
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, errNothingToLoad
	case err != nil:
		return nil, ewrap.Wrapf(err, "read config file %q", path)
	}

	var doc map[string]any

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, ewrap.Wrapf(err, "parse config file %q", path).WithContext(&ewrap.ErrorContext{
			Severity: ewrap.SeverityError,
			Type:     ewrap.ErrorTypeConfiguration,
		})
	}

	if len(doc) == 0 {
		return nil, errNothingToLoad
	}

	return doc, nil
}

// EnvLoader reads overrides from prefixed environment variables. A double
// underscore nests (OTLPLOG_BATCH__MAX_QUEUE_SIZE); a single segment may also
// be a flat option name (OTLPLOG_SCHEDULED_DELAY_MILLISECONDS=5000).
type EnvLoader struct {
	Prefix string
}

// Load implements Loader.
func (el EnvLoader) Load(ctx context.Context) (map[string]any, error) {
	prefix := el.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	values := map[string]any{}

	for _, kv := range os.Environ() {
		err := ctx.Err()
		if err != nil {
			return nil, ewrap.Wrap(err, "read environment")
		}

		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}

		path := envPath(strings.TrimPrefix(name, prefix))
		if len(path) == 0 {
			continue
		}

		setPath(values, path, value)
	}

	if len(values) == 0 {
		return nil, errNothingToLoad
	}

	return values, nil
}

func envPath(name string) []string {
	var path []string

	for segment := range strings.SplitSeq(strings.ToLower(name), "__") {
		segment = strings.Trim(strings.ReplaceAll(segment, "-", "_"), "_")
		if segment != "" {
			path = append(path, segment)
		}
	}

	return path
}

func setPath(root map[string]any, path []string, value any) {
	cursor := root

	for _, segment := range path[:len(path)-1] {
		next, ok := cursor[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			cursor[segment] = next
		}

		cursor = next
	}

	cursor[path[len(path)-1]] = value
}
