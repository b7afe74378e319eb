package record

import (
	"testing"
	"time"
)

func TestTemplateRender(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		args     []any
		want     string
	}{
		{"named string quoted", "user {name} signed in", []any{"ana"}, `user "ana" signed in`},
		{"named number bare", "took {ms}ms", []any{12}, "took 12ms"},
		{"positional", "{1} before {0}", []any{"a", "b"}, "b before a"},
		{"escaped braces", "{{literal}} {x}", []any{1}, "{literal} 1"},
		{"missing argument", "{a} and {b}", []any{1}, "1 and {b}"},
		{"structure capture", "payload {@p}", []any{map[string]int{"n": 1}}, `payload {"n":1}`},
		{"stringify capture", "value {$v}", []any{7}, `value "7"`},
		{"alignment right", "[{n,4}]", []any{7}, "[   7]"},
		{"alignment left", "[{n,-4}]", []any{7}, "[7   ]"},
		{"printf format", "ratio {r:%.2f}", []any{0.5}, "ratio 0.50"},
		{"time format", "at {t:2006-01-02}", []any{stamp}, "at 2026-01-02"},
		{"nil value", "got {v}", []any{nil}, "got NULL"},
		{"malformed hole kept", "a {not valid} b {x}", []any{1}, "a {not valid} b 1"},
		{"unterminated hole", "open {x", []any{1}, "open {x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTemplate(tc.template).Render(tc.args)
			if got != tc.want {
				t.Fatalf("Render(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestTemplateBind(t *testing.T) {
	t.Parallel()

	tmpl := ParseTemplate("{a} {b} {c}")
	if tmpl.Positional() {
		t.Fatal("named template reported as positional")
	}

	props := tmpl.Bind([]any{1, "two"})
	if len(props) != 2 || props[0].Key != "a" || props[1].Key != "b" {
		t.Fatalf("unexpected bound properties %+v", props)
	}

	positional := ParseTemplate("{0} {1}")
	if !positional.Positional() {
		t.Fatal("expected positional template")
	}

	if props := positional.Bind([]any{1, 2}); props != nil {
		t.Fatalf("positional templates must not bind properties, got %+v", props)
	}

	if mixed := ParseTemplate("{0} {name}"); mixed.Positional() {
		t.Fatal("mixed template must be treated as named")
	}
}

func TestLayoutRender(t *testing.T) {
	t.Setenv("OTLPLOG_LAYOUT_TEST", "blue")

	ev := Event{LoggerName: "api", Level: LevelWarn, Message: "hi"}

	tests := []struct {
		layout Layout
		want   string
	}{
		{"static", "static"},
		{"${logger}", "api"},
		{"${level}:${message}", "Warn:hi"},
		{"deploy-${env:OTLPLOG_LAYOUT_TEST}", "deploy-blue"},
		{"${unknown}", "${unknown}"},
		{"${logger", "${logger"},
	}

	for _, tc := range tests {
		if got := tc.layout.Render(ev); got != tc.want {
			t.Fatalf("Render(%q) = %q, want %q", tc.layout, got, tc.want)
		}
	}

	if Layout("${processid}").Render(ev) == "" {
		t.Fatal("expected process id")
	}
}

func TestLevelAndSeverityStrings(t *testing.T) {
	t.Parallel()

	if LevelError.String() != "Error" {
		t.Fatalf("unexpected level name %q", LevelError.String())
	}

	if Level(9).String() != "Level(9)" {
		t.Fatalf("unexpected custom level name %q", Level(9).String())
	}

	if SeverityWarn2.String() != "WARN2" || SeverityUnspecified.String() != "UNSPECIFIED" {
		t.Fatal("unexpected severity names")
	}

	if Severity(99).Valid() {
		t.Fatal("out of range severity reported valid")
	}
}

func TestAttributeConversion(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	if got := Attribute("t", stamp).Value.AsString(); got != "2026-01-02T03:04:05.000000006Z" {
		t.Fatalf("unexpected time rendering %q", got)
	}

	if got := Attribute("d", 2*time.Second).Value.AsString(); got != "2s" {
		t.Fatalf("unexpected duration rendering %q", got)
	}

	if got := Attribute("u", uint64(1)<<63).Value.AsString(); got != "9223372036854775808" {
		t.Fatalf("expected out of range uint64 as string, got %q", got)
	}

	if got := Attribute("u", uint(5)).Value.AsInt64(); got != 5 {
		t.Fatalf("expected uint as int64, got %d", got)
	}

	if got := Attribute("f", float32(1.5)).Value.AsFloat64(); got != 1.5 {
		t.Fatalf("unexpected float %v", got)
	}

	if got := Attribute("s", struct{ A int }{A: 1}).Value.AsString(); got != "{1}" {
		t.Fatalf("unexpected fallback rendering %q", got)
	}
}
