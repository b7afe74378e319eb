package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Capture controls how a hole's value is rendered.
type Capture uint8

const (
	// CaptureDefault renders scalars directly and quotes strings in named holes.
	CaptureDefault Capture = iota
	// CaptureStructure ({@name}) renders the value as JSON.
	CaptureStructure
	// CaptureStringify ({$name}) renders the value's string form, quoted.
	CaptureStringify
)

// Hole is one {placeholder} in a message template.
type Hole struct {
	Name      string
	Capture   Capture
	Alignment int
	Format    string
	// Index is the argument position for positional holes, -1 otherwise.
	Index int
	text  string
}

type segment struct {
	literal string
	hole    int
}

// Template is a parsed message template such as "user {id} logged in from {ip}".
//
// Holes whose names are all non-negative integers make the template
// positional: {0} binds to the first argument, and rendered values are never
// quoted. Otherwise each hole binds to the next argument in order and becomes
// a named property. "{{" and "}}" render as literal braces. Malformed holes are
// kept as text.
type Template struct {
	raw        string
	segments   []segment
	holes      []Hole
	positional bool
}

// ParseTemplate parses text. It never fails: text that is not a valid hole is kept literally.
func ParseTemplate(text string) *Template {
	t := &Template{raw: text}

	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String(), hole: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		ch := text[i]

		switch {
		case ch == '{' && i+1 < len(text) && text[i+1] == '{':
			lit.WriteByte('{')

			i += 2
		case ch == '}' && i+1 < len(text) && text[i+1] == '}':
			lit.WriteByte('}')

			i += 2
		case ch == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				lit.WriteString(text[i:])

				i = len(text)

				continue
			}

			body := text[i+1 : i+1+end]

			hole, ok := parseHole(body)
			if !ok {
				lit.WriteString(text[i : i+end+2])

				i += end + 2

				continue
			}

			hole.text = text[i : i+end+2]

			flush()
			t.segments = append(t.segments, segment{hole: len(t.holes)})
			t.holes = append(t.holes, hole)

			i += end + 2
		default:
			lit.WriteByte(ch)

			i++
		}
	}

	flush()

	t.positional = len(t.holes) > 0

	for _, hole := range t.holes {
		if hole.Index < 0 {
			t.positional = false

			break
		}
	}

	return t
}

func parseHole(body string) (Hole, bool) {
	hole := Hole{Index: -1}

	if body == "" {
		return hole, false
	}

	switch body[0] {
	case '@':
		hole.Capture = CaptureStructure
		body = body[1:]
	case '$':
		hole.Capture = CaptureStringify
		body = body[1:]
	}

	if before, after, found := strings.Cut(body, ":"); found {
		body = before
		hole.Format = after
	}

	if before, after, found := strings.Cut(body, ","); found {
		alignment, err := strconv.Atoi(strings.TrimSpace(after))
		if err != nil {
			return hole, false
		}

		body = before
		hole.Alignment = alignment
	}

	if !validHoleName(body) {
		return hole, false
	}

	hole.Name = body

	if index, err := strconv.Atoi(body); err == nil && index >= 0 {
		hole.Index = index
	}

	return hole, true
}

func validHoleName(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return false
		}
	}

	return true
}

// String returns the unparsed template text.
func (t *Template) String() string { return t.raw }

// Holes returns the holes in order of appearance.
func (t *Template) Holes() []Hole { return t.holes }

// Positional reports whether every hole is a numeric index.
func (t *Template) Positional() bool { return t.positional }

// Bind pairs named holes with args in order. Positional templates bind nothing.
// Holes without a matching argument are skipped.
func (t *Template) Bind(args []any) []Property {
	if t.positional || len(args) == 0 {
		return nil
	}

	props := make([]Property, 0, min(len(t.holes), len(args)))
	for i, hole := range t.holes {
		if i >= len(args) {
			break
		}

		props = append(props, Property{Key: hole.Name, Value: args[i]})
	}

	return props
}

// Render substitutes args into the template. A hole without an argument keeps its original text.
func (t *Template) Render(args []any) string {
	var sb strings.Builder

	sb.Grow(len(t.raw) + 8*len(args))

	for _, seg := range t.segments {
		if seg.hole < 0 {
			sb.WriteString(seg.literal)

			continue
		}

		hole := t.holes[seg.hole]

		argIndex := seg.hole
		if t.positional {
			argIndex = hole.Index
		}

		if argIndex >= len(args) {
			sb.WriteString(hole.text)

			continue
		}

		sb.WriteString(align(formatHole(hole, args[argIndex], !t.positional), hole.Alignment))
	}

	return sb.String()
}

func formatHole(hole Hole, value any, named bool) string {
	switch hole.Capture {
	case CaptureStructure:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%+v", value)
		}

		return string(encoded)
	case CaptureStringify:
		return strconv.Quote(fmt.Sprint(value))
	case CaptureDefault:
	}

	if hole.Format != "" {
		if formatted, ok := applyFormat(value, hole.Format); ok {
			return formatted
		}
	}

	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		if named {
			return strconv.Quote(v)
		}

		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func applyFormat(value any, format string) (string, bool) {
	if strings.HasPrefix(format, "%") {
		return fmt.Sprintf(format, value), true
	}

	if ts, ok := value.(time.Time); ok {
		return ts.Format(format), true
	}

	return "", false
}

func align(text string, width int) string {
	switch {
	case width > 0 && len(text) < width:
		return strings.Repeat(" ", width-len(text)) + text
	case width < 0 && len(text) < -width:
		return text + strings.Repeat(" ", -width-len(text))
	default:
		return text
	}
}

// ParameterKey is the attribute key used for the i-th positional argument.
func ParameterKey(i int) string {
	return strconv.Itoa(i)
}
