package record

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Layout is a text pattern rendered against an event, used for static attribute values.
//
// Supported renderers: ${logger}, ${level}, ${message}, ${env:NAME},
// ${hostname}, ${processid} and ${processname}. Unknown renderers are left in
// place.
type Layout string

var hostname = sync.OnceValue(func() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}

	return name
})

// Render expands every renderer in the layout for ev.
func (l Layout) Render(ev Event) string {
	text := string(l)
	if !strings.Contains(text, "${") {
		return text
	}

	var sb strings.Builder

	sb.Grow(len(text))

	for {
		start := strings.Index(text, "${")
		if start < 0 {
			sb.WriteString(text)

			break
		}

		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			sb.WriteString(text)

			break
		}

		sb.WriteString(text[:start])

		token := text[start : start+end+1]
		if value, ok := renderToken(token[2:len(token)-1], ev); ok {
			sb.WriteString(value)
		} else {
			sb.WriteString(token)
		}

		text = text[start+end+1:]
	}

	return sb.String()
}

func renderToken(name string, ev Event) (string, bool) {
	name, arg, _ := strings.Cut(name, ":")

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "logger":
		return ev.LoggerName, true
	case "level":
		return ev.Level.String(), true
	case "message":
		return ev.Message, true
	case "env", "environment":
		return os.Getenv(arg), true
	case "hostname", "machinename":
		return hostname(), true
	case "processid":
		return strconv.Itoa(os.Getpid()), true
	case "processname":
		return filepath.Base(os.Args[0]), true
	default:
		return "", false
	}
}
