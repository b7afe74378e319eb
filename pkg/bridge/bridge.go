// Package bridge feeds records from slog, zap and logr into a log pipeline.
//
// Each bridge translates its library's levels into severity numbers, including
// the intermediate gradations, and hands a record.Event to a pipeline.Writer.
// Events written while instrumentation is suppressed never reach the writer.
package bridge

import (
	"fmt"

	"github.com/hyp3rd/otlplog/pkg/record"
)

func clampSeverity(n int) record.Severity {
	switch {
	case n < int(record.SeverityTrace):
		return record.SeverityTrace
	case n > int(record.SeverityFatal4):
		return record.SeverityFatal4
	default:
		return record.Severity(n)
	}
}

// levelFor picks the coarse level whose severity band contains sev.
func levelFor(sev record.Severity) record.Level {
	switch {
	case sev >= record.SeverityFatal:
		return record.LevelFatal
	case sev >= record.SeverityError:
		return record.LevelError
	case sev >= record.SeverityWarn:
		return record.LevelWarn
	case sev >= record.SeverityInfo:
		return record.LevelInfo
	case sev >= record.SeverityDebug:
		return record.LevelDebug
	default:
		return record.LevelTrace
	}
}

// pairs converts alternating key/value arguments into properties.
// It returns the first error value found under any key.
func pairs(keysAndValues []any) ([]record.Property, error) {
	props := make([]record.Property, 0, (len(keysAndValues)+1)/2)

	var firstErr error

	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}

		if i+1 >= len(keysAndValues) {
			props = append(props, record.Property{Key: key, Value: "(MISSING)"})

			break
		}

		value := keysAndValues[i+1]
		if err, isErr := value.(error); isErr && firstErr == nil {
			firstErr = err

			continue
		}

		props = append(props, record.Property{Key: key, Value: value})
	}

	return props, firstErr
}
