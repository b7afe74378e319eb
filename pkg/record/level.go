package record

import "strconv"

// Level is the application-side log level carried by an Event.
type Level int8

// Application log levels. Values outside this range are accepted and map to SeverityInfo.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"Trace", "Debug", "Info", "Warn", "Error", "Fatal"}

// String returns the level name used as the record's severity text.
func (l Level) String() string {
	if l >= LevelTrace && int(l) < len(levelNames) {
		return levelNames[l]
	}

	return "Level(" + strconv.Itoa(int(l)) + ")"
}

// Severity maps the level through the fixed severity table. Unmapped levels become SeverityInfo.
func (l Level) Severity() Severity {
	severity, ok := severityByLevel[l]
	if !ok {
		return SeverityInfo
	}

	return severity
}

var severityByLevel = map[Level]Severity{
	LevelFatal: SeverityFatal,
	LevelError: SeverityError,
	LevelWarn:  SeverityWarn,
	LevelInfo:  SeverityInfo,
	LevelDebug: SeverityDebug,
	LevelTrace: SeverityTrace,
}

// Severity is the ordered OTLP severity number. The zero value is SeverityUnspecified.
type Severity int32

// Severity numbers as defined by the OTLP logs data model.
const (
	SeverityUnspecified Severity = iota
	SeverityTrace
	SeverityTrace2
	SeverityTrace3
	SeverityTrace4
	SeverityDebug
	SeverityDebug2
	SeverityDebug3
	SeverityDebug4
	SeverityInfo
	SeverityInfo2
	SeverityInfo3
	SeverityInfo4
	SeverityWarn
	SeverityWarn2
	SeverityWarn3
	SeverityWarn4
	SeverityError
	SeverityError2
	SeverityError3
	SeverityError4
	SeverityFatal
	SeverityFatal2
	SeverityFatal3
	SeverityFatal4
)

var severityNames = [...]string{
	"UNSPECIFIED",
	"TRACE", "TRACE2", "TRACE3", "TRACE4",
	"DEBUG", "DEBUG2", "DEBUG3", "DEBUG4",
	"INFO", "INFO2", "INFO3", "INFO4",
	"WARN", "WARN2", "WARN3", "WARN4",
	"ERROR", "ERROR2", "ERROR3", "ERROR4",
	"FATAL", "FATAL2", "FATAL3", "FATAL4",
}

func (s Severity) String() string {
	if s >= SeverityUnspecified && int(s) < len(severityNames) {
		return severityNames[s]
	}

	return "SEVERITY(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is one of the defined severity numbers.
func (s Severity) Valid() bool {
	return s >= SeverityUnspecified && s <= SeverityFatal4
}
