package logsink

import (
	"fmt"
	"time"
)

// Severity is the level attached to an Event.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

var severityNames = map[Severity]string{
	Info:    "INFO",
	Warning: "WARNING",
	Error:   "ERROR",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Event is one timestamped log message.
type Event struct {
	Time     time.Time
	Message  string
	Severity Severity
}

// Sink receives log messages. Append must be safe for concurrent use and
// must not block on the caller for long.
type Sink interface {
	Append(msg string, sev Severity)
}

// Discard drops every message.
var Discard Sink = discard{}

type discard struct{}

func (discard) Append(string, Severity) {}

// Debugger is implemented by sinks that also accept debug output.
type Debugger interface {
	Debugf(format string, args ...any)
}

type multi []Sink

// Multi returns a Sink that appends each message to all of sinks.
func Multi(sinks ...Sink) Sink {
	m := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Append(msg string, sev Severity) {
	for _, s := range m {
		s.Append(msg, sev)
	}
}

func (m multi) Debugf(format string, args ...any) {
	for _, s := range m {
		if d, ok := s.(Debugger); ok {
			d.Debugf(format, args...)
		}
	}
}

// Logger adds printf-style helpers on top of a Sink.
type Logger struct {
	Sink Sink
}

// New returns a Logger writing to sink. A nil sink discards.
func New(sink Sink) Logger {
	if sink == nil {
		sink = Discard
	}
	return Logger{Sink: sink}
}

func (l Logger) Infof(format string, args ...any) {
	l.append(Info, format, args...)
}

func (l Logger) Warnf(format string, args ...any) {
	l.append(Warning, format, args...)
}

func (l Logger) Errorf(format string, args ...any) {
	l.append(Error, format, args...)
}

// Debugf is a no-op unless the sink implements Debugger.
func (l Logger) Debugf(format string, args ...any) {
	if d, ok := l.Sink.(Debugger); ok {
		d.Debugf(format, args...)
	}
}

func (l Logger) append(sev Severity, format string, args ...any) {
	if l.Sink == nil {
		return
	}
	l.Sink.Append(fmt.Sprintf(format, args...), sev)
}
