package cloth

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Level is the lowest severity a DefaultLogger writes. The zero Level is
// LevelInfo.
type Level int

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

var ErrInvalidLevel = errors.New("unknown log level")

func (lv Level) String() string {
	switch lv {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", int(lv))
}

// ParseLevel accepts the level names in any case.
func ParseLevel(s string) (Level, error) {
	for lv := LevelDebug; lv <= LevelError; lv++ {
		if strings.EqualFold(lv.String(), s) {
			return lv, nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// DefaultLogger writes debug and info lines to one writer and warnings and
// errors to another. Lines carry the session prefix and, once a fabric is
// running, the simulation frame they were written in.
type DefaultLogger struct {
	mu     sync.Mutex
	level  Level
	prefix string
	frame  int
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, level Level) *DefaultLogger {
	return NewDefaultLoggerTo(os.Stdout, os.Stderr, prefix, level)
}

func NewDefaultLoggerTo(out, errOut io.Writer, prefix string, level Level) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		level:  level,
		prefix: prefix,
		frame:  -1,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.Level() <= LevelDebug
}

// SetDebug switches between debug and info level.
func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.SetLevel(LevelDebug)
	} else {
		l.SetLevel(LevelInfo)
	}
}

// SetFrame tags the following lines with a simulation frame. A negative frame
// removes the tag.
func (l *DefaultLogger) SetFrame(frame int) {
	l.mu.Lock()
	l.frame = frame
	l.mu.Unlock()
}

func (l *DefaultLogger) logf(level Level, format string, args ...any) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}
	var b strings.Builder
	if l.prefix != "" {
		fmt.Fprintf(&b, "[%s] ", l.prefix)
	}
	b.WriteString(level.String())
	if l.frame >= 0 {
		fmt.Fprintf(&b, " frame=%d", l.frame)
	}
	b.WriteString(": ")
	fmt.Fprintf(&b, format, args...)
	l.mu.Unlock()

	if level >= LevelWarn {
		l.err.Print(b.String())
	} else {
		l.out.Print(b.String())
	}
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

// LoggingModule installs a default logger as a resource. Install it before
// the modules that log.
type LoggingModule struct {
	Prefix string
	Level  Level
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	logger := NewDefaultLogger(m.Prefix, m.Level)
	app.addResources(logger)
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// Logger returns the first Logger resource if present, otherwise a no-op logger.
// Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}

// frameTagger is implemented by loggers that can tag lines with the
// simulation frame.
type frameTagger interface {
	SetFrame(frame int)
}

func tagFrame(l Logger, frame int) {
	if ft, ok := l.(frameTagger); ok {
		ft.SetFrame(frame)
	}
}
