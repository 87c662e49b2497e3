package fractal

import (
	"fmt"
	"io"
	"log"
	"os"
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

// debugSwitch is shared by a logger and every logger Named from it.
type debugSwitch struct {
	mu      sync.Mutex
	enabled bool
}

// DefaultLogger writes DEBUG and INFO to out and WARN and ERROR to err.
type DefaultLogger struct {
	debug  *debugSwitch
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewDefaultLoggerTo(os.Stdout, os.Stderr, prefix, debug)
}

func NewDefaultLoggerTo(out, errOut io.Writer, prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  &debugSwitch{enabled: debug},
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

// Named returns a logger writing to the same outputs under prefix/name.
// SetDebug on either affects both.
func (l *DefaultLogger) Named(name string) *DefaultLogger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + "/" + name
	} else {
		child.prefix = name
	}
	return &child
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.debug.mu.Lock()
	defer l.debug.mu.Unlock()
	return l.debug.enabled
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.debug.mu.Lock()
	l.debug.enabled = enabled
	l.debug.mu.Unlock()
}

func (l *DefaultLogger) line(level string, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		return level + ": " + msg
	}
	return "[" + l.prefix + "] " + level + ": " + msg
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.DebugEnabled() {
		l.out.Print(l.line("DEBUG", format, args...))
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.line("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.line("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.line("ERROR", format, args...))
}

// Named scopes any Logger under name. DefaultLoggers keep their own
// formatting; other loggers get "name: " in front of every message.
func Named(l Logger, name string) Logger {
	switch typed := l.(type) {
	case nil:
		return NewNopLogger()
	case *DefaultLogger:
		return typed.Named(name)
	case *nopLogger:
		return typed
	}
	return &namedLogger{Logger: l, name: name}
}

type namedLogger struct {
	Logger
	name string
}

func (n *namedLogger) Debugf(format string, args ...any) { n.Logger.Debugf(n.name+": "+format, args...) }
func (n *namedLogger) Infof(format string, args ...any)  { n.Logger.Infof(n.name+": "+format, args...) }
func (n *namedLogger) Warnf(format string, args ...any)  { n.Logger.Warnf(n.name+": "+format, args...) }
func (n *namedLogger) Errorf(format string, args ...any) { n.Logger.Errorf(n.name+": "+format, args...) }

// LoggingModule installs a DefaultLogger as a resource.
type LoggingModule struct {
	Prefix string
	Debug  bool
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewDefaultLogger(m.Prefix, m.Debug))
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// Logger returns the first Logger resource, or a no-op logger. Never nil.
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
