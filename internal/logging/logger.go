// Package logging provides named logrus loggers with a compact single-line
// format shared by every pdfrange component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	loggers = make(map[string]*Logger)
	level   = logrus.InfoLevel
	out     io.Writer = os.Stderr
)

// Logger is a logrus logger that prefixes each line with its name.
type Logger struct {
	logrus.Logger

	name  string
	color bool
}

// Format implements logrus.Formatter.
func (l *Logger) Format(e *logrus.Entry) ([]byte, error) {
	const timeFormat = "2006/01/02 15:04:05.000000"

	lvl := strings.ToUpper(e.Level.String())
	if l.color {
		lvl = colorize(e.Level, lvl)
	}
	str := fmt.Sprintf("%v %s[%d] <%v>: %v",
		e.Time.Format(timeFormat),
		l.name,
		os.Getpid(),
		lvl,
		e.Message)

	if len(e.Data) != 0 {
		str += fmt.Sprintf(" %v", e.Data)
	}
	return []byte(str + "\n"), nil
}

func colorize(lvl logrus.Level, s string) string {
	var code int
	switch lvl {
	case logrus.DebugLevel, logrus.TraceLevel:
		code = 37
	case logrus.WarnLevel:
		code = 33
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		code = 31
	default:
		code = 36
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newLogger(name string) *Logger {
	l := &Logger{name: name}
	l.Out = out
	l.Formatter = l
	l.Level = level
	l.Hooks = make(logrus.LevelHooks)
	l.color = isTerminal(out)
	return l
}

// GetLogger returns the logger registered under name, creating it on first use.
func GetLogger(name string) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if logger, ok := loggers[name]; ok {
		return logger
	}
	logger := newLogger(name)
	loggers[name] = logger
	return logger
}

// SetLevel sets the level of every existing and future logger.
func SetLevel(lvl logrus.Level) {
	mu.Lock()
	defer mu.Unlock()

	level = lvl
	for _, logger := range loggers {
		logger.SetLevel(lvl)
	}
}

// SetOutput redirects every existing and future logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	out = w
	for _, logger := range loggers {
		logger.SetOutput(w)
		logger.color = isTerminal(w)
	}
}

// SetOutFile appends log output to the named file.
func SetOutFile(name string) error {
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	SetOutput(file)
	return nil
}
