// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a level name (debug, info, warn, error) to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", name)
	}
}

type Logger struct {
	zl       zerolog.Logger
	file     *os.File
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.RWMutex
)

// frames between the caller and zerolog's Msg: Infof -> output -> Msg
const callerSkip = 2

func newLogger(w io.Writer, level LogLevel) *Logger {
	zl := zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + callerSkip).
		Logger()
	return &Logger{zl: zl, minLevel: level}
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006/01/02 15:04:05"}
}

// ensureInitialized creates a console logger if Init was never called
func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = newLogger(consoleWriter(), DEBUG)
		}
	})
}

// Init initializes the logger with optional file and console output.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
// The file receives JSON lines, the console a colourised human format.
func Init(filename string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	level := DEBUG
	if defaultLogger != nil {
		level = defaultLogger.minLevel
		if defaultLogger.file != nil {
			defaultLogger.file.Close()
		}
	}

	var writers []io.Writer
	var file *os.File
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}
	if console {
		writers = append(writers, consoleWriter())
	}
	if len(writers) == 0 {
		return fmt.Errorf("no output destination specified")
	}

	l := newLogger(zerolog.MultiLevelWriter(writers...), level)
	l.file = file
	defaultLogger = l
	return nil
}

// SetOutput redirects all log output to w. Intended for tests.
func SetOutput(w io.Writer) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = newLogger(w, defaultLogger.minLevel)
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR)
// Messages below this level will not be logged
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = &Logger{
		zl:       defaultLogger.zl.Level(level.zerolog()),
		file:     defaultLogger.file,
		minLevel: level,
	}
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger = newLogger(consoleWriter(), defaultLogger.minLevel)
	}
}

func output(level LogLevel, msg string) {
	ensureInitialized()
	// Loggers are never mutated once published, replacing them swaps the pointer.
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()

	if level < l.minLevel {
		return
	}
	switch level {
	case DEBUG:
		l.zl.Debug().Msg(msg)
	case INFO:
		l.zl.Info().Msg(msg)
	case WARN:
		l.zl.Warn().Msg(msg)
	default:
		l.zl.Error().Msg(msg)
	}
}

// Debug logs a debug message
func Debug(v ...interface{}) { output(DEBUG, fmt.Sprint(v...)) }

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) { output(DEBUG, fmt.Sprintf(format, v...)) }

// Info logs an info message
func Info(v ...interface{}) { output(INFO, fmt.Sprint(v...)) }

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) { output(INFO, fmt.Sprintf(format, v...)) }

// Warn logs a warning message
func Warn(v ...interface{}) { output(WARN, fmt.Sprint(v...)) }

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) { output(WARN, fmt.Sprintf(format, v...)) }

// Error logs an error message
func Error(v ...interface{}) { output(ERROR, fmt.Sprint(v...)) }

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) { output(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	output(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	output(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
