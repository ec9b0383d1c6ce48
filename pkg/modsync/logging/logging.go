// Package logging provides component loggers with file rotation for modsync.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("install")
//	logger.Info("install started", "manifest", m.ID)
//
// Loggers obtained before Init discard everything.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a charmbracelet/log level.
type Level = log.Level

// Log levels from least to most severe.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses debug, info, warn (or warning) and error, ignoring case.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch s {
	case "debug", "info", "warn", "error":
		lvl, err := log.ParseLevel(s)
		if err == nil {
			return lvl, nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
}

// Formats accepted by Config.Format.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

func parseFormat(s string) (log.Formatter, error) {
	switch strings.ToLower(s) {
	case "", FormatText:
		return log.TextFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	case FormatLogfmt:
		return log.LogfmtFormatter, nil
	}
	return log.TextFormatter, fmt.Errorf("unknown log format %q (want text, json or logfmt)", s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Format of the log file: text (default), json or logfmt. The console
	// always uses text.
	Format string

	Rotation RotationConfig

	// Components maps component names to their own levels.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level.
	// Empty disables console output.
	ConsoleLevel string
}

// Logger writes to the log file and, when enabled, to stderr.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.emit(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.emit(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(LevelError, msg, args) }

// Enabled reports whether messages at lvl reach any output.
func (l *Logger) Enabled(lvl Level) bool {
	if l.file.GetLevel() <= lvl {
		return true
	}
	return l.console != nil && l.console.GetLevel() <= lvl
}

// Component returns the name the logger was created with.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) emit(lvl Level, msg string, args []interface{}) {
	l.file.Log(lvl, msg, args...)
	if l.console != nil {
		l.console.Log(lvl, msg, args...)
	}
}

// With returns a logger that adds the given key/value pairs to every line.
func (l *Logger) With(args ...interface{}) *Logger {
	c := &Logger{file: l.file.With(args...), component: l.component}
	if l.console != nil {
		c.console = l.console.With(args...)
	}
	return c
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{file: log.New(io.Discard)}
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	formatter   log.Formatter
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger

	consoleEnabled bool
	consoleLevel   Level
	console        io.Writer
}

var globalState = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
	console:    os.Stderr,
}

// Init (re)configures logging. Loggers handed out earlier are rebuilt so
// that later Get calls see the new configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}
	consoleEnabled := cfg.ConsoleLevel != ""
	consoleLevel := LevelInfo
	if consoleEnabled {
		if consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}
	formatter, err := parseFormat(cfg.Format)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if globalState.writer != nil {
		_ = globalState.writer.Close()
	}
	globalState.writer = writer
	globalState.formatter = formatter
	globalState.level = level
	globalState.components = components
	globalState.consoleEnabled = consoleEnabled
	globalState.consoleLevel = consoleLevel
	globalState.initialized = true

	for component := range globalState.loggers {
		globalState.loggers[component] = createLogger(component)
	}
	return nil
}

// Get returns the logger for component. A component level override takes
// precedence over the default level.
func Get(component string) *Logger {
	globalState.mu.RLock()
	logger, ok := globalState.loggers[component]
	globalState.mu.RUnlock()
	if ok {
		return logger
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()
	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}
	logger = createLogger(component)
	globalState.loggers[component] = logger
	return logger
}

// createLogger must be called with globalState.mu held.
func createLogger(component string) *Logger {
	level := globalState.level
	if override, ok := globalState.components[component]; ok {
		level = override
	}

	if !globalState.initialized {
		return &Logger{
			file:      log.NewWithOptions(io.Discard, log.Options{Level: level, Prefix: component}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(globalState.writer, log.Options{
			Level:           level,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
			Formatter:       globalState.formatter,
		}),
		component: component,
	}
	if globalState.consoleEnabled {
		logger.console = log.NewWithOptions(globalState.console, log.Options{
			Level:           globalState.consoleLevel,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return logger
}

// Close flushes and closes the log file. Loggers keep working afterwards
// but discard their output until the next Init.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if !globalState.initialized {
		return nil
	}

	var err error
	if globalState.writer != nil {
		if cerr := globalState.writer.Close(); cerr != nil {
			err = fmt.Errorf("closing log writer: %w", cerr)
		}
		globalState.writer = nil
	}
	globalState.initialized = false
	globalState.loggers = make(map[string]*Logger)
	globalState.components = make(map[string]Level)
	return err
}

// DefaultLogPath returns $XDG_STATE_HOME/modsync/modsync.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "modsync", "modsync.log")
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Format:   FormatText,
		Rotation: DefaultRotationConfig(),
	}
}
