package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level orders severities. A logger drops entries below its minimum level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (lv Level) String() string {
	if lv < LevelDebug || lv > LevelFatal {
		return "INFO"
	}
	return levelNames[lv]
}

// ParseLevel reads a LOG_LEVEL value. Unknown names mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var levelColors = map[Level][]color.Attribute{
	LevelDebug: {color.FgCyan},
	LevelInfo:  {color.FgGreen},
	LevelWarn:  {color.FgYellow},
	LevelError: {color.FgRed},
	LevelFatal: {color.FgRed, color.Bold},
}

// Entry is one line of the JSON log file.
type Entry struct {
	Time     string `json:"time"`
	Level    string `json:"level"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Caller   string `json:"caller,omitempty"`
}

type Options struct {
	Level Level
	// Dir holds one JSON file per day. Empty disables the file.
	Dir   string
	Color bool
}

type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	min   Level
	color bool
}

// New logs to stdout and, when opts.Dir is set, to Dir/mobooking-<date>.log.
func New(opts Options) (*Logger, error) {
	l := &Logger{out: os.Stdout, min: opts.Level, color: opts.Color}
	if opts.Dir == "" {
		return l, nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	name := filepath.Join(opts.Dir, fmt.Sprintf("mobooking-%s.log", time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	return l, nil
}

// NewWriterLogger logs every level as plain lines to w and keeps no file.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w, min: LevelDebug}
}

// write must be called directly from an exported method so the caller frame is right.
func (l *Logger) write(level Level, category, message string) {
	if l == nil || level < l.min {
		return
	}

	e := Entry{
		Time:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:    level.String(),
		Category: strings.ToUpper(category),
		Message:  message,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.out, l.terminalLine(level, e))
	if l.file != nil {
		if b, err := json.Marshal(e); err == nil {
			l.file.Write(append(b, '\n'))
		}
	}
}

func (l *Logger) terminalLine(level Level, e Entry) string {
	clock := e.Time[11:19]
	caller := ""
	if e.Caller != "" {
		caller = " (" + e.Caller + ")"
	}
	if !l.color {
		return fmt.Sprintf("%s %-5s [%-10s] %s%s", clock, e.Level, e.Category, e.Message, caller)
	}

	attrs := levelColors[level]
	bold := append([]color.Attribute{color.Bold}, attrs...)
	return fmt.Sprintf("%s %s %s %s%s",
		color.New(color.FgBlue).Sprint(clock),
		color.New(attrs...).Sprintf("%-5s", e.Level),
		color.New(bold...).Sprintf("[%-10s]", e.Category),
		e.Message,
		color.New(color.FgMagenta).Sprint(caller),
	)
}

func (l *Logger) Debug(category, message string) { l.write(LevelDebug, category, message) }
func (l *Logger) Info(category, message string)  { l.write(LevelInfo, category, message) }
func (l *Logger) Warn(category, message string)  { l.write(LevelWarn, category, message) }
func (l *Logger) Error(category, message string) { l.write(LevelError, category, message) }

// Fatal logs, closes the file and exits with status 1.
func (l *Logger) Fatal(category, message string) {
	l.write(LevelFatal, category, message)
	l.Close()
	os.Exit(1)
}

func (l *Logger) LogBooking(action, bookingID, message string) {
	l.write(LevelInfo, "BOOKING", fmt.Sprintf("[%s] %s - %s", action, bookingID, message))
}

// LogCoverage is debug level; every quote and submission does a lookup.
func (l *Logger) LogCoverage(ownerID, zip, message string) {
	l.write(LevelDebug, "COVERAGE", fmt.Sprintf("[%s] %s - %s", ownerID, zip, message))
}

func (l *Logger) LogDiscount(action, code, message string) {
	l.write(LevelInfo, "DISCOUNT", fmt.Sprintf("[%s] %s - %s", action, code, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write(LevelInfo, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.write(LevelInfo, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.write(LevelInfo, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.write(LevelWarn, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
