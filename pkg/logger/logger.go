package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

type entry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

var (
	mu       sync.Mutex
	minLevel = INFO
	fileSink *os.File
)

func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

// EnableFileLogging mirrors console output into filePath as JSON lines.
func EnableFileLogging(filePath string) error {
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if fileSink != nil {
		fileSink.Close()
	}
	fileSink = f
	return nil
}

func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
}

func write(level Level, component, message string, fields map[string]any) {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return
	}

	now := time.Now().UTC()
	fmt.Fprintf(os.Stderr, "%s %-5s [%s] %s%s\n",
		now.Format("15:04:05.000"), levelNames[level], component, message, formatFields(fields))

	if fileSink != nil {
		e := entry{
			Level:     levelNames[level],
			Timestamp: now.Format(time.RFC3339Nano),
			Component: component,
			Message:   message,
			Fields:    fields,
		}
		if data, err := json.Marshal(e); err == nil {
			fileSink.Write(append(data, '\n'))
		}
	}
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(fmt.Sprintf("%v", fields[k]))
	}
	return b.String()
}

func Debug(component, message string, fields map[string]any) {
	write(DEBUG, component, message, fields)
}

func Info(component, message string, fields map[string]any) {
	write(INFO, component, message, fields)
}

func Warn(component, message string, fields map[string]any) {
	write(WARN, component, message, fields)
}

func Error(component, message string, fields map[string]any) {
	write(ERROR, component, message, fields)
}
