package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents a log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel Level = LevelInfo
	mu           sync.RWMutex
	logFile      *os.File
)

// SetLevel sets the global log level from a string.
// Valid values: "debug", "info", "warn", "error".
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(level) {
	case "debug":
		currentLevel = LevelDebug
	case "info":
		currentLevel = LevelInfo
	case "warn":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}
	log.Printf("[INFO] Log level set to: %s", strings.ToLower(level))
}

// EnableFileOutput mirrors all log output into a per-day file under dir.
// Returns the path of the active log file.
func EnableFileOutput(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	mu.Unlock()

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return path, nil
}

// Close releases the log file if file output was enabled.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		log.SetOutput(os.Stderr)
		logFile.Close()
		logFile = nil
	}
}

func getLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	if getLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	if getLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	if getLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
