package logging

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel maps debug|info|warn|error to a Level, defaulting to info.
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

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|warn|error).
func InitFromEnv() {
	SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
}

func SetLevel(l Level) {
	current.Store(int32(l))
}

func enabled(l Level) bool {
	return Level(current.Load()) <= l
}

func Debugf(format string, args ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("WARN "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	log.Printf("ERROR "+format, args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
