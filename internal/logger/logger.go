package logger

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger provides leveled logging with automatic redaction of session
// tokens and LINE user identifiers
type Logger struct {
	mu     sync.RWMutex
	level  LogLevel
	logger *log.Logger
	isDev  bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Initialize sets up the default logger instance
func Initialize(level LogLevel, isDev bool) {
	once.Do(func() {
		defaultLogger = &Logger{
			level:  level,
			logger: log.New(os.Stdout, "", log.LstdFlags),
			isDev:  isDev,
		}
	})
}

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	if defaultLogger == nil {
		Initialize(INFO, false)
	}
	return defaultLogger
}

// hashLineUserID creates a stable hash so user activity can be correlated
// in logs without exposing the raw LINE user ID
func hashLineUserID(userID interface{}) string {
	str := fmt.Sprintf("%v", userID)
	hash := sha256.Sum256([]byte(str))
	return fmt.Sprintf("line_%x", hash[:4])
}

// truncateToken truncates bearer tokens and other credentials
func truncateToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}

// redactValue redacts sensitive values based on the key name
func redactValue(key string, value interface{}) interface{} {
	keyLower := strings.ToLower(key)
	valueStr := fmt.Sprintf("%v", value)

	if strings.Contains(keyLower, "userid") || strings.Contains(keyLower, "user_id") {
		return hashLineUserID(value)
	}

	if strings.Contains(keyLower, "token") || strings.Contains(keyLower, "secret") ||
		strings.Contains(keyLower, "authorization") {
		return truncateToken(valueStr)
	}

	return value
}

// formatMessage formats a log message with key-value pairs
func (l *Logger) formatMessage(level, msg string, keysAndValues ...interface{}) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("[%s] %s", level, msg))

	if len(keysAndValues) > 0 {
		builder.WriteString(" {")
		for i := 0; i < len(keysAndValues); i += 2 {
			if i > 0 {
				builder.WriteString(",")
			}

			key := fmt.Sprintf("%v", keysAndValues[i])
			var value interface{}

			if i+1 < len(keysAndValues) {
				value = keysAndValues[i+1]
			} else {
				value = ""
			}

			// Apply redaction unless in dev mode with DEBUG level
			if !l.isDev || l.level > DEBUG {
				value = redactValue(key, value)
			}

			builder.WriteString(fmt.Sprintf(" %s=%v", key, value))
		}
		builder.WriteString(" }")
	}

	return builder.String()
}

func (l *Logger) shouldLog(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logger.Println(l.formatMessage("DEBUG", msg, keysAndValues...))
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	if l.shouldLog(INFO) {
		l.logger.Println(l.formatMessage("INFO", msg, keysAndValues...))
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	if l.shouldLog(WARN) {
		l.logger.Println(l.formatMessage("WARN", msg, keysAndValues...))
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logger.Println(l.formatMessage("ERROR", msg, keysAndValues...))
	}
}

// Package-level convenience functions

func Debug(msg string, keysAndValues ...interface{}) {
	GetLogger().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	GetLogger().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	GetLogger().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	GetLogger().Error(msg, keysAndValues...)
}

// ParseLevel converts a string to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}
