package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new logger instance
func NewLogger(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "file":
		rotated, err := rotatedWriter(cfg)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(rotated)
	case "both":
		rotated, err := rotatedWriter(cfg)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	default:
		logger.SetOutput(os.Stdout)
	}

	return logger, nil
}

// rotatedWriter opens the rotating log file from the config.
func rotatedWriter(cfg *config.LoggingConfig) (io.Writer, error) {
	logDir := filepath.Dir(cfg.File.Path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// Use lumberjack for log rotation
	return &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSize, // megabytes
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAge, // days
		Compress:   true,
	}, nil
}

// WithChat adds the common per-trigger fields to a logger.
func WithChat(logger *logrus.Logger, chatID, lotID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"lot_id":  lotID,
	})
}

// Tail returns the last n lines of the active log file. Rotated
// backups are not consulted; the admin console only needs a recent
// snapshot.
func Tail(path string, n int) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file logging is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}
