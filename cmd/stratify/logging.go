package main

import (
	"fmt"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stratify-db/stratify/internal/config"
)

// auditLogger appends one line per migration action to the configured log
// file, with rotation. A nil receiver (no logFile configured) discards.
type auditLogger struct {
	out *lumberjack.Logger
}

func newAuditLogger(cfg *config.Config) *auditLogger {
	if cfg.LogFile == "" {
		return nil
	}
	return &auditLogger{out: &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}}
}

func (l *auditLogger) log(format string, args ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(l.out, "[%s] %s\n", timestamp, msg)
}

func (l *auditLogger) close() {
	if l != nil {
		_ = l.out.Close()
	}
}
