package logger

import (
	"time"

	"github.com/harrison/snipcheck/internal/models"
)

// RunLogger is the full set of events a run reports.
type RunLogger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogDebug(message string)
	LogRunStart(doc *models.Document, workers int)
	LogBlockStart(block models.CodeBlock, command string)
	LogBlockResult(result models.VerificationResult)
	LogSummary(summary models.Summary, duration time.Duration)
}

// MultiLogger fans every event out to several loggers.
type MultiLogger []RunLogger

// NewMultiLogger drops nil loggers.
func NewMultiLogger(loggers ...RunLogger) MultiLogger {
	var m MultiLogger
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m MultiLogger) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m MultiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m MultiLogger) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m MultiLogger) LogRunStart(doc *models.Document, workers int) {
	for _, l := range m {
		l.LogRunStart(doc, workers)
	}
}

func (m MultiLogger) LogBlockStart(block models.CodeBlock, command string) {
	for _, l := range m {
		l.LogBlockStart(block, command)
	}
}

func (m MultiLogger) LogBlockResult(result models.VerificationResult) {
	for _, l := range m {
		l.LogBlockResult(result)
	}
}

func (m MultiLogger) LogSummary(summary models.Summary, duration time.Duration) {
	for _, l := range m {
		l.LogSummary(summary, duration)
	}
}
