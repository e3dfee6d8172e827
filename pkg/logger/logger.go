package logger

import (
	"fmt"
	"log"
)

// Interface is the interface all loggers have to implement
type Interface interface {
	Error(message string, err error)
	Info(message string)
	Debug(message string)
	Fatal(err error)
}

// Logger writes to the standard logger, it is used for development and tests
type Logger struct {
	// Service is prepended to every line if set
	Service string
	// Quiet drops debug messages
	Quiet bool
}

// Error is for throwing a log message with status Error
func (l Logger) Error(message string, err error) {
	log.Printf("[ERROR] %s%s: %v\n", l.prefix(), message, err)
}

// Info is for throwing a log message with status Info
func (l Logger) Info(message string) {
	log.Printf("[INFO] %s%s\n", l.prefix(), message)
}

// Debug is for throwing a log message with status Debug
func (l Logger) Debug(message string) {
	if l.Quiet {
		return
	}

	log.Printf("[DEBUG] %s%s\n", l.prefix(), message)
}

// Fatal is for throwing a log message with status Fatal
func (l Logger) Fatal(err error) {
	log.Fatalf("[FATAL] %s%v\n", l.prefix(), err)
}

func (l Logger) prefix() string {
	if l.Service == "" {
		return ""
	}

	return fmt.Sprintf("(%s) ", l.Service)
}
