package logger

import (
	"context"
	"os"

	"cloud.google.com/go/logging"
)

// CloudLogger sends structured entries to Google Cloud Logging
type CloudLogger struct {
	client *logging.Client
	logger *logging.Logger
}

// NewCloudLogger builds a CloudLogger for the given project, the logID names the log stream
func NewCloudLogger(ctx context.Context, projectID string, logID string) (*CloudLogger, error) {
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &CloudLogger{
		client: client,
		logger: client.Logger(logID),
	}, nil
}

// Error is for throwing a log message with status Error
func (l *CloudLogger) Error(message string, err error) {
	payload := map[string]interface{}{"message": message}
	if err != nil {
		payload["error"] = err.Error()
	}

	l.logger.Log(logging.Entry{Severity: logging.Error, Payload: payload})
}

// Info is for throwing a log message with status Info
func (l *CloudLogger) Info(message string) {
	l.logger.Log(logging.Entry{Severity: logging.Info, Payload: message})
}

// Debug is for throwing a log message with status Debug
func (l *CloudLogger) Debug(message string) {
	l.logger.Log(logging.Entry{Severity: logging.Debug, Payload: message})
}

// Fatal logs synchronously and exits
func (l *CloudLogger) Fatal(err error) {
	_ = l.logger.LogSync(context.Background(), logging.Entry{Severity: logging.Critical, Payload: err.Error()})
	_ = l.client.Close()
	os.Exit(1)
}

// Close flushes buffered entries
func (l *CloudLogger) Close() error {
	return l.client.Close()
}
