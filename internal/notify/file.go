package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/logging"
)

// FileChannel appends alerts to a local file, one record per alert. Useful
// on hosts without outbound SMTP where operators tail a spool file instead.
type FileChannel struct {
	logger *logging.Logger
	config config.FileAlertConfig
}

// NewFileChannel creates a file notification channel
func NewFileChannel(logger *logging.Logger, config config.FileAlertConfig) *FileChannel {
	return &FileChannel{
		logger: logger,
		config: config,
	}
}

// Send appends the alert to the configured file
func (fc *FileChannel) Send(ctx context.Context, alert Alert) error {
	if fc.config.Path == "" {
		return fmt.Errorf("alert file path not configured")
	}

	var record []byte
	switch fc.config.Format {
	case "json":
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		record = append(data, '\n')
	default:
		record = []byte(fmt.Sprintf("[%s] %s %s: %s: %s\n",
			alert.Timestamp.Format("2006-01-02 15:04:05"), alert.Severity, alert.ID, alert.Title, alert.Message))
	}

	file, err := os.OpenFile(fc.config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open alert file %s: %w", fc.config.Path, err)
	}
	defer file.Close()

	if _, err := file.Write(record); err != nil {
		return fmt.Errorf("failed to append alert: %w", err)
	}

	return nil
}

// GetType returns the channel type
func (fc *FileChannel) GetType() string {
	return "file"
}

// IsEnabled checks if the channel is configured
func (fc *FileChannel) IsEnabled() bool {
	return fc.config.Path != ""
}
