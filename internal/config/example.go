package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GenerateExampleConfig returns a fully populated configuration suitable as a
// starting point for a new deployment.
func GenerateExampleConfig() *Config {
	config := &Config{
		Live: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			Username: "backup",
			Password: "",
			Database: "thingsboard",
		},
		Backup: BackupConfig{
			Directory:        "/var/backups/mysql-backup-verify",
			Prefix:           "tb",
			Compression:      "gzip",
			Level:            6,
			ConfDir:          "/etc/thingsboard/conf",
			DataDir:          "/usr/share/thingsboard/data",
			DataDirFallback:  "/var/lib/thingsboard/data",
			LicenseFile:      "/var/lib/thingsboard/license.data",
			UIBrandingDir:    "/var/lib/thingsboard/ui-branding",
			OperationTimeout: 30 * time.Minute,
		},
		Verify: VerifyConfig{
			ValidationDatabase: "thingsboard_validation",
			StructuralTables:   []string{"device", "dashboard", "tenant", "customer", "rule_chain"},
			TimeSeriesTable:    "ts_kv",
			TimeSeriesColumn:   "ts",
			AcceptMultiplier:   DefaultAcceptMultiplier,
			WarnMultiplier:     DefaultWarnMultiplier,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseInterval: 60 * time.Second,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Email: &EmailConfig{
				SMTPHost: "smtp.example.com",
				SMTPPort: 587,
				From:     "backup@example.com",
				To:       []string{"ops@example.com"},
			},
			File: &FileAlertConfig{
				Path:   "/var/log/mysql-backup-verify/alerts.log",
				Format: "json",
			},
		},
		Logging: LoggingConfig{
			Level:   "normal",
			Format:  "text",
			LogFile: "/var/log/mysql-backup-verify/run.log",
		},
		LockFile: "/var/run/mysql-backup-verify.lock",
	}
	return config
}

// WriteExampleConfig marshals the example configuration to YAML at path
func WriteExampleConfig(path string) error {
	config := GenerateExampleConfig()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal example config to YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
