package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default threshold multipliers. The accept band is deliberately tighter
// than the warn band; both scale with observed write throughput.
const (
	DefaultAcceptMultiplier = 5
	DefaultWarnMultiplier   = 15
)

// DatabaseConfig holds connection parameters for a MySQL server
type DatabaseConfig struct {
	Host     string `mapstructure:"host"     yaml:"host"`
	Port     int    `mapstructure:"port"     yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// DSN builds a MySQL driver connection string
func (dc DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		dc.Username, dc.Password, dc.Host, dc.Port, dc.Database)
}

// AdminDSN builds a connection string without a schema, for database-level
// administration (DROP DATABASE / CREATE DATABASE on the validation copy).
func (dc DatabaseConfig) AdminDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/?parseTime=true",
		dc.Username, dc.Password, dc.Host, dc.Port)
}

// BackupConfig controls where and how backup sets are produced
type BackupConfig struct {
	Directory   string `mapstructure:"directory"   yaml:"directory"`
	Prefix      string `mapstructure:"prefix"      yaml:"prefix"`
	Compression string `mapstructure:"compression" yaml:"compression"` // gzip, zstd, lz4, none
	Level       int    `mapstructure:"level"       yaml:"level"`

	// Optional best-effort archive sources. Empty or missing paths are
	// skipped silently; a present path that fails to archive is logged.
	ConfDir          string `mapstructure:"conf_dir"           yaml:"conf_dir"`
	DataDir          string `mapstructure:"data_dir"           yaml:"data_dir"`
	DataDirFallback  string `mapstructure:"data_dir_fallback"  yaml:"data_dir_fallback"`
	LicenseFile      string `mapstructure:"license_file"       yaml:"license_file"`
	UIBrandingDir    string `mapstructure:"ui_branding_dir"    yaml:"ui_branding_dir"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// VerifyConfig controls the consistency and drift checks
type VerifyConfig struct {
	ValidationDatabase string   `mapstructure:"validation_database" yaml:"validation_database"`
	StructuralTables   []string `mapstructure:"structural_tables"   yaml:"structural_tables"`
	TimeSeriesTable    string   `mapstructure:"time_series_table"   yaml:"time_series_table"`
	TimeSeriesColumn   string   `mapstructure:"time_series_column"  yaml:"time_series_column"`

	// TimezoneOffsetMinutes is applied when the backup token is reparsed
	// into the drift cutoff instant.
	TimezoneOffsetMinutes int `mapstructure:"timezone_offset_minutes" yaml:"timezone_offset_minutes"`
	AcceptMultiplier      int `mapstructure:"accept_multiplier"       yaml:"accept_multiplier"`
	WarnMultiplier        int `mapstructure:"warn_multiplier"         yaml:"warn_multiplier"`
}

// RetryConfig bounds the orchestrator's attempt loop
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"  yaml:"max_attempts"`
	BaseInterval time.Duration `mapstructure:"base_interval" yaml:"base_interval"`
}

// EmailConfig for exhaustion alert delivery
type EmailConfig struct {
	SMTPHost string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string   `mapstructure:"username"  yaml:"username"`
	Password string   `mapstructure:"password"  yaml:"password"`
	From     string   `mapstructure:"from"      yaml:"from"`
	To       []string `mapstructure:"to"        yaml:"to"`
	Subject  string   `mapstructure:"subject"   yaml:"subject"`
}

// FileAlertConfig appends alerts to a local file
type FileAlertConfig struct {
	Path   string `mapstructure:"path"   yaml:"path"`
	Format string `mapstructure:"format" yaml:"format"` // json, text
}

// NotificationConfig holds alert delivery settings
type NotificationConfig struct {
	Enabled bool             `mapstructure:"enabled" yaml:"enabled"`
	Email   *EmailConfig     `mapstructure:"email"   yaml:"email,omitempty"`
	File    *FileAlertConfig `mapstructure:"file"    yaml:"file,omitempty"`
}

// LoggingConfig controls the audit log surface
type LoggingConfig struct {
	Level   string `mapstructure:"level"    yaml:"level"`
	Format  string `mapstructure:"format"   yaml:"format"`
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// Config is the complete configuration for one verification run. It is an
// explicit value handed to the orchestrator at construction; nothing in the
// orchestration path reads ambient global state.
type Config struct {
	Live         DatabaseConfig     `mapstructure:"live"         yaml:"live"`
	Backup       BackupConfig       `mapstructure:"backup"       yaml:"backup"`
	Verify       VerifyConfig       `mapstructure:"verify"       yaml:"verify"`
	Retry        RetryConfig        `mapstructure:"retry"        yaml:"retry"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"      yaml:"logging"`
	LockFile     string             `mapstructure:"lock_file"    yaml:"lock_file"`
}

// SetDefaults applies default values for unset fields
func (c *Config) SetDefaults() {
	if c.Live.Host == "" {
		c.Live.Host = "localhost"
	}
	if c.Live.Port == 0 {
		c.Live.Port = 3306
	}
	if c.Backup.Directory == "" {
		c.Backup.Directory = "/var/backups/mysql-backup-verify"
	}
	if c.Backup.Prefix == "" {
		c.Backup.Prefix = "tb"
	}
	if c.Backup.Compression == "" {
		c.Backup.Compression = "gzip"
	}
	if c.Backup.Level == 0 {
		c.Backup.Level = 6
	}
	if c.Backup.OperationTimeout == 0 {
		c.Backup.OperationTimeout = 30 * time.Minute
	}
	if c.Verify.ValidationDatabase == "" {
		c.Verify.ValidationDatabase = c.Live.Database + "_validation"
	}
	if len(c.Verify.StructuralTables) == 0 {
		c.Verify.StructuralTables = []string{"device", "dashboard", "tenant", "customer", "rule_chain"}
	}
	if c.Verify.TimeSeriesTable == "" {
		c.Verify.TimeSeriesTable = "ts_kv"
	}
	if c.Verify.TimeSeriesColumn == "" {
		c.Verify.TimeSeriesColumn = "ts"
	}
	if c.Verify.AcceptMultiplier == 0 {
		c.Verify.AcceptMultiplier = DefaultAcceptMultiplier
	}
	if c.Verify.WarnMultiplier == 0 {
		c.Verify.WarnMultiplier = DefaultWarnMultiplier
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseInterval == 0 {
		c.Retry.BaseInterval = 60 * time.Second
	}
	if c.LockFile == "" {
		c.LockFile = "/var/run/mysql-backup-verify.lock"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "normal"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// LoadFromEnvironment overrides sensitive fields from environment variables
func (c *Config) LoadFromEnvironment() {
	if v := os.Getenv("MYSQL_BACKUP_VERIFY_DB_PASSWORD"); v != "" {
		c.Live.Password = v
	}
	if v := os.Getenv("MYSQL_BACKUP_VERIFY_SMTP_PASSWORD"); v != "" && c.Notification.Email != nil {
		c.Notification.Email.Password = v
	}
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.Live.Database == "" {
		return fmt.Errorf("live database name is required")
	}
	if c.Live.Username == "" {
		return fmt.Errorf("live database username is required")
	}
	if c.Verify.ValidationDatabase == c.Live.Database {
		return fmt.Errorf("validation database must be distinct from the live database")
	}
	switch c.Backup.Compression {
	case "gzip", "zstd", "lz4", "none":
	default:
		return fmt.Errorf("unsupported compression algorithm: %s", c.Backup.Compression)
	}
	if c.Verify.AcceptMultiplier < 0 || c.Verify.WarnMultiplier < 0 {
		return fmt.Errorf("threshold multipliers must be non-negative")
	}
	if c.Verify.AcceptMultiplier > c.Verify.WarnMultiplier {
		return fmt.Errorf("accept multiplier (%d) must not exceed warn multiplier (%d)",
			c.Verify.AcceptMultiplier, c.Verify.WarnMultiplier)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Retry.BaseInterval < 0 {
		return fmt.Errorf("retry base_interval must not be negative")
	}
	for _, table := range c.Verify.StructuralTables {
		if strings.TrimSpace(table) == "" {
			return fmt.Errorf("structural table names must not be empty")
		}
	}
	return nil
}

// Load reads the configuration from an optional YAML file plus environment
// variables and applies defaults. Validation is the caller's job, after any
// flag overrides have been layered on top.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MYSQL_BACKUP_VERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SetDefaults()
	config.LoadFromEnvironment()

	return config, nil
}
