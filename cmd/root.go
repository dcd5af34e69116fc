package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mysql-backup-verify/internal/application"
	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/logging"
)

var cfgFile string

// CLI flag variables
var (
	// Live database flags
	dbHost     string
	dbPort     int
	dbUsername string
	dbPassword string
	dbName     string

	// Backup flags
	backupDir   string
	prefix      string
	compression string

	// Retry flags
	maxAttempts  int
	baseInterval time.Duration

	// Verification flags
	acceptMultiplier int
	warnMultiplier   int
	tzOffsetMinutes  int

	// Notification flags
	noNotify  bool
	alertFile string

	// Operation flags
	lockFile string
	verbose  bool
	quiet    bool
	logFile  string
	noColor  bool
)

// exitCode is set by the run and consumed by Execute
var exitCode int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mysql-backup-verify",
	Short: "Produce a MySQL backup and prove it restores before keeping it",
	Long: `mysql-backup-verify creates a logical backup of a live MySQL database,
restores it into a scratch validation database, and only keeps the backup
after the restored copy passes a consistency check and a drift judgement
calibrated to the live write load.

A backup that fails any check is deleted in full and the cycle is retried
with growing pauses. If every attempt fails, operators are alerted and the
process exits non-zero so the scheduler surfaces the failure.

Examples:
  # Verify with a configuration file
  mysql-backup-verify --config /etc/mysql-backup-verify/config.yaml

  # Verify with connection flags only
  mysql-backup-verify --db-host localhost --db-user backup --db-name thingsboard

  # Generate a starter configuration
  mysql-backup-verify config --output /etc/mysql-backup-verify/config.yaml`,
	SilenceUsage: true,
	RunE:         runVerification,
}

// Execute runs the root command and exits with the run's code. This is
// called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(application.ExitError)
	}
	os.Exit(exitCode)
}

func init() {
	// Configuration file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	// Live database flags
	rootCmd.Flags().StringVar(&dbHost, "db-host", "", "live database host")
	rootCmd.Flags().IntVar(&dbPort, "db-port", 3306, "live database port")
	rootCmd.Flags().StringVar(&dbUsername, "db-user", "", "live database username")
	rootCmd.Flags().StringVar(&dbPassword, "db-password", "", "live database password (prefer MYSQL_BACKUP_VERIFY_DB_PASSWORD)")
	rootCmd.Flags().StringVar(&dbName, "db-name", "", "live database name")

	// Backup flags
	rootCmd.Flags().StringVar(&backupDir, "backup-dir", "", "directory backup sets are written to")
	rootCmd.Flags().StringVar(&prefix, "prefix", "", "artifact name prefix")
	rootCmd.Flags().StringVar(&compression, "compression", "", "dump compression (gzip, zstd, lz4, none)")

	// Retry flags
	rootCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum verification attempts per run")
	rootCmd.Flags().DurationVar(&baseInterval, "base-interval", 0, "base pause between attempts, grows linearly")

	// Verification flags
	rootCmd.Flags().IntVar(&acceptMultiplier, "accept-multiplier", 0, "drift accept ceiling as a multiple of expected rows")
	rootCmd.Flags().IntVar(&warnMultiplier, "warn-multiplier", 0, "drift warn ceiling as a multiple of expected rows")
	rootCmd.Flags().IntVar(&tzOffsetMinutes, "tz-offset-minutes", 0, "fixed timezone offset applied when deriving the drift cutoff")

	// Notification flags
	rootCmd.Flags().BoolVar(&noNotify, "no-notify", false, "suppress exhaustion alerts")
	rootCmd.Flags().StringVar(&alertFile, "alert-file", "", "append exhaustion alerts to this file as JSON")

	// Operation flags
	rootCmd.Flags().StringVar(&lockFile, "lock-file", "", "run lock path")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "append structured logs to this file")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable color output")
}

// runVerification is the main execution function for the CLI
func runVerification(cmd *cobra.Command, args []string) error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app := application.New(cfg, logger)
	result, code := app.Run()
	exitCode = code

	printRunSummary(result, code)
	return nil
}

// buildConfig loads the configuration file and applies flag overrides
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("db-host") {
		cfg.Live.Host = dbHost
	}
	if cmd.Flags().Changed("db-port") {
		cfg.Live.Port = dbPort
	}
	if cmd.Flags().Changed("db-user") {
		cfg.Live.Username = dbUsername
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Live.Password = dbPassword
	}
	if cmd.Flags().Changed("db-name") {
		cfg.Live.Database = dbName
	}
	if cmd.Flags().Changed("backup-dir") {
		cfg.Backup.Directory = backupDir
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Backup.Prefix = prefix
	}
	if cmd.Flags().Changed("compression") {
		cfg.Backup.Compression = compression
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.Retry.MaxAttempts = maxAttempts
	}
	if cmd.Flags().Changed("base-interval") {
		cfg.Retry.BaseInterval = baseInterval
	}
	if cmd.Flags().Changed("accept-multiplier") {
		cfg.Verify.AcceptMultiplier = acceptMultiplier
	}
	if cmd.Flags().Changed("warn-multiplier") {
		cfg.Verify.WarnMultiplier = warnMultiplier
	}
	if cmd.Flags().Changed("tz-offset-minutes") {
		cfg.Verify.TimezoneOffsetMinutes = tzOffsetMinutes
	}
	if cmd.Flags().Changed("lock-file") {
		cfg.LockFile = lockFile
	}
	if noNotify {
		cfg.Notification.Enabled = false
	}
	if cmd.Flags().Changed("alert-file") {
		cfg.Notification.Enabled = true
		cfg.Notification.File = &config.FileAlertConfig{Path: alertFile, Format: "json"}
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Logging.LogFile = logFile
	}

	if verbose {
		cfg.Logging.Level = string(logging.LogLevelVerbose)
	}
	if quiet {
		cfg.Logging.Level = string(logging.LogLevelQuiet)
	}

	// The validation database default depends on the live database name,
	// which may only be known after flag overrides.
	if cfg.Verify.ValidationDatabase == "" || cfg.Verify.ValidationDatabase == "_validation" {
		cfg.Verify.ValidationDatabase = cfg.Live.Database + "_validation"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLogger creates the run logger from the resolved configuration
func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:   logging.LogLevel(cfg.Logging.Level),
		Format:  cfg.Logging.Format,
		LogFile: cfg.Logging.LogFile,
	})
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mysql-backup-verify version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
		},
	}
}

// createConfigCommand creates the config subcommand for generating a
// starter configuration file.
func createConfigCommand() *cobra.Command {
	var output string

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Generate a starter configuration file",
		Long: `Generate a fully populated configuration file that can be used with the
--config flag. Review and adjust the paths and credentials before use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExampleConfig(output); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", output)
			return nil
		},
	}

	configCmd.Flags().StringVar(&output, "output", "config.yaml", "path the configuration is written to")
	return configCmd
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
