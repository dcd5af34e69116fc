// Package application wires the components of a verification run together
// and maps the run's terminal state onto a process exit code.
package application

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"mysql-backup-verify/internal/command"
	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	apperrors "mysql-backup-verify/internal/errors"
	"mysql-backup-verify/internal/lock"
	"mysql-backup-verify/internal/logging"
	"mysql-backup-verify/internal/notify"
	"mysql-backup-verify/internal/orchestrator"
	"mysql-backup-verify/internal/snapshot"
	"mysql-backup-verify/internal/verify"
)

// Exit codes. A skipped run (lock held by a previous invocation) is success:
// overlapping cron schedules are normal operation.
const (
	ExitSuccess   = 0
	ExitExhausted = 2
	ExitError     = 1
)

// Application holds the wired components of one verification run
type Application struct {
	cfg    *config.Config
	logger *logging.Logger
}

// New creates an application from validated configuration
func New(cfg *config.Config, logger *logging.Logger) *Application {
	return &Application{
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes one complete verification run and returns the process exit
// code together with the run result for reporting.
func (a *Application) Run() (orchestrator.RunResult, int) {
	runLock := lock.NewRunLock(a.cfg.LockFile, a.logger)
	if err := runLock.Acquire(); err != nil {
		if errors.Is(err, lock.ErrAlreadyHeld) {
			a.logger.WithField("lock_file", a.cfg.LockFile).Info("Previous verification run still active, skipping")
			return orchestrator.RunResult{}, ExitSuccess
		}
		a.logger.Errorf("Cannot acquire run lock: %v", err)
		return orchestrator.RunResult{}, ExitError
	}
	defer runLock.Release()

	runID := uuid.New().String()
	a.logger.SetRunID(runID)
	a.logger.WithField("database", a.cfg.Live.Database).Info("Backup verification run started")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	service := database.NewServiceWithLogger(a.logger)
	connections := database.NewConnectionManager(service)
	defer connections.Close()

	if err := connections.ConnectToLive(a.cfg.Live); err != nil {
		a.logger.Errorf("Cannot connect to live database: %v", err)
		return orchestrator.RunResult{}, ExitError
	}
	if err := connections.ConnectAdmin(a.cfg.Live); err != nil {
		a.logger.Errorf("Cannot open admin connection: %v", err)
		return orchestrator.RunResult{}, ExitError
	}
	if err := connections.TestConnections(); err != nil {
		a.logger.Errorf("Database connectivity check failed: %v", err)
		return orchestrator.RunResult{}, ExitError
	}

	runner := command.NewExecRunner(a.logger)
	store := snapshot.NewStore(a.cfg.Backup.Directory, a.cfg.Backup.Prefix, a.logger)

	producer, err := snapshot.NewProducer(store, runner, a.cfg.Live, a.cfg.Backup, a.logger)
	if err != nil {
		a.logger.Errorf("Cannot initialize backup producer: %v", err)
		return orchestrator.RunResult{}, ExitError
	}

	restorer := verify.NewRestorer(store, runner, service, a.cfg.Live, a.logger)
	checker := verify.NewConsistencyChecker(service, a.cfg.Verify, a.logger)
	estimator := verify.NewDriftEstimator(service, a.cfg.Verify, a.logger)
	thresholds := verify.NewThresholdEngine(service, a.cfg.Verify, a.logger)
	notifier := notify.NewManager(a.logger, a.cfg.Notification)

	orch, err := orchestrator.New(a.cfg, store, producer, restorer, checker, estimator, thresholds, connections, notifier, a.logger)
	if err != nil {
		a.logger.Errorf("Cannot initialize orchestrator: %v", err)
		return orchestrator.RunResult{}, ExitError
	}

	result, err := orch.Run(ctx)
	if err == nil {
		return result, ExitSuccess
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeExhaustion {
		a.logger.Errorf("Verification run exhausted: %v", err)
		return result, ExitExhausted
	}

	a.logger.Errorf("Verification run failed: %v", err)
	return result, ExitError
}
