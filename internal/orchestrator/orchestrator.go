// Package orchestrator drives the produce-restore-judge cycle and owns every
// keep-or-delete decision. No other component removes a backup set; the
// orchestrator deletes failed sets in full so a set on disk is always one
// that passed judgement.
package orchestrator

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/database"
	apperrors "mysql-backup-verify/internal/errors"
	"mysql-backup-verify/internal/logging"
	"mysql-backup-verify/internal/notify"
	"mysql-backup-verify/internal/snapshot"
	"mysql-backup-verify/internal/verify"
)

// Outcome is the terminal state of a verification run
type Outcome string

const (
	// OutcomeKept means an attempt produced a backup that passed judgement
	OutcomeKept Outcome = "KEPT"
	// OutcomeExhausted means every attempt failed and no backup remains
	OutcomeExhausted Outcome = "EXHAUSTED"
)

// AttemptRecord summarizes one attempt for the run report
type AttemptRecord struct {
	Attempt  int
	Token    snapshot.Token
	Verdict  verify.Verdict
	Drift    int64
	Duration time.Duration
	Error    string
}

// RunResult is the report of a complete verification run
type RunResult struct {
	Outcome  Outcome
	Token    snapshot.Token
	Verdict  verify.Verdict
	Drift    int64
	Attempts []AttemptRecord
	Duration time.Duration

	// FailuresByType counts failed attempts per error category
	FailuresByType map[string]int
}

func (r *RunResult) recordFailure(err error) {
	if r.FailuresByType == nil {
		r.FailuresByType = make(map[string]int)
	}
	category := string(apperrors.ErrorTypeUnknown)
	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) {
		category = string(appErr.Type)
	}
	r.FailuresByType[category]++
}

// Orchestrator runs the verification state machine: produce a backup set,
// restore it, check consistency, estimate drift, judge. A failed attempt
// deletes its set and retries after a linearly growing pause until the
// attempt budget is spent.
type Orchestrator struct {
	cfg         *config.Config
	compression snapshot.CompressionType
	store       *snapshot.Store
	producer    *snapshot.Producer
	restorer    *verify.Restorer
	checker     *verify.ConsistencyChecker
	estimator   *verify.DriftEstimator
	thresholds  *verify.ThresholdEngine
	connections *database.ConnectionManager
	notifier    *notify.Manager
	logger      *logging.Logger
}

// New creates an orchestrator from already-constructed components
func New(
	cfg *config.Config,
	store *snapshot.Store,
	producer *snapshot.Producer,
	restorer *verify.Restorer,
	checker *verify.ConsistencyChecker,
	estimator *verify.DriftEstimator,
	thresholds *verify.ThresholdEngine,
	connections *database.ConnectionManager,
	notifier *notify.Manager,
	logger *logging.Logger,
) (*Orchestrator, error) {
	compression, err := snapshot.ParseCompressionType(cfg.Backup.Compression)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:         cfg,
		compression: compression,
		store:       store,
		producer:    producer,
		restorer:    restorer,
		checker:     checker,
		estimator:   estimator,
		thresholds:  thresholds,
		connections: connections,
		notifier:    notifier,
		logger:      logger,
	}, nil
}

// Run executes attempts until one is kept or the budget is exhausted. On
// exhaustion the result is returned together with a terminal error; the
// caller maps that to a non-zero exit.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	runStart := time.Now()
	result := RunResult{Outcome: OutcomeExhausted}

	maxAttempts := o.cfg.Retry.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptStart := time.Now()
		token, verdict, drift, err := o.attempt(ctx, attempt)
		elapsed := time.Since(attemptStart)

		record := AttemptRecord{
			Attempt:  attempt,
			Token:    token,
			Verdict:  verdict,
			Drift:    drift,
			Duration: elapsed,
		}
		if err != nil {
			record.Error = err.Error()
		}
		result.Attempts = append(result.Attempts, record)
		o.logger.LogAttemptOutcome(attempt, string(verdict), drift, elapsed, err)

		if err == nil {
			result.Outcome = OutcomeKept
			result.Token = token
			result.Verdict = verdict
			result.Drift = drift
			result.Duration = time.Since(runStart)
			o.logRunSummary(result)
			return result, nil
		}

		lastErr = err
		result.recordFailure(err)
		o.cleanupFailedSet(token)

		if ctx.Err() != nil {
			result.Duration = time.Since(runStart)
			return result, apperrors.NewAppError(apperrors.ErrorTypeInterruption, "verification run interrupted", ctx.Err())
		}

		if attempt < maxAttempts {
			if err := o.pause(ctx, attempt); err != nil {
				result.Duration = time.Since(runStart)
				return result, err
			}
		}
	}

	result.Duration = time.Since(runStart)
	o.logRunSummary(result)
	o.alertExhaustion(ctx, result, lastErr)

	return result, apperrors.NewExhaustionError(
		fmt.Sprintf("all %d verification attempts failed, no backup was kept", maxAttempts), lastErr)
}

// attempt runs one full produce-restore-judge cycle. Any error fails the
// attempt uniformly; the error type only differentiates the log record.
func (o *Orchestrator) attempt(ctx context.Context, attempt int) (snapshot.Token, verify.Verdict, int64, error) {
	if o.cfg.Backup.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Backup.OperationTimeout)
		defer cancel()
	}

	o.logger.LogAttemptStart(attempt, o.cfg.Retry.MaxAttempts)

	// The attempt clock covers the dump as well as restore and judgement.
	// The snapshot freezes at transaction start, so the live database keeps
	// gaining cutoff-eligible rows through the whole dump window.
	attemptStart := time.Now()

	token, err := o.producer.Produce(ctx)
	if err != nil {
		return token, "", 0, err
	}

	adminDB := o.connections.GetAdminDB()
	if err := o.restorer.Restore(ctx, adminDB, token, o.cfg.Verify.ValidationDatabase, o.compression); err != nil {
		return token, "", 0, err
	}

	if err := o.connections.ConnectToValidation(o.cfg.Live, o.cfg.Verify.ValidationDatabase); err != nil {
		return token, "", 0, apperrors.NewRestoreError("cannot reach restored validation database", err)
	}

	liveDB := o.connections.GetLiveDB()
	validationDB := o.connections.GetValidationDB()
	liveSchema := o.cfg.Live.Database

	if _, err := o.checker.Check(ctx, liveDB, validationDB, liveSchema); err != nil {
		return token, "", 0, err
	}

	driftResult, err := o.estimator.Estimate(ctx, liveDB, validationDB, liveSchema, token)
	if err != nil {
		return token, "", 0, err
	}

	thresholds, err := o.thresholds.Compute(ctx, liveDB, liveSchema, time.Since(attemptStart))
	if err != nil {
		return token, "", 0, err
	}

	verdict := verify.Classify(driftResult.Drift, thresholds)
	if !verdict.Kept() {
		return token, verdict, driftResult.Drift, apperrors.NewDriftError(
			fmt.Sprintf("drift %d exceeds warn ceiling %d", driftResult.Drift, thresholds.WarnCeiling), nil)
	}

	if verdict == verify.VerdictAcceptable {
		o.logger.WithFields(map[string]interface{}{
			"token":          token.String(),
			"drift":          driftResult.Drift,
			"accept_ceiling": thresholds.AcceptCeiling,
			"warn_ceiling":   thresholds.WarnCeiling,
		}).Warn("Backup kept with elevated drift")
	}

	return token, verdict, driftResult.Drift, nil
}

// cleanupFailedSet removes every artifact of a failed attempt. Removal
// failures are logged and swallowed; a retry must not be blocked by a full
// disk or permission hiccup during cleanup.
func (o *Orchestrator) cleanupFailedSet(token snapshot.Token) {
	if token == "" {
		return
	}
	if err := o.store.Delete(token); err != nil {
		o.logger.WithFields(map[string]interface{}{
			"token": token.String(),
			"error": err.Error(),
		}).Error("Failed to clean up rejected backup set")
	}
}

// pause sleeps between attempts. The interval grows linearly with the attempt
// number so a transiently loaded system gets progressively more room.
func (o *Orchestrator) pause(ctx context.Context, attempt int) error {
	interval := o.cfg.Retry.BaseInterval * time.Duration(attempt)
	o.logger.WithFields(map[string]interface{}{
		"attempt":  attempt,
		"interval": interval.String(),
	}).Info("Waiting before next verification attempt")

	select {
	case <-ctx.Done():
		return apperrors.NewAppError(apperrors.ErrorTypeInterruption, "verification run interrupted", ctx.Err())
	case <-time.After(interval):
		return nil
	}
}

// logRunSummary records the run's closing metrics in the audit log
func (o *Orchestrator) logRunSummary(result RunResult) {
	fields := map[string]interface{}{
		"operation": "verification_run",
		"outcome":   string(result.Outcome),
		"attempts":  len(result.Attempts),
		"duration":  result.Duration.String(),
	}
	if result.Outcome == OutcomeKept {
		fields["token"] = result.Token.String()
		fields["verdict"] = string(result.Verdict)
		fields["drift"] = result.Drift
	}
	for category, count := range result.FailuresByType {
		fields["failures_"+category] = count
	}

	if result.Outcome == OutcomeKept {
		o.logger.WithFields(fields).Info("Backup verification run completed")
	} else {
		o.logger.WithFields(fields).Error("Backup verification run failed")
	}
}

// alertExhaustion notifies operators that the run ended with no valid backup
func (o *Orchestrator) alertExhaustion(ctx context.Context, result RunResult, lastErr error) {
	details := map[string]interface{}{
		"attempts": len(result.Attempts),
		"duration": result.Duration.String(),
	}
	for category, count := range result.FailuresByType {
		details["failures_"+category] = count
	}
	if lastErr != nil {
		details["last_error"] = lastErr.Error()
	}

	alert := notify.NewAlert(notify.SeverityCritical,
		"Backup verification exhausted",
		fmt.Sprintf("All %d backup verification attempts failed for database %q; no backup from this run was kept.",
			len(result.Attempts), o.cfg.Live.Database),
		details)

	o.notifier.Send(ctx, alert)
}
