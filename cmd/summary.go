package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"mysql-backup-verify/internal/orchestrator"
	"mysql-backup-verify/internal/verify"
)

// timePrecision keeps durations in the summary readable
const timePrecision = 100 * time.Millisecond

// printRunSummary renders a short human-readable run report after the
// structured logs. Colors are dropped on non-terminals and under --no-color
// so cron mail stays plain.
func printRunSummary(result orchestrator.RunResult, code int) {
	if quiet {
		return
	}
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	if len(result.Attempts) == 0 {
		// Skipped run: the lock was held, nothing to report
		return
	}

	fmt.Println()
	switch result.Outcome {
	case orchestrator.OutcomeKept:
		kept := color.New(color.FgGreen, color.Bold)
		kept.Printf("BACKUP KEPT")
		fmt.Printf("  token=%s  verdict=%s  drift=%d  attempts=%d  duration=%s\n",
			result.Token, colorVerdict(result.Verdict), result.Drift,
			len(result.Attempts), result.Duration.Round(timePrecision))
	default:
		failed := color.New(color.FgRed, color.Bold)
		failed.Printf("NO BACKUP KEPT")
		fmt.Printf("  attempts=%d  duration=%s  exit=%d\n",
			len(result.Attempts), result.Duration.Round(timePrecision), code)
	}

	for _, attempt := range result.Attempts {
		status := color.GreenString("ok")
		if attempt.Error != "" {
			status = color.RedString("failed")
		}
		fmt.Printf("  attempt %d: %s", attempt.Attempt, status)
		if attempt.Verdict != "" {
			fmt.Printf("  verdict=%s drift=%d", colorVerdict(attempt.Verdict), attempt.Drift)
		}
		if attempt.Error != "" {
			fmt.Printf("  (%s)", attempt.Error)
		}
		fmt.Println()
	}
}

func colorVerdict(v verify.Verdict) string {
	switch v {
	case verify.VerdictStable:
		return color.GreenString(string(v))
	case verify.VerdictAcceptable:
		return color.YellowString(string(v))
	case verify.VerdictRejected:
		return color.RedString(string(v))
	default:
		return string(v)
	}
}
