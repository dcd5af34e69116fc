// Package verify restores a backup set into a scratch database and judges
// whether the copy faithfully represents the live database at the moment the
// backup was taken.
package verify

// Verdict classifies the estimated drift of a restored backup
type Verdict string

const (
	// VerdictStable means the drift is within the accept ceiling
	VerdictStable Verdict = "STABLE"
	// VerdictAcceptable means the drift exceeds the accept ceiling but not
	// the warn ceiling; the backup is kept with a warning.
	VerdictAcceptable Verdict = "ACCEPTABLE"
	// VerdictRejected means the drift exceeds the warn ceiling
	VerdictRejected Verdict = "REJECTED"
)

// Classify maps an estimated drift onto a verdict using the given ceilings.
// Negative drift (the restored copy holds more rows up to the cutoff than the
// live database, typically after retention cleanup ran in between) is always
// within the accept band.
func Classify(drift int64, thresholds Thresholds) Verdict {
	if drift <= thresholds.AcceptCeiling {
		return VerdictStable
	}
	if drift <= thresholds.WarnCeiling {
		return VerdictAcceptable
	}
	return VerdictRejected
}

// Kept reports whether a verdict allows the backup set to be retained
func (v Verdict) Kept() bool {
	return v == VerdictStable || v == VerdictAcceptable
}
