package snapshot

import (
	"fmt"
	"time"
)

// TokenLayout is the minute-resolution timestamp format that identifies a
// backup set. The format is load-bearing: the drift estimator reparses it to
// derive the logical cutoff instant, so it must stay unambiguously
// reversible to a date-time value.
const TokenLayout = "2006-01-02_1504"

// Token identifies one backup set
type Token string

// NewToken generates a token for the given instant, truncated to the minute
func NewToken(t time.Time) Token {
	return Token(t.Format(TokenLayout))
}

// ParseToken validates a token string
func ParseToken(s string) (Token, error) {
	if _, err := time.Parse(TokenLayout, s); err != nil {
		return "", fmt.Errorf("invalid backup token %q: %w", s, err)
	}
	return Token(s), nil
}

// String returns the raw token value
func (t Token) String() string {
	return string(t)
}

// CutoffMillis derives the logical cutoff instant for drift estimation: the
// token reparsed as a wall-clock time in a fixed-offset zone, truncated to
// the minute (inherent in the layout), expressed as epoch milliseconds to
// match the time-series storage domain.
func (t Token) CutoffMillis(timezoneOffsetMinutes int) (int64, error) {
	zone := time.FixedZone("backup", timezoneOffsetMinutes*60)
	parsed, err := time.ParseInLocation(TokenLayout, string(t), zone)
	if err != nil {
		return 0, fmt.Errorf("cannot derive cutoff from token %q: %w", t, err)
	}
	return parsed.UnixMilli(), nil
}
