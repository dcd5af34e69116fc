package snapshot

import (
	"testing"
	"time"
)

func TestNewToken_TruncatesToMinute(t *testing.T) {
	instant := time.Date(2024, 3, 15, 9, 41, 57, 123456789, time.UTC)
	token := NewToken(instant)

	if token.String() != "2024-03-15_0941" {
		t.Errorf("Expected token 2024-03-15_0941, got %s", token)
	}
}

func TestParseToken(t *testing.T) {
	token, err := ParseToken("2024-03-15_0941")
	if err != nil {
		t.Fatalf("Expected valid token, got error: %v", err)
	}
	if token.String() != "2024-03-15_0941" {
		t.Errorf("Expected parsed token to round-trip, got %s", token)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	invalid := []string{"", "2024-03-15", "20240315_0941", "2024-03-15 09:41", "not-a-token"}
	for _, s := range invalid {
		if _, err := ParseToken(s); err == nil {
			t.Errorf("Expected error for token %q", s)
		}
	}
}

func TestCutoffMillis(t *testing.T) {
	token := Token("2024-03-15_0941")

	cutoff, err := token.CutoffMillis(0)
	if err != nil {
		t.Fatalf("Expected cutoff, got error: %v", err)
	}

	expected := time.Date(2024, 3, 15, 9, 41, 0, 0, time.UTC).UnixMilli()
	if cutoff != expected {
		t.Errorf("Expected cutoff %d, got %d", expected, cutoff)
	}
}

func TestCutoffMillis_TimezoneOffset(t *testing.T) {
	token := Token("2024-03-15_0941")

	utc, err := token.CutoffMillis(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// A zone two hours east of UTC reaches the same wall-clock time two
	// hours earlier in absolute terms.
	east, err := token.CutoffMillis(120)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if utc-east != 2*time.Hour.Milliseconds() {
		t.Errorf("Expected +120 minute offset to shift cutoff by 2h, got %dms", utc-east)
	}
}

func TestCutoffMillis_RoundTripWithNewToken(t *testing.T) {
	instant := time.Date(2024, 3, 15, 9, 41, 30, 0, time.UTC)
	token := NewToken(instant)

	cutoff, err := token.CutoffMillis(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	truncated := instant.Truncate(time.Minute).UnixMilli()
	if cutoff != truncated {
		t.Errorf("Expected cutoff %d to equal minute-truncated origin %d", cutoff, truncated)
	}
}
