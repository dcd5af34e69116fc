package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/logging"
)

func TestNewAlert_AssignsID(t *testing.T) {
	a := NewAlert(SeverityCritical, "title", "message", nil)
	b := NewAlert(SeverityCritical, "title", "message", nil)

	if a.ID == "" || b.ID == "" {
		t.Fatal("Expected alerts to carry IDs")
	}
	if a.ID == b.ID {
		t.Error("Expected distinct correlation IDs")
	}
	if a.Timestamp.IsZero() {
		t.Error("Expected alert timestamp to be set")
	}
}

func TestFileChannel_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	channel := NewFileChannel(logging.NewDefaultLogger(), config.FileAlertConfig{Path: path, Format: "json"})

	alert := NewAlert(SeverityCritical, "Backup verification exhausted", "no backup kept",
		map[string]interface{}{"attempts": 3})

	if err := channel.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected alert file: %v", err)
	}

	var decoded Alert
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected JSON record: %v", err)
	}
	if decoded.ID != alert.ID || decoded.Title != alert.Title {
		t.Errorf("Alert did not round-trip: %+v", decoded)
	}
}

func TestFileChannel_TextAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	channel := NewFileChannel(logging.NewDefaultLogger(), config.FileAlertConfig{Path: path, Format: "text"})

	first := NewAlert(SeverityWarning, "first", "m1", nil)
	second := NewAlert(SeverityCritical, "second", "m2", nil)

	if err := channel.Send(context.Background(), first); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := channel.Send(context.Background(), second); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 alert lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[1], "second") {
		t.Errorf("Expected alerts in delivery order, got %v", lines)
	}
}

func TestManager_DisabledSuppressesDelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	manager := NewManager(logging.NewDefaultLogger(), config.NotificationConfig{
		Enabled: false,
		File:    &config.FileAlertConfig{Path: path, Format: "json"},
	})

	manager.Send(context.Background(), NewAlert(SeverityCritical, "t", "m", nil))

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no delivery while notifications are disabled")
	}
}

func TestManager_FailedChannelDoesNotPanic(t *testing.T) {
	manager := NewManager(logging.NewDefaultLogger(), config.NotificationConfig{
		Enabled: true,
		File:    &config.FileAlertConfig{Path: "/proc/not/writable/alerts.log", Format: "json"},
	})

	// Delivery failure is logged, never returned
	manager.Send(context.Background(), NewAlert(SeverityCritical, "t", "m", nil))
}

func TestEmailChannel_IsEnabled(t *testing.T) {
	logger := logging.NewDefaultLogger()

	disabled := NewEmailChannel(logger, config.EmailConfig{})
	if disabled.IsEnabled() {
		t.Error("Expected unconfigured email channel to be disabled")
	}

	enabled := NewEmailChannel(logger, config.EmailConfig{
		SMTPHost: "smtp.example.com",
		To:       []string{"ops@example.com"},
	})
	if !enabled.IsEnabled() {
		t.Error("Expected configured email channel to be enabled")
	}
}
