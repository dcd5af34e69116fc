// Package notify delivers operator alerts. Delivery is best effort: a failed
// channel is logged and never affects the verification outcome or exit code.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mysql-backup-verify/internal/config"
	"mysql-backup-verify/internal/logging"
)

// AlertSeverity ranks an alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one operator notification
type Alert struct {
	ID        string                 `json:"id"`
	Severity  AlertSeverity          `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewAlert creates an alert with a fresh correlation ID
func NewAlert(severity AlertSeverity, title, message string, details map[string]interface{}) Alert {
	return Alert{
		ID:        uuid.New().String(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// Channel delivers alerts over one transport
type Channel interface {
	Send(ctx context.Context, alert Alert) error
	GetType() string
	IsEnabled() bool
}

// Manager fans alerts out to every enabled channel
type Manager struct {
	logger   *logging.Logger
	enabled  bool
	channels []Channel
}

// NewManager creates a notification manager with the channels the
// configuration enables.
func NewManager(logger *logging.Logger, cfg config.NotificationConfig) *Manager {
	m := &Manager{
		logger:  logger,
		enabled: cfg.Enabled,
	}

	if cfg.Email != nil {
		m.channels = append(m.channels, NewEmailChannel(logger, *cfg.Email))
	}
	if cfg.File != nil {
		m.channels = append(m.channels, NewFileChannel(logger, *cfg.File))
	}

	return m
}

// Send delivers the alert on every enabled channel. Failures are logged per
// channel; the method never returns an error because alerting must not alter
// the run's outcome.
func (m *Manager) Send(ctx context.Context, alert Alert) {
	if !m.enabled {
		m.logger.WithField("alert_id", alert.ID).Debug("Notifications disabled, alert suppressed")
		return
	}

	for _, channel := range m.channels {
		if !channel.IsEnabled() {
			continue
		}

		if err := channel.Send(ctx, alert); err != nil {
			m.logger.WithFields(map[string]interface{}{
				"channel":  channel.GetType(),
				"alert_id": alert.ID,
				"error":    err.Error(),
			}).Error("Failed to deliver alert")
			continue
		}

		m.logger.WithFields(map[string]interface{}{
			"channel":  channel.GetType(),
			"alert_id": alert.ID,
		}).Info("Alert delivered")
	}
}
