// Package notification delivers reminder notifications to the desktop, a log
// file and the in-app inbox, behind a lazily requested permission.
package notification

import (
	"time"
)

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyReminder NotificationType = "reminder"
	NotifyOverdue  NotificationType = "overdue"
	NotifyTest     NotificationType = "test"
)

// Notification represents a notification to be sent
type Notification struct {
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NotificationManager is the interface for managing platform notifications
type NotificationManager interface {
	Send(n Notification) error
	SendAsync(n Notification)
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	Enabled         bool                  `yaml:"enabled"`
	OSNotification  OSNotificationConfig  `yaml:"os_notification"`
	LogNotification LogNotificationConfig `yaml:"log_notification"`
}

// OSNotificationConfig holds OS notification configuration
type OSNotificationConfig struct {
	Enabled    bool `yaml:"enabled"`
	OnReminder bool `yaml:"on_reminder"`
	OnOverdue  bool `yaml:"on_overdue"`
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// CommandExecutor is the interface for executing system commands
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor is a mock implementation of CommandExecutor for testing
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

// Execute implements CommandExecutor
func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option is a functional option for configuring notification channels
type Option func(interface{})

// WithCommandExecutor sets a custom command executor
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.executor = executor
		}
		if mgr, ok := c.(*manager); ok {
			mgr.commandExecutor = executor
		}
	}
}

// WithPlatform sets the platform for OS notifications
func WithPlatform(platform string) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.platform = platform
		}
		if mgr, ok := c.(*manager); ok {
			mgr.platform = platform
		}
	}
}

// WithSendCallback sets a callback invoked for every notification the
// manager dispatches.
func WithSendCallback(callback func(Notification)) Option {
	return func(c interface{}) {
		if mgr, ok := c.(*manager); ok {
			mgr.sendCallback = callback
		}
	}
}
