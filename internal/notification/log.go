package notification

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// logNotificationChannel appends notifications to a log file
type logNotificationChannel struct {
	config *LogNotificationConfig
	file   *os.File
	mu     sync.Mutex
}

// NewLogNotificationChannel creates a new log notification channel
func NewLogNotificationChannel(cfg *LogNotificationConfig) NotificationChannel {
	return &logNotificationChannel{
		config: cfg,
	}
}

// Send writes one line per notification:
// 2026-01-16T10:30:00Z [REMINDER] task=12 Your task "x" is due soon.
func (c *logNotificationChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureFile(); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(n.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString(" [" + strings.ToUpper(string(n.Type)) + "] ")
	if id := n.Metadata["task_id"]; id != "" {
		b.WriteString("task=" + id + " ")
	}
	b.WriteString(strings.ReplaceAll(n.Message, "\n", " "))
	b.WriteByte('\n')

	if _, err := c.file.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return c.file.Sync()
}

func (c *logNotificationChannel) ensureFile() error {
	if c.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.config.Path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := c.rotateIfNeeded(); err != nil {
		return err
	}

	file, err := os.OpenFile(c.config.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	c.file = file
	return nil
}

// rotateIfNeeded moves an oversized log to <path>.old
func (c *logNotificationChannel) rotateIfNeeded() error {
	if c.config.MaxSizeMB <= 0 {
		return nil
	}
	info, err := os.Stat(c.config.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < int64(c.config.MaxSizeMB)*1024*1024 {
		return nil
	}
	if err := os.Rename(c.config.Path, c.config.Path+".old"); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}

// Close closes the log file
func (c *logNotificationChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		err := c.file.Close()
		c.file = nil
		return err
	}
	return nil
}

// ReadLog returns every line of the log file. A missing file has no entries.
func ReadLog(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entries = append(entries, scanner.Text())
	}
	return entries, scanner.Err()
}

// ClearLog truncates the log file.
func ClearLog(path string) error {
	return os.WriteFile(path, []byte{}, 0644)
}
