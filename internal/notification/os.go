package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// osNotificationChannel sends notifications via OS-native notification systems
type osNotificationChannel struct {
	config   *OSNotificationConfig
	executor CommandExecutor
	platform string
}

// NewOSNotificationChannel creates a new OS notification channel
func NewOSNotificationChannel(cfg *OSNotificationConfig, opts ...Option) NotificationChannel {
	ch := &osNotificationChannel{
		config:   cfg,
		platform: runtime.GOOS,
	}

	for _, opt := range opts {
		opt(ch)
	}

	if ch.executor == nil {
		ch.executor = &realCommandExecutor{}
	}

	return ch
}

// Send sends a notification via the OS notification system
func (c *osNotificationChannel) Send(n Notification) error {
	if !c.shouldSend(n.Type) {
		return nil
	}

	switch c.platform {
	case "linux":
		return c.executor.Execute("notify-send", "--app-name=kairon", n.Title, n.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(n.Message), escapeAppleScript(n.Title))
		return c.executor.Execute("osascript", "-e", script)
	case "windows":
		return c.executor.Execute("powershell", "-Command", windowsToastScript(n))
	default:
		return fmt.Errorf("unsupported platform: %s", c.platform)
	}
}

func (c *osNotificationChannel) shouldSend(t NotificationType) bool {
	switch t {
	case NotifyReminder:
		return c.config.OnReminder
	case NotifyOverdue:
		return c.config.OnOverdue
	default:
		return true
	}
}

// Close cleans up resources
func (c *osNotificationChannel) Close() error {
	return nil
}

// PlatformCommand returns the notifier binary used on platform.
func PlatformCommand(platform string) string {
	switch platform {
	case "linux":
		return "notify-send"
	case "darwin":
		return "osascript"
	case "windows":
		return "powershell"
	}
	return ""
}

// escapeAppleScript escapes backslashes and double quotes for an AppleScript string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// escapePowerShell escapes backticks, double quotes and dollar signs for a
// PowerShell double-quoted string.
func escapePowerShell(s string) string {
	s = strings.ReplaceAll(s, "`", "``")
	s = strings.ReplaceAll(s, `"`, "`\"")
	s = strings.ReplaceAll(s, "$", "`$")
	return s
}

func windowsToastScript(n Notification) string {
	return fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
$notification = New-Object System.Windows.Forms.NotifyIcon
$notification.Icon = [System.Drawing.SystemIcons]::Information
$notification.BalloonTipTitle = "%s"
$notification.BalloonTipText = "%s"
$notification.Visible = $true
$notification.ShowBalloonTip(5000)
`, escapePowerShell(n.Title), escapePowerShell(n.Message))
}

// realCommandExecutor executes real system commands
type realCommandExecutor struct{}

// Execute runs a command
func (e *realCommandExecutor) Execute(cmd string, args ...string) error {
	return exec.Command(cmd, args...).Run()
}
