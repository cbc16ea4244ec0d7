package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kairon/cmd/kairon/cmd"
	"kairon/internal/credentials"
	"kairon/internal/widgets"
)

// testConfigTemplate keeps every path inside the test's temp dir. The
// placeholders are the database path and the notification log path.
const testConfigTemplate = `database:
  path: %s
output_format: text
reminder:
  enabled: true
  default_lead: ""
notification:
  enabled: true
  os_notification:
    enabled: false
  log_notification:
    enabled: true
    path: %s
server:
  addr: 127.0.0.1:0
watch: false
`

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	dbPath     string
	logPath    string

	Clock    *FakeClock
	Notifier *RecordingNotifier
	Keyring  *credentials.MockKeyring
}

// NewCLITest creates a CLI harness with its own database, config file and
// fakes. Prompts are disabled unless SetStdin is called.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	c := &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		configPath: filepath.Join(tmpDir, "config.yaml"),
		dbPath:     filepath.Join(tmpDir, "kairon.db"),
		logPath:    filepath.Join(tmpDir, "notifications.log"),
		Clock:      NewFakeClock(Reference),
		Notifier:   &RecordingNotifier{},
		Keyring:    credentials.NewMockKeyring(),
	}
	c.SetFullConfig(fmt.Sprintf(testConfigTemplate, c.dbPath, c.logPath))

	c.cfg = &cmd.Config{
		NoPrompt:   true,
		ConfigPath: c.configPath,
		Clock:      c.Clock,
		Keyring:    c.Keyring,
		Notifier:   c.Notifier,
		Requester:  Granting,
		Widgets:    OfflineWidgets(),
	}
	return c
}

// OfflineWidgets returns a widget client whose services are unreachable.
func OfflineWidgets() *widgets.Client {
	return widgets.New(widgets.Config{
		QuoteURL:   "http://127.0.0.1:1/quote",
		WeatherURL: "http://127.0.0.1:1/weather",
		Timeout:    50 * time.Millisecond,
	})
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// DBPath returns the database file the CLI writes.
func (c *CLITest) DBPath() string {
	return c.dbPath
}

// LogPath returns the notification log file.
func (c *CLITest) LogPath() string {
	return c.logPath
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// SetStdin enables prompts and feeds them input.
func (c *CLITest) SetStdin(input string) {
	c.cfg.NoPrompt = false
	c.cfg.Stdin = strings.NewReader(input)
}

// SetConfigValue appends a top-level key to the config file.
func (c *CLITest) SetConfigValue(key, value string) {
	c.t.Helper()
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.t.Fatalf("failed to read config file: %v", err)
	}
	if err := os.WriteFile(c.configPath, []byte(string(data)+key+": "+value+"\n"), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)
