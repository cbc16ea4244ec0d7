package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kairon/backend"
	"kairon/internal/app"
	"kairon/internal/cli/prompt"
	"kairon/internal/config"
	"kairon/internal/credentials"
	"kairon/internal/notification"
	"kairon/internal/reminder"
	"kairon/internal/utils"
	"kairon/internal/widgets"
)

// Build information, set with -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds per-invocation settings. Fields other than the flags exist
// so tests can replace the environment.
type Config struct {
	NoPrompt   bool
	Verbose    bool
	DBPath     string // overrides database.path
	ConfigPath string // overrides the XDG config location
	Stdin      io.Reader

	Clock     reminder.Clock
	Keyring   credentials.Keyring
	Widgets   *widgets.Client
	Notifier  notification.NotificationManager
	Requester notification.Requester
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	rootCmd := NewKairon(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewKairon creates the root command with injectable IO
func NewKairon(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:     "kairon",
		Short:   "A personal task and interest tracker",
		Long:    "kairon tracks tasks with due times, reminders and checklists, plus a list of interests.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("no-prompt"); v {
				cfg.NoPrompt = true
			}
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				cfg.Verbose = true
			}
			if v, _ := cmd.Flags().GetString("db"); v != "" {
				cfg.DBPath = v
			}
			if v, _ := cmd.Flags().GetString("config"); v != "" {
				cfg.ConfigPath = v
			}
			utils.SetVerboseMode(cfg.Verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts and confirm destructive actions")
	root.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")
	root.PersistentFlags().String("db", "", "Path to the database file")
	root.PersistentFlags().String("config", "", "Path to the config file")

	root.AddCommand(
		newAddCmd(stdout, cfg),
		newListCmd(stdout, cfg),
		newTodayCmd(stdout, cfg),
		newUpdateCmd(stdout, cfg),
		newCompleteCmd(stdout, cfg),
		newDeleteCmd(stdout, cfg),
		newReorderCmd(stdout, cfg),
		newSubtaskCmd(stdout, cfg),
		newInterestCmd(stdout, cfg),
		newSettingsCmd(stdout, cfg),
		newAnalyticsCmd(stdout, cfg),
		newCalendarCmd(stdout, cfg),
		newExportCmd(stdout, cfg),
		newQuoteCmd(stdout, cfg),
		newWeatherCmd(stdout, cfg),
		newNotifyCmd(stdout, cfg),
		newServeCmd(stdout, cfg),
		newTUICmd(cfg),
		newCredentialsCmd(stdout, cfg),
		newConfigCmd(stdout, cfg),
		newVersionCmd(stdout),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, cfg *Config) (*config.Config, error) {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	conf.ApplyFlags(cfg.DBPath, jsonOutput)
	if err := conf.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, "Run 'kairon config path' to locate the config file")
	}
	return conf, nil
}

func credentialManager(cfg *Config) *credentials.Manager {
	if cfg.Keyring != nil {
		return credentials.NewManager(credentials.WithKeyring(cfg.Keyring))
	}
	return credentials.NewManager()
}

// openApp loads config and opens the database.
func openApp(ctx context.Context, cmd *cobra.Command, cfg *Config) (*app.App, error) {
	conf, err := loadConfig(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if conf.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(conf.Database.Path), 0755); err != nil {
			return nil, utils.ErrStorageUnavailable(conf.Database.Path, err)
		}
	}
	return app.Open(ctx, app.Options{
		Config:      conf,
		Clock:       cfg.Clock,
		Notifier:    cfg.Notifier,
		Requester:   cfg.Requester,
		Widgets:     cfg.Widgets,
		Credentials: credentialManager(cfg),
	})
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, cfg *Config, fn func(ctx context.Context, a *app.App, jsonOutput bool) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a, a.Config().OutputFormat == "json")
}

func (cfg *Config) stdin() io.Reader {
	if cfg.Stdin != nil {
		return cfg.Stdin
	}
	return os.Stdin
}

// interactive reports whether prompts can be answered.
func (cfg *Config) interactive() bool {
	return !cfg.NoPrompt && (cfg.Stdin != nil || utils.IsInteractive(os.Stdin))
}

func (cfg *Config) prompter(stdout io.Writer) *prompt.Prompter {
	return prompt.New(cfg.stdin(), stdout, !cfg.interactive())
}

// confirm returns true when a destructive action may go ahead.
func confirm(p *prompt.Prompter, cfg *Config, question string) (bool, error) {
	if cfg.NoPrompt {
		return true, nil
	}
	if !cfg.interactive() {
		return false, utils.WrapWithSuggestion(app.ErrConfirmationRequired, "Pass -y (--no-prompt) when running without a terminal")
	}
	return p.Confirm(question)
}

// findTask resolves an id or a title search term to one task. Exact
// title matches win over partial ones; several partial matches are offered
// for selection when prompts are possible.
func findTask(a *app.App, p *prompt.Prompter, cfg *Config, term string, activeOnly bool) (backend.Task, error) {
	candidates := a.Tasks.All()
	if activeOnly {
		candidates = a.Tasks.Active()
	}

	if term == "" {
		if !cfg.interactive() {
			return backend.Task{}, utils.WrapWithSuggestion(errors.New("task id or title is required"), "Use 'kairon list' to see task ids")
		}
		return p.SelectTask(candidates, "Select a task:", a.Now())
	}

	if id, err := strconv.ParseInt(strings.TrimPrefix(term, "#"), 10, 64); err == nil {
		t, ok := a.Tasks.Get(id)
		if !ok {
			return backend.Task{}, utils.ErrTaskNotFound(id)
		}
		return t, nil
	}

	for _, t := range candidates {
		if strings.EqualFold(t.Title, term) {
			return t, nil
		}
	}
	lower := strings.ToLower(term)
	var matches []backend.Task
	for _, t := range candidates {
		if strings.Contains(strings.ToLower(t.Title), lower) {
			matches = append(matches, t)
		}
	}
	switch {
	case len(matches) == 0:
		return backend.Task{}, fmt.Errorf("no task found matching '%s'", term)
	case len(matches) == 1:
		return matches[0], nil
	case cfg.interactive():
		return p.SelectTask(matches, fmt.Sprintf("Multiple tasks match '%s':", term), a.Now())
	}
	var names []string
	for _, m := range matches {
		names = append(names, fmt.Sprintf("  - #%d %s", m.ID, m.Title))
	}
	return backend.Task{}, fmt.Errorf("multiple tasks match '%s':\n%s", term, strings.Join(names, "\n"))
}

// done prints the result code after a mutating command in no-prompt mode.
func done(stdout io.Writer, cfg *Config) {
	if cfg.NoPrompt {
		_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
	}
}

// info prints the result code after a read-only command in no-prompt mode.
func info(stdout io.Writer, cfg *Config) {
	if cfg.NoPrompt {
		_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// outputJSON writes v with a result code on one line.
func outputJSON(stdout io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(b))
	return nil
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	resp := errorResponse{Error: err.Error(), Code: 1, Result: ResultError}
	var ve *backend.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	var ws *utils.ErrorWithSuggestion
	if errors.As(err, &ws) {
		resp.Error = ws.Err.Error()
	}
	_ = outputJSON(stdout, resp)
}

func newConfigCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config, database and cache locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			paths := map[string]string{
				"config":   conf.Path(),
				"database": conf.Database.Path,
				"cache":    config.GetCacheDir(),
			}
			if conf.OutputFormat == "json" {
				return outputJSON(stdout, struct {
					Paths  map[string]string `json:"paths"`
					Result string            `json:"result"`
				}{paths, ResultInfoOnly})
			}
			_, _ = fmt.Fprintf(stdout, "Config:   %s\nDatabase: %s\nCache:    %s\n", paths["config"], paths["database"], paths["cache"])
			info(stdout, cfg)
			return nil
		},
	})
	return configCmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := runtime.GOOS + "/" + runtime.GOARCH
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return outputJSON(stdout, map[string]string{
					"version":    Version,
					"commit":     Commit,
					"build_date": BuildDate,
					"go_version": runtime.Version(),
					"platform":   platform,
				})
			}
			_, _ = fmt.Fprintf(stdout, "kairon %s\nVersion: %s\nCommit: %s\nBuilt: %s\n", Version, Version, Commit, BuildDate)
			if long, _ := cmd.Flags().GetBool("long"); long {
				_, _ = fmt.Fprintf(stdout, "Go Version: %s\nPlatform: %s\n", runtime.Version(), platform)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("long", "v", false, "Include Go version and platform")
	return cmd
}
