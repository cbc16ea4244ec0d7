package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kairon/backend"
	"kairon/internal/app"
	"kairon/internal/calendar"
	"kairon/internal/notification"
	"kairon/internal/utils"
	"kairon/internal/views"
)

func newInterestCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	interestCmd := &cobra.Command{
		Use:   "interest",
		Short: "Track things you are interested in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an interest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetString("description")
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				in, err := a.AddInterest(ctx, args[0], desc)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputJSON(stdout, struct {
						Action   string           `json:"action"`
						Interest backend.Interest `json:"interest"`
						Result   string           `json:"result"`
					}{"add", in, ResultActionCompleted})
				}
				_, _ = fmt.Fprintf(stdout, "Added interest: %s (ID: %d)\n", in.Title, in.ID)
				done(stdout, cfg)
				return nil
			})
		},
	}
	addCmd.Flags().StringP("description", "d", "", "Description")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List interests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				interests := a.Interests.All()
				if jsonOutput {
					if interests == nil {
						interests = []backend.Interest{}
					}
					return outputJSON(stdout, struct {
						Interests []backend.Interest `json:"interests"`
						Count     int                `json:"count"`
						Result    string             `json:"result"`
					}{interests, len(interests), ResultInfoOnly})
				}
				if len(interests) == 0 {
					_, _ = fmt.Fprintln(stdout, "No interests yet")
				}
				for _, in := range interests {
					line := fmt.Sprintf("  #%d %s", in.ID, in.Title)
					if in.Description != "" {
						line += " - " + in.Description
					}
					_, _ = fmt.Fprintln(stdout, line)
				}
				info(stdout, cfg)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an interest after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid interest id: %s", args[0])
			}
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				idx := slices.IndexFunc(a.Interests.All(), func(in backend.Interest) bool { return in.ID == id })
				if idx < 0 {
					return utils.ErrInterestNotFound(id)
				}
				in := a.Interests.All()[idx]
				ok, err := confirm(cfg.prompter(stdout), cfg, fmt.Sprintf("Delete interest '%s'?", in.Title))
				if err != nil {
					return err
				}
				if !ok {
					return utils.ErrConfirmationDeclined("delete")
				}
				if err := a.DeleteInterest(ctx, id); err != nil {
					return err
				}
				if jsonOutput {
					return outputJSON(stdout, struct {
						Action   string           `json:"action"`
						Interest backend.Interest `json:"interest"`
						Result   string           `json:"result"`
					}{"delete", in, ResultActionCompleted})
				}
				_, _ = fmt.Fprintf(stdout, "Deleted interest: %s\n", in.Title)
				done(stdout, cfg)
				return nil
			})
		},
	}

	interestCmd.AddCommand(addCmd, listCmd, deleteCmd)
	return interestCmd
}

// settingKeys maps CLI keys to setters on Settings.
var settingKeys = map[string]func(*backend.Settings, string) error{
	"default_view":   func(s *backend.Settings, v string) error { s.DefaultView = v; return nil },
	"notifications":  func(s *backend.Settings, v string) error { s.Notifications = backend.NotificationPolicy(v); return nil },
	"theme":          func(s *backend.Settings, v string) error { s.Theme = v; return nil },
	"location":       func(s *backend.Settings, v string) error { s.Location = v; return nil },
	"theme_color":    func(s *backend.Settings, v string) error { s.ThemeColor = v; return nil },
	"dark_intensity": func(s *backend.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("dark_intensity must be a number: %s", v)
		}
		s.DarkIntensity = n
		return nil
	},
}

func settingNames() []string {
	names := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func printSettings(stdout io.Writer, s backend.Settings) {
	_, _ = fmt.Fprintf(stdout, "default_view:            %s\n", s.DefaultView)
	_, _ = fmt.Fprintf(stdout, "notifications:           %s\n", s.Notifications)
	_, _ = fmt.Fprintf(stdout, "theme:                   %s\n", s.Theme)
	_, _ = fmt.Fprintf(stdout, "location:                %s\n", s.Location)
	_, _ = fmt.Fprintf(stdout, "theme_color:             %s\n", s.ThemeColor)
	_, _ = fmt.Fprintf(stdout, "dark_intensity:          %d\n", s.DarkIntensity)
	_, _ = fmt.Fprintf(stdout, "notification_permission: %s\n", s.NotificationPermission)
}

func newSettingsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				s := a.Settings.Get()
				if jsonOutput {
					return outputJSON(stdout, struct {
						Settings backend.Settings `json:"settings"`
						Result   string           `json:"result"`
					}{s, ResultInfoOnly})
				}
				printSettings(stdout, s)
				info(stdout, cfg)
				return nil
			})
		},
	})
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one preference",
		Long:  "Change one preference. Keys: " + strings.Join(settingNames(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := settingKeys[args[0]]
			if !ok {
				return utils.ErrInvalidChoice("setting", args[0], settingNames())
			}
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				s := a.Settings.Get()
				if err := set(&s, args[1]); err != nil {
					return err
				}
				saved, err := a.SaveSettings(ctx, s)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputJSON(stdout, struct {
						Settings backend.Settings `json:"settings"`
						Result   string           `json:"result"`
					}{saved, ResultActionCompleted})
				}
				_, _ = fmt.Fprintf(stdout, "Set %s = %s\n", args[0], args[1])
				done(stdout, cfg)
				return nil
			})
		},
	})
	return settingsCmd
}

func newAnalyticsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show completion and timeliness statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				s := a.Analytics()
				if jsonOutput {
					return outputJSON(stdout, struct {
						Analytics any    `json:"analytics"`
						Result    string `json:"result"`
					}{s, ResultInfoOnly})
				}
				_, _ = fmt.Fprintf(stdout, "Total tasks:     %d\n", s.Total)
				_, _ = fmt.Fprintf(stdout, "Active:          %d\n", s.Active)
				_, _ = fmt.Fprintf(stdout, "Completed:       %d (%d on time)\n", s.Completed, s.OnTime)
				_, _ = fmt.Fprintf(stdout, "Completion rate: %d%%\n", s.CompletionRate)
				_, _ = fmt.Fprintf(stdout, "On-time rate:    %d%%\n", s.OnTimeRate)
				_, _ = fmt.Fprintf(stdout, "Time accuracy:   %d%%\n", s.TimeAccuracy)
				info(stdout, cfg)
				return nil
			})
		},
	}
}

func newCalendarCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "List the tasks falling in one month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				day := a.Now()
				if month != "" {
					m, err := time.ParseInLocation("2006-01", month, day.Location())
					if err != nil {
						return utils.WrapWithSuggestion(fmt.Errorf("invalid month: %s", month), "Use YYYY-MM, e.g. 2026-05")
					}
					day = m
				}
				events := a.Calendar(day)
				if jsonOutput {
					if events == nil {
						events = []calendar.Event{}
					}
					return outputJSON(stdout, struct {
						Month  string           `json:"month"`
						Events []calendar.Event `json:"events"`
						Result string           `json:"result"`
					}{day.Format("2006-01"), events, ResultInfoOnly})
				}
				_, _ = fmt.Fprintf(stdout, "%s (%d tasks)\n", day.Format("January 2006"), len(events))
				for _, e := range events {
					mark := " "
					if e.Completed {
						mark = "x"
					}
					_, _ = fmt.Fprintf(stdout, "  [%s] %s  %s\n", mark, e.Start.In(day.Location()).Format(views.DefaultDateFormat), e.Title)
				}
				info(stdout, cfg)
				return nil
			})
		},
	}
	cmd.Flags().StringP("month", "m", "", "Month as YYYY-MM (default: current month)")
	return cmd
}

func newExportCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every task as an iCalendar file or a markdown checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			if !slices.Contains(exportFormats, format) {
				return utils.ErrInvalidChoice("format", format, exportFormats)
			}
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				export := a.ExportICS
				if format == "markdown" {
					export = a.ExportMarkdown
				}
				if out == "" || out == "-" {
					return export(stdout)
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				if err := export(f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				if jsonOutput {
					return outputJSON(stdout, struct {
						Path   string `json:"path"`
						Format string `json:"format"`
						Count  int    `json:"count"`
						Result string `json:"result"`
					}{out, format, len(a.Tasks.All()), ResultActionCompleted})
				}
				_, _ = fmt.Fprintf(stdout, "Exported %d tasks to %s\n", len(a.Tasks.All()), out)
				done(stdout, cfg)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "File to write (default: stdout)")
	cmd.Flags().StringP("format", "f", "ics", "Output format (ics, markdown)")
	return cmd
}

var exportFormats = []string{"ics", "markdown"}

func newQuoteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "quote",
		Short: "Show the quote of the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				q := a.Quote(ctx)
				if jsonOutput {
					return outputJSON(stdout, struct {
						Quote  any    `json:"quote"`
						Result string `json:"result"`
					}{q, ResultInfoOnly})
				}
				_, _ = fmt.Fprintln(stdout, q.Text())
				info(stdout, cfg)
				return nil
			})
		},
	}
}

func newWeatherCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "weather",
		Short: "Show current weather for the configured location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				w := a.Weather(ctx)
				if jsonOutput {
					return outputJSON(stdout, struct {
						Weather any    `json:"weather"`
						Result  string `json:"result"`
					}{w, ResultInfoOnly})
				}
				_, _ = fmt.Fprintf(stdout, "%s %s: %s\n", w.Icon, w.Location, w.Text)
				if w.Fallback && credentialManager(cfg).ResolveWeatherKey(ctx) == "" {
					_, _ = fmt.Fprintln(stdout, utils.ErrWeatherKeyMissing().Error())
				}
				info(stdout, cfg)
				return nil
			})
		},
	}
}

func newNotifyCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage notification permission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	report := func(stdout io.Writer, jsonOutput bool, state backend.Permission, result string) error {
		if jsonOutput {
			return outputJSON(stdout, struct {
				Permission backend.Permission `json:"permission"`
				Result     string             `json:"result"`
			}{state, result})
		}
		_, _ = fmt.Fprintf(stdout, "Notification permission: %s\n", state)
		return nil
	}

	notifyCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the notification permission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				if err := report(stdout, jsonOutput, a.Gate.State(), ResultInfoOnly); err != nil || jsonOutput {
					return err
				}
				info(stdout, cfg)
				return nil
			})
		},
	})
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Request permission if undecided and send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				state, err := a.TestNotification(ctx)
				if err != nil {
					return err
				}
				if err := report(stdout, jsonOutput, state, ResultActionCompleted); err != nil || jsonOutput {
					return err
				}
				if state == backend.PermissionGranted {
					_, _ = fmt.Fprintln(stdout, "Test notification sent")
				}
				done(stdout, cfg)
				return nil
			})
		},
	})
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the permission decision so it is asked again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				if err := a.Gate.Reset(ctx); err != nil {
					return err
				}
				if err := report(stdout, jsonOutput, a.Gate.State(), ResultActionCompleted); err != nil || jsonOutput {
					return err
				}
				done(stdout, cfg)
				return nil
			})
		},
	})
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Show the notification log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			lines, err := notification.ReadLog(conf.Notification.LogNotification.Path)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				_, _ = fmt.Fprintln(stdout, "No notifications logged")
			}
			for _, l := range lines {
				_, _ = fmt.Fprintln(stdout, l)
			}
			info(stdout, cfg)
			return nil
		},
	})
	return notifyCmd
}
