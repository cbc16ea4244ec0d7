package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"kairon/internal/app"
	"kairon/internal/credentials"
	"kairon/internal/notification"
	"kairon/internal/server"
	"kairon/internal/shutdown"
	"kairon/internal/tui"
	"kairon/internal/utils"
	"kairon/internal/watcher"
)

// session opens the app for a long-running command and registers its
// cleanups. The database watcher is started when enabled and possible.
func session(mgr *shutdown.Manager, cmd *cobra.Command, cfg *Config, onChange func()) (*app.App, error) {
	a, err := openApp(mgr.Context(), cmd, cfg)
	if err != nil {
		return nil, err
	}
	mgr.RegisterCleanup("database", func(context.Context) error { return a.Close() })

	if !a.Config().WatchEnabled() || a.DBPath() == ":memory:" {
		return a, nil
	}
	w, err := watcher.New(watcher.Config{Path: a.DBPath(), OnChange: onChange})
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		utils.Warnf("database watcher disabled: %v", err)
		return a, nil
	}
	mgr.RegisterCleanup("watcher", func(context.Context) error {
		w.Stop()
		return nil
	})
	return a, nil
}

func newServeCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and Prometheus metrics",
		Long:  "Serve the JSON API under /api and metrics under /metrics. Reminders fire while the server runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := shutdown.NewManager(context.Background())
			mgr.HandleSignals()

			var a *app.App
			a, err := session(mgr, cmd, cfg, func() {
				if err := a.Reload(mgr.Context()); err != nil {
					utils.Warnf("reload: %v", err)
				}
			})
			if err != nil {
				return err
			}

			addr := a.Config().Server.Addr
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				addr = v
			}
			if n, err := a.NotifyOverdue(mgr.Context()); err != nil {
				utils.Warnf("overdue notification: %v", err)
			} else if n > 0 {
				utils.Infof("%d tasks overdue", n)
			}

			_, _ = fmt.Fprintf(stdout, "Serving on http://%s (Ctrl+C to stop)\n", addr)
			serveErr := server.New(a).ListenAndServe(mgr.Context(), addr)
			mgr.Shutdown()
			return errors.Join(serveErr, mgr.Cleanup(shutdown.DefaultTimeout))
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config server.addr)")
	return cmd
}

func newTUICmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := shutdown.NewManager(context.Background())
			mgr.HandleSignals()

			var program atomic.Pointer[tea.Program]
			a, err := session(mgr, cmd, cfg, func() {
				if p := program.Load(); p != nil {
					p.Send(tui.RefreshMsg{})
				}
			})
			if err != nil {
				return err
			}

			opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(mgr.Context())}
			if cfg.Stdin != nil {
				opts = append(opts, tea.WithInput(cfg.Stdin))
			}
			p := tea.NewProgram(tui.New(a), opts...)
			program.Store(p)
			unsubscribe := a.Inbox.Subscribe(func(n notification.Notification) {
				p.Send(tui.NotificationMsg{Notification: n})
			})
			mgr.RegisterCleanup("inbox", func(context.Context) error {
				unsubscribe()
				return nil
			})

			_, runErr := p.Run()
			if errors.Is(runErr, tea.ErrProgramKilled) && mgr.IsShutdown() {
				runErr = nil
			}
			mgr.Shutdown()
			return errors.Join(runErr, mgr.Cleanup(shutdown.DefaultTimeout))
		},
	}
}

func newCredentialsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage API keys",
		Long:  "Store, inspect and remove the API keys used by widgets. Keys live in the system keyring; " + credentials.EnvVar(credentials.ServiceWeather) + " overrides it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	handler := func() *credentials.CLIHandler {
		return credentials.NewCLIHandler(credentialManager(cfg), cfg.stdin(), stdout)
	}

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "set <service>",
		Short: "Store an API key in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := handler().Set(cmd.Context(), args[0]); err != nil {
				return err
			}
			done(stdout, cfg)
			return nil
		},
	})
	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "get <service>",
		Short: "Show where an API key comes from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if err := handler().Get(cmd.Context(), args[0], jsonOutput); err != nil {
				return err
			}
			if !jsonOutput {
				info(stdout, cfg)
			}
			return nil
		},
	})
	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "delete <service>",
		Short: "Remove an API key from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := handler().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			done(stdout, cfg)
			return nil
		},
	})
	return credentialsCmd
}
