package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kairon/backend"
	"kairon/internal/app"
	"kairon/internal/reminder"
	"kairon/internal/store"
	"kairon/internal/utils"
	"kairon/internal/views"
)

type listTasksResponse struct {
	Tasks  []backend.Task `json:"tasks"`
	Count  int            `json:"count"`
	Result string         `json:"result"`
}

type actionResponse struct {
	Action string       `json:"action"`
	Task   backend.Task `json:"task"`
	Result string       `json:"result"`
}

func outputActionJSON(stdout io.Writer, action string, t backend.Task) error {
	return outputJSON(stdout, actionResponse{Action: action, Task: t, Result: ResultActionCompleted})
}

func outputTaskListJSON(stdout io.Writer, tasks []backend.Task) error {
	if tasks == nil {
		tasks = []backend.Task{}
	}
	return outputJSON(stdout, listTasksResponse{Tasks: tasks, Count: len(tasks), Result: ResultInfoOnly})
}

// parseDue parses --due relative to now.
func parseDue(s string, now time.Time) (time.Time, error) {
	due, err := utils.ParseDueFlag(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if due == nil {
		return time.Time{}, utils.WrapWithSuggestion(errors.New("due date is required"), "Pass --due, e.g. --due \"tomorrow 09:00\"")
	}
	return *due, nil
}

func parsePriority(s string) (backend.Priority, error) {
	p := backend.Priority(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(backend.Priorities, p) {
		return "", utils.ErrInvalidChoice("priority", s, []string{"low", "medium", "high"})
	}
	return p, nil
}

func parseRecurrence(s string) (backend.Recurrence, error) {
	r := backend.Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(backend.Recurrences, r) {
		return "", utils.ErrInvalidChoice("recurrence", s, []string{"none", "daily", "weekly", "monthly"})
	}
	return r, nil
}

// leadFlag converts --remind into minutes; unset means the config default.
func leadFlag(cmd *cobra.Command) (int, error) {
	if !cmd.Flags().Changed("remind") {
		return app.DefaultLead, nil
	}
	v, _ := cmd.Flags().GetString("remind")
	return reminder.ParseLead(v)
}

func subtasksFrom(texts []string) []backend.Subtask {
	out := make([]backend.Subtask, 0, len(texts))
	for _, s := range texts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, backend.Subtask{Text: s})
		}
	}
	return out
}

func addTaskFlags(cmd *cobra.Command) {
	cmd.Flags().String("due", "", "Due date and time (YYYY-MM-DD HH:MM, today 17:00, tomorrow, +Nd)")
	cmd.Flags().StringP("category", "c", "", "Category (Work, Personal, Shopping, Health, Other)")
	cmd.Flags().StringP("priority", "p", "", "Priority (low, medium, high)")
	cmd.Flags().String("recurrence", "", "Recurrence label (none, daily, weekly, monthly)")
	cmd.Flags().String("tags", "", "Comma-separated tags")
	cmd.Flags().String("notes", "", "Free-form notes")
	cmd.Flags().StringArray("subtask", nil, "Checklist item (repeatable)")
	cmd.Flags().String("remind", "", "Reminder lead before due (e.g. 15m, 1h, 1d, none)")
}

func newAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Long:  "Add a task. Without a title, fields are asked for one by one.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				var d store.Draft
				lead := app.DefaultLead

				if len(args) == 0 {
					if !cfg.interactive() {
						return utils.WrapWithSuggestion(errors.New("task title is required"), "Use 'kairon add \"Title\" --due \"tomorrow 09:00\"'")
					}
					f, err := cfg.prompter(stdout).Add(a.Now())
					if err != nil {
						return err
					}
					d = f.Draft
					if f.LeadSet {
						lead = f.LeadMinutes
					}
				} else {
					var err error
					if d, err = draftFromFlags(cmd, args[0], a.Now()); err != nil {
						return err
					}
					if lead, err = leadFlag(cmd); err != nil {
						return err
					}
				}

				t, err := a.CreateTask(ctx, d, lead)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputActionJSON(stdout, "add", t)
				}
				_, _ = fmt.Fprintf(stdout, "Created task: %s (ID: %d)\n", t.Title, t.ID)
				done(stdout, cfg)
				return nil
			})
		},
	}
	addTaskFlags(cmd)
	return cmd
}

func draftFromFlags(cmd *cobra.Command, title string, now time.Time) (store.Draft, error) {
	d := store.Draft{Title: title}
	dueStr, _ := cmd.Flags().GetString("due")
	due, err := parseDue(dueStr, now)
	if err != nil {
		return d, err
	}
	d.Due = due
	d.Category, _ = cmd.Flags().GetString("category")
	if v, _ := cmd.Flags().GetString("priority"); v != "" {
		if d.Priority, err = parsePriority(v); err != nil {
			return d, err
		}
	}
	if v, _ := cmd.Flags().GetString("recurrence"); v != "" {
		if d.Recurrence, err = parseRecurrence(v); err != nil {
			return d, err
		}
	}
	tags, _ := cmd.Flags().GetString("tags")
	d.Tags = utils.SplitTags(tags)
	d.Notes, _ = cmd.Flags().GetString("notes")
	subs, _ := cmd.Flags().GetStringArray("subtask")
	d.Subtasks = subtasksFrom(subs)
	return d, nil
}

func newListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "List active tasks, narrowed by search text, category, priority, tag and time window.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				c, err := criteriaFromFlags(cmd)
				if err != nil {
					return err
				}
				source := a.Tasks.Active()
				if all, _ := cmd.Flags().GetBool("all"); all {
					source = a.Tasks.All()
				} else if completed, _ := cmd.Flags().GetBool("completed"); completed {
					source = a.Tasks.Completed()
				}
				tasks := views.Filter(source, c, a.Now())

				if jsonOutput {
					return outputTaskListJSON(stdout, tasks)
				}
				if len(tasks) == 0 {
					_, _ = fmt.Fprintln(stdout, "No tasks found")
				} else {
					_, _ = fmt.Fprintf(stdout, "Tasks (%d):\n", len(tasks))
					views.NewRenderer(stdout, a.Now()).Render(tasks)
				}
				info(stdout, cfg)
				return nil
			})
		},
	}
	cmd.Flags().StringP("search", "s", "", "Case-insensitive title search")
	cmd.Flags().StringP("category", "c", "", "Category filter")
	cmd.Flags().StringP("priority", "p", "", "Priority filter (low, medium, high)")
	cmd.Flags().StringP("tag", "t", "", "Tag filter")
	cmd.Flags().StringP("window", "w", "all", "Time window (all, today, week, overdue)")
	cmd.Flags().String("sort", string(views.SortDue), "Sort order (due, manual, priority, created)")
	cmd.Flags().Bool("all", false, "Include completed tasks")
	cmd.Flags().Bool("completed", false, "Show only completed tasks")
	return cmd
}

func criteriaFromFlags(cmd *cobra.Command) (views.Criteria, error) {
	var c views.Criteria
	c.Search, _ = cmd.Flags().GetString("search")
	c.Category, _ = cmd.Flags().GetString("category")
	c.Priority, _ = cmd.Flags().GetString("priority")
	c.Tag, _ = cmd.Flags().GetString("tag")
	if c.Priority != "" && c.Priority != views.AllSentinel {
		p, err := parsePriority(c.Priority)
		if err != nil {
			return c, err
		}
		c.Priority = string(p)
	}

	window, _ := cmd.Flags().GetString("window")
	c.Window = views.Window(strings.ToLower(window))
	if !slices.Contains(views.Windows, c.Window) {
		names := make([]string, len(views.Windows))
		for i, w := range views.Windows {
			names[i] = string(w)
		}
		return c, utils.ErrInvalidChoice("window", window, names)
	}
	sortKey, _ := cmd.Flags().GetString("sort")
	c.Sort = views.SortKey(strings.ToLower(sortKey))
	if !slices.Contains(views.SortKeys, c.Sort) {
		names := make([]string, len(views.SortKeys))
		for i, k := range views.SortKeys {
			names[i] = string(k)
		}
		return c, utils.ErrInvalidChoice("sort", sortKey, names)
	}
	return c, nil
}

func newTodayCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show the home screen: greeting, overdue and due-today tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				now := a.Now()
				v := a.Today(now)
				if jsonOutput {
					return outputJSON(stdout, struct {
						app.TodayView
						Result string `json:"result"`
					}{v, ResultInfoOnly})
				}

				_, _ = fmt.Fprintf(stdout, "%s · %s · %s\n", v.Greeting, v.Location, now.Format("Monday, January 2"))
				_, _ = fmt.Fprintf(stdout, "%d active · %d completed · %d%% on time\n", v.Summary.Active, v.Summary.Completed, v.Summary.OnTimeRate)
				if len(v.Overdue) > 0 {
					_, _ = fmt.Fprintf(stdout, "\nOverdue (%d):\n", len(v.Overdue))
					for _, t := range v.Overdue {
						_, _ = fmt.Fprintf(stdout, "  #%d %s (%s)\n", t.ID, t.Title, views.OverdueLabel(t.Due, now))
					}
				}
				_, _ = fmt.Fprintf(stdout, "\nDue today (%d):\n", len(v.DueToday))
				if len(v.DueToday) == 0 {
					_, _ = fmt.Fprintln(stdout, "  Nothing due today")
				}
				for _, t := range v.DueToday {
					_, _ = fmt.Fprintf(stdout, "  #%d %s at %s\n", t.ID, t.Title, t.Due.In(now.Location()).Format("15:04"))
				}
				info(stdout, cfg)
				return nil
			})
		},
	}
}

func newUpdateCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [id|title]",
		Short: "Edit an active task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				t, err := findTask(a, cfg.prompter(stdout), cfg, firstArg(args), true)
				if err != nil {
					return err
				}
				p, err := patchFromFlags(cmd, a.Now())
				if err != nil {
					return err
				}
				lead := app.DefaultLead
				if cmd.Flags().Changed("remind") {
					if lead, err = leadFlag(cmd); err != nil {
						return err
					}
				}

				updated, err := a.UpdateTask(ctx, t.ID, p, lead)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputActionJSON(stdout, "update", updated)
				}
				_, _ = fmt.Fprintf(stdout, "Updated task: %s\n", updated.Title)
				done(stdout, cfg)
				return nil
			})
		},
	}
	cmd.Flags().String("title", "", "New title")
	addTaskFlags(cmd)
	return cmd
}

func patchFromFlags(cmd *cobra.Command, now time.Time) (store.Patch, error) {
	var p store.Patch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		due, err := parseDue(v, now)
		if err != nil {
			return p, err
		}
		p.Due = &due
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		p.Category = &v
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		pr, err := parsePriority(v)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	if flags.Changed("recurrence") {
		v, _ := flags.GetString("recurrence")
		r, err := parseRecurrence(v)
		if err != nil {
			return p, err
		}
		p.Recurrence = &r
	}
	if flags.Changed("tags") {
		v, _ := flags.GetString("tags")
		tags := utils.SplitTags(v)
		p.Tags = &tags
	}
	if flags.Changed("notes") {
		v, _ := flags.GetString("notes")
		p.Notes = &v
	}
	if flags.Changed("subtask") {
		v, _ := flags.GetStringArray("subtask")
		subs := subtasksFrom(v)
		p.Subtasks = &subs
	}
	return p, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func newCompleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [id|title]",
		Short: "Mark a task completed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				t, err := findTask(a, cfg.prompter(stdout), cfg, firstArg(args), true)
				if err != nil {
					return err
				}
				completed, err := a.CompleteTask(ctx, t.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputActionJSON(stdout, "complete", completed)
				}
				_, _ = fmt.Fprintf(stdout, "Completed task: %s\n", completed.Title)
				done(stdout, cfg)
				return nil
			})
		},
	}
}

func newDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id|title]",
		Short: "Delete a task after confirmation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				p := cfg.prompter(stdout)
				t, err := findTask(a, p, cfg, firstArg(args), false)
				if err != nil {
					return err
				}
				ok, err := confirm(p, cfg, fmt.Sprintf("Delete task '%s'?", t.Title))
				if err != nil {
					return err
				}
				if !ok {
					return utils.ErrConfirmationDeclined("delete")
				}
				if err := a.DeleteTask(ctx, t.ID, true); err != nil {
					return err
				}
				if jsonOutput {
					return outputActionJSON(stdout, "delete", t)
				}
				_, _ = fmt.Fprintf(stdout, "Deleted task: %s\n", t.Title)
				done(stdout, cfg)
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid task id: %s", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newReorderCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Set the manual order of active tasks",
		Long:  "Set the manual order of active tasks. The slots held by the listed tasks are refilled in the given order; every other task keeps its place.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				if err := a.Reorder(ctx, ids); err != nil {
					return err
				}
				tasks := views.Sort(a.Tasks.Active(), views.SortManual)
				if jsonOutput {
					return outputJSON(stdout, listTasksResponse{Tasks: tasks, Count: len(tasks), Result: ResultActionCompleted})
				}
				for i, t := range tasks {
					_, _ = fmt.Fprintf(stdout, "%d. #%d %s\n", i+1, t.ID, t.Title)
				}
				done(stdout, cfg)
				return nil
			})
		},
	}
}

func newSubtaskCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	subtaskCmd := &cobra.Command{
		Use:   "subtask",
		Short: "Work with task checklists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	subtaskCmd.AddCommand(&cobra.Command{
		Use:   "toggle <id|title> <number>",
		Short: "Toggle a checklist item (numbered from 1)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid subtask number: %s", args[1])
			}
			return withApp(cmd, cfg, func(ctx context.Context, a *app.App, jsonOutput bool) error {
				t, err := findTask(a, cfg.prompter(stdout), cfg, args[0], true)
				if err != nil {
					return err
				}
				updated, err := a.ToggleSubtask(ctx, t.ID, n-1)
				if err != nil {
					return err
				}
				if jsonOutput {
					return outputActionJSON(stdout, "toggle", updated)
				}
				s := updated.Subtasks[n-1]
				state := "open"
				if s.Completed {
					state = "done"
				}
				prog := views.SubtaskProgress(updated)
				_, _ = fmt.Fprintf(stdout, "%s: %s (%d/%d done)\n", s.Text, state, prog.Done, prog.Total)
				done(stdout, cfg)
				return nil
			})
		},
	})
	return subtaskCmd
}
