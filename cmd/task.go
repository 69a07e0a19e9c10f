package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	config "ops-task-service.com/ops-task-service/internal/configs"
	"ops-task-service.com/ops-task-service/internal/constants"
	model "ops-task-service.com/ops-task-service/internal/models"
	"ops-task-service.com/ops-task-service/internal/services"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Drive ops tasks from the command line",
}

// withApp bootstraps the service graph for a one-shot command and drains the
// event log before returning.
func withApp(fn func(ctx context.Context, a *app, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		out, runErr := fn(ctx, a, args)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
		defer cancel()
		a.close(shutdownCtx)

		if runErr != nil {
			return runErr
		}
		return printJSON(out)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseJSONFlag(raw, flag string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flag, err)
	}
	return out, nil
}

var (
	createName        string
	createType        string
	createConfig      string
	createPriority    int
	createTriggeredBy string
	createApproved    bool
	completeResult    string
	failMessage       string
	approveRevoke     bool
	listLimit         int
	eventsLimit       int
	eventsAgent       string
	eventsSeverity    string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending task",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app, _ []string) (any, error) {
			cfg, err := parseJSONFlag(createConfig, "config")
			if err != nil {
				return nil, err
			}
			draft := model.TaskDraft{
				Name:        createName,
				Type:        createType,
				Config:      cfg,
				TriggeredBy: createTriggeredBy,
				Approved:    createApproved,
			}
			if cmd.Flags().Changed("priority") {
				draft.Priority = &createPriority
			}
			return a.tasks.CreateTask(ctx, draft)
		})(cmd, args)
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		return a.tasks.GetTask(ctx, args[0])
	}),
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending task, or revoke approval with --revoke",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		return a.tasks.ApproveTask(ctx, args[0], !approveRevoke)
	}),
}

var taskStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Move a pending task to running",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		return a.tasks.StartTask(ctx, args[0])
	}),
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a running task completed",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		result, err := parseJSONFlag(completeResult, "result")
		if err != nil {
			return nil, err
		}
		return a.tasks.CompleteTask(ctx, args[0], result)
	}),
}

var taskFailCmd = &cobra.Command{
	Use:   "fail <id>",
	Short: "Mark a running task failed",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		if failMessage == "" {
			return nil, fmt.Errorf("--message is required")
		}
		return a.tasks.FailTask(ctx, args[0], failMessage)
	}),
}

var taskRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Start a task and execute it with its registered executor",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		return a.runner.RunTask(ctx, args[0])
	}),
}

var taskPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending tasks by priority",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) (any, error) {
		return a.tasks.ListPending(ctx, listLimit)
	}),
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent event log entries",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) (any, error) {
		if eventsSeverity != "" && !constants.Severity(eventsSeverity).Valid() {
			return nil, fmt.Errorf("unknown severity %q", eventsSeverity)
		}
		return a.eventRepo.List(ctx, model.EventLogFilter{
			AgentName: eventsAgent,
			Severity:  constants.Severity(eventsSeverity),
			Limit:     eventsLimit,
		})
	}),
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <name>",
	Short: "Fire one entry of the schedules file immediately",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) (any, error) {
		if a.cfg.SchedulesFile == "" {
			return nil, fmt.Errorf("SCHEDULES_FILE is not set")
		}
		schedules, err := config.LoadSchedules(a.cfg.SchedulesFile)
		if err != nil {
			return nil, err
		}

		scheduler, err := services.NewScheduleService(a.tasks, a.runner, a.logger)
		if err != nil {
			return nil, err
		}
		for _, sched := range schedules {
			if sched.Name == args[0] {
				return scheduler.Trigger(ctx, sched)
			}
		}
		return nil, fmt.Errorf("schedule %q not found in %s", args[0], a.cfg.SchedulesFile)
	}),
}

func init() {
	taskCreateCmd.Flags().StringVar(&createName, "name", "", "task name")
	taskCreateCmd.Flags().StringVar(&createType, "type", "", "task type, e.g. backup_database")
	taskCreateCmd.Flags().StringVar(&createConfig, "config", "", "task config as a JSON object")
	taskCreateCmd.Flags().IntVar(&createPriority, "priority", constants.DefaultPriority, "task priority, higher runs first")
	taskCreateCmd.Flags().StringVar(&createTriggeredBy, "triggered-by", constants.TriggeredByManual, "origin of the task")
	taskCreateCmd.Flags().BoolVar(&createApproved, "approved", false, "pre-approve a destructive task")

	taskApproveCmd.Flags().BoolVar(&approveRevoke, "revoke", false, "revoke approval instead of granting it")
	taskCompleteCmd.Flags().StringVar(&completeResult, "result", "", "result as a JSON object")
	taskFailCmd.Flags().StringVar(&failMessage, "message", "", "failure reason")

	taskPendingCmd.Flags().IntVar(&listLimit, "limit", 10, "maximum number of tasks")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "maximum number of entries")
	eventsCmd.Flags().StringVar(&eventsAgent, "agent", "", "filter by agent name")
	eventsCmd.Flags().StringVar(&eventsSeverity, "severity", "", "filter by severity")

	taskCmd.AddCommand(
		taskCreateCmd,
		taskGetCmd,
		taskApproveCmd,
		taskStartCmd,
		taskCompleteCmd,
		taskFailCmd,
		taskRunCmd,
		taskPendingCmd,
	)
	rootCmd.AddCommand(taskCmd, eventsCmd, scheduleCmd)
}
