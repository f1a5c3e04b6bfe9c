package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/phrazzld/meetrec/internal/task"
	"github.com/spf13/cobra"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and retry queued tasks",
	}

	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksShowCommand(ctx))
	tasksCmd.AddCommand(newTasksRetryCommand(ctx))

	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var status, taskType string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := task.ListFilter{Status: task.TaskStatus(status), Type: taskType, Limit: limit}
			if filter.Status != "" && !filter.Status.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				tasks, err := app.queue.List(c, filter)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Status", "Created", "Error"},
					buildTaskRows(tasks),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().StringVar(&taskType, "type", "", "Filter by task type")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tasks to show")
	return cmd
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				t, err := app.queue.Get(c, id)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderDetails([][2]string{
					{"ID", strconv.FormatInt(t.ID, 10)},
					{"Type", t.Type},
					{"Status", string(t.Status)},
					{"Payload", string(t.Payload)},
					{"Created", formatTime(t.CreatedAt)},
					{"Started", formatTimePtr(t.StartedAt)},
					{"Completed", formatTimePtr(t.CompletedAt)},
					{"Error", valueOrDash(t.Error)},
				}))
				return nil
			})
		},
	}
}

func newTasksRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-enqueue a failed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				newID, err := app.queue.Retry(c, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried task %d as task %d\n", id, newID)
				return nil
			})
		},
	}
}

func buildTaskRows(tasks []*task.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Type,
			string(t.Status),
			formatTime(t.CreatedAt),
			truncate(t.Error, 60),
		})
	}
	return rows
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
