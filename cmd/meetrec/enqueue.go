package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/spf13/cobra"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue recording tasks",
	}

	enqueueCmd.AddCommand(newEnqueueStartCommand(ctx))
	enqueueCmd.AddCommand(newEnqueueProcessCommand(ctx))
	enqueueCmd.AddCommand(newEnqueueCleanupCommand(ctx))

	return enqueueCmd
}

func newEnqueueStartCommand(ctx *commandContext) *cobra.Command {
	var payload recording.StartRecordingPayload

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start recording a meeting room",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload.UniqueID = domain.NewUniqueID()
			return enqueue(cmd, ctx, task.TaskTypeStartRecording, payload, payload.UniqueID)
		},
	}

	cmd.Flags().StringVar(&payload.MeetingID, "meeting-id", "", "Meeting identifier")
	cmd.Flags().StringVar(&payload.RoomURL, "room-url", "", "Meeting room URL")
	cmd.Flags().StringVar(&payload.RoomName, "room-name", "", "Room name (defaults to the meeting ID)")
	_ = cmd.MarkFlagRequired("meeting-id")
	_ = cmd.MarkFlagRequired("room-url")
	return cmd
}

func newEnqueueProcessCommand(ctx *commandContext) *cobra.Command {
	var payload recording.ProcessRecordingPayload

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Fetch, store and transcribe a finished recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueue(cmd, ctx, task.TaskTypeProcessRecording, payload, payload.RecordingID)
		},
	}

	cmd.Flags().StringVar(&payload.RecordingID, "recording-id", "", "Recording unique ID")
	cmd.Flags().StringVar(&payload.RecordingURL, "recording-url", "", "Artifact download URL")
	_ = cmd.MarkFlagRequired("recording-id")
	return cmd
}

func newEnqueueCleanupCommand(ctx *commandContext) *cobra.Command {
	var daysOld int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored artifacts older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload recording.CleanupRecordingsPayload
			if cmd.Flags().Changed("days-old") {
				payload.DaysOld = &daysOld
			}
			return enqueue(cmd, ctx, task.TaskTypeCleanupRecordings, payload, "")
		},
	}

	cmd.Flags().IntVar(&daysOld, "days-old", recording.DefaultCleanupDays, "Age in days beyond which artifacts are deleted")
	return cmd
}

// enqueue validates payload and persists it as a new task of taskType.
func enqueue(cmd *cobra.Command, ctx *commandContext, taskType string, payload any, uniqueID string) error {
	if err := validator.New().Struct(payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", taskType, err)
	}
	return ctx.withApp(cmd, func(c context.Context, app *application) error {
		id, err := app.queue.Enqueue(c, taskType, payload)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Enqueued %s task %d\n", taskType, id)
		if uniqueID != "" {
			fmt.Fprintf(out, "Recording: %s\n", uniqueID)
		}
		return nil
	})
}
