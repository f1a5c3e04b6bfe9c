package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/spf13/cobra"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Inspect the recording registry",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := domain.RecordingStatus(status)
			if s != "" && !s.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				recs, err := app.recordings.List(c, s)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recordings")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Unique ID", "Meeting", "Room", "Status", "Updated"},
					buildRecordingRows(recs),
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <unique-id>",
		Short: "Show one recording and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				rec, err := app.recordings.GetByUniqueID(c, args[0])
				if err != nil {
					return err
				}
				pairs := [][2]string{
					{"Unique ID", rec.UniqueID},
					{"Meeting", rec.MeetingID},
					{"Remote ID", rec.RecordingID},
					{"Room", rec.RoomName},
					{"Room URL", valueOrDash(rec.RoomURL)},
					{"Status", string(rec.Status)},
					{"Created", formatTime(rec.CreatedAt)},
					{"Updated", formatTime(rec.UpdatedAt)},
				}
				pairs = append(pairs, metadataPairs(rec.Metadata)...)
				fmt.Fprint(cmd.OutOrStdout(), renderDetails(pairs))
				return nil
			})
		},
	}
}

func buildRecordingRows(recs []*domain.Recording) [][]string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.UniqueID,
			r.MeetingID,
			r.RoomName,
			string(r.Status),
			formatTime(r.UpdatedAt),
		})
	}
	return rows
}

// metadataPairs flattens top-level metadata keys in sorted order. Nested
// values are shown as JSON.
func metadataPairs(meta domain.Metadata) [][2]string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		var value string
		switch v := meta[k].(type) {
		case string:
			value = v
		default:
			b, err := sonic.Marshal(v)
			if err != nil {
				value = fmt.Sprint(v)
			} else {
				value = string(b)
			}
		}
		pairs = append(pairs, [2]string{"metadata." + k, truncate(value, 80)})
	}
	return pairs
}
