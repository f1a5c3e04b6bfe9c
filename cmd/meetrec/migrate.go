package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				m, err := app.migrator()
				if err != nil {
					return err
				}
				if err := m.Up(c); err != nil {
					return err
				}
				version, err := m.Version(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database at version %d\n", version)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				m, err := app.migrator()
				if err != nil {
					return err
				}
				if err := m.Down(c); err != nil {
					return err
				}
				version, err := m.Version(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database at version %d\n", version)
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(c context.Context, app *application) error {
				m, err := app.migrator()
				if err != nil {
					return err
				}
				statuses, err := m.Status(c)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					state, applied := "pending", "-"
					if s.Applied {
						state, applied = "applied", formatTime(s.AppliedAt)
					}
					rows = append(rows, []string{strconv.FormatInt(s.Version, 10), s.Name, state, applied})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Version", "Name", "State", "Applied At"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	})

	return migrateCmd
}
