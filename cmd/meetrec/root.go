package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/phrazzld/meetrec/internal/config"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "meetrec",
		Short:         "Meeting recording service and task queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newEnqueueCommand(ctx))
	rootCmd.AddCommand(newTasksCommand(ctx))
	rootCmd.AddCommand(newRecordingsCommand(ctx))

	return rootCmd
}

// commandContext loads configuration once per invocation and hands
// subcommands an application wired from it.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load configuration: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the process logger writing to out.
func (c *commandContext) logger(out io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logger.SetupWithWriter(cfg.Server, out)
}

// withApp opens the stores for one command and closes them afterwards.
// Log output goes to stderr so command output stays parseable.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	log, err := c.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.close(); cerr != nil {
			log.Warn("failed to close application", "error", cerr)
		}
	}()
	return fn(ctx, app)
}
