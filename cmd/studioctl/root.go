package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"media-studio-server/modules/app"
	"media-studio-server/modules/common/config"
)

type commandContext struct {
	dataDirFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(dataDirFlag *string) *commandContext {
	return &commandContext{dataDirFlag: dataDirFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadConfig()
		if err != nil {
			c.configErr = err
			return
		}
		if c.dataDirFlag != nil && strings.TrimSpace(*c.dataDirFlag) != "" {
			cfg.DataDir = strings.TrimSpace(*c.dataDirFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureApp - services without Redis; the CLI runs everything synchronously
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = app.New(ctx, cfg, app.Options{})
	})
	return c.app, c.appErr
}

func newRootCommand() *cobra.Command {
	var dataDirFlag string
	ctx := newCommandContext(&dataDirFlag)

	rootCmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Operate on the media studio artifact store",
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

	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Override DATA_DIR")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newDeleteCommand(ctx))
	rootCmd.AddCommand(newTrimCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newClassifyCommand(ctx))

	return rootCmd
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
