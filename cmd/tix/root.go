package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tix/internal/config"
	"tix/internal/models"
)

type outputOptions struct {
	jsonOutput bool
	yamlOutput bool
	noColor    bool
	logLevel   string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &outputOptions{}

	cmd := &cobra.Command{
		Use:           "tix",
		Short:         "Tix is a terminal client for support tickets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			if opts.jsonOutput && opts.yamlOutput {
				return errors.New("--json and --yaml cannot be combined")
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&opts.yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newShowCmd(cfg, opts),
		newWatchCmd(cfg, opts),
		newReopenCmd(cfg, opts),
		newCommentCmd(cfg, opts),
		newDecideCmd(cfg, opts, models.DecisionAccepted),
		newDecideCmd(cfg, opts, models.DecisionRejected),
		newSessionCmd(cfg, opts),
		newConfigCmd(cfg),
	)

	return cmd
}
