package main

import (
	"github.com/spf13/cobra"

	"tix/internal/config"
	"tix/internal/detail"
)

func newShowCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show ticket details",
		Args:  requireTicketID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withView(cmd.Context(), cfg, args[0], true, func(view *detail.View) error {
				if err := view.Open(cmd.Context()); err != nil {
					return err
				}
				return writeState(cmd.OutOrStdout(), opts, view)
			})
		},
	}

	return cmd
}
