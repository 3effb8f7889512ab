package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tix/internal/config"
	"tix/internal/detail"
)

func newWatchCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	var untilConverged bool

	cmd := &cobra.Command{
		Use:   "watch <ticket-id>",
		Short: "Show a ticket and follow it while processing is pending",
		Args:  requireTicketID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withView(ctx, cfg, args[0], true, func(view *detail.View) error {
				return watchView(ctx, cmd, opts, view, untilConverged)
			})
		},
	}

	cmd.Flags().BoolVar(&untilConverged, "until-converged", false, "exit once background processing has finished")
	return cmd
}

func watchView(ctx context.Context, cmd *cobra.Command, opts *outputOptions, view *detail.View, untilConverged bool) error {
	wake := make(chan struct{}, 1)
	unsubscribe := view.Subscribe(func(detail.State) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := view.Open(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var (
		shown        uint64
		shownPolling bool
	)
	for {
		state := view.State()
		if state.Version != shown || state.Polling != shownPolling {
			if shown != 0 && !opts.structured() {
				if err := writePlain(out, "\n--- updated %s ---\n", time.Now().Format(time.TimeOnly)); err != nil {
					return err
				}
			}
			if err := writeState(out, opts, view); err != nil {
				return err
			}
			shown, shownPolling = state.Version, state.Polling
		}
		if untilConverged && state.Phase == detail.PhaseReady && !state.Polling {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.Canceled && cmd.Context().Err() == nil {
				// Interrupted by a signal.
				return nil
			}
			return fmt.Errorf("watch: %w", ctx.Err())
		case <-wake:
		}
	}
}
