package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tix/internal/api"
	"tix/internal/config"
	"tix/internal/detail"
	"tix/internal/models"
)

type mutationFunc func(ctx context.Context, view *detail.View) (*models.Ticket, error)

// runMutation loads the ticket, applies one mutation and prints the
// reconciled snapshot.
func runMutation(cmd *cobra.Command, cfg *config.Config, opts *outputOptions, ticketID string, fn mutationFunc) error {
	ctx := cmd.Context()
	return withView(ctx, cfg, ticketID, false, func(view *detail.View) error {
		if err := view.Open(ctx); err != nil {
			return err
		}
		if _, err := fn(ctx, view); err != nil {
			return err
		}
		return writeState(cmd.OutOrStdout(), opts, view)
	})
}

func newReopenCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reopen <ticket-id>",
		Short: "Reopen a resolved ticket",
		Args:  requireTicketID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, cfg, opts, args[0], func(ctx context.Context, view *detail.View) (*models.Ticket, error) {
				return view.Reopen(ctx)
			})
		},
	}

	return cmd
}

func newCommentCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment <ticket-id> <message...>",
		Short: "Reply on a ticket",
		Args:  requireTicketAndBody,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args[1:], " ")
			return runMutation(cmd, cfg, opts, args[0], func(ctx context.Context, view *detail.View) (*models.Ticket, error) {
				return view.SubmitComment(ctx, body)
			})
		},
	}

	return cmd
}

func newDecideCmd(cfg *config.Config, opts *outputOptions, decision models.Decision) *cobra.Command {
	verb := "accept"
	short := "Accept the pending AI suggestion"
	if decision == models.DecisionRejected {
		verb = "reject"
		short = "Reject the pending AI suggestion"
	}

	cmd := &cobra.Command{
		Use:   verb + " <ticket-id> [comment-id]",
		Short: short,
		Long:  short + ". Without a comment id the latest reviewable suggestion is used.",
		Args:  requireTicketAndComment,
		RunE: func(cmd *cobra.Command, args []string) error {
			ticketID := args[0]
			return runMutation(cmd, cfg, opts, ticketID, func(ctx context.Context, view *detail.View) (*models.Ticket, error) {
				var (
					ticket *models.Ticket
					err    error
				)
				if len(args) == 2 {
					ticket, err = view.Decide(ctx, args[1], decision)
				} else {
					ticket, err = view.DecideLatest(ctx, decision)
				}
				if errors.Is(err, api.ErrSkipped) {
					return nil, fmt.Errorf("no suggestion awaiting review on ticket %s", ticketID)
				}
				return ticket, err
			})
		},
	}

	return cmd
}
