package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
)

// Positional argument validators. Ids are checked for shape only; whether a
// ticket exists is the backend's call.

func requireArgCount(min, max int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return errors.New(message)
		}
		return nil
	}
}

// validateID rejects blank ids and ids that cannot be a single path segment.
func validateID(label, raw string) error {
	id := strings.TrimSpace(raw)
	if id == "" {
		return fmt.Errorf("%s is required", label)
	}
	for _, r := range id {
		if r == '/' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("invalid %s %q", label, raw)
		}
	}
	return nil
}

// ticketArgs checks the argument count and then the leading ticket id. When
// withComment is set, an optional second argument is checked as a comment id.
func ticketArgs(min, max int, message string, withComment bool) cobra.PositionalArgs {
	count := requireArgCount(min, max, message)
	return func(cmd *cobra.Command, args []string) error {
		if err := count(cmd, args); err != nil {
			return err
		}
		if err := validateID("ticket id", args[0]); err != nil {
			return err
		}
		if withComment && len(args) > 1 {
			return validateID("comment id", args[1])
		}
		return nil
	}
}

var (
	requireTicketID         = ticketArgs(1, 1, "ticket id is required", false)
	requireTicketAndBody    = ticketArgs(2, -1, "ticket id and message are required", false)
	requireTicketAndComment = ticketArgs(1, 2, "ticket id is required; comment id is optional", true)
)
