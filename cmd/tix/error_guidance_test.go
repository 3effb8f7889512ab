package main

import (
	"context"
	"fmt"
	"testing"

	"tix/internal/api"
)

func TestFormatCLIError_Guidance(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing credential",
			err:  &api.TicketError{Kind: api.KindUnauthenticated, Message: "Authentication token is missing. Please log in again."},
			want: "hint: store a credential with: tix session set --token <token> --user-id <id> --role <role>",
		},
		{
			name: "rejected credential",
			err:  &api.TicketError{Kind: api.KindUnauthorized, Status: 401, Message: "Invalid token"},
			want: "hint: the server rejected the stored credential; log in again and update it with: tix session set",
		},
		{
			name: "local denial",
			err:  &api.TicketError{Kind: api.KindForbidden, Message: "You are not authorized to reopen this ticket."},
			want: "hint: your role does not allow this action; check the stored identity with: tix session show",
		},
		{
			name: "not found",
			err:  &api.TicketError{Kind: api.KindNotFound, Status: 404, Message: "Ticket not found"},
			want: "hint: verify the ticket id and that TIX_API_URL points to the ticket server.",
		},
		{
			name: "network",
			err:  fmt.Errorf("show: %w", &api.TicketError{Kind: api.KindNetwork, Message: "Failed to load ticket details."}),
			want: "hint: ensure the ticket server is reachable at TIX_API_URL.",
		},
		{
			name: "timeout",
			err:  &api.TicketError{Kind: api.KindTimeout, Message: "Request timed out. Failed to load ticket details."},
			want: "hint: request timed out; check server health or increase TIX_HTTP_TIMEOUT.",
		},
		{
			name: "internal",
			err:  &api.TicketError{Kind: api.KindServerError, Status: 500, Message: "boom"},
			want: "hint: server returned an internal error; retry shortly.",
		},
		{
			name: "bare deadline",
			err:  context.DeadlineExceeded,
			want: "hint: request timed out; check server health or increase TIX_HTTP_TIMEOUT.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := formatCLIError(tt.err)
			if len(lines) == 0 || lines[0] != tt.err.Error() {
				t.Fatalf("expected error line first, got %v", lines)
			}
			if !containsLine(lines, tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, lines)
			}
		})
	}
}

func TestFormatCLIError_ValidationHasNoHint(t *testing.T) {
	lines := formatCLIError(&api.TicketError{Kind: api.KindValidation, Message: "Comment body is required."})
	if len(lines) != 1 {
		t.Fatalf("expected only the error line, got %v", lines)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
