package main

import (
	"context"
	"errors"

	"tix/internal/api"
	"tix/internal/detail"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var ticketErr *api.TicketError
	if errors.As(err, &ticketErr) {
		switch ticketErr.Kind {
		case api.KindUnauthenticated:
			lines = append(lines, "hint: store a credential with: tix session set --token <token> --user-id <id> --role <role>")
		case api.KindUnauthorized:
			lines = append(lines, "hint: the server rejected the stored credential; log in again and update it with: tix session set")
		case api.KindForbidden:
			lines = append(lines, "hint: your role does not allow this action; check the stored identity with: tix session show")
		case api.KindNotFound:
			lines = append(lines, "hint: verify the ticket id and that TIX_API_URL points to the ticket server.")
		case api.KindNetwork:
			lines = append(lines, "hint: ensure the ticket server is reachable at TIX_API_URL.")
		case api.KindTimeout:
			lines = append(lines, "hint: request timed out; check server health or increase TIX_HTTP_TIMEOUT.")
		case api.KindServerError:
			if ticketErr.Status >= 500 {
				lines = append(lines, "hint: server returned an internal error; retry shortly.")
			}
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, detail.ErrBusy) {
		lines = append(lines, "hint: wait for the previous request to finish.")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase TIX_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
