// Package authz holds the client-side permission checks for the ticket
// detail view. They only decide which controls are offered; the backend
// enforces the same rules independently and remains the security boundary.
package authz

import (
	"tix/internal/models"
	"tix/internal/session"
	"tix/internal/thread"
)

// CanManageStatus reports whether the identity may change the ticket status.
func CanManageStatus(identity *session.Identity, ticket *models.Ticket) bool {
	if identity == nil || ticket == nil {
		return false
	}
	return identity.IsAdmin() || identity.Owns(ticket)
}

// CanReopen reports whether a resolved ticket may be reopened by the identity.
func CanReopen(identity *session.Identity, ticket *models.Ticket) bool {
	return CanManageStatus(identity, ticket) && ticket.Status == models.StatusResolved
}

// CanPostComment reports whether the identity may reply on the ticket.
func CanPostComment(identity *session.Identity, ticket *models.Ticket) bool {
	if identity == nil || ticket == nil {
		return false
	}
	return identity.IsAdmin() || identity.IsModerator() || identity.Owns(ticket)
}

// CanModerateSuggestions reports whether the identity may accept or reject AI suggestions.
func CanModerateSuggestions(identity *session.Identity) bool {
	return identity.IsAdmin() || identity.IsModerator()
}

// CanDecide reports whether entry is the live suggestion, still undecided,
// and the identity may moderate it.
func CanDecide(identity *session.Identity, proj thread.Projection, entry thread.Entry) bool {
	return CanModerateSuggestions(identity) && proj.IsActionable(entry) && entry.Decision() == ""
}

// SuggestionState describes what the view shows under an AI comment.
type SuggestionState int

const (
	// SuggestionNone is used for human comments.
	SuggestionNone SuggestionState = iota
	// SuggestionDecided shows the frozen decision badge.
	SuggestionDecided
	// SuggestionReviewable offers accept and reject.
	SuggestionReviewable
	// SuggestionHistorical is an older undecided suggestion shown without controls.
	SuggestionHistorical
	// SuggestionAwaitingReview is shown to viewers who cannot moderate.
	SuggestionAwaitingReview
)

// SuggestionFor classifies entry for the given viewer.
func SuggestionFor(identity *session.Identity, proj thread.Projection, entry thread.Entry) SuggestionState {
	switch {
	case !entry.IsAI():
		return SuggestionNone
	case entry.Decision() != "":
		return SuggestionDecided
	case !CanModerateSuggestions(identity):
		return SuggestionAwaitingReview
	case CanDecide(identity, proj, entry):
		return SuggestionReviewable
	default:
		return SuggestionHistorical
	}
}

// Controls is the set of enabled actions for one snapshot. It is rebuilt for
// every render and never carried over to a newer snapshot.
type Controls struct {
	CanManageStatus        bool
	CanReopen              bool
	CanPostComment         bool
	CanModerateSuggestions bool
	// Reviewable is the comment id accepting decisions, or "".
	Reviewable string
}

// Evaluate computes the controls for identity on ticket.
func Evaluate(identity *session.Identity, ticket *models.Ticket, proj thread.Projection) Controls {
	c := Controls{
		CanManageStatus:        CanManageStatus(identity, ticket),
		CanReopen:              CanReopen(identity, ticket),
		CanPostComment:         CanPostComment(identity, ticket),
		CanModerateSuggestions: CanModerateSuggestions(identity),
	}
	if entry, ok := proj.Actionable(); ok && CanDecide(identity, proj, entry) {
		c.Reviewable = entry.ID
	}
	return c
}
