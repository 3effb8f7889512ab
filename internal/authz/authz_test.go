package authz

import (
	"testing"
	"time"

	"tix/internal/models"
	"tix/internal/session"
	"tix/internal/thread"
)

var (
	admin     = &session.Identity{ID: "admin-1", Role: session.RoleAdmin}
	moderator = &session.Identity{ID: "mod-1", Role: session.RoleModerator}
	owner     = &session.Identity{ID: "owner-1", Role: session.RoleUser}
	stranger  = &session.Identity{ID: "user-2", Role: session.RoleUser}
)

func ticketWithStatus(status models.Status) *models.Ticket {
	return &models.Ticket{ID: "t1", Status: status, CreatedBy: models.UserRef{ID: "owner-1"}}
}

func TestCanManageStatus(t *testing.T) {
	ticket := ticketWithStatus(models.StatusTodo)
	tests := []struct {
		name     string
		identity *session.Identity
		want     bool
	}{
		{"admin", admin, true},
		{"owner", owner, true},
		{"moderator not owner", moderator, false},
		{"stranger", stranger, false},
		{"no identity", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanManageStatus(tt.identity, ticket); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCanReopenRequiresResolved(t *testing.T) {
	for _, status := range []models.Status{models.StatusTodo, models.StatusInProgress, "", "ARCHIVED"} {
		for _, identity := range []*session.Identity{admin, moderator, owner, stranger, nil} {
			if CanReopen(identity, ticketWithStatus(status)) {
				t.Fatalf("reopen must be false for status %q", status)
			}
		}
	}

	resolved := ticketWithStatus(models.StatusResolved)
	if !CanReopen(owner, resolved) {
		t.Fatal("owner should reopen a resolved ticket")
	}
	if !CanReopen(admin, resolved) {
		t.Fatal("admin should reopen a resolved ticket")
	}
	if CanReopen(stranger, resolved) {
		t.Fatal("stranger must not reopen")
	}
}

func TestCanPostComment(t *testing.T) {
	ticket := ticketWithStatus(models.StatusInProgress)
	if !CanPostComment(admin, ticket) || !CanPostComment(moderator, ticket) || !CanPostComment(owner, ticket) {
		t.Fatal("admin, moderator and owner should post")
	}
	if CanPostComment(stranger, ticket) {
		t.Fatal("stranger must not post")
	}
	if CanPostComment(&session.Identity{ID: "x", Role: "superuser"}, ticket) {
		t.Fatal("unknown role must not post")
	}
}

func TestPredicatesArePure(t *testing.T) {
	ticket := ticketWithStatus(models.StatusResolved)
	for i := 0; i < 3; i++ {
		if CanReopen(owner, ticket) != CanReopen(owner, ticket) ||
			CanPostComment(stranger, ticket) != CanPostComment(stranger, ticket) ||
			CanModerateSuggestions(moderator) != CanModerateSuggestions(moderator) {
			t.Fatal("predicates must be deterministic")
		}
	}
	if ticket.Status != models.StatusResolved {
		t.Fatal("predicates must not mutate the ticket")
	}
}

func suggestionTicket() *models.Ticket {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ticket := ticketWithStatus(models.StatusInProgress)
	ticket.Comments = []models.Comment{
		{CommentID: "old", IsAIGenerated: true, CreatedAt: models.TimestampOf(base),
			Metadata: &models.CommentMetadata{Decision: models.DecisionAccepted}},
		{CommentID: "human", CreatedAt: models.TimestampOf(base.Add(time.Minute))},
		{CommentID: "new", IsAIGenerated: true, CreatedAt: models.TimestampOf(base.Add(2 * time.Minute))},
	}
	return ticket
}

func TestOnlyLatestSuggestionIsDecidable(t *testing.T) {
	ticket := suggestionTicket()
	proj := thread.Project(ticket)

	old, _ := proj.Find("old")
	latest, _ := proj.Find("new")
	human, _ := proj.Find("human")

	if CanDecide(moderator, proj, old) {
		t.Fatal("decided historical suggestion must not be decidable")
	}
	if !CanDecide(moderator, proj, latest) {
		t.Fatal("latest undecided suggestion should be decidable by a moderator")
	}
	if SuggestionFor(moderator, proj, old) != SuggestionDecided {
		t.Fatal("old suggestion should show its frozen decision")
	}
	if SuggestionFor(moderator, proj, latest) != SuggestionReviewable {
		t.Fatal("latest suggestion should be reviewable")
	}
	if SuggestionFor(moderator, proj, human) != SuggestionNone {
		t.Fatal("human comment has no suggestion state")
	}

	controls := Evaluate(moderator, ticket, proj)
	if controls.Reviewable != "new" {
		t.Fatalf("expected reviewable 'new', got %q", controls.Reviewable)
	}
}

func TestHistoricalUndecidedSuggestion(t *testing.T) {
	ticket := suggestionTicket()
	ticket.Comments[0].Metadata = nil
	proj := thread.Project(ticket)
	old, _ := proj.Find("old")
	if SuggestionFor(admin, proj, old) != SuggestionHistorical {
		t.Fatal("older undecided suggestion should be historical")
	}
}

func TestNonOwnerUserSeesNoControls(t *testing.T) {
	ticket := suggestionTicket()
	proj := thread.Project(ticket)
	controls := Evaluate(stranger, ticket, proj)

	if controls.CanModerateSuggestions || controls.CanPostComment || controls.CanReopen || controls.Reviewable != "" {
		t.Fatalf("expected no controls for a non-owner user, got %+v", controls)
	}
	latest, _ := proj.Find("new")
	if SuggestionFor(stranger, proj, latest) != SuggestionAwaitingReview {
		t.Fatal("non-moderator should see awaiting review")
	}
}

func TestControlsForResolvedOwner(t *testing.T) {
	ticket := ticketWithStatus(models.StatusResolved)
	controls := Evaluate(owner, ticket, thread.Project(ticket))
	if !controls.CanReopen || !controls.CanPostComment || controls.CanModerateSuggestions {
		t.Fatalf("unexpected controls for owner: %+v", controls)
	}
}
