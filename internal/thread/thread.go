// Package thread derives the discussion view of a ticket: comments in
// chronological order, a display label per author, and the single AI
// suggestion that may still receive a decision.
package thread

import (
	"fmt"
	"sort"
	"strings"

	"tix/internal/models"
)

// Entry is one comment in projected order.
type Entry struct {
	Comment     models.Comment
	ID          string
	AuthorLabel string
	// Position is the index of the comment in the server's original array.
	Position int
}

// IsAI reports whether the comment is an AI suggestion.
func (e Entry) IsAI() bool {
	return e.Comment.IsAIGenerated
}

// Decision returns the recorded decision, if any.
func (e Entry) Decision() models.Decision {
	return e.Comment.Decision()
}

// Projection is the derived thread view of one ticket snapshot.
type Projection struct {
	Ordered []Entry
	// ActionableSuggestionID is the id of the chronologically last AI comment,
	// or "" when the thread has none.
	ActionableSuggestionID string
}

// HasActionableSuggestion reports whether any AI comment exists.
func (p Projection) HasActionableSuggestion() bool {
	return p.ActionableSuggestionID != ""
}

// IsActionable reports whether e is the live suggestion. Older AI comments are
// historical even when undecided.
func (p Projection) IsActionable(e Entry) bool {
	return e.IsAI() && e.ID != "" && e.ID == p.ActionableSuggestionID
}

// Find returns the entry with the given normalized id.
func (p Projection) Find(id string) (Entry, bool) {
	for _, e := range p.Ordered {
		if e.ID != "" && e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Actionable returns the live suggestion entry, if any.
func (p Projection) Actionable() (Entry, bool) {
	if p.ActionableSuggestionID == "" {
		return Entry{}, false
	}
	return p.Find(p.ActionableSuggestionID)
}

// Project sorts the ticket's comments by creation time (stable, invalid
// timestamps at epoch 0) and locates the most recent AI comment. AI comments
// without any id cannot be addressed and are passed over.
func Project(ticket *models.Ticket) Projection {
	if ticket == nil || len(ticket.Comments) == 0 {
		return Projection{Ordered: []Entry{}}
	}

	ordered := make([]Entry, len(ticket.Comments))
	for i, c := range ticket.Comments {
		ordered[i] = Entry{Comment: c, ID: c.NormalizedID(), Position: i}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Comment.CreatedAt.UnixMilli() < ordered[j].Comment.CreatedAt.UnixMilli()
	})

	for i := range ordered {
		ordered[i].AuthorLabel = authorLabel(ordered[i].Comment, i)
	}

	proj := Projection{Ordered: ordered}
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].IsAI() && ordered[i].ID != "" {
			proj.ActionableSuggestionID = ordered[i].ID
			break
		}
	}
	return proj
}

func authorLabel(c models.Comment, index int) string {
	if role := strings.TrimSpace(c.Role); role != "" {
		return role
	}
	if c.Author != nil && strings.TrimSpace(c.Author.Email) != "" {
		return c.Author.Email
	}
	return fmt.Sprintf("Participant %d", index+1)
}
