package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Status is the lifecycle state of a ticket as reported by the backend.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

// Known reports whether the status is one of the documented values.
func (s Status) Known() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusResolved:
		return true
	default:
		return false
	}
}

// Label returns the display label. Unknown values render as "Unknown" and are never rejected.
func (s Status) Label() string {
	if !s.Known() {
		return "Unknown"
	}
	return string(s)
}

// Ticket is the server representation of a support ticket.
type Ticket struct {
	ID            ID              `json:"_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Status        Status          `json:"status"`
	Priority      string          `json:"priority,omitempty"`
	AssignedTo    *UserRef        `json:"assignedTo,omitempty"`
	CreatedBy     UserRef         `json:"createdBy"`
	CreatedAt     Timestamp       `json:"createdAt"`
	HelpfulNotes  string          `json:"helpfulNotes,omitempty"`
	RelatedSkills []string        `json:"relatedSkills"`
	AISuggestions json.RawMessage `json:"aiSuggestions,omitempty"`
	Comments      []Comment       `json:"comments"`
}

// OwnerID returns the normalized id of the ticket creator.
func (t *Ticket) OwnerID() string {
	if t == nil {
		return ""
	}
	return t.CreatedBy.ID.String()
}

// HasAISuggestions reports whether AI enrichment has landed on the ticket.
// A missing field and the JSON values null, false, 0 and "" all count as absent.
func (t *Ticket) HasAISuggestions() bool {
	if t == nil {
		return false
	}
	raw := bytes.TrimSpace(t.AISuggestions)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}

// Converged reports whether the ticket has reached the state where nothing
// asynchronous is pending anymore.
func (t *Ticket) Converged() bool {
	return t != nil && t.HasAISuggestions() && t.Status == StatusResolved
}

// PriorityLabel returns the priority or "Not set".
func (t *Ticket) PriorityLabel() string {
	if strings.TrimSpace(t.Priority) == "" {
		return "Not set"
	}
	return t.Priority
}

// AssigneeLabel returns the assignee email or "Unassigned".
func (t *Ticket) AssigneeLabel() string {
	if t.AssignedTo == nil || t.AssignedTo.Email == "" {
		return "Unassigned"
	}
	return t.AssignedTo.Email
}

// NotesOrDefault returns the helpful notes or a placeholder.
func (t *Ticket) NotesOrDefault() string {
	if strings.TrimSpace(t.HelpfulNotes) == "" {
		return "No helpful notes"
	}
	return t.HelpfulNotes
}

// Clone returns a deep copy so callers cannot mutate a view's snapshot.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		out.AssignedTo = &assignee
	}
	if t.RelatedSkills != nil {
		out.RelatedSkills = append([]string(nil), t.RelatedSkills...)
	}
	if t.AISuggestions != nil {
		out.AISuggestions = append(json.RawMessage(nil), t.AISuggestions...)
	}
	if t.Comments != nil {
		out.Comments = make([]Comment, len(t.Comments))
		for i := range t.Comments {
			out.Comments[i] = t.Comments[i].clone()
		}
	}
	return &out
}
