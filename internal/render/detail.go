package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"tix/internal/authz"
	"tix/internal/detail"
	"tix/internal/models"
	"tix/internal/session"
	"tix/internal/thread"
)

// Detail writes the full view for state. identity decides which suggestion
// controls are shown and must be the identity the view was opened with.
func (r *Renderer) Detail(w io.Writer, state detail.State, identity *session.Identity) error {
	var b strings.Builder
	switch state.Phase {
	case detail.PhaseLoading:
		b.WriteString(r.faint("Loading ticket details...") + "\n")
	case detail.PhaseError:
		b.WriteString(r.style().Foreground(r.theme.Danger).Render("Error: "+state.ErrorMessage()) + "\n")
	case detail.PhaseReady:
		if state.Ticket != nil {
			r.writeTicket(&b, state, identity)
		}
	}
	if n := state.Notification; n != nil {
		b.WriteString("\n" + r.style().Foreground(r.theme.Danger).Render("! "+n.Message) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) writeTicket(b *strings.Builder, state detail.State, identity *session.Identity) {
	ticket := state.Ticket

	title := strings.TrimSpace(ticket.Title)
	if title == "" {
		title = "Untitled ticket"
	}
	b.WriteString(r.heading(title) + " " + r.StatusBadge(ticket.Status) + "\n")
	b.WriteString(r.faint(fmt.Sprintf("Ticket %s", ticket.ID)) + "\n\n")

	field := func(label, value string) {
		b.WriteString(fmt.Sprintf("%-15s %s\n", label+":", value))
	}
	field("Priority", ticket.PriorityLabel())
	field("Assigned to", ticket.AssigneeLabel())
	field("Created by", ownerLabel(ticket))
	field("Created at", ticket.CreatedAt.Label())
	if len(ticket.RelatedSkills) > 0 {
		field("Related skills", strings.Join(ticket.RelatedSkills, ", "))
	} else {
		field("Related skills", "None listed")
	}

	b.WriteString("\n" + r.heading("Description") + "\n")
	description := strings.TrimSpace(ticket.Description)
	if description == "" {
		description = "No description provided."
	}
	b.WriteString(r.indent(ansi.Wrap(description, r.width-2, " "), 2) + "\n")

	b.WriteString("\n" + r.heading("Helpful notes") + "\n")
	if strings.TrimSpace(ticket.HelpfulNotes) == "" {
		b.WriteString(r.indent(r.faint(ticket.NotesOrDefault()), 2) + "\n")
	} else {
		b.WriteString(r.indent(r.Markdown(ticket.HelpfulNotes, r.width-2), 2) + "\n")
	}

	r.writeThread(b, state, identity)
	r.writeActions(b, state)

	if state.Polling {
		b.WriteString("\n" + r.faint("Waiting for processing to finish; refreshing automatically.") + "\n")
	}
}

func (r *Renderer) writeThread(b *strings.Builder, state detail.State, identity *session.Identity) {
	proj := state.Projection
	b.WriteString("\n" + r.heading(fmt.Sprintf("Discussion (%d)", len(proj.Ordered))) + "\n")
	if len(proj.Ordered) == 0 {
		b.WriteString(r.indent(r.faint("No comments yet."), 2) + "\n")
		return
	}

	for _, entry := range proj.Ordered {
		header := entry.AuthorLabel
		if entry.IsAI() {
			header = r.style().Bold(true).Foreground(r.theme.AI).Render("AI suggestion") + " " + header
		}
		b.WriteString("\n" + r.indent(header+" "+r.faint(entry.Comment.CreatedAt.Label()), 2) + "\n")
		b.WriteString(r.indent(ansi.Wrap(entry.Comment.BodyOrDefault(), r.width-4, " "), 4) + "\n")

		if meta := entry.Comment.Metadata; meta != nil && len(meta.FollowUpTasks) > 0 {
			b.WriteString(r.indent(r.faint("Follow-up tasks:"), 4) + "\n")
			for _, task := range meta.FollowUpTasks {
				b.WriteString(r.indent("- "+task.Title, 6) + "\n")
			}
		}
		if line := r.suggestionLine(state, identity, proj, entry); line != "" {
			b.WriteString(r.indent(line, 4) + "\n")
		}
	}
}

func (r *Renderer) suggestionLine(state detail.State, identity *session.Identity, proj thread.Projection, entry thread.Entry) string {
	switch authz.SuggestionFor(identity, proj, entry) {
	case authz.SuggestionDecided:
		line := "Decision: " + r.DecisionBadge(entry.Decision())
		if meta := entry.Comment.Metadata; meta != nil && meta.DecisionAt.Valid {
			line += r.faint(" on " + meta.DecisionAt.Label())
		}
		return line
	case authz.SuggestionReviewable:
		if state.Busy.IsDeciding(entry.ID) {
			return r.faint("Recording decision...")
		}
		return r.faint(fmt.Sprintf("Review: tix accept %s %s | tix reject %s %s", state.TicketID, entry.ID, state.TicketID, entry.ID))
	case authz.SuggestionAwaitingReview:
		if proj.IsActionable(entry) {
			return r.faint("Awaiting moderator review")
		}
	}
	return ""
}

func (r *Renderer) writeActions(b *strings.Builder, state detail.State) {
	var actions []string
	if state.Controls.CanReopen {
		label := "reopen: tix reopen " + state.TicketID
		if state.Busy.Reopen {
			label = "reopening..."
		}
		actions = append(actions, label)
	}
	if state.Controls.CanPostComment {
		label := "reply: tix comment " + state.TicketID + " <message>"
		if state.Busy.Comment {
			label = "posting reply..."
		}
		actions = append(actions, label)
	}
	if len(actions) == 0 {
		return
	}
	b.WriteString("\n" + r.heading("Actions") + "\n")
	for _, action := range actions {
		b.WriteString(r.indent(action, 2) + "\n")
	}
}

func (r *Renderer) indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

func ownerLabel(ticket *models.Ticket) string {
	if ticket.CreatedBy.Email != "" {
		return ticket.CreatedBy.Email
	}
	if id := ticket.OwnerID(); id != "" {
		return id
	}
	return "Unknown"
}
