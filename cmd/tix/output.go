package main

import (
	"fmt"
	"io"

	"tix/internal/authz"
	"tix/internal/detail"
	"tix/internal/format"
	"tix/internal/models"
	"tix/internal/render"
)

// formatter returns the structured formatter selected by flags, or nil for
// the rendered terminal view.
func (o *outputOptions) formatter() format.Formatter {
	switch {
	case o.jsonOutput:
		return format.JSONFormatter{Indent: true}
	case o.yamlOutput:
		return format.YAMLFormatter{}
	default:
		return nil
	}
}

func (o *outputOptions) structured() bool {
	return o.formatter() != nil
}

func writePlain(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

type controlsPayload struct {
	CanManageStatus        bool   `json:"canManageStatus"`
	CanReopen              bool   `json:"canReopen"`
	CanPostComment         bool   `json:"canPostComment"`
	CanModerateSuggestions bool   `json:"canModerateSuggestions"`
	ReviewableCommentID    string `json:"reviewableCommentId,omitempty"`
}

type ticketPayload struct {
	Version                uint64          `json:"version"`
	Ticket                 *models.Ticket  `json:"ticket"`
	ActionableSuggestionID string          `json:"actionableSuggestionId,omitempty"`
	Controls               controlsPayload `json:"controls"`
	Polling                bool            `json:"polling"`
	Notification           string          `json:"notification,omitempty"`
}

func newTicketPayload(state detail.State) ticketPayload {
	payload := ticketPayload{
		Version:                state.Version,
		Ticket:                 state.Ticket,
		ActionableSuggestionID: state.Projection.ActionableSuggestionID,
		Controls:               newControlsPayload(state.Controls),
		Polling:                state.Polling,
	}
	if state.Notification != nil {
		payload.Notification = state.Notification.Message
	}
	return payload
}

func newControlsPayload(c authz.Controls) controlsPayload {
	return controlsPayload{
		CanManageStatus:        c.CanManageStatus,
		CanReopen:              c.CanReopen,
		CanPostComment:         c.CanPostComment,
		CanModerateSuggestions: c.CanModerateSuggestions,
		ReviewableCommentID:    c.Reviewable,
	}
}

// writeState writes the current view state either structured or rendered.
func writeState(w io.Writer, opts *outputOptions, view *detail.View) error {
	state := view.State()
	if f := opts.formatter(); f != nil {
		return f.Write(w, newTicketPayload(state))
	}
	return render.New(w, !opts.noColor).Detail(w, state, view.Identity())
}
