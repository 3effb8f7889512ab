package detail

import (
	"sort"
	"time"

	"tix/internal/api"
	"tix/internal/authz"
	"tix/internal/models"
	"tix/internal/poller"
	"tix/internal/thread"
)

// Phase is the coarse lifecycle of a view.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseError
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Action names a mutating user action.
type Action string

const (
	ActionReopen  Action = "reopen"
	ActionComment Action = "comment"
	ActionDecide  Action = "decide"
)

// Notification is a transient message shown after a failed mutation.
type Notification struct {
	Message string
	Kind    api.Kind
	At      time.Time
}

// Busy reports which actions have a request outstanding.
type Busy struct {
	Reopen   bool
	Comment  bool
	Deciding []string
}

// IsDeciding reports whether a decision on commentID is in flight.
func (b Busy) IsDeciding(commentID string) bool {
	for _, id := range b.Deciding {
		if id == commentID {
			return true
		}
	}
	return false
}

// Any reports whether any mutation is outstanding.
func (b Busy) Any() bool {
	return b.Reopen || b.Comment || len(b.Deciding) > 0
}

// State is an immutable copy of the view for rendering. Projection and
// Controls are derived from the current snapshot each time State is built.
type State struct {
	Phase        Phase
	TicketID     string
	Ticket       *models.Ticket
	Version      uint64
	Err          error
	Busy         Busy
	Notification *Notification
	Polling      bool
	Projection   thread.Projection
	Controls     authz.Controls
}

// ErrorMessage is the text for the error phase.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// State returns the current view state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *View) stateLocked() State {
	s := State{
		Phase:    v.phase,
		TicketID: v.ticketID,
		Version:  v.version,
		Err:      v.loadErr,
		Busy: Busy{
			Reopen:  v.reopening,
			Comment: v.commenting,
		},
		Polling: v.poller.State() == poller.Polling,
	}
	for id := range v.deciding {
		s.Busy.Deciding = append(s.Busy.Deciding, id)
	}
	sort.Strings(s.Busy.Deciding)

	if n := v.notification; n != nil && v.now().Sub(n.At) < v.ttl {
		copied := *n
		s.Notification = &copied
	}

	if v.phase == PhaseReady && v.ticket != nil {
		s.Ticket = v.ticket.Clone()
		s.Projection = thread.Project(s.Ticket)
		s.Controls = authz.Evaluate(v.identity, s.Ticket, s.Projection)
	}
	return s
}
