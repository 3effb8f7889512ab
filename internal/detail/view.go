// Package detail implements the ticket detail view: it loads a ticket,
// keeps it fresh while backend processing is pending, dispatches the
// reopen/comment/decide mutations and reconciles every server response
// into a single authoritative snapshot.
package detail

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tix/internal/api"
	"tix/internal/authz"
	"tix/internal/models"
	"tix/internal/poller"
	"tix/internal/session"
	"tix/internal/thread"
)

const (
	// DefaultNotificationTTL is how long a transient notification stays visible.
	DefaultNotificationTTL = 5 * time.Second
	// DefaultOpenNotifyGrace bounds how long Wait lets the open notification
	// finish before cancelling it.
	DefaultOpenNotifyGrace = 500 * time.Millisecond
)

var (
	// ErrClosed is returned after the view was closed. Late responses are dropped.
	ErrClosed = errors.New("ticket view closed")
	// ErrNotReady is returned for mutations attempted before a ticket is loaded.
	ErrNotReady = errors.New("ticket not loaded")
	// ErrBusy is returned when the same action is already in flight.
	ErrBusy = errors.New("action already in progress")
	// ErrSuperseded is returned by a load whose result was replaced by a newer load.
	ErrSuperseded = errors.New("load superseded by a newer request")
)

// Repository is the backend surface the view needs.
type Repository interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	SetStatus(ctx context.Context, id string, status models.Status) (*models.Ticket, error)
	AddComment(ctx context.Context, id, body string) (*models.Ticket, error)
	DecideSuggestion(ctx context.Context, id, commentID string, decision models.Decision) (*models.Ticket, error)
	NotifyOpened(ctx context.Context, id string)
}

// Options tunes a View.
type Options struct {
	PollInterval    time.Duration
	NotificationTTL time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
	// SkipOpenNotification suppresses the "ticket viewed" call on Open.
	SkipOpenNotification bool
	// OpenNotifyGrace is how long Wait gives a pending open notification.
	OpenNotifyGrace time.Duration
}

// View is the state machine behind one open ticket detail screen. Each view
// owns its snapshot and timer; nothing is shared between views.
type View struct {
	ticketID string
	repo     Repository
	session  *session.Session
	identity *session.Identity
	logger   *slog.Logger
	now      func() time.Time
	ttl      time.Duration
	poller   *poller.Controller
	notify   bool
	grace    time.Duration
	bg       sync.WaitGroup

	mu           sync.Mutex
	phase        Phase
	ticket       *models.Ticket
	loadErr      error
	version      uint64
	loadSeq      uint64
	epoch        uint64
	inflight     int
	reopening    bool
	commenting   bool
	deciding     map[string]bool
	notification *Notification
	pollCancel   context.CancelFunc
	notifyCancel context.CancelFunc
	opened       bool
	closed       bool
	subscribers  map[int]func(State)
	nextSubID    int
}

// New creates a view for ticketID. The identity is read from sess once and
// reused for every authorization check during the view's lifetime.
func New(ticketID string, repo Repository, sess *session.Session, opts Options) *View {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.NotificationTTL
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	grace := opts.OpenNotifyGrace
	if grace <= 0 {
		grace = DefaultOpenNotifyGrace
	}

	ticketID = strings.TrimSpace(ticketID)
	v := &View{
		ticketID:    ticketID,
		repo:        repo,
		session:     sess,
		identity:    sess.Identity(),
		logger:      logger.With("component", "ticket-detail", "ticket_id", ticketID),
		now:         now,
		ttl:         ttl,
		notify:      !opts.SkipOpenNotification,
		grace:       grace,
		phase:       PhaseLoading,
		deciding:    map[string]bool{},
		subscribers: map[int]func(State){},
	}
	v.poller = poller.New(opts.PollInterval, v.silentRefresh, v.logger)
	return v
}

// TicketID returns the id this view was opened for.
func (v *View) TicketID() string {
	return v.ticketID
}

// Identity returns the viewer identity captured at construction.
func (v *View) Identity() *session.Identity {
	if v.identity == nil {
		return nil
	}
	copied := *v.identity
	return &copied
}

// Subscribe registers fn to receive the state after every change. The
// returned function removes the subscription.
func (v *View) Subscribe(fn func(State)) func() {
	v.mu.Lock()
	id := v.nextSubID
	v.nextSubID++
	v.subscribers[id] = fn
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		delete(v.subscribers, id)
		v.mu.Unlock()
	}
}

// Open mounts the view: it sends the best-effort open notification and runs
// the initial load.
func (v *View) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	first := !v.opened
	v.opened = true
	if first && v.notify && v.ticketID != "" && v.session.Authenticated() {
		// Best effort and detached from the load; Wait cancels it once
		// the grace period runs out.
		notifyCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		v.notifyCancel = cancel
		v.bg.Add(1)
		go func() {
			defer v.bg.Done()
			defer cancel()
			v.repo.NotifyOpened(notifyCtx, v.ticketID)
		}()
	}
	v.mu.Unlock()

	return v.load(ctx)
}

// Retry re-enters Loading after a failed load.
func (v *View) Retry(ctx context.Context) error {
	return v.load(ctx)
}

// Refresh reloads the ticket with the loading indicator engaged.
func (v *View) Refresh(ctx context.Context) error {
	return v.load(ctx)
}

// Close unmounts the view. The poll timer stops and responses that arrive
// afterwards are discarded.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.cancelPollLocked()
	v.mu.Unlock()

	v.poller.Stop()
	v.logger.Debug("view closed")
}

// Wait blocks until the poll goroutine has exited and the open notification
// has finished or been cancelled after the grace period. Call it after Close
// for a clean shutdown.
func (v *View) Wait() {
	<-v.poller.Done()

	finished := make(chan struct{})
	go func() {
		v.bg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(v.grace)
	defer timer.Stop()
	select {
	case <-finished:
		return
	case <-timer.C:
	}

	v.mu.Lock()
	if v.notifyCancel != nil {
		v.notifyCancel()
	}
	v.mu.Unlock()
	v.logger.Debug("open notification cancelled after grace period", "grace", v.grace)
	<-finished
}

func (v *View) load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.loadSeq++
	seq := v.loadSeq
	v.epoch++
	v.cancelPollLocked()
	v.phase = PhaseLoading
	v.loadErr = nil
	v.mu.Unlock()
	v.emit()

	ticket, err := v.fetch(ctx)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if seq != v.loadSeq {
		v.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		v.phase = PhaseError
		v.ticket = nil
		v.loadErr = err
		v.observeLocked()
		v.mu.Unlock()
		v.logger.Warn("ticket load failed", "error", err)
		v.emit()
		return err
	}
	v.applyLocked(ticket)
	v.observeLocked()
	version, status := v.version, v.ticket.Status
	v.mu.Unlock()

	v.logger.Debug("ticket loaded", "version", version, "status", status)
	v.emit()
	return nil
}

func (v *View) fetch(ctx context.Context) (*models.Ticket, error) {
	const op = "ticket.get"
	if v.ticketID == "" {
		return nil, &api.TicketError{Kind: api.KindValidation, Op: op, Message: "Missing ticket identifier."}
	}
	if !v.session.Authenticated() {
		return nil, &api.TicketError{Kind: api.KindUnauthenticated, Op: op, Message: "Authentication token is missing. Please log in again."}
	}
	return v.repo.GetTicket(ctx, v.ticketID)
}

// silentRefresh is the poll tick. It never engages the loading state and
// never surfaces errors; a failed refresh keeps the current snapshot.
func (v *View) silentRefresh(ctx context.Context) {
	v.mu.Lock()
	if v.closed || v.phase != PhaseReady {
		v.mu.Unlock()
		return
	}
	if v.inflight > 0 {
		v.mu.Unlock()
		v.logger.Debug("poll tick skipped while a mutation is in flight")
		return
	}
	epoch := v.epoch
	pollCtx, cancel := context.WithCancel(ctx)
	v.pollCancel = cancel
	v.mu.Unlock()

	ticket, err := v.repo.GetTicket(pollCtx, v.ticketID)
	cancel()

	v.mu.Lock()
	v.pollCancel = nil
	if v.closed || v.phase != PhaseReady || epoch != v.epoch {
		v.mu.Unlock()
		v.logger.Debug("discarding stale poll response")
		return
	}
	if err != nil {
		v.mu.Unlock()
		v.logger.Debug("silent refresh failed", "error", err)
		return
	}
	v.applyLocked(ticket)
	v.observeLocked()
	v.mu.Unlock()

	v.emit()
}

// Reopen moves a resolved ticket back to IN_PROGRESS.
func (v *View) Reopen(ctx context.Context) (*models.Ticket, error) {
	return v.mutate(ctx, ActionReopen, "",
		func(ticket *models.Ticket) error {
			if !authz.CanManageStatus(v.identity, ticket) {
				return forbidden("ticket.set_status", "You are not authorized to reopen this ticket.")
			}
			if !authz.CanReopen(v.identity, ticket) {
				return &api.TicketError{Kind: api.KindValidation, Op: "ticket.set_status", Message: "Only resolved tickets can be reopened."}
			}
			return nil
		},
		func(ctx context.Context) (*models.Ticket, error) {
			return v.repo.SetStatus(ctx, v.ticketID, models.StatusInProgress)
		},
	)
}

// SubmitComment posts a reply. Blank bodies are rejected before dispatch and
// reported to the caller only.
func (v *View) SubmitComment(ctx context.Context, body string) (*models.Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &api.TicketError{Kind: api.KindValidation, Op: "ticket.add_comment", Message: "Comment body is required."}
	}
	return v.mutate(ctx, ActionComment, "",
		func(ticket *models.Ticket) error {
			if !authz.CanPostComment(v.identity, ticket) {
				return forbidden("ticket.add_comment", "You are not authorized to reply on this ticket.")
			}
			return nil
		},
		func(ctx context.Context) (*models.Ticket, error) {
			return v.repo.AddComment(ctx, v.ticketID, body)
		},
	)
}

// Decide records accept/reject on the live AI suggestion. A missing comment
// id is dropped silently with api.ErrSkipped.
func (v *View) Decide(ctx context.Context, commentID string, decision models.Decision) (*models.Ticket, error) {
	const op = "ticket.decide_suggestion"
	commentID = strings.TrimSpace(commentID)
	if commentID == "" || !v.session.Authenticated() {
		v.logger.Debug("decision skipped", "comment_id", commentID, "authenticated", v.session.Authenticated())
		return nil, api.ErrSkipped
	}
	if !decision.Valid() {
		return nil, &api.TicketError{Kind: api.KindValidation, Op: op, Message: "Decision must be accepted or rejected."}
	}
	return v.mutate(ctx, ActionDecide, commentID,
		func(ticket *models.Ticket) error {
			if !authz.CanModerateSuggestions(v.identity) {
				return forbidden(op, "You are not authorized to review suggestions.")
			}
			proj := thread.Project(ticket)
			entry, ok := proj.Find(commentID)
			switch {
			case !ok:
				return &api.TicketError{Kind: api.KindValidation, Op: op, Message: "Suggestion not found on this ticket."}
			case entry.Decision() != "":
				return &api.TicketError{Kind: api.KindValidation, Op: op, Message: "This suggestion already has a decision."}
			case !authz.CanDecide(v.identity, proj, entry):
				return &api.TicketError{Kind: api.KindValidation, Op: op, Message: "Only the latest suggestion can be reviewed."}
			}
			return nil
		},
		func(ctx context.Context) (*models.Ticket, error) {
			return v.repo.DecideSuggestion(ctx, v.ticketID, commentID, decision)
		},
	)
}

// DecideLatest decides the current actionable suggestion.
func (v *View) DecideLatest(ctx context.Context, decision models.Decision) (*models.Ticket, error) {
	return v.Decide(ctx, v.State().Projection.ActionableSuggestionID, decision)
}

func (v *View) mutate(
	ctx context.Context,
	action Action,
	commentID string,
	authorize func(*models.Ticket) error,
	call func(context.Context) (*models.Ticket, error),
) (*models.Ticket, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.phase != PhaseReady || v.ticket == nil {
		v.mu.Unlock()
		return nil, ErrNotReady
	}
	if v.busyLocked(action, commentID) {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	if err := authorize(v.ticket); err != nil {
		if api.IsKind(err, api.KindForbidden) {
			v.notifyLocked(err)
		}
		v.mu.Unlock()
		v.emit()
		return nil, err
	}
	v.setBusyLocked(action, commentID, true)
	v.inflight++
	v.epoch++
	v.cancelPollLocked()
	v.mu.Unlock()
	v.emit()

	logger := v.logger.With("action", string(action))
	if commentID != "" {
		logger = logger.With("comment_id", commentID)
	}
	logger.Debug("dispatching mutation")

	ticket, err := call(ctx)

	v.mu.Lock()
	v.setBusyLocked(action, commentID, false)
	v.inflight--
	v.epoch++
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if err != nil {
		if errors.Is(err, api.ErrSkipped) {
			v.mu.Unlock()
			logger.Debug("mutation skipped")
			v.emit()
			return nil, err
		}
		v.notifyLocked(err)
		v.mu.Unlock()
		logger.Warn("mutation failed", "error", err)
		v.emit()
		return nil, err
	}
	if v.phase == PhaseReady {
		v.applyLocked(ticket)
		v.notification = nil
	}
	v.observeLocked()
	v.mu.Unlock()

	logger.Debug("mutation applied")
	v.emit()
	return ticket.Clone(), nil
}

func (v *View) applyLocked(ticket *models.Ticket) {
	v.ticket = ticket.Clone()
	v.version++
	v.phase = PhaseReady
	v.loadErr = nil
}

// observeLocked hands the current snapshot to the poller while v.mu is held,
// so the poll state always follows the most recently applied snapshot.
// Observe never waits on the poll goroutine, which itself takes v.mu.
func (v *View) observeLocked() {
	v.poller.Observe(v.ticket)
}

func (v *View) cancelPollLocked() {
	if v.pollCancel != nil {
		v.pollCancel()
		v.pollCancel = nil
	}
}

func (v *View) busyLocked(action Action, commentID string) bool {
	switch action {
	case ActionReopen:
		return v.reopening
	case ActionComment:
		return v.commenting
	case ActionDecide:
		return v.deciding[commentID]
	default:
		return false
	}
}

func (v *View) setBusyLocked(action Action, commentID string, busy bool) {
	switch action {
	case ActionReopen:
		v.reopening = busy
	case ActionComment:
		v.commenting = busy
	case ActionDecide:
		if busy {
			v.deciding[commentID] = true
		} else {
			delete(v.deciding, commentID)
		}
	}
}

func (v *View) notifyLocked(err error) {
	n := &Notification{Message: err.Error(), Kind: api.KindOf(err), At: v.now()}
	if n.Message == "" {
		n.Message = "Something went wrong."
	}
	v.notification = n
}

// DismissNotification clears the transient notification slot.
func (v *View) DismissNotification() {
	v.mu.Lock()
	v.notification = nil
	v.mu.Unlock()
	v.emit()
}

// Version returns the number of snapshots applied so far.
func (v *View) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

func (v *View) emit() {
	v.mu.Lock()
	if len(v.subscribers) == 0 {
		v.mu.Unlock()
		return
	}
	state := v.stateLocked()
	subs := make([]func(State), 0, len(v.subscribers))
	for _, fn := range v.subscribers {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func forbidden(op, message string) error {
	return &api.TicketError{Kind: api.KindForbidden, Op: op, Message: message}
}
