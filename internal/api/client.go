package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tix/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "TIX_HTTP_TIMEOUT"
	tracerName         = "tix/internal/api"
	maxErrorBodyBytes  = 64 * 1024
)

// Client is a typed HTTP client for the ticket endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger sets the logger used for swallowed and skipped calls.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for baseURL that authenticates with token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		token:   strings.TrimSpace(token),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTicket fetches the full ticket including its comment thread.
func (c *Client) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	const op = "ticket.get"
	if strings.TrimSpace(id) == "" {
		return nil, validationError(op, "Missing ticket identifier.")
	}
	return c.doTicket(ctx, op, http.MethodGet, ticketPath(id), nil, "Failed to load ticket details.")
}

// SetStatus patches the ticket status and returns the updated ticket.
func (c *Client) SetStatus(ctx context.Context, id string, status models.Status) (*models.Ticket, error) {
	const op = "ticket.set_status"
	if strings.TrimSpace(id) == "" {
		return nil, validationError(op, "Missing ticket identifier.")
	}
	if status == "" {
		return nil, validationError(op, "Status is required.")
	}
	return c.doTicket(ctx, op, http.MethodPatch, ticketPath(id)+"/status",
		StatusUpdateRequest{Status: status}, "Failed to update ticket status.")
}

// AddComment posts a reply. Each call creates a new comment, so callers must
// not retry it automatically.
func (c *Client) AddComment(ctx context.Context, id, body string) (*models.Ticket, error) {
	const op = "ticket.add_comment"
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationError(op, "Comment body is required.")
	}
	if strings.TrimSpace(id) == "" {
		return nil, validationError(op, "Missing ticket identifier.")
	}
	return c.doTicket(ctx, op, http.MethodPost, ticketPath(id)+"/comments",
		CommentCreateRequest{Body: body}, "Failed to post comment.")
}

// DecideSuggestion records an accept/reject verdict on an AI comment. Calls
// without a ticket id, comment id or credential are dropped and return ErrSkipped.
func (c *Client) DecideSuggestion(ctx context.Context, id, commentID string, decision models.Decision) (*models.Ticket, error) {
	const op = "ticket.decide_suggestion"
	if strings.TrimSpace(id) == "" || strings.TrimSpace(commentID) == "" || c.token == "" {
		c.logger.Debug("skipping suggestion decision",
			"ticket_id", id, "comment_id", commentID, "has_token", c.token != "")
		return nil, ErrSkipped
	}
	if !decision.Valid() {
		return nil, validationError(op, "Decision must be accepted or rejected.")
	}
	path := ticketPath(id) + "/comments/" + url.PathEscape(commentID) + "/decision"
	return c.doTicket(ctx, op, http.MethodPatch, path,
		DecisionRequest{Decision: decision}, "Failed to update suggestion decision.")
}

// NotifyOpened tells the backend the ticket was viewed. It is best effort:
// failures are logged and never returned.
func (c *Client) NotifyOpened(ctx context.Context, id string) {
	const op = "ticket.notify_opened"
	if strings.TrimSpace(id) == "" || c.token == "" {
		c.logger.Debug("skipping open notification", "ticket_id", id, "has_token", c.token != "")
		return
	}
	if err := c.do(ctx, op, http.MethodPost, ticketPath(id)+"/open", nil, nil, "Failed to notify ticket open."); err != nil {
		c.logger.Warn("open notification failed", "ticket_id", id, "error", err)
	}
}

func (c *Client) doTicket(ctx context.Context, op, method, path string, body any, fallback string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := c.do(ctx, op, method, path, body, &ticket, fallback); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any, fallback string) (err error) {
	if c.token == "" {
		return unauthenticatedError(op)
	}

	ctx, span := c.tracer.Start(ctx, op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("url.path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return &TicketError{Kind: KindValidation, Op: op, Message: fallback, Err: marshalErr}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TicketError{Kind: KindNetwork, Op: op, Message: fallback, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, fallback, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(op, resp, fallback)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TicketError{Kind: KindServerError, Op: op, Status: resp.StatusCode, Message: fallback, Err: err}
	}
	return nil
}

func decodeError(op string, resp *http.Response, fallback string) error {
	ticketErr := &TicketError{
		Kind:    kindForStatus(resp.StatusCode),
		Op:      op,
		Status:  resp.StatusCode,
		Message: fallback,
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&errResp); err == nil {
		if msg := strings.TrimSpace(errResp.Error); msg != "" {
			ticketErr.Message = msg
		}
		ticketErr.Code = errResp.Code
	}
	return ticketErr
}

func transportError(op, fallback string, err error) error {
	kind := KindNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	}
	message := fallback
	if kind == KindTimeout {
		message = "Request timed out. " + fallback
	}
	return &TicketError{Kind: kind, Op: op, Message: message, Err: err}
}

func ticketPath(id string) string {
	return "/ticket/" + url.PathEscape(strings.TrimSpace(id))
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
