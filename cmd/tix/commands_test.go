package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tix/internal/api"
	"tix/internal/config"
	"tix/internal/session"
)

type fakeBackend struct {
	mu       sync.Mutex
	ticket   map[string]any
	requests []string
	gets     int
	// onGet mutates the ticket before the n-th GET is answered.
	onGet func(n int, ticket map[string]any)
	// openDelay holds the open notification until the client gives up.
	openDelay time.Duration
}

func newFakeBackend(t *testing.T, ticket map[string]any) (*httptest.Server, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{ticket: ticket}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/open") {
			b.mu.Lock()
			b.requests = append(b.requests, r.Method+" "+r.URL.Path)
			delay := b.openDelay
			b.mu.Unlock()
			select {
			case <-r.Context().Done():
			case <-time.After(delay):
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)

		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Invalid token"}`)
			return
		}

		var body map[string]any
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		switch {
		case r.Method == http.MethodGet:
			b.gets++
			if b.onGet != nil {
				b.onGet(b.gets, b.ticket)
			}
		case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/status"):
			b.ticket["status"] = body["status"]
		case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/decision"):
			comments := b.ticket["comments"].([]any)
			for _, raw := range comments {
				comment := raw.(map[string]any)
				if strings.Contains(r.URL.Path, "/comments/"+comment["commentId"].(string)+"/") {
					comment["metadata"] = map[string]any{"decision": body["decision"]}
				}
			}
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/comments"):
			comments, _ := b.ticket["comments"].([]any)
			b.ticket["comments"] = append(comments, map[string]any{
				"commentId": "h9",
				"body":      body["body"],
				"role":      "user",
				"createdAt": "2026-03-02T10:00:00Z",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(b.ticket)
	}))
	t.Cleanup(srv.Close)
	return srv, b
}

func (b *fakeBackend) seen(request string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.requests {
		if r == request {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	t.Setenv(logLevelEnvKey, "")
	cfg := config.Default()
	cfg.APIURL = apiURL
	cfg.StoragePath = filepath.Join(t.TempDir(), "tix.db")
	cfg.PollInterval = "1h"
	return &cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func login(t *testing.T, cfg *config.Config, userID, role string) {
	t.Helper()
	if _, err := runCLI(t, cfg, "session", "set", "--token", "tok", "--user-id", userID, "--role", role); err != nil {
		t.Fatalf("session set: %v", err)
	}
}

func resolvedTicket() map[string]any {
	return map[string]any{
		"_id":       map[string]any{"$oid": "t1"},
		"title":     "VPN down",
		"status":    "RESOLVED",
		"createdBy": "u1",
		"createdAt": "2026-03-01T09:00:00Z",
		"comments":  []any{},
	}
}

func suggestionTicket() map[string]any {
	ticket := resolvedTicket()
	ticket["status"] = "IN_PROGRESS"
	ticket["aiSuggestions"] = []any{"restart the client"}
	ticket["comments"] = []any{
		map[string]any{"commentId": "c1", "body": "Reinstall the VPN client", "isAiGenerated": true, "createdAt": "2026-03-01T10:00:00Z"},
		map[string]any{"commentId": "c2", "body": "Rotate the certificate", "isAiGenerated": true, "createdAt": "2026-03-01T11:00:00Z"},
	}
	return ticket
}

func TestSessionSetShowClear(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	login(t, cfg, "u1", "Moderator")

	out, err := runCLI(t, cfg, "session", "show", "--json")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	var payload sessionPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := sessionPayload{
		Authenticated:    true,
		TokenFingerprint: session.New("tok", nil).Fingerprint(),
		UserID:           "u1",
		Role:             "moderator",
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("session payload mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(out, "\"tok\"") {
		t.Fatalf("raw token leaked into output: %q", out)
	}

	if _, err := runCLI(t, cfg, "session", "clear"); err != nil {
		t.Fatalf("session clear: %v", err)
	}
	out, err = runCLI(t, cfg, "session", "show")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	if strings.TrimSpace(out) != "not logged in" {
		t.Fatalf("expected logged out, got %q", out)
	}
}

func TestShowJSON(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u1", "user")

	out, err := runCLI(t, cfg, "show", "t1", "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var payload struct {
		Version uint64 `json:"version"`
		Ticket  struct {
			ID     string `json:"_id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"ticket"`
		Controls controlsPayload `json:"controls"`
		Polling  bool            `json:"polling"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if payload.Ticket.ID != "t1" || payload.Ticket.Title != "VPN down" || payload.Version != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !payload.Controls.CanReopen || !payload.Controls.CanPostComment {
		t.Fatalf("owner should reopen and reply, got %+v", payload.Controls)
	}
	if !backend.seen("POST /ticket/t1/open") {
		t.Fatal("show should send the open notification")
	}
}

func TestShowNotHeldUpBySlowOpenNotification(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	backend.openDelay = 3 * time.Second
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u1", "user")

	start := time.Now()
	out, err := runCLI(t, cfg, "show", "t1", "--no-color")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("show waited %v on the open notification", elapsed)
	}
	if !strings.Contains(out, "VPN down") {
		t.Fatalf("expected rendered ticket, got:\n%s", out)
	}
	if !backend.seen("POST /ticket/t1/open") {
		t.Fatal("expected the open notification to be sent")
	}
}

func TestShowYAML(t *testing.T) {
	srv, _ := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u1", "user")

	out, err := runCLI(t, cfg, "show", "t1", "--yaml")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "title: VPN down") || !strings.Contains(out, "canReopen: true") {
		t.Fatalf("unexpected yaml output:\n%s", out)
	}
}

func TestShowRejectsJSONAndYAML(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	if _, err := runCLI(t, cfg, "show", "t1", "--json", "--yaml"); err == nil {
		t.Fatal("expected error for combined output flags")
	}
}

func TestShowWithoutSession(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)

	_, err := runCLI(t, cfg, "show", "t1")
	if !api.IsKind(err, api.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
	if backend.seen("GET /ticket/t1") {
		t.Fatal("no request should be sent without a credential")
	}
	lines := formatCLIError(err)
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "hint: store a credential") {
		t.Fatalf("unexpected guidance %v", lines)
	}
}

func TestReopenCommand(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u1", "user")

	out, err := runCLI(t, cfg, "reopen", "t1", "--no-color")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !strings.Contains(out, "VPN down [IN_PROGRESS]") {
		t.Fatalf("expected reopened ticket, got:\n%s", out)
	}
	if !backend.seen("PATCH /ticket/t1/status") {
		t.Fatal("expected status patch")
	}
	if backend.seen("POST /ticket/t1/open") {
		t.Fatal("mutations should not send the open notification")
	}
}

func TestReopenDeniedForOtherUser(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u2", "user")

	_, err := runCLI(t, cfg, "reopen", "t1")
	if !api.IsKind(err, api.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if backend.seen("PATCH /ticket/t1/status") {
		t.Fatal("denied reopen must not reach the backend")
	}
}

func TestCommentCommand(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u1", "user")

	out, err := runCLI(t, cfg, "comment", "t1", "still", "broken", "--no-color")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if !strings.Contains(out, "still broken") || !strings.Contains(out, "Discussion (1)") {
		t.Fatalf("expected new comment in output:\n%s", out)
	}
	if !backend.seen("POST /ticket/t1/comments") {
		t.Fatal("expected comment post")
	}
}

func TestBlankCommentNotSent(t *testing.T) {
	srv, backend := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "u1", "user")

	_, err := runCLI(t, cfg, "comment", "t1", "   ")
	if !api.IsKind(err, api.KindValidation) || err.Error() != "Comment body is required." {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.seen("POST /ticket/t1/comments") {
		t.Fatal("blank comment must not be sent")
	}
}

func TestAcceptLatestSuggestion(t *testing.T) {
	srv, backend := newFakeBackend(t, suggestionTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "m1", "moderator")

	out, err := runCLI(t, cfg, "accept", "t1", "--json")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !backend.seen("PATCH /ticket/t1/comments/c2/decision") {
		t.Fatal("expected decision on the latest suggestion")
	}
	var payload ticketPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ActionableSuggestionID != "c2" {
		t.Fatalf("expected c2 to stay the latest suggestion, got %q", payload.ActionableSuggestionID)
	}
	if payload.Controls.ReviewableCommentID != "" {
		t.Fatalf("decided suggestion should no longer be reviewable, got %+v", payload.Controls)
	}
}

func TestRejectOlderSuggestionRefused(t *testing.T) {
	srv, backend := newFakeBackend(t, suggestionTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "m1", "moderator")

	_, err := runCLI(t, cfg, "reject", "t1", "c1")
	if !api.IsKind(err, api.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.seen("PATCH /ticket/t1/comments/c1/decision") {
		t.Fatal("older suggestion must not be decided")
	}
}

func TestAcceptWithoutSuggestion(t *testing.T) {
	srv, _ := newFakeBackend(t, resolvedTicket())
	cfg := testConfig(t, srv.URL)
	login(t, cfg, "m1", "moderator")

	_, err := runCLI(t, cfg, "accept", "t1")
	if err == nil || err.Error() != "no suggestion awaiting review on ticket t1" {
		t.Fatalf("expected nothing to review, got %v", err)
	}
	if errors.Is(err, api.ErrSkipped) {
		t.Fatal("skip sentinel should be translated for the CLI")
	}
}

func TestWatchUntilConverged(t *testing.T) {
	ticket := resolvedTicket()
	ticket["status"] = "TODO"
	srv, backend := newFakeBackend(t, ticket)
	backend.onGet = func(n int, ticket map[string]any) {
		if n == 3 {
			ticket["status"] = "RESOLVED"
			ticket["aiSuggestions"] = []any{"restart the client"}
		}
	}
	cfg := testConfig(t, srv.URL)
	cfg.PollInterval = "10ms"
	login(t, cfg, "u1", "user")

	out, err := runCLI(t, cfg, "watch", "t1", "--until-converged", "--json")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	dec := json.NewDecoder(strings.NewReader(out))
	var last ticketPayload
	docs := 0
	for dec.More() {
		if err := dec.Decode(&last); err != nil {
			t.Fatalf("decode: %v", err)
		}
		docs++
	}
	if docs < 2 {
		t.Fatalf("expected several snapshots, got %d:\n%s", docs, out)
	}
	if last.Polling || last.Ticket == nil || last.Ticket.Status != "RESOLVED" {
		t.Fatalf("expected converged final snapshot, got %+v", last)
	}
}

func TestConfigGet(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	out, err := runCLI(t, cfg, "config", "get", "poll_interval")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "1h" {
		t.Fatalf("expected 1h, got %q", out)
	}
	if _, err := runCLI(t, cfg, "config", "get", "nope"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestConfigSetAndList(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	dir := t.TempDir()
	t.Setenv("TIX_CONFIG_DIR", dir)

	out, err := runCLI(t, cfg, "config", "set", "poll_interval", "7", "--global")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if !strings.Contains(out, filepath.Join(dir, ".tix.toml")) {
		t.Fatalf("expected written path, got %q", out)
	}
	if _, err := runCLI(t, cfg, "config", "set", "poll_interval", "soon", "--global"); err == nil {
		t.Fatal("expected invalid duration error")
	}

	out, err = runCLI(t, cfg, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	if !strings.Contains(out, "api_url = http://127.0.0.1:1") || !strings.Contains(out, "poll_interval = 1h") {
		t.Fatalf("unexpected list output:\n%s", out)
	}
}
