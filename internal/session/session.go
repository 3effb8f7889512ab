package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"

	"tix/internal/localstore"
	"tix/internal/models"
)

// Storage keys written by the login flow.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// Role is the viewer's role as issued by the backend.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole normalizes a stored role. Unknown values are kept verbatim and
// carry no elevated privileges.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Identity is the authenticated viewer.
type Identity struct {
	ID    string
	Role  Role
	Email string
}

// IsAdmin reports whether the identity has the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// IsModerator reports whether the identity has the moderator role.
func (i *Identity) IsModerator() bool {
	return i != nil && i.Role == RoleModerator
}

// Owns reports whether the identity created the ticket.
func (i *Identity) Owns(ticket *models.Ticket) bool {
	if i == nil || i.ID == "" || ticket == nil {
		return false
	}
	owner := ticket.OwnerID()
	return owner != "" && owner == i.ID
}

// Session is the credential and identity read once per view. It is never
// re-read mid-session, so a role change elsewhere does not affect an open view.
type Session struct {
	token    string
	identity *Identity
}

// New builds a session from already-known values.
func New(token string, identity *Identity) *Session {
	s := &Session{token: strings.TrimSpace(token)}
	if identity != nil {
		copied := *identity
		s.identity = &copied
	}
	return s
}

// Token returns the bearer credential, or "" when not logged in.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// Identity returns a copy of the viewer identity, or nil when unknown.
func (s *Session) Identity() *Identity {
	if s == nil || s.identity == nil {
		return nil
	}
	copied := *s.identity
	return &copied
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Fingerprint returns a short digest of the token for log correlation.
func (s *Session) Fingerprint() string {
	token := s.Token()
	if token == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// LogValue keeps the raw token out of structured logs.
func (s *Session) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("token_fp", s.Fingerprint())}
	if id := s.Identity(); id != nil {
		attrs = append(attrs, slog.String("user_id", id.ID), slog.String("role", string(id.Role)))
	}
	return slog.GroupValue(attrs...)
}

type storedUser struct {
	ID    models.ID `json:"_id"`
	AltID models.ID `json:"id"`
	Role  string    `json:"role"`
	Email string    `json:"email"`
}

// Load reads the credential and identity from client storage. A missing token
// yields an unauthenticated session; a malformed user record is logged and
// yields a session without identity.
func Load(ctx context.Context, store localstore.Reader, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	token, _, err := store.Get(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	rawUser, ok, err := store.Get(ctx, UserKey)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}

	s := &Session{token: strings.TrimSpace(token)}
	if !ok || strings.TrimSpace(rawUser) == "" {
		return s, nil
	}

	identity, err := ParseUser(rawUser)
	if err != nil {
		logger.Warn("failed to parse stored user", "error", err)
		return s, nil
	}
	s.identity = identity
	return s, nil
}

// ParseUser decodes the stored user record.
func ParseUser(raw string) (*Identity, error) {
	var u storedUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	id := u.ID
	if id == "" {
		id = u.AltID
	}
	return &Identity{
		ID:    id.String(),
		Role:  ParseRole(u.Role),
		Email: strings.TrimSpace(u.Email),
	}, nil
}

// EncodeUser renders an identity in the stored user format.
func EncodeUser(identity Identity) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"_id":   identity.ID,
		"role":  string(identity.Role),
		"email": identity.Email,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
