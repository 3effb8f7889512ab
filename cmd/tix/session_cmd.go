package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"tix/internal/config"
	"tix/internal/localstore"
	"tix/internal/session"
)

func newSessionCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored credential and identity",
	}

	cmd.AddCommand(
		newSessionSetCmd(cfg),
		newSessionShowCmd(cfg, opts),
		newSessionClearCmd(cfg),
	)
	return cmd
}

func newSessionSetCmd(cfg *config.Config) *cobra.Command {
	var (
		token  string
		userID string
		role   string
		email  string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a credential and the identity it belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("--token is required")
			}
			user, err := session.EncodeUser(session.Identity{
				ID:    strings.TrimSpace(userID),
				Role:  session.ParseRole(role),
				Email: strings.TrimSpace(email),
			})
			if err != nil {
				return err
			}

			return withStore(cfg, func(store *localstore.Store) error {
				if err := store.Set(cmd.Context(), session.TokenKey, token); err != nil {
					return err
				}
				if err := store.Set(cmd.Context(), session.UserKey, user); err != nil {
					return err
				}
				sess := session.New(token, nil)
				return writePlain(cmd.OutOrStdout(), "session stored (token %s)\n", sess.Fingerprint())
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer credential")
	cmd.Flags().StringVar(&userID, "user-id", "", "user id the credential belongs to")
	cmd.Flags().StringVar(&role, "role", string(session.RoleUser), "role (user, moderator, admin)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	return cmd
}

type sessionPayload struct {
	Authenticated    bool   `json:"authenticated"`
	TokenFingerprint string `json:"tokenFingerprint,omitempty"`
	UserID           string `json:"userId,omitempty"`
	Role             string `json:"role,omitempty"`
	Email            string `json:"email,omitempty"`
}

func newSessionShowCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := loadSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			payload := sessionPayload{
				Authenticated:    sess.Authenticated(),
				TokenFingerprint: sess.Fingerprint(),
			}
			if identity := sess.Identity(); identity != nil {
				payload.UserID = identity.ID
				payload.Role = string(identity.Role)
				payload.Email = identity.Email
			}

			out := cmd.OutOrStdout()
			if f := opts.formatter(); f != nil {
				return f.Write(out, payload)
			}
			if !payload.Authenticated {
				return writePlain(out, "not logged in\n")
			}
			lines := []string{
				"token: " + payload.TokenFingerprint,
				"user_id: " + valueOr(payload.UserID, "unknown"),
				"role: " + valueOr(payload.Role, "unknown"),
			}
			if payload.Email != "" {
				lines = append(lines, "email: "+payload.Email)
			}
			return writePlain(out, "%s\n", strings.Join(lines, "\n"))
		},
	}
}

func newSessionClearCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cfg, func(store *localstore.Store) error {
				for _, key := range []string{session.TokenKey, session.UserKey} {
					if err := store.Remove(cmd.Context(), key); err != nil {
						return err
					}
				}
				return writePlain(cmd.OutOrStdout(), "session cleared\n")
			})
		},
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
