package main

import (
	"context"
	"fmt"
	"log/slog"

	"tix/internal/api"
	"tix/internal/config"
	"tix/internal/detail"
	"tix/internal/localstore"
	"tix/internal/session"
)

func withStore(cfg *config.Config, fn func(*localstore.Store) error) error {
	store, err := localstore.Open(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open storage %s: %w", cfg.StoragePath, err)
	}
	defer store.Close()
	return fn(store)
}

func loadSession(ctx context.Context, cfg *config.Config) (*session.Session, error) {
	var sess *session.Session
	err := withStore(cfg, func(store *localstore.Store) error {
		var err error
		sess, err = session.Load(ctx, store, slog.Default())
		return err
	})
	return sess, err
}

func newAPIClient(cfg *config.Config, sess *session.Session, logger *slog.Logger) *api.Client {
	return api.NewClient(cfg.APIURL, sess.Token(),
		api.WithTimeout(cfg.HTTPTimeoutDuration()),
		api.WithLogger(logger),
	)
}

// withView reads the session once, opens a detail view for ticketID and
// tears it down after fn returns. notifyOpen controls the "ticket viewed"
// call, which only the read commands send.
func withView(ctx context.Context, cfg *config.Config, ticketID string, notifyOpen bool, fn func(*detail.View) error) error {
	sess, err := loadSession(ctx, cfg)
	if err != nil {
		return err
	}

	logger := slog.Default().With("session", sess)
	view := detail.New(ticketID, newAPIClient(cfg, sess, logger), sess, detail.Options{
		PollInterval:         cfg.PollIntervalDuration(),
		NotificationTTL:      cfg.NotificationTTLDuration(),
		Logger:               logger,
		SkipOpenNotification: !notifyOpen,
	})
	defer func() {
		view.Close()
		view.Wait()
	}()

	return fn(view)
}
