// Package session obtains, validates and persists the authenticated browsing session.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Manager owns the re-authentication policy for the single persisted session.
type Manager struct {
	store   model.SessionStore
	scraper model.Scraper
	now     model.Clock
	logger  *slog.Logger
}

// NewManager creates a Manager. A nil clock defaults to time.Now.
func NewManager(store model.SessionStore, scraper model.Scraper, now model.Clock, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, scraper: scraper, now: now, logger: logger}
}

// Authenticate returns a session the remote site currently accepts. Unless
// forceReauth is set, a persisted session that passes the live check is
// returned as is. Otherwise the stale slot is cleared, the operator logs in,
// and the new session overwrites the slot. Nothing is persisted on failure.
func (m *Manager) Authenticate(ctx context.Context, forceReauth bool) (model.AuthSession, error) {
	if !forceReauth {
		existing, err := m.store.LoadSession(ctx)
		if err != nil {
			return model.AuthSession{}, model.Wrap(model.StageStorage, model.KindDatabase, "loading session", err)
		}
		if existing != nil {
			ok, err := m.stillValid(ctx, *existing)
			if err != nil {
				return model.AuthSession{}, err
			}
			if ok {
				m.logger.Debug("reusing persisted session", "session_id", existing.ID, "expires_at", existing.ExpiresAt)
				return *existing, nil
			}
			m.logger.Info("persisted session rejected, re-authenticating", "session_id", existing.ID)
		}
	}

	if err := m.store.DeleteSession(ctx); err != nil {
		return model.AuthSession{}, model.Wrap(model.StageStorage, model.KindDatabase, "clearing stale session", err)
	}

	m.logger.Info("waiting for interactive login")
	fresh, err := m.scraper.Login(ctx)
	if err != nil {
		return model.AuthSession{}, model.Wrap(model.StageAuth, model.KindAuthFailed, "interactive login", err)
	}
	if !fresh.Usable(m.now()) {
		return model.AuthSession{}, model.NewError(model.StageAuth, model.KindSessionExpired, "login returned an expired session", nil)
	}

	if err := m.store.SaveSession(ctx, fresh); err != nil {
		return model.AuthSession{}, model.Wrap(model.StageStorage, model.KindDatabase, "persisting session", err)
	}
	m.logger.Info("session persisted", "session_id", fresh.ID, "expires_at", fresh.ExpiresAt)
	return fresh, nil
}

// stillValid rejects expired sessions locally and asks the site about the rest,
// since sites can invalidate a session before its expiry.
func (m *Manager) stillValid(ctx context.Context, s model.AuthSession) (bool, error) {
	if !s.Usable(m.now()) {
		return false, nil
	}
	ok, err := m.scraper.IsLoggedIn(ctx, s)
	if err != nil {
		return false, model.Wrap(model.StageScrape, model.KindUnknown, "checking session", err)
	}
	return ok, nil
}

// Status describes the persisted session without contacting the site.
type Status struct {
	Present   bool
	Usable    bool
	ExpiresAt time.Time
	Age       time.Duration
}

// Inspect reports on the persisted session for the status command.
func (m *Manager) Inspect(ctx context.Context) (Status, error) {
	s, err := m.store.LoadSession(ctx)
	if err != nil {
		return Status{}, model.Wrap(model.StageStorage, model.KindDatabase, "loading session", err)
	}
	if s == nil {
		return Status{}, nil
	}
	now := m.now()
	return Status{
		Present:   true,
		Usable:    s.Usable(now),
		ExpiresAt: s.ExpiresAt,
		Age:       now.Sub(s.CreatedAt),
	}, nil
}
