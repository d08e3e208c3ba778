package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/lattice/pkg/observability"
)

// DefaultTTL is how long a session lives without renewal.
const DefaultTTL = 24 * time.Hour

// Manager issues, resolves and destroys sessions over a Store.
type Manager struct {
	store   Store
	ttl     time.Duration
	log     *observability.Logger
	metrics *observability.Metrics
	cron    *cron.Cron
}

// NewManager creates a session manager. A non-positive ttl selects
// DefaultTTL. metrics may be nil.
func NewManager(store Store, ttl time.Duration, log *observability.Logger, metrics *observability.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, log: log, metrics: metrics}
}

// Create mints a token for the user and persists the session. The returned
// plaintext token is never stored.
func (m *Manager) Create(ctx context.Context, userID string) (string, error) {
	token, hash, err := MintToken()
	if err != nil {
		return "", err
	}
	sess := Session{
		TokenHash: hash,
		UserID:    userID,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if m.metrics != nil {
		m.metrics.SessionsActive.Inc()
	}
	return token, nil
}

// Resolve maps a plaintext token to the user ID it authenticates. Malformed,
// unknown and expired tokens all yield ErrNoSession.
func (m *Manager) Resolve(ctx context.Context, token string) (string, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return "", ErrNoSession
	}
	sess, err := m.store.Lookup(ctx, HashToken(token))
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// Destroy removes the session for a token. Unknown tokens are ignored.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if err := ValidateTokenFormat(token); err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if m.metrics != nil {
		m.metrics.SessionsActive.Dec()
	}
	return nil
}

// StartSweeper schedules periodic expired-session cleanup with the given
// cron expression (e.g. "@every 10m"). Call StopSweeper on shutdown.
func (m *Manager) StartSweeper(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := m.store.DeleteExpired(ctx)
		if err != nil {
			m.log.WithError(err).Warn("session sweep failed")
			return
		}
		if removed > 0 {
			m.log.WithField("removed", removed).Info("swept expired sessions")
			if m.metrics != nil {
				m.metrics.SessionsExpired.Add(float64(removed))
				m.metrics.SessionsActive.Sub(float64(removed))
			}
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session sweeper: %w", err)
	}
	c.Start()
	m.cron = c
	return nil
}

// StopSweeper stops the sweep schedule, waiting for a running sweep.
func (m *Manager) StopSweeper() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}
