// Package reconcile pushes locally durable sessions and turns that never
// reached the remote store. Remote appends are best-effort; the sweep is
// the repair pass that closes the gap.
package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/haeun/whatif/internal/observability"
	"github.com/haeun/whatif/pkg/identity"
	"github.com/haeun/whatif/pkg/session"
)

// Reconciler compares a collection snapshot against the remote store and
// inserts whatever is missing. It never mutates in-memory state.
type Reconciler struct {
	snapshot func() session.State
	remote   session.RemoteStore
	identity identity.Resolver
	logger   zerolog.Logger
	cron     *cron.Cron
}

// New creates a reconciler over a state snapshot source.
func New(snapshot func() session.State, remote session.RemoteStore, resolver identity.Resolver, logger zerolog.Logger) *Reconciler {
	observability.EnsureRegistered()
	return &Reconciler{
		snapshot: snapshot,
		remote:   remote,
		identity: resolver,
		logger:   logger,
	}
}

// Sweep pushes local-only sessions and turns to the remote store.
// Returns the number of rows inserted. Anonymous clients have nothing to
// reconcile.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	user, err := r.identity.CurrentUser(ctx)
	if err != nil || user == nil {
		return 0, nil
	}

	remoteSessions, err := r.remote.LoadSessions(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load remote sessions: %w", err)
	}

	remoteTurns := make(map[string]map[string]bool, len(remoteSessions))
	for _, sess := range remoteSessions {
		turns := make(map[string]bool, len(sess.Turns))
		for _, turn := range sess.Turns {
			turns[turn.ID] = true
		}
		remoteTurns[sess.ID] = turns
	}

	pushed := 0
	for _, sess := range r.snapshot().Sessions {
		turns, known := remoteTurns[sess.ID]
		if !known {
			if err := r.remote.InsertSession(ctx, user.ID, sess); err != nil {
				return pushed, fmt.Errorf("failed to push session %s: %w", sess.ID, err)
			}
			pushed++
			turns = map[string]bool{}
		}

		for _, turn := range sess.Turns {
			if turns[turn.ID] {
				continue
			}
			if err := r.remote.InsertTurn(ctx, sess.ID, turn); err != nil {
				return pushed, fmt.Errorf("failed to push turn %s: %w", turn.ID, err)
			}
			pushed++
		}
	}

	if pushed > 0 {
		observability.RecordReconcilePush(pushed)
		r.logger.Info().Int("pushed", pushed).Msg("Reconciliation sweep pushed local-only rows")
	}
	return pushed, nil
}

// Start schedules periodic sweeps with a cron expression.
func (r *Reconciler) Start(schedule string) error {
	if r.cron != nil {
		return fmt.Errorf("reconciler is already running")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("Scheduled reconciliation sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule: %w", err)
	}

	c.Start()
	r.cron = c
	r.logger.Info().Str("schedule", schedule).Msg("Reconciler started")
	return nil
}

// Stop stops scheduled sweeps.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
		r.logger.Info().Msg("Reconciler stopped")
	}
}
