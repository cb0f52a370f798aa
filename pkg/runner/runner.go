// Package runner drives agent turns: it reacts to session events, calls the
// model, executes tools, and keeps the context window under the compaction
// threshold. Hook dispatch is threaded through every stage.
package runner

import (
	"context"
	"log/slog"

	"github.com/prathamdby/pi-mono/pkg/hooks"
	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/tools"
)

// Config carries the collaborators one agent turn needs.
type Config struct {
	Model    models.Model
	Complete models.CompleteFunc
	Tools    *tools.Registry
	Hooks    *hooks.Runner
	APIKey   string

	// CompactionThreshold defaults to DefaultCompactionThreshold when 0.
	CompactionThreshold float64
	// Estimate defaults to models.EstimateByLength when nil.
	Estimate models.Estimator
}

func (c Config) estimate() models.Estimator {
	if c.Estimate != nil {
		return c.Estimate
	}
	return models.EstimateByLength
}

func (c Config) threshold() float64 {
	if c.CompactionThreshold > 0 {
		return c.CompactionThreshold
	}
	return DefaultCompactionThreshold
}

// Runner coordinates the execution of agents based on session events.
type Runner struct {
	manager   store.Manager
	cfg       Config
	ErrorChan chan error
}

func New(manager store.Manager, cfg Config) *Runner {
	return &Runner{
		manager:   manager,
		cfg:       cfg,
		ErrorChan: make(chan error, 10),
	}
}

// Start listens for session events and triggers agent steps.
func (r *Runner) Start(ctx context.Context) error {
	events := r.manager.Subscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sessionID := <-events:
			sess, err := r.manager.LoadSession(sessionID)
			if err != nil {
				slog.Error("Error loading session", "sessionID", sessionID, "error", err)
				continue
			}

			if err := RunStep(ctx, sess, r.cfg); err != nil {
				slog.Error("Error running step for session", "sessionID", sessionID, "error", err)
				select {
				case r.ErrorChan <- err:
				default:
				}
			}

			sess.Close()
		}
	}
}

// StopSession marks a session as ended and notifies hooks.
func (r *Runner) StopSession(ctx context.Context, sess store.Session) error {
	if r.cfg.Hooks != nil {
		r.cfg.Hooks.EmitSession(ctx, &hooks.SessionEvent{
			Reason:    hooks.ReasonShutdown,
			SessionID: sess.ID(),
			LeafID:    sess.LeafID(),
		})
	}
	return r.manager.SetSessionStatus(sess.ID(), store.SessionStatusEnded)
}
