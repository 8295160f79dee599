// Package worker mirrors the persisted budget state to the remote
// spreadsheet whenever the API announces a new version.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/sheets"
)

type (
	// StateLoader reads the latest persisted state.
	StateLoader interface {
		Load(ctx context.Context) (core.FinanceState, error)
	}

	// Consumer delivers sync messages until ctx is done.
	Consumer interface {
		ConsumeStateSync(ctx context.Context, handler func(context.Context, *amqp.StateSyncMessage) error) error
	}
)

// SyncWorker pushes the whole state to the mirror. Versions at or below the
// last mirrored one are skipped, so duplicate and reordered messages are
// harmless.
type SyncWorker struct {
	repo   StateLoader
	mirror sheets.StateMirror
	logger *slog.Logger

	mu          sync.Mutex
	lastVersion int64
	mirrored    bool
}

func NewSyncWorker(repo StateLoader, mirror sheets.StateMirror, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{
		repo:   repo,
		mirror: mirror,
		logger: logger,
	}
}

// HandleSyncMessage processes a single state sync message from AMQP. An
// error makes the consumer requeue the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.StateSyncMessage) error {
	w.logger.DebugContext(ctx, "Processing sync message",
		"version", msg.Version,
		"reason", msg.Reason)

	if w.isStale(msg.Version) {
		w.logger.DebugContext(ctx, "Skipping already mirrored version", "version", msg.Version)
		return nil
	}
	_, err := w.Sync(ctx)
	return err
}

func (w *SyncWorker) isStale(version int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mirrored && version <= w.lastVersion
}

// Sync loads the latest state and mirrors it unless that version was
// already mirrored. It reports whether the mirror was written.
func (w *SyncWorker) Sync(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, err := w.repo.Load(ctx)
	if errors.Is(err, core.ErrNoState) {
		w.logger.DebugContext(ctx, "No state saved yet, nothing to mirror")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	if w.mirrored && s.Version <= w.lastVersion {
		return false, nil
	}

	start := time.Now()
	if err := w.mirror.Mirror(ctx, s); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror state", "version", s.Version, "error", err)
		return false, fmt.Errorf("mirror state: %w", err)
	}
	w.lastVersion = s.Version
	w.mirrored = true

	w.logger.InfoContext(ctx, "Mirrored state",
		"version", s.Version,
		"expenses", len(s.Expenses),
		"recurring", len(s.RecurringRules),
		"duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

// LastVersion returns the last mirrored version and whether anything has
// been mirrored yet.
func (w *SyncWorker) LastVersion() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastVersion, w.mirrored
}

// Run mirrors once, then consumes messages and resyncs every interval until
// ctx is cancelled. consumer may be nil, leaving only the periodic resync.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if _, err := w.Sync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeStateSync(ctx, w.HandleSyncMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := w.Sync(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic sync failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
