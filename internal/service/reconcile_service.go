package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/lock"
	"github.com/prn-tf/vaultbox/internal/metrics"
	"github.com/prn-tf/vaultbox/internal/repository"
)

// Reconciler removes objects whose owner no longer exists. Such orphans are
// left behind when a user-deletion cascade fails halfway.
type Reconciler struct {
	objectRepo repository.ObjectRepository
	files      *FileService
	locker     lock.Locker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	config     ReconcileConfig

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// ReconcileConfig contains reconciler configuration.
type ReconcileConfig struct {
	// Interval is how often to run in the background.
	Interval time.Duration

	// BatchSize is the maximum number of orphaned owners to process per run.
	BatchSize int

	// DryRun logs what would be deleted without deleting.
	DryRun bool
}

// DefaultReconcileConfig returns sensible defaults.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Interval:  1 * time.Hour,
		BatchSize: 100,
	}
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	objectRepo repository.ObjectRepository,
	files *FileService,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config ReconcileConfig,
) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReconcileConfig().BatchSize
	}
	return &Reconciler{
		objectRepo: objectRepo,
		files:      files,
		locker:     locker,
		metrics:    m,
		logger:     logger.With().Str("service", "reconcile").Logger(),
		config:     config,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins the background schedule.
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info().
		Dur("interval", r.config.Interval).
		Int("batch_size", r.config.BatchSize).
		Bool("dry_run", r.config.DryRun).
		Msg("Starting reconciler")

	go r.runLoop()
}

// Stop stops the background schedule and waits for a running pass to end.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	<-r.doneChan

	r.logger.Info().Msg("Reconciler stopped")
}

func (r *Reconciler) runLoop() {
	defer close(r.doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopChan:
			return
		}
	}
}

// ReconcileResult contains the result of a reconciliation run.
type ReconcileResult struct {
	// Skipped is true when another process held the lock.
	Skipped bool

	// OrphanOwners is the number of missing owners found in this run.
	OrphanOwners int

	// ObjectsPurged is the number of objects deleted (or that would be, in a dry run).
	ObjectsPurged int

	// Errors is the number of errors encountered.
	Errors int

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) ReconcileResult {
	start := time.Now()
	result := ReconcileResult{}

	lockTTL := r.config.Interval / 2
	if lockTTL < 5*time.Minute {
		lockTTL = 5 * time.Minute
	}

	l := lock.NewLock(r.locker, lock.Keys.ReconcileOrphans())
	acquired, err := l.Acquire(ctx, lockTTL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to acquire reconcile lock")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}
	if !acquired {
		r.logger.Debug().Msg("Reconcile lock held by another process, skipping run")
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error().Err(err).Msg("Failed to release reconcile lock")
		}
	}()

	owners, err := r.objectRepo.ListOrphanOwners(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list orphaned owners")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}
	result.OrphanOwners = len(owners)

	for _, ownerID := range owners {
		if r.config.DryRun {
			n, err := r.files.countByOwner(ctx, ownerID)
			if err != nil {
				result.Errors++
				continue
			}
			r.logger.Info().
				Str("owner_id", ownerID).
				Int("objects", n).
				Msg("[DRY RUN] Would delete orphaned objects")
			result.ObjectsPurged += n
			continue
		}

		n, err := r.files.deleteAllByOwner(ctx, ownerID)
		if err != nil {
			r.logger.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to delete orphaned objects")
			result.Errors++
			continue
		}
		r.files.recordDeletes(deleteReasonReconcile, n)
		result.ObjectsPurged += n
	}

	result.Duration = time.Since(start)

	if r.metrics != nil && !r.config.DryRun {
		r.metrics.RecordReconcileRun(result.Duration, result.OrphanOwners, result.ObjectsPurged)
	}

	if result.OrphanOwners > 0 || result.Errors > 0 {
		r.logger.Info().
			Int("orphan_owners", result.OrphanOwners).
			Int("objects_purged", result.ObjectsPurged).
			Int("errors", result.Errors).
			Bool("dry_run", r.config.DryRun).
			Dur("duration", result.Duration).
			Msg("Reconciliation run completed")
	} else {
		r.logger.Debug().Msg("No orphaned objects found")
	}

	return result
}
