package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"otp-verification-service/internal/otp/domain"
	"otp-verification-service/internal/otp/repository"
)

// sweepTimeout bounds one scheduled sweep.
const sweepTimeout = time.Minute

// Reaper periodically deletes expired and invalidated challenges.
type Reaper struct {
	repo    repository.Repository
	policy  domain.Policy
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewReaper returns a Reaper using policy.CleanupInterval and policy.CleanupOnStartup.
func NewReaper(repo repository.Repository, policy domain.Policy, metrics *Metrics, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{repo: repo, policy: policy, metrics: metrics, logger: logger, now: time.Now}
}

// Sweep removes every challenge with expires_at < now or valid = false and returns the count.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.repo.DeleteStale(ctx, r.now().UTC())
	if err != nil {
		return 0, err
	}
	r.metrics.reaperDeleted(ctx, n)
	return n, nil
}

// Start launches the sweep loop. It runs once immediately when CleanupOnStartup is set.
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("reaper already running")
	}
	if r.policy.CleanupInterval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.wg.Add(1)
	go r.run()
	r.logger.Info("otp reaper started",
		zap.Duration("interval", r.policy.CleanupInterval),
		zap.Bool("on_startup", r.policy.CleanupOnStartup))
	return nil
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("otp reaper stopped")
}

func (r *Reaper) run() {
	defer r.wg.Done()

	if r.policy.CleanupOnStartup {
		r.tick()
	}

	ticker := time.NewTicker(r.policy.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-r.stopChan:
			return
		}
	}
}

// tick runs one sweep. Failures are logged and left for the next tick.
func (r *Reaper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Warn("otp reaper sweep failed", zap.Error(err))
		return
	}
	r.logger.Info("otp reaper sweep completed",
		zap.Int64("deleted", n),
		zap.Duration("duration", time.Since(start)))
}
