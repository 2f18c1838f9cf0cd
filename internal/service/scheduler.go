package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
)

// SchedulerConfig holds the periodic task intervals.
type SchedulerConfig struct {
	RedemptionInterval time.Duration
	DiscoveryInterval  time.Duration
	BackupInterval     time.Duration

	// RevalidationInterval re-checks validated codes for silent
	// expiry. 0 disables the job.
	RevalidationInterval time.Duration

	BatchSize int
}

// Scheduler drives the periodic tasks: queue processing, code
// discovery with follow-up validation and enqueueing, and housekeeping.
// Every job runs in singleton mode so a slow run never overlaps the
// next firing, and each runs once immediately at startup.
type Scheduler struct {
	cfg        SchedulerConfig
	redemption *RedemptionService
	discovery  *DiscoveryService
	validator  *Validator
	backup     *repository.BackupService

	sched    gocron.Scheduler
	stopOnce sync.Once
}

// NewScheduler creates the task scheduler.
func NewScheduler(cfg SchedulerConfig, redemption *RedemptionService,
	discovery *DiscoveryService, validator *Validator,
	backup *repository.BackupService) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Scheduler{
		cfg:        cfg,
		redemption: redemption,
		discovery:  discovery,
		validator:  validator,
		backup:     backup,
	}
}

// Start registers and starts all periodic jobs. Job handlers log their
// own failures; a failed run never cancels future runs.
func (s *Scheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.sched = sched

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"redemption", s.cfg.RedemptionInterval, s.runRedemption},
		{"discovery", s.cfg.DiscoveryInterval, s.runDiscovery},
		{"backup", s.cfg.BackupInterval, s.runBackup},
		{"revalidation", s.cfg.RevalidationInterval, s.runRevalidation},
	}

	for _, job := range jobs {
		if job.interval <= 0 {
			continue
		}
		_, err := sched.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(s.guarded(job.name, job.run)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		log.Printf("[Scheduler] %s: every %v", job.name, job.interval)
	}

	sched.Start()
	log.Printf("[Scheduler] Started")
	return nil
}

// guarded wraps a job body with panic recovery so one bad run cannot
// take the scheduler down.
func (s *Scheduler) guarded(name string, run func(context.Context)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Scheduler] %s job panicked: %v", name, r)
			}
		}()
		run(context.Background())
	}
}

func (s *Scheduler) runRedemption(ctx context.Context) {
	result, err := s.redemption.ProcessQueue(ctx, s.cfg.BatchSize)
	if err != nil {
		log.Printf("[Scheduler] Redemption run failed: %v", err)
		return
	}
	if result.Processed > 0 {
		log.Printf("[Scheduler] Redemption run: %d processed, %d success, %d failed",
			result.Processed, result.Success, result.Failed)
	}
}

// runDiscovery syncs the feed, validates anything newly discovered and
// queues validated codes for every account that still misses them.
func (s *Scheduler) runDiscovery(ctx context.Context) {
	result, err := s.discovery.Sync(ctx)
	if err != nil {
		log.Printf("[Scheduler] Discovery run failed: %v", err)
		return
	}

	if result.NewCodes > 0 {
		if _, err := s.validator.ValidatePending(ctx); err != nil {
			log.Printf("[Scheduler] Validation after discovery failed: %v", err)
		}
	}

	queued, err := s.redemption.EnqueueValidatedForAll(ctx, 0)
	if err != nil {
		log.Printf("[Scheduler] Enqueue after discovery failed: %v", err)
		return
	}
	if queued > 0 {
		log.Printf("[Scheduler] Queued %d redemptions after discovery", queued)
	}
}

func (s *Scheduler) runBackup(ctx context.Context) {
	if _, err := s.backup.Create(ctx); err != nil {
		log.Printf("[Scheduler] Backup run failed: %v", err)
	}
}

func (s *Scheduler) runRevalidation(ctx context.Context) {
	summary, err := s.validator.RevalidateValidated(ctx)
	if err != nil {
		log.Printf("[Scheduler] Revalidation run failed: %v", err)
		return
	}
	if summary.Processed > 0 {
		log.Printf("[Scheduler] Revalidation run: %d checked, %d still valid, %d retired",
			summary.Processed, summary.Valid, summary.Invalid)
	}
}

// Stop cancels all outstanding timers. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.sched != nil {
			if err := s.sched.Shutdown(); err != nil {
				log.Printf("[Scheduler] Shutdown error: %v", err)
			}
		}
		log.Printf("[Scheduler] Stopped")
	})
}
