package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/flowmarket/flowmarket/internal/billingperiod"
	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/metrics"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	"github.com/flowmarket/flowmarket/internal/ratelimit"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

const lockKeyPrefix = "scheduler:lock:"

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Aggregator payoutdomain.AggregatorService
	Disburser  payoutdomain.DisburserService

	Locker  *ratelimit.Locker `optional:"true"`
	Metrics *metrics.Metrics  `optional:"true"`
	Config  Config            `optional:"true"`
}

// Scheduler drives the monthly payout pipeline: aggregate the previous
// period's copies into payout records, then push pending records through
// disbursement. Both jobs are idempotent so overlapping runs settle on the
// same state.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	aggregator payoutdomain.AggregatorService
	disburser  payoutdomain.DisburserService
	locker     *ratelimit.Locker
	metrics    *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Aggregator == nil || p.Disburser == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        cfg,
		clock:      p.Clock,
		aggregator: p.Aggregator,
		disburser:  p.Disburser,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	release, acquired, err := s.acquireLock(ctx, name)
	if err != nil {
		s.log.Warn("job lock unavailable", zap.String("job", name), zap.Error(err))
		return nil
	}
	if !acquired {
		s.log.Debug("job already held elsewhere", zap.String("job", name))
		return nil
	}
	defer release()

	s.metrics.IncJobRun(name)

	err = fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// Deadline is a soft failure; the next tick picks up where this one
	// left off because every job re-derives its work set from storage.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobError(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// acquireLock takes the redis run lock for a job when a locker is wired.
// Without redis the scheduler assumes a single instance and always wins.
func (s *Scheduler) acquireLock(ctx context.Context, name string) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	key := lockKeyPrefix + name
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("job lock release failed", zap.String("job", name), zap.Error(err))
		}
	}, true, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"aggregate_payouts", s.isJobEnabled("aggregate_payouts"), func(ctx context.Context) error {
			return s.runJob(ctx, "aggregate_payouts", s.AggregatePayoutsJob)
		}},
		{"disburse_payouts", s.isJobEnabled("disburse_payouts"), func(ctx context.Context) error {
			return s.runJob(ctx, "disburse_payouts", s.DisbursePayoutsJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// AggregatePayoutsJob rolls the most recently closed period into payout
// records. Running it again over the same period is a no-op once records
// leave the pending state.
func (s *Scheduler) AggregatePayoutsJob(ctx context.Context) error {
	period := billingperiod.Previous(s.clock.Now())

	records, err := s.aggregator.AggregatePeriod(ctx, period)
	if err != nil {
		return err
	}
	s.log.Info("aggregated payouts",
		zap.Time("billing_period", period),
		zap.Int("records", len(records)),
	)
	return nil
}

// DisbursePayoutsJob pushes pending and failed records from every closed
// period through the transfer provider, so balances that failed or sat
// below the threshold in an earlier month keep getting retried.
func (s *Scheduler) DisbursePayoutsJob(ctx context.Context) error {
	return s.disburser.DisburseOutstanding(ctx)
}
