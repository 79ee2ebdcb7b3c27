package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/config"
	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/server"
	"github.com/user/reddit-digest-bot/internal/store"
)

// Deliverer runs the delivery pipeline for one due subscription.
type Deliverer interface {
	Deliver(ctx context.Context, sub *model.Subscription) error
}

// Scheduler periodically scans all subscriptions and delivers the due ones.
// The loop is stateless between iterations: everything durable lives in the
// store, which is what makes the blunt restart-on-panic recovery safe.
type Scheduler struct {
	store    store.Store
	digest   Deliverer
	config   *config.SchedulerConfig
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(st store.Store, digest Deliverer, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:  st,
		digest: digest,
		config: cfg,
		stopCh: make(chan struct{}),
	}
}

// IsDue reports whether the subscription should be delivered at now. Delivery
// is allowed any hour on or after the configured hour on the configured
// weekday, but at most once per calendar day: a subscription that failed
// earlier stays eligible for the rest of the day, and a successful send
// blocks re-sends until the next eligible day.
func IsDue(sub *model.Subscription, now time.Time) bool {
	if now.Weekday() != time.Weekday(sub.SendOn) {
		return false
	}
	if now.Hour() < sub.SendAt {
		return false
	}
	if sub.LastSentAt != nil {
		y1, m1, d1 := sub.LastSentAt.UTC().Date()
		y2, m2, d2 := now.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			return false
		}
	}
	return true
}

// Start launches the supervised scheduler loop on its own goroutine
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Scheduler is disabled")
		return
	}

	s.wg.Add(1)
	go s.supervise(ctx)
}

// supervise restarts the loop whenever it aborts abnormally. The loop only
// returns true on an orderly stop; a recovered panic returns false and the
// loop is relaunched with the same configuration.
func (s *Scheduler) supervise(ctx context.Context) {
	defer s.wg.Done()

	for {
		if stopped := s.runLoop(ctx); stopped {
			return
		}
		log.Error().Msg("Scheduler loop aborted, restarting")
	}
}

func (s *Scheduler) runLoop(ctx context.Context) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Scheduler loop panicked")
			stopped = false
		}
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.config.Interval).Msg("Scheduler started")

	for {
		select {
		case <-ticker.C:
			s.ProcessDue(ctx, time.Now().UTC())
		case <-s.stopCh:
			log.Info().Msg("Scheduler stopped")
			return true
		case <-ctx.Done():
			log.Info().Msg("Scheduler context cancelled")
			return true
		}
	}
}

// ProcessDue runs one scheduler iteration at the given instant. A failure on
// one subscription is logged and does not prevent the remaining ones from
// being processed.
func (s *Scheduler) ProcessDue(ctx context.Context, now time.Time) {
	subs, err := s.store.GetSubscriptions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list subscriptions")
		return
	}

	server.UpdateSubscriptionCount(len(subs))

	for _, sub := range subs {
		if !IsDue(sub, now) {
			log.Debug().
				Str("userID", sub.UserID).
				Str("subreddit", sub.Subreddit).
				Msg("Skipping subscription, not due")
			continue
		}

		if err := s.digest.Deliver(ctx, sub); err != nil {
			log.Error().Err(err).
				Str("userID", sub.UserID).
				Str("subreddit", sub.Subreddit).
				Msg("Failed to process subscription")
			continue
		}

		log.Info().
			Str("userID", sub.UserID).
			Str("subreddit", sub.Subreddit).
			Msg("Processed subscription")
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}
