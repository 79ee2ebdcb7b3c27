package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/reddit"
	"github.com/user/reddit-digest-bot/internal/server"
	"github.com/user/reddit-digest-bot/internal/store"
	"golang.org/x/time/rate"
)

// Sender delivers a digest text to a chat with link previews disabled.
type Sender interface {
	SendMessageNoPreview(chatID string, text string) error
}

// Source fetches a subreddit's ranked weekly top posts.
type Source interface {
	FetchTop(ctx context.Context, subreddit string) ([]reddit.Post, error)
}

// Service runs the delivery pipeline: fetch top posts, format the digest,
// send it, and record the successful delivery on the subscription.
type Service struct {
	store    store.Store
	telegram Sender
	reddit   Source
	limiter  *rate.Limiter // Telegram rate limit: max 30 msg/sec globally
}

// NewService creates a new digest delivery service
func NewService(st store.Store, telegram Sender, source Source) *Service {
	return &Service{
		store:    st,
		telegram: telegram,
		reddit:   source,
		// Telegram rate limit: 30 messages per second globally
		limiter: rate.NewLimiter(rate.Limit(30), 1),
	}
}

// Deliver runs the pipeline for a single subscription. On any failure the
// subscription is left untouched so a later scheduler iteration retries it;
// last_sent_at is only stamped after the gateway accepted the message.
func (s *Service) Deliver(ctx context.Context, sub *model.Subscription) error {
	start := time.Now()

	posts, err := s.reddit.FetchTop(ctx, sub.Subreddit)
	if err != nil {
		server.RecordDigest(server.StatusFailed)
		return fmt.Errorf("failed to fetch posts for r/%s: %w", sub.Subreddit, err)
	}

	message := FormatDigest(sub.Subreddit, posts)

	if err := s.limiter.Wait(ctx); err != nil {
		server.RecordDigest(server.StatusFailed)
		return fmt.Errorf("rate limiter error: %w", err)
	}

	if err := s.telegram.SendMessageNoPreview(sub.UserID, message); err != nil {
		server.RecordDigest(server.StatusFailed)
		return fmt.Errorf("failed to send digest for r/%s: %w", sub.Subreddit, err)
	}

	if err := s.store.UpdateLastSent(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to record delivery for r/%s: %w", sub.Subreddit, err)
	}

	server.RecordDigest(server.StatusSuccess)
	server.ObserveDeliveryDuration(time.Since(start))

	log.Info().
		Str("userID", sub.UserID).
		Str("subreddit", sub.Subreddit).
		Int("posts", len(posts)).
		Msg("Delivered digest")

	return nil
}

// DeliverAll runs the pipeline for every subscription of one user (the
// /sendnow command). Failures are isolated per subscription.
func (s *Service) DeliverAll(ctx context.Context, userID string) error {
	subs, err := s.store.GetUserSubscriptions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := s.Deliver(ctx, sub); err != nil {
			log.Error().Err(err).
				Str("userID", userID).
				Str("subreddit", sub.Subreddit).
				Msg("Failed to deliver digest")
		}
	}

	return nil
}
