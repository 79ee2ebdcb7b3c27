package store

import (
	"context"
	"errors"

	"github.com/user/reddit-digest-bot/internal/model"
)

// Sentinel errors distinguishing expected storage conditions from generic
// failures. Callers match with errors.Is.
var (
	// ErrUserExists is returned when creating a user that is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a write references a user row that does
	// not exist (foreign key violation).
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadySubscribed is returned when creating a (user, subreddit) pair
	// that already has a subscription.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrDialogNotFound is returned when a user has no persisted dialog state.
	ErrDialogNotFound = errors.New("dialog state not found")
)

// Store defines the interface for data persistence operations
type Store interface {
	// User operations
	CreateUser(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error

	// Subscription operations
	CreateSubscription(ctx context.Context, userID, subreddit string, sendOn, sendAt int) (*model.Subscription, error)
	DeleteSubscription(ctx context.Context, userID, subreddit string) error
	GetSubscriptions(ctx context.Context) ([]*model.Subscription, error)
	GetUserSubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error)
	UpdateLastSent(ctx context.Context, subscriptionID uint) error

	// DialogState operations
	GetDialogState(ctx context.Context, userID string) (*model.DialogState, error)
	UpsertDialogState(ctx context.Context, state *model.DialogState) error
	DeleteDialogState(ctx context.Context, userID string) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
