package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/user/reddit-digest-bot/internal/config"
	"github.com/user/reddit-digest-bot/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MySQL server error numbers relevant to the bot's invariants.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrNoReferencedRow = 1452
)

// MySQLStore implements Store interface using MySQL database
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store instance
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables. Order matters: users first so the cascade foreign
	// keys on subscriptions and dialog_states can be created.
	if err := db.AutoMigrate(&model.User{}, &model.Subscription{}, &model.DialogState{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// CreateUser registers a new user. Returns ErrUserExists when the id is
// already registered.
func (s *MySQLStore) CreateUser(ctx context.Context, id string) error {
	user := &model.User{ID: id}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isMySQLError(err, mysqlErrDuplicateEntry) {
			return fmt.Errorf("create user %s: %w", id, ErrUserExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// DeleteUser removes a user. Subscriptions and dialog state cascade at the
// database level.
func (s *MySQLStore) DeleteUser(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	return nil
}

// CreateSubscription creates a subscription row and returns it with its
// generated id. Returns ErrAlreadySubscribed for a duplicate (user, subreddit)
// pair and ErrUserNotFound when the user row does not exist.
func (s *MySQLStore) CreateSubscription(ctx context.Context, userID, subreddit string, sendOn, sendAt int) (*model.Subscription, error) {
	sub := &model.Subscription{
		UserID:    userID,
		Subreddit: subreddit,
		SendOn:    sendOn,
		SendAt:    sendAt,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		if isMySQLError(err, mysqlErrDuplicateEntry) {
			return nil, fmt.Errorf("subscribe %s to %s: %w", userID, subreddit, ErrAlreadySubscribed)
		}
		if isMySQLError(err, mysqlErrNoReferencedRow) {
			return nil, fmt.Errorf("subscribe %s to %s: %w", userID, subreddit, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

// DeleteSubscription deletes a user's subscription to a subreddit
func (s *MySQLStore) DeleteSubscription(ctx context.Context, userID, subreddit string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND subreddit = ?", userID, subreddit).
		Delete(&model.Subscription{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", result.Error)
	}
	return nil
}

// GetSubscriptions retrieves all subscriptions across all users
func (s *MySQLStore) GetSubscriptions(ctx context.Context) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	result := s.db.WithContext(ctx).Find(&subs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", result.Error)
	}
	return subs, nil
}

// GetUserSubscriptions retrieves all subscriptions of one user
func (s *MySQLStore) GetUserSubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("subreddit").
		Find(&subs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get user subscriptions: %w", result.Error)
	}
	return subs, nil
}

// UpdateLastSent stamps the subscription's last successful delivery with the
// current UTC time.
func (s *MySQLStore) UpdateLastSent(ctx context.Context, subscriptionID uint) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("last_sent_at", now)
	if result.Error != nil {
		return fmt.Errorf("failed to update last sent: %w", result.Error)
	}
	return nil
}

// GetDialogState retrieves a user's in-progress dialog, or ErrDialogNotFound.
func (s *MySQLStore) GetDialogState(ctx context.Context, userID string) (*model.DialogState, error) {
	var state model.DialogState
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dialog state for %s: %w", userID, ErrDialogNotFound)
		}
		return nil, fmt.Errorf("failed to get dialog state: %w", result.Error)
	}
	return &state, nil
}

// UpsertDialogState writes a dialog state with replace semantics, keyed by
// user id. Returns ErrUserNotFound when the owning user does not exist.
func (s *MySQLStore) UpsertDialogState(ctx context.Context, state *model.DialogState) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(state).Error
	if err != nil {
		if isMySQLError(err, mysqlErrNoReferencedRow) {
			return fmt.Errorf("upsert dialog state for %s: %w", state.UserID, ErrUserNotFound)
		}
		return fmt.Errorf("failed to upsert dialog state: %w", err)
	}
	return nil
}

// DeleteDialogState removes a user's dialog state if any
func (s *MySQLStore) DeleteDialogState(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.DialogState{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete dialog state: %w", result.Error)
	}
	return nil
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}

// isMySQLError reports whether err wraps a MySQL server error with the given
// error number.
func isMySQLError(err error, number uint16) bool {
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == number
}
