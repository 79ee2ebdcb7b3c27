package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/store"
)

// mockStore implements store.Store in memory
type mockStore struct {
	mu     sync.Mutex
	users  map[string]bool
	subs   []*model.Subscription
	states map[string]*model.DialogState
	nextID uint
}

func newMockStore(userIDs ...string) *mockStore {
	users := make(map[string]bool)
	for _, id := range userIDs {
		users[id] = true
	}
	return &mockStore{
		users:  users,
		states: make(map[string]*model.DialogState),
		nextID: 1,
	}
}

func (m *mockStore) CreateUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users[id] {
		return store.ErrUserExists
	}
	m.users[id] = true
	return nil
}

func (m *mockStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	var kept []*model.Subscription
	for _, sub := range m.subs {
		if sub.UserID != id {
			kept = append(kept, sub)
		}
	}
	m.subs = kept
	delete(m.states, id)
	return nil
}

func (m *mockStore) CreateSubscription(ctx context.Context, userID, subreddit string, sendOn, sendAt int) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.users[userID] {
		return nil, fmt.Errorf("subscribe %s: %w", userID, store.ErrUserNotFound)
	}
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.Subreddit == subreddit {
			return nil, fmt.Errorf("subscribe %s to %s: %w", userID, subreddit, store.ErrAlreadySubscribed)
		}
	}
	sub := &model.Subscription{
		ID:        m.nextID,
		UserID:    userID,
		Subreddit: subreddit,
		SendOn:    sendOn,
		SendAt:    sendAt,
	}
	m.nextID++
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *mockStore) DeleteSubscription(ctx context.Context, userID, subreddit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*model.Subscription
	for _, sub := range m.subs {
		if sub.UserID != userID || sub.Subreddit != subreddit {
			kept = append(kept, sub)
		}
	}
	m.subs = kept
	return nil
}

func (m *mockStore) GetSubscriptions(ctx context.Context) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Subscription(nil), m.subs...), nil
}

func (m *mockStore) GetUserSubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []*model.Subscription
	for _, sub := range m.subs {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (m *mockStore) UpdateLastSent(ctx context.Context, subscriptionID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, sub := range m.subs {
		if sub.ID == subscriptionID {
			sub.LastSentAt = &now
		}
	}
	return nil
}

func (m *mockStore) GetDialogState(ctx context.Context, userID string) (*model.DialogState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[userID]
	if !ok {
		return nil, fmt.Errorf("dialog state for %s: %w", userID, store.ErrDialogNotFound)
	}
	return state, nil
}

func (m *mockStore) UpsertDialogState(ctx context.Context, state *model.DialogState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.users[state.UserID] {
		return fmt.Errorf("upsert dialog state for %s: %w", state.UserID, store.ErrUserNotFound)
	}
	m.states[state.UserID] = state
	return nil
}

func (m *mockStore) DeleteDialogState(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                   { return nil }

// sentMessage records one outbound message
type sentMessage struct {
	chatID   string
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

// mockMessenger implements Messenger and records everything sent
type mockMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockMessenger) SendMessage(chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (m *mockMessenger) SendMessageWithKeyboard(chatID, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, keyboard: &keyboard})
	return nil
}

func (m *mockMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

// mockChecker implements SubredditChecker against a fixed set
type mockChecker struct {
	mu      sync.Mutex
	valid   map[string]bool
	checked []string
}

func newMockChecker(valid ...string) *mockChecker {
	m := &mockChecker{valid: make(map[string]bool)}
	for _, name := range valid {
		m.valid[name] = true
	}
	return m
}

func (m *mockChecker) SubredditExists(ctx context.Context, subreddit string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, subreddit)
	return m.valid[subreddit], nil
}

// mockDeliverer implements Deliverer and records delivered subscriptions
type mockDeliverer struct {
	mu        sync.Mutex
	delivered []*model.Subscription
	err       error
}

func (m *mockDeliverer) Deliver(ctx context.Context, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, sub)
	return m.err
}
