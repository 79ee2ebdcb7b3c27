package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/reddit"
	"github.com/user/reddit-digest-bot/internal/store"
)

// mockStore implements store.Store in memory. Only the subscription side is
// populated; the rest exists to satisfy the interface.
type mockStore struct {
	mu   sync.Mutex
	subs []*model.Subscription
}

func (m *mockStore) CreateUser(ctx context.Context, id string) error { return nil }
func (m *mockStore) DeleteUser(ctx context.Context, id string) error { return nil }

func (m *mockStore) CreateSubscription(ctx context.Context, userID, subreddit string, sendOn, sendAt int) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &model.Subscription{
		ID:        uint(len(m.subs) + 1),
		UserID:    userID,
		Subreddit: subreddit,
		SendOn:    sendOn,
		SendAt:    sendAt,
	}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *mockStore) DeleteSubscription(ctx context.Context, userID, subreddit string) error {
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
	return nil, store.ErrDialogNotFound
}
func (m *mockStore) UpsertDialogState(ctx context.Context, state *model.DialogState) error {
	return nil
}
func (m *mockStore) DeleteDialogState(ctx context.Context, userID string) error { return nil }
func (m *mockStore) Ping(ctx context.Context) error                             { return nil }
func (m *mockStore) Close() error                                               { return nil }

// mockSender implements Sender and records sent digests
type mockSender struct {
	mu   sync.Mutex
	sent []string // chatID: text
	err  error
}

func (m *mockSender) SendMessageNoPreview(chatID, text string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, chatID+": "+text)
	return nil
}

// mockSource implements Source with fixed posts per subreddit
type mockSource struct {
	posts map[string][]reddit.Post
}

func (m *mockSource) FetchTop(ctx context.Context, subreddit string) ([]reddit.Post, error) {
	posts, ok := m.posts[subreddit]
	if !ok {
		return nil, fmt.Errorf("fetch r/%s: %w", subreddit, reddit.ErrMissingData)
	}
	return posts, nil
}

func TestService_Deliver(t *testing.T) {
	st := &mockStore{}
	sub, err := st.CreateSubscription(context.Background(), "123", "rust", 1, 9)
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	sender := &mockSender{}
	source := &mockSource{posts: map[string][]reddit.Post{
		"rust": {{Title: "A half-hour to learn Rust", Link: "https://www.reddit.com/r/rust/1"}},
	}}

	svc := NewService(st, sender, source)
	if err := svc.Deliver(context.Background(), sub); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent messages = %d, want 1", len(sender.sent))
	}
	if !strings.HasPrefix(sender.sent[0], "123: Weekly popular posts from: \"rust\"") {
		t.Errorf("message = %q, want digest for r/rust to user 123", sender.sent[0])
	}
	if st.subs[0].LastSentAt == nil {
		t.Error("LastSentAt not stamped after successful delivery")
	}
}

func TestService_DeliverFetchFailure(t *testing.T) {
	st := &mockStore{}
	sub, err := st.CreateSubscription(context.Background(), "123", "doesnotexist", 1, 9)
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	sender := &mockSender{}
	svc := NewService(st, sender, &mockSource{})

	err = svc.Deliver(context.Background(), sub)
	if !errors.Is(err, reddit.ErrMissingData) {
		t.Fatalf("Deliver() error = %v, want wrapped ErrMissingData", err)
	}
	if len(sender.sent) != 0 {
		t.Error("message sent despite fetch failure")
	}
	if st.subs[0].LastSentAt != nil {
		t.Error("LastSentAt stamped despite fetch failure")
	}
}

func TestService_DeliverSendFailure(t *testing.T) {
	st := &mockStore{}
	sub, err := st.CreateSubscription(context.Background(), "123", "rust", 1, 9)
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	sendErr := errors.New("telegram gateway down")
	sender := &mockSender{err: sendErr}
	source := &mockSource{posts: map[string][]reddit.Post{"rust": {}}}

	svc := NewService(st, sender, source)
	if err := svc.Deliver(context.Background(), sub); !errors.Is(err, sendErr) {
		t.Fatalf("Deliver() error = %v, want wrapped send error", err)
	}
	if st.subs[0].LastSentAt != nil {
		t.Error("LastSentAt stamped despite send failure")
	}
}

func TestService_DeliverAll(t *testing.T) {
	st := &mockStore{}
	for _, name := range []string{"rust", "doesnotexist", "golang"} {
		if _, err := st.CreateSubscription(context.Background(), "123", name, 1, 9); err != nil {
			t.Fatalf("CreateSubscription(%s) error = %v", name, err)
		}
	}
	if _, err := st.CreateSubscription(context.Background(), "456", "rust", 2, 10); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	sender := &mockSender{}
	source := &mockSource{posts: map[string][]reddit.Post{
		"rust":   {{Title: "a", Link: "b"}},
		"golang": {{Title: "c", Link: "d"}},
	}}

	svc := NewService(st, sender, source)
	if err := svc.DeliverAll(context.Background(), "123"); err != nil {
		t.Fatalf("DeliverAll() error = %v", err)
	}

	// The failing subreddit is skipped, the other two still go out, and only
	// user 123's subscriptions are touched.
	if len(sender.sent) != 2 {
		t.Fatalf("sent messages = %d, want 2", len(sender.sent))
	}
	for _, msg := range sender.sent {
		if !strings.HasPrefix(msg, "123: ") {
			t.Errorf("message sent to wrong chat: %q", msg)
		}
	}
	if st.subs[3].LastSentAt != nil {
		t.Error("other user's subscription was stamped")
	}
}
