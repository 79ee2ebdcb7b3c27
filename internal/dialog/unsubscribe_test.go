package dialog

import (
	"context"
	"testing"
)

func TestUnsubscribeDialog_NoSubscriptions(t *testing.T) {
	st := newMockStore(testUserID)
	m := &mockMessenger{}

	d := NewUnsubscribe(testUserID, st, m)
	if err := d.Advance(context.Background(), "/unsubscribe"); err != nil {
		t.Fatalf("Advance(/unsubscribe) error = %v", err)
	}

	if m.last().text != "You have no subscriptions" {
		t.Errorf("reply = %q, want %q", m.last().text, "You have no subscriptions")
	}
	if len(st.states) != 0 {
		t.Error("dialog state persisted for empty subscription list")
	}
}

func TestUnsubscribeDialog_FullFlow(t *testing.T) {
	st := newMockStore(testUserID)
	m := &mockMessenger{}

	for _, name := range []string{"golang", "rust"} {
		if _, err := st.CreateSubscription(context.Background(), testUserID, name, 1, 9); err != nil {
			t.Fatalf("CreateSubscription(%s) error = %v", name, err)
		}
	}

	d := NewUnsubscribe(testUserID, st, m)
	if err := d.Advance(context.Background(), "/unsubscribe"); err != nil {
		t.Fatalf("Advance(/unsubscribe) error = %v", err)
	}

	prompt := m.last()
	if prompt.keyboard == nil {
		t.Fatal("selection prompt has no keyboard")
	}
	var buttons int
	for _, row := range prompt.keyboard.InlineKeyboard {
		buttons += len(row)
	}
	if buttons != 2 {
		t.Errorf("keyboard buttons = %d, want 2", buttons)
	}
	if st.states[testUserID].Step != string(UnsubscribeSubreddit) {
		t.Fatalf("persisted step = %v, want %v", st.states[testUserID].Step, UnsubscribeSubreddit)
	}

	state, err := st.GetDialogState(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("GetDialogState() error = %v", err)
	}
	resumed, err := ResumeUnsubscribe(state, st, m)
	if err != nil {
		t.Fatalf("ResumeUnsubscribe() error = %v", err)
	}
	if err := resumed.Advance(context.Background(), "rust"); err != nil {
		t.Fatalf("Advance(rust) error = %v", err)
	}

	if m.last().text != "Unsubscribed from: rust" {
		t.Errorf("reply = %q, want %q", m.last().text, "Unsubscribed from: rust")
	}
	if len(st.subs) != 1 || st.subs[0].Subreddit != "golang" {
		t.Errorf("remaining subs = %+v, want only golang", st.subs)
	}
	if _, ok := st.states[testUserID]; ok {
		t.Error("dialog state still persisted after terminal step")
	}
}
