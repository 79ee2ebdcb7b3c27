package dialog

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/store"
	"github.com/user/reddit-digest-bot/internal/telegram"
)

// UnsubscribeCommand is the command token that starts an unsubscribe dialog.
const UnsubscribeCommand = "/unsubscribe"

// Steps of the unsubscribe dialog.
const (
	UnsubscribeStart     Step = "Start"
	UnsubscribeSubreddit Step = "Subreddit"
)

// UnsubscribeSteps is the declared step set of the unsubscribe dialog.
var UnsubscribeSteps = []Step{UnsubscribeStart, UnsubscribeSubreddit}

// UnsubscribeDialog lets a user pick one of their subscriptions to remove.
type UnsubscribeDialog struct {
	dialog    *Dialog
	store     store.Store
	messenger Messenger
}

// NewUnsubscribe starts a fresh unsubscribe dialog for the user
func NewUnsubscribe(userID string, st store.Store, m Messenger) *UnsubscribeDialog {
	return &UnsubscribeDialog{
		dialog:    New(UnsubscribeCommand, userID, UnsubscribeStart),
		store:     st,
		messenger: m,
	}
}

// ResumeUnsubscribe reconstructs an unsubscribe dialog from persisted state
func ResumeUnsubscribe(state *model.DialogState, st store.Store, m Messenger) (*UnsubscribeDialog, error) {
	dlg, err := Resume(state, UnsubscribeSteps)
	if err != nil {
		return nil, err
	}
	return &UnsubscribeDialog{dialog: dlg, store: st, messenger: m}, nil
}

// Advance consumes the payload for the current step and moves the dialog forward
func (d *UnsubscribeDialog) Advance(ctx context.Context, payload string) error {
	d.dialog.record(payload)

	switch d.dialog.Current {
	case UnsubscribeStart:
		return d.handleStart(ctx)
	case UnsubscribeSubreddit:
		return d.handleSubreddit(ctx, payload)
	default:
		return fmt.Errorf("step %q: %w", d.dialog.Current, ErrMalformedState)
	}
}

func (d *UnsubscribeDialog) handleStart(ctx context.Context) error {
	subs, err := d.store.GetUserSubscriptions(ctx, d.dialog.UserID)
	if err != nil {
		return err
	}

	// Nothing to unsubscribe from: reply and terminate without ever
	// persisting dialog state.
	if len(subs) == 0 {
		return d.messenger.SendMessage(d.dialog.UserID, "You have no subscriptions")
	}

	d.dialog.Current = UnsubscribeSubreddit
	if err := checkpoint(ctx, d.store, d.dialog); err != nil {
		return err
	}

	buttons := make([]tgbotapi.InlineKeyboardButton, len(subs))
	for i, sub := range subs {
		buttons[i] = tgbotapi.NewInlineKeyboardButtonData(sub.Subreddit, sub.Subreddit)
	}
	keyboard := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: telegram.ChunkButtons(buttons, 2)}

	return d.messenger.SendMessageWithKeyboard(d.dialog.UserID, "Select subreddit", keyboard)
}

func (d *UnsubscribeDialog) handleSubreddit(ctx context.Context, payload string) error {
	if err := d.store.DeleteSubscription(ctx, d.dialog.UserID, payload); err != nil {
		return err
	}

	if err := d.messenger.SendMessage(d.dialog.UserID,
		fmt.Sprintf("Unsubscribed from: %s", payload)); err != nil {
		return err
	}

	return d.store.DeleteDialogState(ctx, d.dialog.UserID)
}
