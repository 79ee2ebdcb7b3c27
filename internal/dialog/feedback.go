package dialog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/store"
)

// FeedbackCommand is the command token that starts a feedback dialog.
const FeedbackCommand = "/feedback"

// Steps of the feedback dialog.
const (
	FeedbackStart Step = "Start"
	FeedbackInput Step = "Input"
)

// FeedbackSteps is the declared step set of the feedback dialog.
var FeedbackSteps = []Step{FeedbackStart, FeedbackInput}

// FeedbackDialog collects free-text feedback and relays it to the bot author.
type FeedbackDialog struct {
	dialog       *Dialog
	store        store.Store
	messenger    Messenger
	authorChatID string
}

// NewFeedback starts a fresh feedback dialog for the user
func NewFeedback(userID string, st store.Store, m Messenger, authorChatID string) *FeedbackDialog {
	return &FeedbackDialog{
		dialog:       New(FeedbackCommand, userID, FeedbackStart),
		store:        st,
		messenger:    m,
		authorChatID: authorChatID,
	}
}

// ResumeFeedback reconstructs a feedback dialog from persisted state
func ResumeFeedback(state *model.DialogState, st store.Store, m Messenger, authorChatID string) (*FeedbackDialog, error) {
	dlg, err := Resume(state, FeedbackSteps)
	if err != nil {
		return nil, err
	}
	return &FeedbackDialog{dialog: dlg, store: st, messenger: m, authorChatID: authorChatID}, nil
}

// Advance consumes the payload for the current step and moves the dialog forward
func (d *FeedbackDialog) Advance(ctx context.Context, payload string) error {
	d.dialog.record(payload)

	switch d.dialog.Current {
	case FeedbackStart:
		return d.handleStart(ctx)
	case FeedbackInput:
		return d.handleInput(ctx, payload)
	default:
		return fmt.Errorf("step %q: %w", d.dialog.Current, ErrMalformedState)
	}
}

func (d *FeedbackDialog) handleStart(ctx context.Context) error {
	d.dialog.Current = FeedbackInput
	if err := checkpoint(ctx, d.store, d.dialog); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return d.messenger.SendMessage(d.dialog.UserID, notRegisteredText)
		}
		return err
	}

	return d.messenger.SendMessage(d.dialog.UserID,
		"You can write your feedback. If you want the author to get back to you, leave your email.")
}

func (d *FeedbackDialog) handleInput(ctx context.Context, payload string) error {
	log.Info().Str("userID", d.dialog.UserID).Msg("Received feedback")

	if err := d.messenger.SendMessage(d.authorChatID,
		fmt.Sprintf("Received feedback from user(%s):\n%s", d.dialog.UserID, payload)); err != nil {
		return err
	}

	if err := d.messenger.SendMessage(d.dialog.UserID,
		"Sent your feedback to the author. Thanks for the input!"); err != nil {
		return err
	}

	return d.store.DeleteDialogState(ctx, d.dialog.UserID)
}
