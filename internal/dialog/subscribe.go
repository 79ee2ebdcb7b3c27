package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/model"
	"github.com/user/reddit-digest-bot/internal/store"
	"github.com/user/reddit-digest-bot/internal/telegram"
)

// SubscribeCommand is the command token that starts a subscribe dialog.
const SubscribeCommand = "/subscribe"

// Steps of the subscribe dialog.
const (
	SubscribeStart     Step = "Start"
	SubscribeSubreddit Step = "Subreddit"
	SubscribeWeekday   Step = "Weekday"
	SubscribeTime      Step = "Time"
)

// SubscribeSteps is the declared step set of the subscribe dialog.
var SubscribeSteps = []Step{SubscribeStart, SubscribeSubreddit, SubscribeWeekday, SubscribeTime}

// Defaults applied when a weekday or hour selection cannot be parsed.
const (
	defaultSendOn = 0  // Sunday
	defaultSendAt = 12 // noon UTC
)

const notRegisteredText = "Looks like we haven't met yet. Please call /start first."

// SubredditChecker answers whether a subreddit exists.
type SubredditChecker interface {
	SubredditExists(ctx context.Context, subreddit string) (bool, error)
}

// Deliverer runs the delivery pipeline for one subscription. The subscribe
// dialog uses it for the immediate preview after a successful subscription.
type Deliverer interface {
	Deliver(ctx context.Context, sub *model.Subscription) error
}

// SubscribeDialog walks a user through subreddit(s) -> weekday -> hour and
// creates the subscriptions at its terminal step.
type SubscribeDialog struct {
	dialog    *Dialog
	store     store.Store
	messenger Messenger
	reddit    SubredditChecker
	deliverer Deliverer
}

// NewSubscribe starts a fresh subscribe dialog for the user
func NewSubscribe(userID string, st store.Store, m Messenger, reddit SubredditChecker, d Deliverer) *SubscribeDialog {
	return &SubscribeDialog{
		dialog:    New(SubscribeCommand, userID, SubscribeStart),
		store:     st,
		messenger: m,
		reddit:    reddit,
		deliverer: d,
	}
}

// ResumeSubscribe reconstructs a subscribe dialog from persisted state
func ResumeSubscribe(state *model.DialogState, st store.Store, m Messenger, reddit SubredditChecker, d Deliverer) (*SubscribeDialog, error) {
	dlg, err := Resume(state, SubscribeSteps)
	if err != nil {
		return nil, err
	}
	return &SubscribeDialog{
		dialog:    dlg,
		store:     st,
		messenger: m,
		reddit:    reddit,
		deliverer: d,
	}, nil
}

// Advance consumes the payload for the current step and moves the dialog
// forward, re-prompting on invalid input without advancing the persisted step.
func (d *SubscribeDialog) Advance(ctx context.Context, payload string) error {
	d.dialog.record(payload)

	switch d.dialog.Current {
	case SubscribeStart:
		return d.handleStart(ctx)
	case SubscribeSubreddit:
		return d.handleSubreddit(ctx, payload)
	case SubscribeWeekday:
		return d.handleWeekday(ctx)
	case SubscribeTime:
		return d.handleTime(ctx, payload)
	default:
		return fmt.Errorf("step %q: %w", d.dialog.Current, ErrMalformedState)
	}
}

func (d *SubscribeDialog) handleStart(ctx context.Context) error {
	d.dialog.Current = SubscribeSubreddit
	if err := checkpoint(ctx, d.store, d.dialog); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return d.messenger.SendMessage(d.dialog.UserID, notRegisteredText)
		}
		return err
	}

	return d.messenger.SendMessage(d.dialog.UserID,
		"Type the name of the subreddit you want to subscribe to. You can send several names separated by spaces or new lines.")
}

func (d *SubscribeDialog) handleSubreddit(ctx context.Context, payload string) error {
	names := NormalizeSubredditNames(payload)
	if len(names) == 0 {
		return d.messenger.SendMessage(d.dialog.UserID,
			"I couldn't find a subreddit name in that. Type the name of the subreddit you want to subscribe to.")
	}

	// Validate every name before committing to any of them. The first invalid
	// name aborts the whole step so the user can fix the list as one unit.
	for _, name := range names {
		exists, err := d.reddit.SubredditExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to validate subreddit %s: %w", name, err)
		}
		if !exists {
			return d.messenger.SendMessage(d.dialog.UserID,
				fmt.Sprintf("%s is not a valid subreddit. Try again.", name))
		}
	}

	d.dialog.Current = SubscribeWeekday
	if err := checkpoint(ctx, d.store, d.dialog); err != nil {
		return err
	}

	buttons := make([]tgbotapi.InlineKeyboardButton, 7)
	for i := 0; i < 7; i++ {
		day := time.Weekday(i).String()
		buttons[i] = tgbotapi.NewInlineKeyboardButtonData(day, strconv.Itoa(i))
	}
	keyboard := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: telegram.ChunkButtons(buttons, 2)}

	return d.messenger.SendMessageWithKeyboard(d.dialog.UserID,
		"On which day do you want to receive the posts?", keyboard)
}

func (d *SubscribeDialog) handleWeekday(ctx context.Context) error {
	d.dialog.Current = SubscribeTime
	if err := checkpoint(ctx, d.store, d.dialog); err != nil {
		return err
	}

	buttons := make([]tgbotapi.InlineKeyboardButton, 24)
	for i := 0; i < 24; i++ {
		buttons[i] = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d:00", i), strconv.Itoa(i))
	}
	keyboard := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: telegram.ChunkButtons(buttons, 4)}

	return d.messenger.SendMessageWithKeyboard(d.dialog.UserID,
		"At around what time (UTC)?", keyboard)
}

func (d *SubscribeDialog) handleTime(ctx context.Context, payload string) error {
	names := NormalizeSubredditNames(d.dialog.Data[SubscribeSubreddit])
	sendOn := parseSelection(d.dialog.Data[SubscribeWeekday], 6, defaultSendOn)
	sendAt := parseSelection(payload, 23, defaultSendAt)

	for _, name := range names {
		sub, err := d.store.CreateSubscription(ctx, d.dialog.UserID, name, sendOn, sendAt)
		if err != nil {
			if errors.Is(err, store.ErrAlreadySubscribed) {
				if err := d.messenger.SendMessage(d.dialog.UserID,
					fmt.Sprintf("Already subscribed to %s", name)); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if err := d.messenger.SendMessage(d.dialog.UserID, fmt.Sprintf(
			"Subscribed to: %s. Posts will be sent periodically on %s at around %d:00 UTC time.",
			name, time.Weekday(sendOn), sendAt)); err != nil {
			return err
		}

		// Immediate preview so the user sees what they signed up for. A
		// failed preview is retried by the scheduler, not here.
		if err := d.deliverer.Deliver(ctx, sub); err != nil {
			log.Error().Err(err).Str("subreddit", name).Str("userID", d.dialog.UserID).
				Msg("Failed to deliver preview digest")
		}
	}

	return d.store.DeleteDialogState(ctx, d.dialog.UserID)
}

// parseSelection parses a numeric button payload, falling back to def when
// the payload does not parse or falls outside [0, max].
func parseSelection(payload string, max, def int) int {
	n, err := strconv.Atoi(payload)
	if err != nil || n < 0 || n > max {
		return def
	}
	return n
}
