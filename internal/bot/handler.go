package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/dialog"
	"github.com/user/reddit-digest-bot/internal/digest"
	"github.com/user/reddit-digest-bot/internal/store"
)

const helpText = `You can send me these commands:
/start
/stop
/subscribe
/unsubscribe
/subscriptions
/sendnow
/feedback
/help`

const glitchText = `Looks like I'm having a technical glitch. Something went wrong.
If the issue persists, you can send feedback via the /feedback command.`

// Handler routes inbound Telegram updates: known command tokens start the
// matching flow, anything else resumes the user's persisted dialog if one
// exists.
type Handler struct {
	store        store.Store
	telegram     dialog.Messenger
	reddit       dialog.SubredditChecker
	digest       *digest.Service
	authorChatID string
}

// NewHandler creates a new update handler
func NewHandler(st store.Store, telegram dialog.Messenger, reddit dialog.SubredditChecker, dg *digest.Service, authorChatID string) *Handler {
	return &Handler{
		store:        st,
		telegram:     telegram,
		reddit:       reddit,
		digest:       dg,
		authorChatID: authorChatID,
	}
}

// HandleUpdate processes an incoming Telegram update. Text messages and
// callback-button presses are treated identically: both reduce to a payload
// for the user's current step.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID, payload, ok := extractPayload(update)
	if !ok {
		return
	}

	log.Info().Str("userID", userID).Str("payload", payload).Msg("Received update")

	if err := h.handlePayload(ctx, userID, payload); err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Failed to handle update")
		if err := h.telegram.SendMessage(userID, glitchText); err != nil {
			log.Error().Err(err).Str("userID", userID).Msg("Failed to send glitch reply")
		}
	}
}

// extractPayload reduces an update to (userID, payload). Returns ok=false for
// update kinds the bot does not react to.
func extractPayload(update tgbotapi.Update) (userID, payload string, ok bool) {
	switch {
	case update.Message != nil && update.Message.Text != "":
		return strconv.FormatInt(update.Message.Chat.ID, 10), update.Message.Text, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Data != "":
		return strconv.FormatInt(update.CallbackQuery.Message.Chat.ID, 10), update.CallbackQuery.Data, true
	default:
		return "", "", false
	}
}

// commandToken returns the leading command of a payload, or "" when the
// payload is not a command.
func commandToken(payload string) string {
	fields := strings.Fields(payload)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	return fields[0]
}

func (h *Handler) handlePayload(ctx context.Context, userID, payload string) error {
	switch commandToken(payload) {
	case "/start":
		return h.handleStart(ctx, userID)
	case "/stop":
		return h.handleStop(ctx, userID)
	case "/subscriptions":
		return h.handleSubscriptions(ctx, userID)
	case "/sendnow":
		return h.digest.DeliverAll(ctx, userID)
	case "/help":
		return h.telegram.SendMessage(userID, helpText)
	case dialog.SubscribeCommand:
		return dialog.NewSubscribe(userID, h.store, h.telegram, h.reddit, h.digest).Advance(ctx, payload)
	case dialog.UnsubscribeCommand:
		return dialog.NewUnsubscribe(userID, h.store, h.telegram).Advance(ctx, payload)
	case dialog.FeedbackCommand:
		return dialog.NewFeedback(userID, h.store, h.telegram, h.authorChatID).Advance(ctx, payload)
	default:
		return h.resumeDialog(ctx, userID, payload)
	}
}

func (h *Handler) handleStart(ctx context.Context, userID string) error {
	if err := h.store.CreateUser(ctx, userID); err != nil && !errors.Is(err, store.ErrUserExists) {
		return err
	}
	return h.telegram.SendMessage(userID, helpText)
}

func (h *Handler) handleStop(ctx context.Context, userID string) error {
	if err := h.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return h.telegram.SendMessage(userID, "User and subscriptions deleted")
}

func (h *Handler) handleSubscriptions(ctx context.Context, userID string) error {
	subs, err := h.store.GetUserSubscriptions(ctx, userID)
	if err != nil {
		return err
	}

	if len(subs) == 0 {
		return h.telegram.SendMessage(userID, "You have no subscriptions")
	}

	var b strings.Builder
	b.WriteString("You are currently subscribed to:\n")
	for _, sub := range subs {
		fmt.Fprintf(&b, "%s\n", sub.Subreddit)
	}
	return h.telegram.SendMessage(userID, b.String())
}

// resumeDialog routes a non-command payload into the user's persisted dialog.
func (h *Handler) resumeDialog(ctx context.Context, userID, payload string) error {
	state, err := h.store.GetDialogState(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrDialogNotFound) {
			return h.telegram.SendMessage(userID,
				"I didn't get that. Use /help to see list of available commands.")
		}
		return err
	}

	switch state.Command {
	case dialog.SubscribeCommand:
		d, err := dialog.ResumeSubscribe(state, h.store, h.telegram, h.reddit, h.digest)
		if err != nil {
			return err
		}
		return d.Advance(ctx, payload)
	case dialog.UnsubscribeCommand:
		d, err := dialog.ResumeUnsubscribe(state, h.store, h.telegram)
		if err != nil {
			return err
		}
		return d.Advance(ctx, payload)
	case dialog.FeedbackCommand:
		d, err := dialog.ResumeFeedback(state, h.store, h.telegram, h.authorChatID)
		if err != nil {
			return err
		}
		return d.Advance(ctx, payload)
	default:
		return fmt.Errorf("unknown dialog command %q: %w", state.Command, dialog.ErrMalformedState)
	}
}
