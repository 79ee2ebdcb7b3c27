package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/reddit-digest-bot/internal/model"
)

// Version is the serialization format of persisted dialog state. A stored row
// carrying a different version is rejected with ErrMalformedState on resume.
const Version = 1

// ErrMalformedState indicates a persisted dialog row that cannot be mapped
// back onto the command's step machine: unknown step, version mismatch, or
// undecodable data. Such rows are never silently repaired.
var ErrMalformedState = errors.New("malformed dialog state")

// Step names one state of a dialog's finite step machine.
type Step string

// Messenger is the outbound chat capability a dialog needs: plain text, or
// text with a button grid.
type Messenger interface {
	SendMessage(chatID string, text string) error
	SendMessageWithKeyboard(chatID string, text string, keyboard tgbotapi.InlineKeyboardMarkup) error
}

// Dialog is the generic state of one in-progress conversation: which command
// started it, where it is, and every payload received so far keyed by the
// step that received it.
type Dialog struct {
	Command string
	UserID  string
	Current Step
	Data    map[Step]string
}

// New constructs a fresh dialog at its start step with no accumulated data
func New(command, userID string, start Step) *Dialog {
	return &Dialog{
		Command: command,
		UserID:  userID,
		Current: start,
		Data:    make(map[Step]string),
	}
}

// Resume reconstructs a dialog from a persisted row, validating that the
// stored step belongs to the declared step set.
func Resume(state *model.DialogState, steps []Step) (*Dialog, error) {
	if state.Version != Version {
		return nil, fmt.Errorf("version %d (want %d): %w", state.Version, Version, ErrMalformedState)
	}

	valid := false
	for _, s := range steps {
		if Step(state.Step) == s {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("unknown step %q for %s: %w", state.Step, state.Command, ErrMalformedState)
	}

	data := make(map[Step]string)
	if state.Data != "" {
		if err := json.Unmarshal([]byte(state.Data), &data); err != nil {
			return nil, fmt.Errorf("undecodable data for %s: %w", state.Command, ErrMalformedState)
		}
	}

	return &Dialog{
		Command: state.Command,
		UserID:  state.UserID,
		Current: Step(state.Step),
		Data:    data,
	}, nil
}

// Entity serializes the dialog into its persisted representation
func (d *Dialog) Entity() (*model.DialogState, error) {
	data, err := json.Marshal(d.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dialog data: %w", err)
	}
	return &model.DialogState{
		UserID:  d.UserID,
		Command: d.Command,
		Step:    string(d.Current),
		Version: Version,
		Data:    string(data),
	}, nil
}

// record stores the payload just received under the current step's name.
// Called at the top of every Advance before the step handler runs.
func (d *Dialog) record(payload string) {
	d.Data[d.Current] = payload
}

// stateStore is the narrow persistence surface the dialogs themselves use.
type stateStore interface {
	UpsertDialogState(ctx context.Context, state *model.DialogState) error
	DeleteDialogState(ctx context.Context, userID string) error
}

// checkpoint persists the dialog's current state with replace semantics.
func checkpoint(ctx context.Context, st stateStore, d *Dialog) error {
	entity, err := d.Entity()
	if err != nil {
		return err
	}
	return st.UpsertDialogState(ctx, entity)
}
