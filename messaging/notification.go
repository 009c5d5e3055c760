package messaging

import (
	"context"
	"errors"
	"fmt"
)

// Action ids offered on every notification.
const (
	ActionExplore = "explore"
	ActionClose   = "close"
)

// Action is a labelled button on a notification.
type Action struct {
	ID    string `json:"action"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// Data is attached to a notification for later interaction.
type Data struct {
	DateOfArrival int64 `json:"dateOfArrival"`
	PrimaryKey    int   `json:"primaryKey"`
}

// Notification is a displayed push message.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon,omitempty"`
	Badge   string   `json:"badge,omitempty"`
	Vibrate []int    `json:"vibrate,omitempty"`
	Data    Data     `json:"data"`
	Actions []Action `json:"actions,omitempty"`
}

// Outcome is the branch taken by Interact.
type Outcome string

const (
	OutcomeExplore Outcome = "explore"
	OutcomeClose   Outcome = "close"
	OutcomeRoot    Outcome = "root"
)

// Push builds the notification for payload and shows it. A nil payload
// means the push carried no data and the default body is used.
func (m *Messenger) Push(ctx context.Context, payload []byte) (Notification, error) {
	body := DefaultBody
	if payload != nil {
		body = string(payload)
	}

	n := Notification{
		Title:   m.appName,
		Body:    body,
		Icon:    m.icon,
		Badge:   m.badge,
		Vibrate: []int{100, 50, 100},
		Data:    Data{DateOfArrival: m.now().UnixMilli(), PrimaryKey: 1},
		Actions: []Action{
			{ID: ActionExplore, Title: "View Details", Icon: m.icon},
			{ID: ActionClose, Title: "Close", Icon: m.icon},
		},
	}
	if err := m.notifier.Show(ctx, n); err != nil {
		return n, fmt.Errorf("messaging: show notification: %w", err)
	}
	return n, nil
}

// Interact closes n and takes exactly one branch for actionID: explore
// opens the detail view, close does nothing more, and anything else
// (including the default tap with an empty id) opens the application root.
func (m *Messenger) Interact(ctx context.Context, n Notification, actionID string) (Outcome, error) {
	var errs []error
	if err := m.notifier.Close(ctx, n); err != nil {
		errs = append(errs, fmt.Errorf("messaging: close notification: %w", err))
	}

	var (
		outcome Outcome
		target  string
	)
	switch actionID {
	case ActionExplore:
		outcome, target = OutcomeExplore, m.exploreURL
	case ActionClose:
		outcome = OutcomeClose
	default:
		outcome, target = OutcomeRoot, DefaultRootURL
	}

	if target != "" {
		if err := m.windows.OpenWindow(ctx, target); err != nil {
			errs = append(errs, fmt.Errorf("messaging: open %s: %w", target, err))
		}
	}
	return outcome, errors.Join(errs...)
}
