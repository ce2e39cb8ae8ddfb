package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// Event is one notification event handed to the dispatch service.
type Event struct {
	Type models.NotificationType
	// LoadID links the in-app rows and push payload back to a load.
	LoadID *string
	// PrimaryRecipient is the user id of the main recipient; empty when the
	// event only targets the dispatcher audience.
	PrimaryRecipient string
	// PrimaryEmail is the primary recipient's known email address. Email is
	// skipped when empty.
	PrimaryEmail string
	// NotifyDispatchers adds every dispatcher as a secondary recipient.
	NotifyDispatchers bool
	// Data feeds the per-event wording (driver name, route, eta, ...).
	Data map[string]string
}

// Result reports the aggregate push outcome of one dispatch call.
type Result struct {
	PushSent   int `json:"push_sent"`
	PushFailed int `json:"push_failed"`
}

// Store interfaces, satisfied by the repository layer.

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

type subscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]*models.PushSubscription, error)
	Delete(ctx context.Context, userID, endpoint string) error
}

type dispatcherDirectory interface {
	ListDispatcherIDs(ctx context.Context) ([]string, error)
}

// Dispatcher fans one event out to email, in-app rows, and web push. The
// side effects are independent: failure of one never blocks the others, and
// the caller's state transition is never rolled back from here.
type Dispatcher struct {
	notifications notificationStore
	subscriptions subscriptionStore
	directory     dispatcherDirectory
	email         EmailSender
	push          PushSender
	logger        logger.Logger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(
	notifications notificationStore,
	subscriptions subscriptionStore,
	directory dispatcherDirectory,
	email EmailSender,
	push PushSender,
	logger logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		subscriptions: subscriptions,
		directory:     directory,
		email:         email,
		push:          push,
		logger:        logger,
	}
}

type recipient struct {
	userID string
	aud    audience
}

// Dispatch sends the event to its resolved audience. The returned error, if
// any, aggregates the individual failures; the Result counts are valid
// either way.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) (Result, error) {
	var result Result
	var failures []string

	// Email to the primary recipient, when an address is known.
	if e.PrimaryEmail != "" {
		title, message := render(e, audiencePrimary)

		if err := d.email.Send(ctx, e.PrimaryEmail, title, message); err != nil {
			d.logger.Error("Failed to send email", "error", err, "eventType", e.Type)
			failures = append(failures, fmt.Sprintf("email: %v", err))
		}
	}

	recipients := d.resolveRecipients(ctx, e, &failures)

	// One in-app row per recipient.
	for _, rcpt := range recipients {
		title, message := render(e, rcpt.aud)
		n := models.NewNotification(rcpt.userID, e.Type, title, message, e.LoadID)

		if err := d.notifications.Create(ctx, n); err != nil {
			d.logger.Error("Failed to create in-app notification",
				"error", err, "recipientID", rcpt.userID, "eventType", e.Type)
			failures = append(failures, fmt.Sprintf("in-app %s: %v", rcpt.userID, err))
		}
	}

	// Web push to every registered device of every recipient.
	for _, rcpt := range recipients {
		sent, failed := d.pushToUser(ctx, e, rcpt)
		result.PushSent += sent
		result.PushFailed += failed
	}

	if result.PushFailed > 0 {
		failures = append(failures, fmt.Sprintf("push: %d of %d failed",
			result.PushFailed, result.PushSent+result.PushFailed))
	}

	if len(failures) > 0 {
		return result, fmt.Errorf("dispatch partially failed: %s", strings.Join(failures, "; "))
	}

	return result, nil
}

// resolveRecipients computes the audience: the primary recipient plus, when
// requested, every dispatcher. A failed dispatcher lookup degrades the call
// rather than failing it.
func (d *Dispatcher) resolveRecipients(ctx context.Context, e Event, failures *[]string) []recipient {
	var recipients []recipient

	if e.PrimaryRecipient != "" {
		recipients = append(recipients, recipient{userID: e.PrimaryRecipient, aud: audiencePrimary})
	}

	if e.NotifyDispatchers {
		ids, err := d.directory.ListDispatcherIDs(ctx)

		if err != nil {
			d.logger.Error("Failed to resolve dispatcher audience", "error", err, "eventType", e.Type)
			*failures = append(*failures, fmt.Sprintf("dispatcher audience: %v", err))
		}

		for _, id := range ids {
			if id == e.PrimaryRecipient {
				continue
			}
			recipients = append(recipients, recipient{userID: id, aud: audienceDispatcher})
		}
	}

	return recipients
}

// pushPayload is the JSON body delivered to the service worker.
type pushPayload struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Type    string  `json:"type"`
	LoadID  *string `json:"load_id,omitempty"`
}

func (d *Dispatcher) pushToUser(ctx context.Context, e Event, rcpt recipient) (sent, failed int) {
	subs, err := d.subscriptions.ListByUser(ctx, rcpt.userID)

	if err != nil {
		d.logger.Error("Failed to list push subscriptions", "error", err, "userID", rcpt.userID)
		return 0, 0
	}

	if len(subs) == 0 {
		return 0, 0
	}

	title, message := render(e, rcpt.aud)
	payload, err := json.Marshal(pushPayload{
		Title:   title,
		Message: message,
		Type:    string(e.Type),
		LoadID:  e.LoadID,
	})

	if err != nil {
		d.logger.Error("Failed to marshal push payload", "error", err, "eventType", e.Type)
		return 0, len(subs)
	}

	for _, sub := range subs {
		err := d.push.Send(ctx, sub, payload)

		if err == nil {
			sent++
			continue
		}

		if errors.Is(err, ErrSubscriptionGone) {
			// The endpoint is permanently dead; prune it and move on.
			if delErr := d.subscriptions.Delete(ctx, sub.UserID, sub.Endpoint); delErr != nil {
				d.logger.Error("Failed to prune dead push subscription",
					"error", delErr, "userID", sub.UserID)
			}
			d.logger.Info("Pruned dead push subscription", "userID", sub.UserID)
			continue
		}

		failed++
		d.logger.Warn("Push send failed", "error", err, "userID", sub.UserID)
	}

	return sent, failed
}
