package models

import (
	"time"
)

// NotificationType mirrors the load-lifecycle event types plus the
// driver-availability and payment events.
type NotificationType string

const (
	NotificationLoadSubmitted      NotificationType = "load_submitted"
	NotificationLoadApproved       NotificationType = "load_approved"
	NotificationLoadInTransit      NotificationType = "load_in_transit"
	NotificationLoadDelivered      NotificationType = "load_delivered"
	NotificationETAUpdated         NotificationType = "eta_updated"
	NotificationDriverAvailability NotificationType = "driver_availability"
	NotificationPaymentReceived    NotificationType = "payment_received"
)

// Notification is an in-app notification row. Created only by the dispatch
// service; end users may only flip the read flag.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	LoadID      *string          `db:"load_id" json:"load_id,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NewNotification creates an unread in-app notification.
func NewNotification(recipientID string, nType NotificationType, title, message string, loadID *string) *Notification {
	return &Notification{
		ID:          GenerateID("ntf"),
		RecipientID: recipientID,
		Type:        nType,
		Title:       title,
		Message:     message,
		LoadID:      loadID,
		Read:        false,
		CreatedAt:   GetCurrentTime(),
	}
}

// PushSubscription is one browser push endpoint for a user's device.
// Endpoint is unique per user; rows are deleted on opt-out or when the
// endpoint reports itself permanently gone during dispatch.
type PushSubscription struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh" json:"p256dh"`
	Auth      string    `db:"auth" json:"auth"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewPushSubscription creates a push subscription record.
func NewPushSubscription(userID, endpoint, p256dh, auth string) *PushSubscription {
	return &PushSubscription{
		ID:        GenerateID("sub"),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: GetCurrentTime(),
	}
}
