package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/config"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
)

// ErrSubscriptionGone marks an endpoint that reported itself permanently
// invalid. The dispatcher deletes the subscription row on this error.
var ErrSubscriptionGone = errors.New("push subscription gone")

// PushSender sends one web-push wake-up to a device endpoint.
type PushSender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
}

// WebPushSender sends VAPID-signed web-push messages.
type WebPushSender struct {
	options webpush.Options
}

// NewWebPushSender creates a web-push sender from the VAPID configuration
func NewWebPushSender(cfg config.PushConfig) *WebPushSender {
	return &WebPushSender{
		options: webpush.Options{
			Subscriber:      cfg.Subject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             60,
		},
	}
}

// Send pushes the payload to a single subscription endpoint
func (s *WebPushSender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	opts := s.options

	resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, &opts)

	if err != nil {
		return fmt.Errorf("web push failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return ErrSubscriptionGone
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
