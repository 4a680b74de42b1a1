// Package push sends browser web push notifications.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"content_platform/internal/domain"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Payload is the JSON document delivered to the service worker
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Notifier delivers a payload to a set of push subscriptions
type Notifier interface {
	Notify(ctx context.Context, subs []domain.PushSubscription, p Payload) error
}

// VAPIDConfig holds the application server keys
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// WebPushNotifier sends notifications with VAPID authentication and
// removes subscriptions the push service reports as gone.
type WebPushNotifier struct {
	db   *gorm.DB
	cfg  VAPIDConfig
	send func(msg []byte, s *webpush.Subscription, o *webpush.Options) (*http.Response, error)
}

// NewWebPushNotifier creates a notifier
func NewWebPushNotifier(db *gorm.DB, cfg VAPIDConfig) *WebPushNotifier {
	return &WebPushNotifier{db: db, cfg: cfg, send: webpush.SendNotification}
}

// Notify sends p to every subscription and returns the joined delivery errors
func (n *WebPushNotifier) Notify(ctx context.Context, subs []domain.PushSubscription, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := n.send(body, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, &webpush.Options{
			Subscriber:      n.cfg.Subject,
			VAPIDPublicKey:  n.cfg.PublicKey,
			VAPIDPrivateKey: n.cfg.PrivateKey,
			TTL:             3600,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("push to subscription %d: %w", sub.ID, err))
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			// Subscription expired on the browser side
			if err := n.db.WithContext(ctx).Delete(&domain.PushSubscription{}, sub.ID).Error; err != nil {
				logrus.WithError(err).WithField("subscription_id", sub.ID).Warn("failed to delete stale push subscription")
			}
		case resp.StatusCode >= 400:
			errs = append(errs, fmt.Errorf("push to subscription %d: status %d", sub.ID, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps payloads in memory, for tests
type Recorder struct {
	mu       sync.Mutex
	Payloads []Payload
	Err      error
}

// Notify records the payload
func (r *Recorder) Notify(_ context.Context, _ []domain.PushSubscription, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payloads = append(r.Payloads, p)
	return r.Err
}

// Noop drops every notification
type Noop struct{}

// Notify does nothing
func (Noop) Notify(context.Context, []domain.PushSubscription, Payload) error { return nil }
