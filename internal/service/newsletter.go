package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/mail"
	"content_platform/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubscriptionService runs the double opt-in newsletter list
type SubscriptionService struct {
	db      *gorm.DB
	mailer  mail.Sender
	baseURL string
	now     func() time.Time
}

// NewSubscriptionService creates a SubscriptionService
func NewSubscriptionService(db *gorm.DB, mailer mail.Sender, baseURL string) *SubscriptionService {
	return &SubscriptionService{db: db, mailer: mailer, baseURL: baseURL, now: time.Now}
}

func newToken() (string, error) { return utils.RandomHex(24) }

// Subscribe starts (or restarts) the opt-in for email. Confirmed addresses are left alone.
func (s *SubscriptionService) Subscribe(ctx context.Context, email string) (*domain.Subscription, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	var sub domain.Subscription
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error
	switch {
	case err == nil && sub.Status == domain.SubscriptionConfirmed:
		return &sub, nil
	case err == nil:
		err = s.db.WithContext(ctx).Model(&sub).Updates(map[string]any{
			"status": domain.SubscriptionPending, "token": token, "unsubscribed_at": nil,
		}).Error
		sub.Status, sub.Token, sub.UnsubscribedAt = domain.SubscriptionPending, token, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = domain.Subscription{Email: email, Status: domain.SubscriptionPending, Token: token}
		err = s.db.WithContext(ctx).Create(&sub).Error
		if isDuplicate(err) {
			return nil, fmt.Errorf("subscription in progress: %w", ErrConflict)
		}
	}
	if err != nil {
		return nil, err
	}

	confirmURL := s.baseURL + "/api/newsletter/confirm/" + sub.Token
	html, err := mail.Render("confirm", map[string]string{"URL": confirmURL})
	if err == nil {
		err = s.mailer.Send(ctx, mail.Message{
			To:      []string{sub.Email},
			Subject: "Confirm your subscription",
			Text:    "Confirm your newsletter subscription: " + confirmURL,
			HTML:    html,
		})
	}
	if err != nil {
		logrus.WithError(err).WithField("subscription_id", sub.ID).Error("Failed to send confirmation email")
	}
	return &sub, nil
}

// Confirm completes the opt-in
func (s *SubscriptionService) Confirm(ctx context.Context, token string) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&sub).Error; err != nil {
		return nil, notFound(err, "subscription")
	}
	if sub.Status == domain.SubscriptionUnsubscribed {
		return nil, fmt.Errorf("subscription was cancelled: %w", ErrConflict)
	}
	if sub.Status == domain.SubscriptionConfirmed {
		return &sub, nil
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Model(&sub).Updates(map[string]any{
		"status": domain.SubscriptionConfirmed, "confirmed_at": now,
	}).Error; err != nil {
		return nil, err
	}
	sub.Status, sub.ConfirmedAt = domain.SubscriptionConfirmed, &now
	return &sub, nil
}

// Unsubscribe cancels a subscription by token
func (s *SubscriptionService) Unsubscribe(ctx context.Context, token string) error {
	var sub domain.Subscription
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&sub).Error; err != nil {
		return notFound(err, "subscription")
	}
	if sub.Status == domain.SubscriptionUnsubscribed {
		return nil
	}
	return s.db.WithContext(ctx).Model(&sub).Updates(map[string]any{
		"status": domain.SubscriptionUnsubscribed, "unsubscribed_at": s.now(),
	}).Error
}

// List returns subscriptions, optionally by status
func (s *SubscriptionService) List(ctx context.Context, status string, page utils.Page) ([]domain.Subscription, int64, error) {
	return listPage[domain.Subscription](ctx, s.db, func(tx *gorm.DB) *gorm.DB {
		if status != "" {
			return tx.Where("status = ?", status)
		}
		return tx
	}, "created_at desc", page)
}

// PurgeUnconfirmed deletes pending subscriptions older than age
func (s *SubscriptionService) PurgeUnconfirmed(ctx context.Context, age time.Duration) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.SubscriptionPending, s.now().Add(-age)).
		Delete(&domain.Subscription{})
	return res.RowsAffected, res.Error
}

// CountSince counts confirmations after t
func (s *SubscriptionService) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("status = ? AND confirmed_at >= ?", domain.SubscriptionConfirmed, t).Count(&n).Error
	return n, err
}
