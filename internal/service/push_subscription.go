package service

import (
	"context"
	"fmt"
	"net/url"

	"content_platform/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushSubscriptionService stores browser push endpoints
type PushSubscriptionService struct {
	db *gorm.DB
}

// NewPushSubscriptionService creates a PushSubscriptionService
func NewPushSubscriptionService(db *gorm.DB) *PushSubscriptionService {
	return &PushSubscriptionService{db: db}
}

// Subscribe registers an endpoint for a user; re-registering moves it to that user
func (s *PushSubscriptionService) Subscribe(ctx context.Context, userID uint, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, invalid("endpoint", "must be an https URL")
	}
	if p256dh == "" || auth == "" {
		return nil, invalid("keys", "p256dh and auth are required")
	}
	sub := &domain.PushSubscription{UserID: userID, Endpoint: endpoint, P256dh: p256dh, Auth: auth}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes an endpoint owned by the user
func (s *PushSubscriptionService) Unsubscribe(ctx context.Context, userID uint, endpoint string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND endpoint = ?", userID, endpoint).Delete(&domain.PushSubscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("push subscription: %w", ErrNotFound)
	}
	return nil
}
