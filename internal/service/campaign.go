package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/mail"
	"content_platform/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CampaignInput holds writable campaign fields
type CampaignInput struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// CampaignResult summarises a send
type CampaignResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// CampaignService writes and sends newsletter issues
type CampaignService struct {
	db      *gorm.DB
	mailer  mail.Sender
	baseURL string
	now     func() time.Time
}

// NewCampaignService creates a CampaignService
func NewCampaignService(db *gorm.DB, mailer mail.Sender, baseURL string) *CampaignService {
	return &CampaignService{db: db, mailer: mailer, baseURL: baseURL, now: time.Now}
}

func (in *CampaignInput) validate() error {
	in.Subject = strings.TrimSpace(in.Subject)
	fields := map[string]string{}
	if in.Subject == "" {
		fields["subject"] = "is required"
	}
	if strings.TrimSpace(in.BodyHTML) == "" && strings.TrimSpace(in.BodyText) == "" {
		fields["body"] = "html or text body is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create adds a draft campaign
func (s *CampaignService) Create(ctx context.Context, in CampaignInput) (*domain.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &domain.Campaign{Subject: in.Subject, BodyHTML: in.BodyHTML, BodyText: in.BodyText, Status: domain.CampaignDraft}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a campaign
func (s *CampaignService) Get(ctx context.Context, id uint) (*domain.Campaign, error) {
	var c domain.Campaign
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "campaign")
	}
	return &c, nil
}

// List returns campaigns, newest first
func (s *CampaignService) List(ctx context.Context, page utils.Page) ([]domain.Campaign, int64, error) {
	return listPage[domain.Campaign](ctx, s.db, noScope, "created_at desc", page)
}

// Update edits a draft campaign
func (s *CampaignService) Update(ctx context.Context, id uint, in CampaignInput) (*domain.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, fmt.Errorf("campaign is %s: %w", c.Status, ErrConflict)
	}
	err = s.db.WithContext(ctx).Model(c).Updates(map[string]any{
		"subject": in.Subject, "body_html": in.BodyHTML, "body_text": in.BodyText,
	}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Schedule queues a draft for sending at a future time
func (s *CampaignService) Schedule(ctx context.Context, id uint, at time.Time) (*domain.Campaign, error) {
	if !at.After(s.now()) {
		return nil, invalid("scheduled_at", "must be in the future")
	}
	res := s.db.WithContext(ctx).Model(&domain.Campaign{}).
		Where("id = ? AND status IN ?", id, []string{domain.CampaignDraft, domain.CampaignScheduled}).
		Updates(map[string]any{"status": domain.CampaignScheduled, "scheduled_at": at})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("only drafts can be scheduled: %w", ErrConflict)
	}
	return s.Get(ctx, id)
}

// claim moves a campaign into sending; false means another sender owns it
func (s *CampaignService) claim(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.Campaign{}).
		Where("id = ? AND status IN ?", id, []string{domain.CampaignDraft, domain.CampaignScheduled}).
		Update("status", domain.CampaignSending)
	return res.RowsAffected == 1, res.Error
}

// Send mails the campaign to every confirmed subscriber
func (s *CampaignService) Send(ctx context.Context, id uint) (*CampaignResult, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("campaign is %s: %w", c.Status, ErrConflict)
	}

	var subs []domain.Subscription
	if err := s.db.WithContext(ctx).Where("status = ?", domain.SubscriptionConfirmed).Order("id asc").Find(&subs).Error; err != nil {
		s.db.WithContext(ctx).Model(c).Update("status", domain.CampaignFailed)
		return nil, err
	}

	result := &CampaignResult{}
	for _, sub := range subs {
		if err := s.sendOne(ctx, c, sub); err != nil {
			result.Failed++
			logrus.WithError(err).WithFields(logrus.Fields{"campaign_id": c.ID, "subscription_id": sub.ID}).Warn("Campaign delivery failed")
			continue
		}
		result.Sent++
	}

	status := domain.CampaignSent
	if result.Sent == 0 && result.Failed > 0 {
		status = domain.CampaignFailed
	}
	err = s.db.WithContext(ctx).Model(c).Updates(map[string]any{
		"status": status, "sent_at": s.now(), "sent_count": result.Sent, "failed_count": result.Failed,
	}).Error
	logrus.WithFields(logrus.Fields{
		"campaign_id": c.ID, "sent": result.Sent, "failed": result.Failed, "status": status,
	}).Info("Campaign sent")
	return result, err
}

func (s *CampaignService) sendOne(ctx context.Context, c *domain.Campaign, sub domain.Subscription) error {
	unsubscribeURL := s.baseURL + "/api/newsletter/unsubscribe/" + sub.Token
	msg := mail.Message{
		To:      []string{sub.Email},
		Subject: c.Subject,
		Headers: map[string]string{"List-Unsubscribe": "<" + unsubscribeURL + ">"},
	}
	if c.BodyText != "" {
		msg.Text = c.BodyText + "\n\nUnsubscribe: " + unsubscribeURL
	}
	if c.BodyHTML != "" {
		html, err := mail.RenderTrusted("campaign", c.BodyHTML, map[string]any{"UnsubscribeURL": unsubscribeURL})
		if err != nil {
			return err
		}
		msg.HTML = html
	}
	return s.mailer.Send(ctx, msg)
}

// SendDue sends scheduled campaigns whose time has come
func (s *CampaignService) SendDue(ctx context.Context) (int, error) {
	var due []domain.Campaign
	if err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", domain.CampaignScheduled, s.now()).
		Order("scheduled_at asc").Find(&due).Error; err != nil {
		return 0, err
	}
	sent := 0
	for _, c := range due {
		if _, err := s.Send(ctx, c.ID); err != nil {
			logrus.WithError(err).WithField("campaign_id", c.ID).Error("Scheduled campaign failed")
			continue
		}
		sent++
	}
	return sent, nil
}

// Delete removes a campaign that is not being sent
func (s *CampaignService) Delete(ctx context.Context, id uint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CampaignSending {
		return fmt.Errorf("campaign is sending: %w", ErrConflict)
	}
	return s.db.WithContext(ctx).Delete(c).Error
}
