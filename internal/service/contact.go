package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"content_platform/internal/domain"
	"content_platform/internal/mail"
	"content_platform/internal/push"
	"content_platform/internal/utils"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ContactInput is a contact form submission
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
	IP      string
}

// ContactService stores contact messages and notifies the admins
type ContactService struct {
	db          *gorm.DB
	mailer      mail.Sender
	notifier    push.Notifier
	adminEmails []string
	baseURL     string
	policy      *bluemonday.Policy
}

// NewContactService creates a ContactService
func NewContactService(db *gorm.DB, mailer mail.Sender, notifier push.Notifier, adminEmails []string, baseURL string) *ContactService {
	return &ContactService{
		db: db, mailer: mailer, notifier: notifier, adminEmails: adminEmails,
		baseURL: baseURL, policy: bluemonday.StrictPolicy(),
	}
}

// Submit saves the message, then notifies admins. Notification failures
// are logged and never undo the saved message.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*domain.ContactForm, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	form := &domain.ContactForm{
		Name:    sanitizeText(s.policy, in.Name),
		Email:   email,
		Subject: sanitizeText(s.policy, in.Subject),
		Message: sanitizeText(s.policy, in.Message),
		IP:      in.IP,
		Status:  domain.ContactNew,
	}
	fields := map[string]string{}
	if form.Name == "" {
		fields["name"] = "is required"
	}
	if n := utf8.RuneCountInString(form.Message); n < 10 || n > 5000 {
		fields["message"] = "must be 10-5000 characters"
	}
	if utf8.RuneCountInString(form.Subject) > 255 {
		fields["subject"] = "must be at most 255 characters"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if err := s.db.WithContext(ctx).Create(form).Error; err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"contact_id": form.ID, "email": form.Email}).Info("Contact form received")
	s.notify(ctx, form)
	return form, nil
}

func (s *ContactService) notify(ctx context.Context, form *domain.ContactForm) {
	log := logrus.WithField("contact_id", form.ID)
	if len(s.adminEmails) > 0 {
		html, err := mail.Render("contact", form)
		if err == nil {
			err = s.mailer.Send(ctx, mail.Message{
				To:      s.adminEmails,
				Subject: "New contact message: " + form.Subject,
				Text:    fmt.Sprintf("%s <%s> wrote:\n\n%s", form.Name, form.Email, form.Message),
				HTML:    html,
				ReplyTo: form.Email,
			})
		}
		if err != nil {
			log.WithError(err).Error("Failed to email admins about contact form")
		}
	}
	var subs []domain.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = push_subscriptions.user_id").
		Where("users.role = ?", domain.RoleAdmin).Find(&subs).Error
	if err != nil {
		log.WithError(err).Error("Failed to load admin push subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}
	err = s.notifier.Notify(ctx, subs, push.Payload{
		Title: "New contact message",
		Body:  form.Name + ": " + form.Subject,
		URL:   s.baseURL + "/admin/contact",
	})
	if err != nil {
		log.WithError(err).Error("Failed to push contact form notification")
	}
}

// List returns contact messages, optionally by status
func (s *ContactService) List(ctx context.Context, status string, page utils.Page) ([]domain.ContactForm, int64, error) {
	if status != "" && !validContactStatus(status) {
		return nil, 0, invalid("status", "unknown contact status")
	}
	return listPage[domain.ContactForm](ctx, s.db, func(tx *gorm.DB) *gorm.DB {
		if status != "" {
			return tx.Where("status = ?", status)
		}
		return tx
	}, "created_at desc", page)
}

func validContactStatus(s string) bool {
	return s == domain.ContactNew || s == domain.ContactRead || s == domain.ContactArchived
}

// MarkStatus changes a message's status
func (s *ContactService) MarkStatus(ctx context.Context, id uint, status string) (*domain.ContactForm, error) {
	if !validContactStatus(status) {
		return nil, invalid("status", "unknown contact status")
	}
	var f domain.ContactForm
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, notFound(err, "contact form")
	}
	if err := s.db.WithContext(ctx).Model(&f).Update("status", status).Error; err != nil {
		return nil, err
	}
	f.Status = status
	return &f, nil
}

// Delete removes a message
func (s *ContactService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.ContactForm{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("contact form: %w", ErrNotFound)
	}
	return nil
}

// CountSince counts messages received after t
func (s *ContactService) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.ContactForm{}).Where("created_at >= ?", t).Count(&n).Error
	return n, err
}
