package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// TestimonialInput is a public testimonial submission
type TestimonialInput struct {
	AuthorName  string
	AuthorTitle string
	Company     string
	Content     string
	Rating      int
}

// TestimonialService manages testimonials
type TestimonialService struct {
	db     *gorm.DB
	policy *bluemonday.Policy
}

// NewTestimonialService creates a TestimonialService
func NewTestimonialService(db *gorm.DB) *TestimonialService {
	return &TestimonialService{db: db, policy: bluemonday.StrictPolicy()}
}

// Submit stores a testimonial awaiting approval
func (s *TestimonialService) Submit(ctx context.Context, in TestimonialInput) (*domain.Testimonial, error) {
	t := &domain.Testimonial{
		AuthorName:  sanitizeText(s.policy, in.AuthorName),
		AuthorTitle: sanitizeText(s.policy, in.AuthorTitle),
		Company:     sanitizeText(s.policy, in.Company),
		Content:     sanitizeText(s.policy, in.Content),
		Rating:      in.Rating,
	}
	fields := map[string]string{}
	if t.AuthorName == "" {
		fields["author_name"] = "is required"
	}
	if n := utf8.RuneCountInString(t.Content); n < 10 || n > 2000 {
		fields["content"] = "must be 10-2000 characters"
	}
	if in.Rating < 1 || in.Rating > 5 {
		fields["rating"] = "must be between 1 and 5"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListApproved returns published testimonials, best rated first
func (s *TestimonialService) ListApproved(ctx context.Context) ([]domain.Testimonial, error) {
	var out []domain.Testimonial
	err := s.db.WithContext(ctx).Where("approved = ?", true).Order("rating desc, created_at desc").Find(&out).Error
	return out, err
}

// ListAll returns every testimonial for moderation
func (s *TestimonialService) ListAll(ctx context.Context, approved *bool, page utils.Page) ([]domain.Testimonial, int64, error) {
	return listPage[domain.Testimonial](ctx, s.db, func(tx *gorm.DB) *gorm.DB {
		if approved != nil {
			return tx.Where("approved = ?", *approved)
		}
		return tx
	}, "created_at desc", page)
}

// SetApproved publishes or hides a testimonial
func (s *TestimonialService) SetApproved(ctx context.Context, id uint, approved bool) (*domain.Testimonial, error) {
	var t domain.Testimonial
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, "testimonial")
	}
	if err := s.db.WithContext(ctx).Model(&t).Update("approved", approved).Error; err != nil {
		return nil, err
	}
	t.Approved = approved
	return &t, nil
}

// Delete removes a testimonial
func (s *TestimonialService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Testimonial{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("testimonial: %w", ErrNotFound)
	}
	return nil
}
