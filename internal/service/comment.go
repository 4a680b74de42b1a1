package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"content_platform/internal/domain"
	"content_platform/internal/moderation"
	"content_platform/internal/utils"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxCommentLen bounds comment length in characters
const MaxCommentLen = 2000

// ModerationThresholds split classifier scores into statuses
type ModerationThresholds struct {
	Review float64 // At or above: pending review
	Spam   float64 // At or above: spam
}

// CommentService manages post comments
type CommentService struct {
	db         *gorm.DB
	classifier moderation.Classifier
	thresholds ModerationThresholds
	policy     *bluemonday.Policy
}

// NewCommentService creates a CommentService
func NewCommentService(db *gorm.DB, classifier moderation.Classifier, t ModerationThresholds) *CommentService {
	return &CommentService{db: db, classifier: classifier, thresholds: t, policy: bluemonday.StrictPolicy()}
}

// sanitizeText strips markup from user input and returns plain text.
// Entities are decoded so renderers escape the text exactly once.
func sanitizeText(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

func (s *CommentService) classify(ctx context.Context, content string) (string, float64) {
	score, err := s.classifier.Score(ctx, content)
	if err != nil {
		logrus.WithError(err).Warn("Moderation classifier unavailable, holding comment for review")
		return domain.CommentPending, 0
	}
	switch {
	case score >= s.thresholds.Spam:
		return domain.CommentSpam, score
	case score >= s.thresholds.Review:
		return domain.CommentPending, score
	default:
		return domain.CommentApproved, score
	}
}

// Create adds a comment to a published post
func (s *CommentService) Create(ctx context.Context, userID uint, postSlug, content string, parentID *uint) (*domain.Comment, error) {
	content = sanitizeText(s.policy, content)
	if n := utf8.RuneCountInString(content); n == 0 || n > MaxCommentLen {
		return nil, invalid("content", fmt.Sprintf("must be 1-%d characters", MaxCommentLen))
	}
	var post domain.Post
	if err := s.db.WithContext(ctx).Select("id").
		Where("slug = ? AND status = ?", postSlug, domain.PostPublished).First(&post).Error; err != nil {
		return nil, notFound(err, "post")
	}
	if parentID != nil {
		var parent domain.Comment
		if err := s.db.WithContext(ctx).First(&parent, *parentID).Error; err != nil {
			return nil, notFound(err, "parent comment")
		}
		if parent.PostID != post.ID {
			return nil, invalid("parent_id", "belongs to another post")
		}
		if parent.ParentID != nil {
			return nil, invalid("parent_id", "replies cannot be nested")
		}
	}
	status, score := s.classify(ctx, content)
	comment := &domain.Comment{
		PostID:   post.ID,
		UserID:   userID,
		ParentID: parentID,
		Content:  content,
		Status:   status,
		Toxicity: score,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"comment_id": comment.ID, "post_id": post.ID, "user_id": userID, "status": status,
	}).Info("Comment created")
	return comment, nil
}

// ListForPost returns approved comments of a published post as a one-level thread
func (s *CommentService) ListForPost(ctx context.Context, postSlug string) ([]domain.Comment, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).Select("id").
		Where("slug = ? AND status = ?", postSlug, domain.PostPublished).First(&post).Error; err != nil {
		return nil, notFound(err, "post")
	}
	var all []domain.Comment
	err := s.db.WithContext(ctx).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "username", "name") }).
		Where("post_id = ? AND status = ?", post.ID, domain.CommentApproved).
		Order("created_at asc, id asc").Find(&all).Error
	if err != nil {
		return nil, err
	}
	return thread(all), nil
}

// thread nests replies under their parents, dropping replies whose parent is hidden
func thread(all []domain.Comment) []domain.Comment {
	index := map[uint]int{}
	roots := make([]domain.Comment, 0, len(all))
	for _, c := range all {
		if c.ParentID == nil {
			index[c.ID] = len(roots)
			roots = append(roots, c)
		}
	}
	for _, c := range all {
		if c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			roots[i].Replies = append(roots[i].Replies, c)
		}
	}
	return roots
}

// ListAdmin returns comments for moderation, optionally by status
func (s *CommentService) ListAdmin(ctx context.Context, status string, page utils.Page) ([]domain.Comment, int64, error) {
	if status != "" && !validCommentStatus(status) {
		return nil, 0, invalid("status", "unknown comment status")
	}
	return listPage[domain.Comment](ctx, s.db, func(tx *gorm.DB) *gorm.DB {
		tx = tx.Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "username", "name", "email") })
		if status != "" {
			tx = tx.Where("status = ?", status)
		}
		return tx
	}, "created_at desc", page)
}

func validCommentStatus(s string) bool {
	switch s {
	case domain.CommentPending, domain.CommentApproved, domain.CommentRejected, domain.CommentSpam:
		return true
	}
	return false
}

// SetStatus moderates a comment
func (s *CommentService) SetStatus(ctx context.Context, id uint, status string) (*domain.Comment, error) {
	if !validCommentStatus(status) {
		return nil, invalid("status", "unknown comment status")
	}
	var c domain.Comment
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "comment")
	}
	if err := s.db.WithContext(ctx).Model(&c).Update("status", status).Error; err != nil {
		return nil, err
	}
	c.Status = status
	return &c, nil
}

// Delete removes a comment and its replies. Only the author or an admin may delete.
func (s *CommentService) Delete(ctx context.Context, id, actorID uint, actorIsAdmin bool) error {
	var c domain.Comment
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return notFound(err, "comment")
	}
	if !actorIsAdmin && c.UserID != actorID {
		return fmt.Errorf("not the comment author: %w", ErrForbidden)
	}
	return s.db.WithContext(ctx).Where("id = ? OR parent_id = ?", id, id).Delete(&domain.Comment{}).Error
}

// CountSince counts comments created after t, for digests
func (s *CommentService) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Comment{}).Where("created_at >= ?", t).Count(&n).Error
	return n, err
}
