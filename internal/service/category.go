package service

import (
	"context"
	"fmt"
	"strings"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CategoryInput holds writable category fields
type CategoryInput struct {
	Name        string
	Slug        string
	Description string
}

// CategoryService manages post categories
type CategoryService struct {
	db  *gorm.DB
	rdb redis.Cmdable
}

// NewCategoryService creates a CategoryService
func NewCategoryService(db *gorm.DB, rdb redis.Cmdable) *CategoryService {
	return &CategoryService{db: db, rdb: rdb}
}

// List returns every category with its number of published posts
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if err := s.db.WithContext(ctx).Order("name asc").Find(&cats).Error; err != nil {
		return nil, err
	}
	var counts []struct {
		CategoryID uint
		N          int64
	}
	if err := s.db.WithContext(ctx).Model(&domain.Post{}).
		Select("category_id, COUNT(*) AS n").
		Where("status = ? AND category_id IS NOT NULL", domain.PostPublished).
		Group("category_id").Scan(&counts).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.CategoryID] = c.N
	}
	for i := range cats {
		cats[i].PostCount = byID[cats[i].ID]
	}
	return cats, nil
}

func (s *CategoryService) normalize(in *CategoryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	in.Slug = slug.Make(in.Slug)
	if in.Slug == "" {
		in.Slug = slug.Make(in.Name)
	}
	if in.Slug == "" {
		return invalid("slug", "could not derive a slug from the name")
	}
	return nil
}

// Create adds a category
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	if err := s.normalize(&in); err != nil {
		return nil, err
	}
	cat := &domain.Category{Name: in.Name, Slug: in.Slug, Description: in.Description}
	if err := s.db.WithContext(ctx).Create(cat).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("category name or slug already exists: %w", ErrConflict)
		}
		return nil, err
	}
	return cat, nil
}

// Update changes a category
func (s *CategoryService) Update(ctx context.Context, id uint, in CategoryInput) (*domain.Category, error) {
	if err := s.normalize(&in); err != nil {
		return nil, err
	}
	var cat domain.Category
	if err := s.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		return nil, notFound(err, "category")
	}
	err := s.db.WithContext(ctx).Model(&cat).Updates(map[string]any{
		"name": in.Name, "slug": in.Slug, "description": in.Description,
	}).Error
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("category name or slug already exists: %w", ErrConflict)
		}
		return nil, err
	}
	s.invalidatePosts(ctx)
	return &cat, nil
}

// Delete removes a category that no post references
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Post{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("category still has %d posts: %w", n, ErrConflict)
		}
		res := tx.Delete(&domain.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("category: %w", ErrNotFound)
		}
		return nil
	})
}

func (s *CategoryService) invalidatePosts(ctx context.Context) {
	if err := utils.DeleteCachePrefix(ctx, s.rdb, postCachePrefix); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate post cache")
	}
}
