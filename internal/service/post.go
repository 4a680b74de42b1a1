package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	postCachePrefix = "posts:"
	postCacheTTL    = 60 * time.Second
)

// PostFilter narrows post listings
type PostFilter struct {
	Status   string
	Category string // Category slug
	Tag      string
	Search   string
	Page     utils.Page
}

// PostInput holds writable post fields
type PostInput struct {
	Title      string
	Slug       string
	Excerpt    string
	Content    string
	CoverImage string
	Status     string
	PublishAt  *time.Time
	Tags       []string
	CategoryID *uint
}

// PostList is a page of posts
type PostList struct {
	Posts []domain.Post `json:"posts"`
	Total int64         `json:"total"`
	Page  utils.Page    `json:"page"`
}

// PostStats counts posts per status
type PostStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	TotalViews int64            `json:"total_views"`
}

// PostService manages blog posts
type PostService struct {
	db  *gorm.DB
	rdb redis.Cmdable
	now func() time.Time
}

// NewPostService creates a PostService
func NewPostService(db *gorm.DB, rdb redis.Cmdable) *PostService {
	return &PostService{db: db, rdb: rdb, now: time.Now}
}

func validPostStatus(s string) bool {
	switch s {
	case domain.PostDraft, domain.PostScheduled, domain.PostPublished, domain.PostArchived:
		return true
	}
	return false
}

func normalizeTags(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func postCacheKey(f PostFilter) string {
	return postCachePrefix + "list:" + strings.Join([]string{
		f.Category, f.Tag, strings.ToLower(f.Search),
		strconv.Itoa(f.Page.Page), strconv.Itoa(f.Page.PageSize),
	}, ":")
}

// List returns posts. Public callers only ever see published posts, newest first.
func (s *PostService) List(ctx context.Context, f PostFilter, public bool) (*PostList, error) {
	if utils.ContainsSQLInjection(f.Search) || utils.ContainsSQLInjection(f.Tag) {
		return nil, invalid("search", "contains forbidden characters")
	}
	if !public && f.Status != "" && !validPostStatus(f.Status) {
		return nil, invalid("status", "unknown post status")
	}
	cacheKey := postCacheKey(f)
	if public {
		var cached PostList
		if found, err := utils.GetCache(ctx, s.rdb, cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	scope := func(tx *gorm.DB) *gorm.DB {
		if public {
			tx = tx.Where("posts.status = ?", domain.PostPublished)
		} else if f.Status != "" {
			tx = tx.Where("posts.status = ?", f.Status)
		}
		if f.Category != "" {
			tx = tx.Joins("JOIN categories ON categories.id = posts.category_id").Where("categories.slug = ?", f.Category)
		}
		if f.Tag != "" {
			tx = tx.Where(datatypes.JSONArrayQuery("tags").Contains(strings.ToLower(f.Tag)))
		}
		if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
			like := "%" + search + "%"
			tx = tx.Where("LOWER(posts.title) LIKE ? OR LOWER(posts.excerpt) LIKE ? OR LOWER(posts.content) LIKE ?", like, like, like)
		}
		return tx.Omit("content")
	}
	order := "posts.created_at desc"
	if public {
		order = "posts.published_at desc"
	}
	posts, total, err := listPage[domain.Post](ctx, s.db, func(tx *gorm.DB) *gorm.DB {
		return scope(tx).Preload("Category").Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username", "name")
		})
	}, order, f.Page)
	if err != nil {
		return nil, err
	}
	out := &PostList{Posts: posts, Total: total, Page: f.Page}
	if public {
		_ = utils.SetCache(ctx, s.rdb, cacheKey, out, postCacheTTL)
	}
	return out, nil
}

// GetBySlug loads a post; public callers only see published posts
func (s *PostService) GetBySlug(ctx context.Context, postSlug string, public bool) (*domain.Post, error) {
	var post domain.Post
	q := s.db.WithContext(ctx).Preload("Category").Preload("Author", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "username", "name")
	}).Where("slug = ?", postSlug)
	if public {
		q = q.Where("status = ?", domain.PostPublished)
	}
	if err := q.First(&post).Error; err != nil {
		return nil, notFound(err, "post")
	}
	return &post, nil
}

// GetByID loads a post by id
func (s *PostService) GetByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).Preload("Category").First(&post, id).Error; err != nil {
		return nil, notFound(err, "post")
	}
	return &post, nil
}

// IncrementViews bumps the view counter without touching updated_at
func (s *PostService) IncrementViews(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

func (s *PostService) validate(ctx context.Context, in *PostInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("title", "is required")
	}
	if in.Status == "" {
		in.Status = domain.PostDraft
	}
	if !validPostStatus(in.Status) {
		return invalid("status", "unknown post status")
	}
	if in.Status == domain.PostScheduled && (in.PublishAt == nil || !in.PublishAt.After(s.now())) {
		return invalid("publish_at", "scheduled posts need a publish time in the future")
	}
	in.Slug = slug.Make(in.Slug)
	if in.Slug == "" {
		in.Slug = slug.Make(in.Title)
	}
	if in.Slug == "" {
		return invalid("slug", "could not derive a slug from the title")
	}
	in.Tags = normalizeTags(in.Tags)
	if in.CategoryID != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", *in.CategoryID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return invalid("category_id", "category does not exist")
		}
	}
	return nil
}

func (s *PostService) apply(post *domain.Post, in PostInput) {
	post.Title = in.Title
	post.Slug = in.Slug
	post.Excerpt = in.Excerpt
	post.Content = in.Content
	post.CoverImage = in.CoverImage
	post.Tags = in.Tags
	post.CategoryID = in.CategoryID
	post.PublishAt = in.PublishAt
	if in.Status == domain.PostPublished && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}
	post.Status = in.Status
}

// Create adds a post authored by authorID
func (s *PostService) Create(ctx context.Context, authorID uint, in PostInput) (*domain.Post, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	post := &domain.Post{AuthorID: authorID}
	s.apply(post, in)
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("slug %q already in use: %w", in.Slug, ErrConflict)
		}
		return nil, err
	}
	s.invalidate(ctx)
	logrus.WithFields(logrus.Fields{"post_id": post.ID, "slug": post.Slug, "status": post.Status}).Info("Post created")
	return post, nil
}

// Update replaces a post's writable fields
func (s *PostService) Update(ctx context.Context, id uint, in PostInput) (*domain.Post, error) {
	post, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	s.apply(post, in)
	post.Category = nil // Let CategoryID drive the association
	if err := s.db.WithContext(ctx).Select("*").Omit("created_at", "views", "author_id").Save(post).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("slug %q already in use: %w", in.Slug, ErrConflict)
		}
		return nil, err
	}
	s.invalidate(ctx)
	return post, nil
}

// Delete removes a post and its comments
func (s *PostService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("post: %w", ErrNotFound)
		}
		return nil
	})
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

// PublishDue publishes scheduled posts whose publish time has passed
func (s *PostService) PublishDue(ctx context.Context) (int64, error) {
	now := s.now()
	var published int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&domain.Post{}).
			Where("status = ? AND publish_at <= ?", domain.PostScheduled, now).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Model(&domain.Post{}).Where("id IN ?", ids).
			Updates(map[string]any{"status": domain.PostPublished, "published_at": now})
		published = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		s.invalidate(ctx)
		logrus.WithField("count", published).Info("Scheduled posts published")
	}
	return published, nil
}

// Stats counts posts per status
func (s *PostService) Stats(ctx context.Context) (*PostStats, error) {
	stats := &PostStats{ByStatus: map[string]int64{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []struct {
			Status string
			N      int64
			Views  int64
		}
		if err := tx.Model(&domain.Post{}).Select("status, COUNT(*) AS n, COALESCE(SUM(views), 0) AS views").
			Group("status").Scan(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			stats.ByStatus[r.Status] = r.N
			stats.Total += r.N
			stats.TotalViews += r.Views
		}
		return nil
	})
	return stats, err
}

func (s *PostService) invalidate(ctx context.Context) {
	if err := utils.DeleteCachePrefix(ctx, s.rdb, postCachePrefix); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate post cache")
	}
}
