package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const projectCacheKey = "projects:list"

// ProjectInput holds writable project fields
type ProjectInput struct {
	Title       string
	Slug        string
	Summary     string
	Description string
	RepoURL     string
	LiveURL     string
	ImageURL    string
	TechStack   []string
	Featured    bool
	SortOrder   int
}

// ProjectService manages the portfolio
type ProjectService struct {
	db  *gorm.DB
	rdb redis.Cmdable
}

// NewProjectService creates a ProjectService
func NewProjectService(db *gorm.DB, rdb redis.Cmdable) *ProjectService {
	return &ProjectService{db: db, rdb: rdb}
}

// List returns projects, featured first
func (s *ProjectService) List(ctx context.Context, featuredOnly bool) ([]domain.Project, error) {
	key := projectCacheKey
	if featuredOnly {
		key += ":featured"
	}
	var projects []domain.Project
	if found, err := utils.GetCache(ctx, s.rdb, key, &projects); err == nil && found {
		return projects, nil
	}
	q := s.db.WithContext(ctx).Omit("description")
	if featuredOnly {
		q = q.Where("featured = ?", true)
	}
	if err := q.Order("featured desc, sort_order asc, created_at desc").Find(&projects).Error; err != nil {
		return nil, err
	}
	_ = utils.SetCache(ctx, s.rdb, key, projects, 5*time.Minute)
	return projects, nil
}

// GetBySlug loads a project
func (s *ProjectService) GetBySlug(ctx context.Context, projectSlug string) (*domain.Project, error) {
	var p domain.Project
	if err := s.db.WithContext(ctx).Where("slug = ?", projectSlug).First(&p).Error; err != nil {
		return nil, notFound(err, "project")
	}
	return &p, nil
}

func validURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(field, "must be an http(s) URL")
	}
	return nil
}

func (s *ProjectService) normalize(in *ProjectInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return invalid("title", "is required")
	}
	in.Slug = slug.Make(in.Slug)
	if in.Slug == "" {
		in.Slug = slug.Make(in.Title)
	}
	for field, raw := range map[string]string{"repo_url": in.RepoURL, "live_url": in.LiveURL, "image_url": in.ImageURL} {
		if err := validURL(field, raw); err != nil {
			return err
		}
	}
	in.TechStack = normalizeStack(in.TechStack)
	return nil
}

func normalizeStack(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || seen[strings.ToLower(it)] {
			continue
		}
		seen[strings.ToLower(it)] = true
		out = append(out, it)
	}
	return out
}

func (in ProjectInput) apply(p *domain.Project) {
	p.Title = in.Title
	p.Slug = in.Slug
	p.Summary = in.Summary
	p.Description = in.Description
	p.RepoURL = in.RepoURL
	p.LiveURL = in.LiveURL
	p.ImageURL = in.ImageURL
	p.TechStack = in.TechStack
	p.Featured = in.Featured
	p.SortOrder = in.SortOrder
}

// Create adds a project
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*domain.Project, error) {
	if err := s.normalize(&in); err != nil {
		return nil, err
	}
	p := &domain.Project{}
	in.apply(p)
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("slug %q already in use: %w", in.Slug, ErrConflict)
		}
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

// Update replaces a project's fields
func (s *ProjectService) Update(ctx context.Context, id uint, in ProjectInput) (*domain.Project, error) {
	if err := s.normalize(&in); err != nil {
		return nil, err
	}
	var p domain.Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "project")
	}
	in.apply(&p)
	if err := s.db.WithContext(ctx).Select("*").Omit("created_at").Save(&p).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("slug %q already in use: %w", in.Slug, ErrConflict)
		}
		return nil, err
	}
	s.invalidate(ctx)
	return &p, nil
}

// Delete removes a project
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Project{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project: %w", ErrNotFound)
	}
	s.invalidate(ctx)
	return nil
}

func (s *ProjectService) invalidate(ctx context.Context) {
	if err := utils.DeleteCachePrefix(ctx, s.rdb, projectCacheKey); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate project cache")
	}
}
