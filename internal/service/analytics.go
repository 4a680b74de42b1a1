package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/geo"
	"content_platform/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const heatmapCacheTTL = 5 * time.Minute

// ViewInput is one page view as seen by the API
type ViewInput struct {
	Path      string
	Referrer  string
	IP        string
	UserAgent string
}

// CountEntry is a labelled count
type CountEntry struct {
	Key   string `gorm:"column:label" json:"key"`
	Count int64  `json:"count"`
}

// AnalyticsSummary aggregates page views over a time range
type AnalyticsSummary struct {
	From         time.Time    `json:"from"`
	To           time.Time    `json:"to"`
	TotalViews   int64        `json:"total_views"`
	UniqueVisits int64        `json:"unique_visitors"`
	TopPaths     []CountEntry `json:"top_paths"`
	TopCountries []CountEntry `json:"top_countries"`
	PerDay       []CountEntry `json:"per_day"`
}

// AnalyticsService records page views and reports on them
type AnalyticsService struct {
	db      *gorm.DB
	rdb     redis.Cmdable
	locator geo.Locator
	salt    string
	now     func() time.Time
}

// NewAnalyticsService creates an AnalyticsService
func NewAnalyticsService(db *gorm.DB, rdb redis.Cmdable, locator geo.Locator, salt string) *AnalyticsService {
	return &AnalyticsService{db: db, rdb: rdb, locator: locator, salt: salt, now: time.Now}
}

// HashIP returns the salted SHA-256 of ip
func (s *AnalyticsService) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(s.salt + "|" + ip))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RecordView stores a page view
func (s *AnalyticsService) RecordView(ctx context.Context, in ViewInput) error {
	p := strings.TrimSpace(in.Path)
	if p == "" || !strings.HasPrefix(p, "/") {
		return invalid("path", "must be an absolute path")
	}
	view := domain.PageView{
		Path:      truncate(p, 512),
		Referrer:  truncate(in.Referrer, 512),
		IPHash:    s.HashIP(in.IP),
		UserAgent: truncate(in.UserAgent, 512),
	}
	loc, err := s.locator.Lookup(in.IP)
	switch {
	case err == nil:
		view.Country, view.City = loc.Country, loc.City
		lat, lng := loc.Latitude, loc.Longitude
		view.Latitude, view.Longitude = &lat, &lng
	case !errors.Is(err, geo.ErrNoLocation):
		logrus.WithError(err).Debug("Geo lookup failed")
	}
	return s.db.WithContext(ctx).Create(&view).Error
}

func (s *AnalyticsService) window(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return from, to, invalid("from", "must be before to")
	}
	return from, to, nil
}

// Summary reports totals, unique visitors, top paths and countries, and views per day
func (s *AnalyticsService) Summary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	from, to, err := s.window(from, to)
	if err != nil {
		return nil, err
	}
	out := &AnalyticsSummary{From: from, To: to}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := func() *gorm.DB {
			return tx.Model(&domain.PageView{}).Where("created_at >= ? AND created_at < ?", from, to)
		}
		if err := base().Count(&out.TotalViews).Error; err != nil {
			return err
		}
		if err := base().Distinct("ip_hash").Count(&out.UniqueVisits).Error; err != nil {
			return err
		}
		if err := base().Select("path AS label, COUNT(*) AS count").Group("path").
			Order("count desc").Limit(10).Scan(&out.TopPaths).Error; err != nil {
			return err
		}
		if err := base().Where("country <> ''").Select("country AS label, COUNT(*) AS count").Group("country").
			Order("count desc").Limit(10).Scan(&out.TopCountries).Error; err != nil {
			return err
		}
		var times []time.Time
		if err := base().Order("created_at asc").Pluck("created_at", &times).Error; err != nil {
			return err
		}
		out.PerDay = perDay(times)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// perDay buckets ordered timestamps by UTC date
func perDay(times []time.Time) []CountEntry {
	out := []CountEntry{}
	for _, t := range times {
		day := t.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Key == day {
			out[n-1].Count++
			continue
		}
		out = append(out, CountEntry{Key: day, Count: 1})
	}
	return out
}

// Heatmap groups located views into cells
func (s *AnalyticsService) Heatmap(ctx context.Context, from, to time.Time, precision int) ([]geo.HeatPoint, error) {
	precision = geo.ClampPrecision(precision)
	key := fmt.Sprintf("analytics:heatmap:%s:%s:%d", cacheBound(from), cacheBound(to), precision)
	from, to, err := s.window(from, to)
	if err != nil {
		return nil, err
	}

	var cells []geo.HeatPoint
	if ok, _ := utils.GetCache(ctx, s.rdb, key, &cells); ok {
		return cells, nil
	}

	var rows []domain.PageView
	if err := s.db.WithContext(ctx).Select("latitude", "longitude").
		Where("created_at >= ? AND created_at < ?", from, to).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	points := make([]geo.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, geo.Point{Latitude: *r.Latitude, Longitude: *r.Longitude})
	}
	cells = geo.Aggregate(points, precision)
	if err := utils.SetCache(ctx, s.rdb, key, cells, heatmapCacheTTL); err != nil {
		logrus.WithError(err).Warn("Failed to cache heatmap")
	}
	return cells, nil
}

// cacheBound keys a requested bound; an omitted one stays "default" so rolling windows share a key
func cacheBound(t time.Time) string {
	if t.IsZero() {
		return "default"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// PruneBefore deletes views older than t
func (s *AnalyticsService) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", t).Delete(&domain.PageView{})
	return res.RowsAffected, res.Error
}
