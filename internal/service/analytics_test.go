package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/geo"
	"content_platform/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLocations = geo.StaticLocator{
	"203.0.113.1": {Country: "DE", City: "Berlin", Latitude: 52.52, Longitude: 13.40},
	"203.0.113.2": {Country: "DE", City: "Berlin", Latitude: 52.53, Longitude: 13.41},
	"203.0.113.3": {Country: "FR", City: "Paris", Latitude: 48.85, Longitude: 2.35},
}

func TestRecordViewHashesIP(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	analytics := NewAnalyticsService(gdb, rdb, testLocations, "pepper")

	require.NoError(t, analytics.RecordView(ctx, ViewInput{Path: "/blog/hello", IP: "203.0.113.1", UserAgent: "ua"}))
	require.NoError(t, analytics.RecordView(ctx, ViewInput{Path: "/about", IP: "10.0.0.1"}))
	assert.ErrorIs(t, analytics.RecordView(ctx, ViewInput{Path: "relative"}), ErrValidation)

	var views []domain.PageView
	require.NoError(t, gdb.Order("id asc").Find(&views).Error)
	require.Len(t, views, 2)
	assert.Equal(t, analytics.HashIP("203.0.113.1"), views[0].IPHash)
	assert.NotContains(t, views[0].IPHash, "203.0.113.1")
	assert.Equal(t, "DE", views[0].Country)
	require.NotNil(t, views[0].Latitude)
	assert.InDelta(t, 52.52, *views[0].Latitude, 1e-9)
	assert.Empty(t, views[1].Country) // Unknown location is stored without one
	assert.Nil(t, views[1].Latitude)

	other := NewAnalyticsService(gdb, rdb, testLocations, "salt")
	assert.NotEqual(t, analytics.HashIP("203.0.113.1"), other.HashIP("203.0.113.1"))
}

func TestAnalyticsSummaryAndHeatmap(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	analytics := NewAnalyticsService(gdb, rdb, testLocations, "pepper")

	for _, v := range []ViewInput{
		{Path: "/", IP: "203.0.113.1"},
		{Path: "/", IP: "203.0.113.1"},
		{Path: "/", IP: "203.0.113.2"},
		{Path: "/blog/go", IP: "203.0.113.3"},
		{Path: "/blog/go", IP: "192.168.1.10"},
	} {
		require.NoError(t, analytics.RecordView(ctx, v))
	}

	from, to := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)
	summary, err := analytics.Summary(ctx, from, to)
	require.NoError(t, err)
	assert.EqualValues(t, 5, summary.TotalViews)
	assert.EqualValues(t, 4, summary.UniqueVisits)
	require.NotEmpty(t, summary.TopPaths)
	assert.Equal(t, CountEntry{Key: "/", Count: 3}, summary.TopPaths[0])
	require.Len(t, summary.TopCountries, 2)
	assert.Equal(t, CountEntry{Key: "DE", Count: 3}, summary.TopCountries[0])
	require.Len(t, summary.PerDay, 1)
	assert.EqualValues(t, 5, summary.PerDay[0].Count)

	_, err = analytics.Summary(ctx, to, from)
	assert.ErrorIs(t, err, ErrValidation)

	cells, err := analytics.Heatmap(ctx, from, to, 1)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, 3, cells[0].Count) // Both Berlin IPs land in the 52.5/13.4 cell
	assert.InDelta(t, 1.0, cells[0].Intensity, 1e-9)
	assert.Equal(t, 1, cells[1].Count)

	require.NoError(t, analytics.RecordView(ctx, ViewInput{Path: "/", IP: "203.0.113.3"}))
	cached, err := analytics.Heatmap(ctx, from, to, 1)
	require.NoError(t, err)
	assert.Equal(t, cells, cached) // Served from cache

	mr.FastForward(heatmapCacheTTL + time.Second)
	fresh, err := analytics.Heatmap(ctx, from, to, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh[1].Count)
}

func TestHeatmapDefaultWindowIsCached(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	analytics := NewAnalyticsService(gdb, rdb, testLocations, "pepper")

	require.NoError(t, analytics.RecordView(ctx, ViewInput{Path: "/", IP: "203.0.113.1"}))
	now := time.Now().Add(time.Second)
	analytics.now = func() time.Time { return now }

	first, err := analytics.Heatmap(ctx, time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, analytics.RecordView(ctx, ViewInput{Path: "/", IP: "203.0.113.3"}))
	now = now.Add(2 * time.Second)
	second, err := analytics.Heatmap(ctx, time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "analytics:heatmap:") {
			keys = append(keys, k)
		}
	}
	assert.Len(t, keys, 1)
}

func TestPerDay(t *testing.T) {
	day := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	got := perDay([]time.Time{day, day.Add(time.Hour), day.Add(24 * time.Hour)})
	assert.Equal(t, []CountEntry{{Key: "2025-01-01", Count: 2}, {Key: "2025-01-02", Count: 1}}, got)
	assert.Empty(t, perDay(nil))
}

func TestPruneBefore(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	analytics := NewAnalyticsService(gdb, rdb, geo.NoopLocator{}, "pepper")

	require.NoError(t, gdb.Create(&domain.PageView{Path: "/old", CreatedAt: time.Now().AddDate(-2, 0, 0)}).Error)
	require.NoError(t, analytics.RecordView(ctx, ViewInput{Path: "/new", IP: "203.0.113.9"}))

	n, err := analytics.PruneBefore(ctx, time.Now().AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
