package service

import (
	"context"
	"testing"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/testutil"
	"content_platform/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type contentFixture struct {
	db     *gorm.DB
	mr     *miniredis.Miniredis
	posts  *PostService
	cats   *CategoryService
	author *domain.User
}

func newContentFixture(t *testing.T) *contentFixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	return &contentFixture{
		db:     gdb,
		mr:     mr,
		posts:  NewPostService(gdb, rdb),
		cats:   NewCategoryService(gdb, rdb),
		author: testutil.CreateUser(t, gdb, "admin", domain.RoleAdmin),
	}
}

func (f *contentFixture) publish(t *testing.T, title string, tags ...string) *domain.Post {
	t.Helper()
	p, err := f.posts.Create(context.Background(), f.author.ID, PostInput{
		Title: title, Content: "Body of " + title, Status: domain.PostPublished, Tags: tags,
	})
	require.NoError(t, err)
	return p
}

var firstPage = utils.Page{Page: 1, PageSize: 20}

func TestPostCreateDerivesSlug(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)

	p, err := f.posts.Create(ctx, f.author.ID, PostInput{Title: "Hello, World!", Tags: []string{" Go ", "go", "Web"}})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, domain.PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, []string{"go", "web"}, []string(p.Tags))

	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "Hello World"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "  "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostScheduledNeedsFutureTime(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)

	past := time.Now().Add(-time.Hour)
	_, err := f.posts.Create(ctx, f.author.ID, PostInput{Title: "Late", Status: domain.PostScheduled, PublishAt: &past})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "Late", Status: domain.PostScheduled})
	assert.ErrorIs(t, err, ErrValidation)

	missing := uint(999)
	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "Orphan", CategoryID: &missing})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostPublicListing(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	cat, err := f.cats.Create(ctx, CategoryInput{Name: "Engineering"})
	require.NoError(t, err)

	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "Draft post"})
	require.NoError(t, err)
	f.publish(t, "Go generics", "go")
	_, err = f.posts.Create(ctx, f.author.ID, PostInput{
		Title: "Redis caching", Status: domain.PostPublished, CategoryID: &cat.ID, Tags: []string{"redis"},
	})
	require.NoError(t, err)

	all, err := f.posts.List(ctx, PostFilter{Page: firstPage}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
	for _, p := range all.Posts {
		assert.Equal(t, domain.PostPublished, p.Status)
		assert.Empty(t, p.Content) // Listings omit bodies
	}

	byCat, err := f.posts.List(ctx, PostFilter{Category: "engineering", Page: firstPage}, true)
	require.NoError(t, err)
	require.Len(t, byCat.Posts, 1)
	assert.Equal(t, "redis-caching", byCat.Posts[0].Slug)
	require.NotNil(t, byCat.Posts[0].Category)
	assert.Equal(t, "Engineering", byCat.Posts[0].Category.Name)

	byTag, err := f.posts.List(ctx, PostFilter{Tag: "GO", Page: firstPage}, true)
	require.NoError(t, err)
	require.Len(t, byTag.Posts, 1)
	assert.Equal(t, "go-generics", byTag.Posts[0].Slug)

	bySearch, err := f.posts.List(ctx, PostFilter{Search: "caching", Page: firstPage}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, bySearch.Total)

	admin, err := f.posts.List(ctx, PostFilter{Status: domain.PostDraft, Page: firstPage}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, admin.Total)

	_, err = f.posts.List(ctx, PostFilter{Search: "1 UNION SELECT password FROM users", Page: firstPage}, true)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostListCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	f.publish(t, "First")

	list, err := f.posts.List(ctx, PostFilter{Page: firstPage}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
	assert.NotEmpty(t, f.mr.Keys())

	f.publish(t, "Second")
	assert.Empty(t, f.mr.Keys())

	list, err = f.posts.List(ctx, PostFilter{Page: firstPage}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
}

func TestPostGetBySlugHidesDrafts(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	draft, err := f.posts.Create(ctx, f.author.ID, PostInput{Title: "Secret"})
	require.NoError(t, err)

	_, err = f.posts.GetBySlug(ctx, draft.Slug, true)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := f.posts.GetBySlug(ctx, draft.Slug, false)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)

	require.NoError(t, f.posts.IncrementViews(ctx, draft.ID))
	require.NoError(t, f.posts.IncrementViews(ctx, draft.ID))
	got, err = f.posts.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Views)
}

func TestPostUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	p := f.publish(t, "Original")
	other := f.publish(t, "Other")
	publishedAt := *p.PublishedAt

	updated, err := f.posts.Update(ctx, p.ID, PostInput{Title: "Renamed", Slug: "renamed", Status: domain.PostPublished})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Slug)
	require.NotNil(t, updated.PublishedAt)
	assert.WithinDuration(t, publishedAt, *updated.PublishedAt, time.Second) // First publication time is kept

	_, err = f.posts.Update(ctx, p.ID, PostInput{Title: "Clash", Slug: other.Slug, Status: domain.PostPublished})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, f.posts.Delete(ctx, p.ID))
	assert.ErrorIs(t, f.posts.Delete(ctx, p.ID), ErrNotFound)
	_, err = f.posts.Update(ctx, p.ID, PostInput{Title: "Gone"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishDue(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	at := time.Now().Add(time.Hour)
	p, err := f.posts.Create(ctx, f.author.ID, PostInput{Title: "Later", Status: domain.PostScheduled, PublishAt: &at})
	require.NoError(t, err)

	n, err := f.posts.PublishDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.posts.now = func() time.Time { return at.Add(time.Minute) }
	n, err = f.posts.PublishDue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := f.posts.GetBySlug(ctx, p.Slug, true)
	require.NoError(t, err)
	assert.Equal(t, domain.PostPublished, got.Status)
	assert.NotNil(t, got.PublishedAt)

	stats, err := f.posts.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.ByStatus[domain.PostPublished])
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	cat, err := f.cats.Create(ctx, CategoryInput{Name: "Go Tips"})
	require.NoError(t, err)
	assert.Equal(t, "go-tips", cat.Slug)

	_, err = f.cats.Create(ctx, CategoryInput{Name: "Go Tips"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "Tip one", Status: domain.PostPublished, CategoryID: &cat.ID})
	require.NoError(t, err)
	_, err = f.posts.Create(ctx, f.author.ID, PostInput{Title: "Tip two", CategoryID: &cat.ID})
	require.NoError(t, err)

	cats, err := f.cats.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.EqualValues(t, 1, cats[0].PostCount) // Drafts are not counted

	assert.ErrorIs(t, f.cats.Delete(ctx, cat.ID), ErrConflict)

	_, err = f.cats.Update(ctx, cat.ID, CategoryInput{Name: "Golang"})
	require.NoError(t, err)
	empty, err := f.cats.Create(ctx, CategoryInput{Name: "Empty"})
	require.NoError(t, err)
	require.NoError(t, f.cats.Delete(ctx, empty.ID))
	assert.ErrorIs(t, f.cats.Delete(ctx, empty.ID), ErrNotFound)
}
