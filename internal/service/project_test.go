package service

import (
	"context"
	"testing"

	"content_platform/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjects(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	projects := NewProjectService(gdb, rdb)

	_, err := projects.Create(ctx, ProjectInput{Title: "Bad", RepoURL: "ftp://example.com/repo"})
	assert.ErrorIs(t, err, ErrValidation)

	plain, err := projects.Create(ctx, ProjectInput{Title: "CLI Tool", SortOrder: 1, TechStack: []string{"Go", " go ", "Cobra"}})
	require.NoError(t, err)
	assert.Equal(t, "cli-tool", plain.Slug)
	assert.Equal(t, []string{"Go", "Cobra"}, []string(plain.TechStack))

	star, err := projects.Create(ctx, ProjectInput{Title: "Platform", Featured: true, RepoURL: "https://github.com/example/platform"})
	require.NoError(t, err)

	_, err = projects.Create(ctx, ProjectInput{Title: "Platform"})
	assert.ErrorIs(t, err, ErrConflict)

	list, err := projects.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, star.ID, list[0].ID) // Featured first
	assert.True(t, mr.Exists(projectCacheKey))

	featured, err := projects.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, featured, 1)

	_, err = projects.Update(ctx, plain.ID, ProjectInput{Title: "CLI Tool", Featured: true, SortOrder: 0})
	require.NoError(t, err)
	assert.False(t, mr.Exists(projectCacheKey))
	assert.False(t, mr.Exists(projectCacheKey+":featured"))

	got, err := projects.GetBySlug(ctx, "cli-tool")
	require.NoError(t, err)
	assert.True(t, got.Featured)

	require.NoError(t, projects.Delete(ctx, plain.ID))
	_, err = projects.GetBySlug(ctx, "cli-tool")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, projects.Delete(ctx, plain.ID), ErrNotFound)
}

func TestTestimonials(t *testing.T) {
	ctx := context.Background()
	testimonials := NewTestimonialService(testutil.NewDB(t))

	_, err := testimonials.Submit(ctx, TestimonialInput{AuthorName: "Pat", Content: "short", Rating: 9})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")
	assert.Contains(t, verr.Fields, "rating")

	good, err := testimonials.Submit(ctx, TestimonialInput{AuthorName: "<i>Pat</i>", Content: "Great work on the project!", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "Pat", good.AuthorName)
	assert.False(t, good.Approved)

	approved, err := testimonials.ListApproved(ctx)
	require.NoError(t, err)
	assert.Empty(t, approved)

	_, err = testimonials.SetApproved(ctx, good.ID, true)
	require.NoError(t, err)
	approved, err = testimonials.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	no := false
	pending, total, err := testimonials.ListAll(ctx, &no, firstPage)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)

	require.NoError(t, testimonials.Delete(ctx, good.ID))
	assert.ErrorIs(t, testimonials.Delete(ctx, good.ID), ErrNotFound)
	_, err = testimonials.SetApproved(ctx, good.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
}
