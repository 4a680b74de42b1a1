package api

import (
	"net/http" // HTTP status codes
	"time"     // Scheduled publishing

	"content_platform/internal/logging" // Request scoped logger
	"content_platform/internal/service" // Business logic

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for creating and updating posts
type PostRequest struct {
	Title      string     `json:"title" binding:"required,max=255"`                                    // Post title
	Slug       string     `json:"slug" binding:"omitempty,slug,max=255"`                               // Derived from the title when empty
	Excerpt    string     `json:"excerpt"`                                                             // Listing summary
	Content    string     `json:"content"`                                                             // Markdown body
	CoverImage string     `json:"cover_image" binding:"omitempty,url"`                                 // Cover image URL
	Status     string     `json:"status" binding:"omitempty,oneof=draft scheduled published archived"` // Defaults to draft
	PublishAt  *time.Time `json:"publish_at"`                                                          // Required when scheduled
	Tags       []string   `json:"tags" binding:"max=20"`                                               // Free form tags
	CategoryID *uint      `json:"category_id"`                                                         // Optional category
}

func (r PostRequest) input() service.PostInput {
	return service.PostInput{
		Title: r.Title, Slug: r.Slug, Excerpt: r.Excerpt, Content: r.Content, CoverImage: r.CoverImage,
		Status: r.Status, PublishAt: r.PublishAt, Tags: r.Tags, CategoryID: r.CategoryID,
	}
}

// Request struct for categories
type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=128"`       // Category name
	Slug        string `json:"slug" binding:"omitempty,slug,max=160"` // Derived from the name when empty
	Description string `json:"description"`                           // Optional description
}

// Request struct for comments
type CommentRequest struct {
	Content  string `json:"content" binding:"required,max=2000"` // Comment body, sanitized by the service
	ParentID *uint  `json:"parent_id"`                           // Reply target
}

// Request struct for moderation
type StatusRequest struct {
	Status string `json:"status" binding:"required"` // New status, checked by the service
}

func postFilter(c *gin.Context) service.PostFilter {
	return service.PostFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
		Page:     pageQuery(c),
	}
}

func listPosts(s *Services, public bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := postFilter(c) // Query string filters
		list, err := s.Posts.List(c.Request.Context(), f, public)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, list.Posts, list.Total, list.Page)
	}
}

// ListPostsHandler returns published posts, newest first
func ListPostsHandler(s *Services) gin.HandlerFunc { return listPosts(s, true) }

// AdminListPostsHandler returns posts in every status
func AdminListPostsHandler(s *Services) gin.HandlerFunc { return listPosts(s, false) }

// GetPostHandler returns a published post and counts the view
func GetPostHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		post, err := s.Posts.GetBySlug(c.Request.Context(), c.Param("slug"), true)
		if err != nil {
			fail(c, err)
			return
		}
		if err := s.Posts.IncrementViews(c.Request.Context(), post.ID); err != nil {
			logging.FromContext(c).WithError(err).WithField("post_id", post.ID).Warn("Failed to count post view")
		}
		respond(c, http.StatusOK, post)
	}
}

// AdminGetPostHandler returns any post by id
func AdminGetPostHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		post, err := s.Posts.GetByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, post)
	}
}

// CreatePostHandler creates a post authored by the current admin
func CreatePostHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PostRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		post, err := s.Posts.Create(c.Request.Context(), currentUserID(c), req.input())
		if err != nil {
			fail(c, err) // Slug taken is a conflict
			return
		}
		respond(c, http.StatusCreated, post)
	}
}

// UpdatePostHandler replaces the writable fields of a post
func UpdatePostHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req PostRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		post, err := s.Posts.Update(c.Request.Context(), id, req.input())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, post)
	}
}

// DeletePostHandler removes a post
func DeletePostHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Posts.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// PostStatsHandler counts posts per status
func PostStatsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.Posts.Stats(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, stats)
	}
}

// ListCategoriesHandler returns every category with its published post count
func ListCategoriesHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := s.Categories.List(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, cats)
	}
}

// CreateCategoryHandler adds a category
func CreateCategoryHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		cat, err := s.Categories.Create(c.Request.Context(), service.CategoryInput{Name: req.Name, Slug: req.Slug, Description: req.Description})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, cat)
	}
}

// UpdateCategoryHandler renames a category
func UpdateCategoryHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req CategoryRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		cat, err := s.Categories.Update(c.Request.Context(), id, service.CategoryInput{Name: req.Name, Slug: req.Slug, Description: req.Description})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, cat)
	}
}

// DeleteCategoryHandler removes a category that no post uses
func DeleteCategoryHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Categories.Delete(c.Request.Context(), id); err != nil {
			fail(c, err) // In use is a conflict
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ListCommentsHandler returns the approved comment thread of a post
func ListCommentsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		comments, err := s.Comments.ListForPost(c.Request.Context(), c.Param("slug"))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, comments)
	}
}

// CreateCommentHandler submits a comment for moderation
func CreateCommentHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CommentRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		comment, err := s.Comments.Create(c.Request.Context(), currentUserID(c), c.Param("slug"), req.Content, req.ParentID)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, comment) // Status tells the client whether it is visible yet
	}
}

// DeleteCommentHandler lets the author or an admin remove a comment
func DeleteCommentHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Comments.Delete(c.Request.Context(), id, currentUserID(c), isAdmin(c)); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// AdminListCommentsHandler returns comments for moderation, filtered by ?status=
func AdminListCommentsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		comments, total, err := s.Comments.ListAdmin(c.Request.Context(), c.Query("status"), page)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, comments, total, page)
	}
}

// ModerateCommentHandler sets a comment's status
func ModerateCommentHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req StatusRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		comment, err := s.Comments.SetStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, comment)
	}
}
