package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Query flags

	"content_platform/internal/service" // Business logic

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for projects
type ProjectRequest struct {
	Title       string   `json:"title" binding:"required,max=255"`      // Project title
	Slug        string   `json:"slug" binding:"omitempty,slug,max=255"` // Derived from the title when empty
	Summary     string   `json:"summary"`                               // Card summary
	Description string   `json:"description"`                           // Long description
	RepoURL     string   `json:"repo_url" binding:"omitempty,url"`      // Source repository
	LiveURL     string   `json:"live_url" binding:"omitempty,url"`      // Live demo
	ImageURL    string   `json:"image_url" binding:"omitempty,url"`     // Screenshot
	TechStack   []string `json:"tech_stack"`                            // Technologies used
	Featured    bool     `json:"featured"`                              // Shown first
	SortOrder   int      `json:"sort_order"`                            // Lower comes first
}

func (r ProjectRequest) input() service.ProjectInput {
	return service.ProjectInput{
		Title: r.Title, Slug: r.Slug, Summary: r.Summary, Description: r.Description,
		RepoURL: r.RepoURL, LiveURL: r.LiveURL, ImageURL: r.ImageURL,
		TechStack: r.TechStack, Featured: r.Featured, SortOrder: r.SortOrder,
	}
}

// Request struct for testimonial submissions
type TestimonialRequest struct {
	AuthorName  string `json:"author_name" binding:"required,max=128"` // Who wrote it
	AuthorTitle string `json:"author_title" binding:"max=128"`         // Job title
	Company     string `json:"company" binding:"max=128"`              // Company
	Content     string `json:"content" binding:"required,max=2000"`    // Testimonial text
	Rating      int    `json:"rating" binding:"required,gte=1,lte=5"`  // 1 to 5 stars
}

// Request struct for testimonial moderation
type ApprovalRequest struct {
	Approved *bool `json:"approved" binding:"required"` // Publish or hide
}

// ListProjectsHandler returns the portfolio; ?featured=true limits it to featured projects
func ListProjectsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		featured, _ := strconv.ParseBool(c.Query("featured")) // Invalid values mean all projects
		projects, err := s.Projects.List(c.Request.Context(), featured)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, projects)
	}
}

// GetProjectHandler returns one project
func GetProjectHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := s.Projects.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, project)
	}
}

// CreateProjectHandler adds a project
func CreateProjectHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProjectRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		project, err := s.Projects.Create(c.Request.Context(), req.input())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, project)
	}
}

// UpdateProjectHandler replaces a project's fields
func UpdateProjectHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ProjectRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		project, err := s.Projects.Update(c.Request.Context(), id, req.input())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, project)
	}
}

// DeleteProjectHandler removes a project
func DeleteProjectHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Projects.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ListTestimonialsHandler returns approved testimonials
func ListTestimonialsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := s.Testimonials.ListApproved(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, items)
	}
}

// SubmitTestimonialHandler stores a testimonial awaiting approval
func SubmitTestimonialHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TestimonialRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		t, err := s.Testimonials.Submit(c.Request.Context(), service.TestimonialInput{
			AuthorName: req.AuthorName, AuthorTitle: req.AuthorTitle, Company: req.Company,
			Content: req.Content, Rating: req.Rating,
		})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, t)
	}
}

// AdminListTestimonialsHandler returns every testimonial; ?approved=true|false filters
func AdminListTestimonialsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var approved *bool
		if v, err := strconv.ParseBool(c.Query("approved")); err == nil {
			approved = &v
		}
		page := pageQuery(c)
		items, total, err := s.Testimonials.ListAll(c.Request.Context(), approved, page)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, items, total, page)
	}
}

// ApproveTestimonialHandler publishes or hides a testimonial
func ApproveTestimonialHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ApprovalRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		t, err := s.Testimonials.SetApproved(c.Request.Context(), id, *req.Approved)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, t)
	}
}

// DeleteTestimonialHandler removes a testimonial
func DeleteTestimonialHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Testimonials.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
