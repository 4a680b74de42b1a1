package api

import (
	"net/http" // HTTP status codes
	"strings"  // Key trimming

	"content_platform/internal/service" // Business logic
	"content_platform/internal/storage" // In-memory uploads

	"github.com/gin-gonic/gin" // Gin web framework
)

// UploadMediaHandler stores a multipart "file" field in object storage
func UploadMediaHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Missing file"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, err)
			return
		}
		defer f.Close()
		media, err := s.Media.Upload(c.Request.Context(), service.UploadInput{
			Body:        f,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"), // Checked against the allow list by the service
			Size:        fh.Size,
			UploaderID:  currentUserID(c),
		})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, media)
	}
}

// ListMediaHandler returns uploads, newest first
func ListMediaHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		items, total, err := s.Media.List(c.Request.Context(), page)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, items, total, page)
	}
}

// DeleteMediaHandler removes an upload from storage and the library
func DeleteMediaHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Media.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ServeMediaHandler streams uploads kept in memory when no bucket is configured
func ServeMediaHandler(files *storage.MemoryStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, contentType, ok := files.Get(strings.TrimPrefix(c.Param("key"), "/"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Not found"})
			return
		}
		if contentType == "" {
			contentType = http.DetectContentType(body)
		}
		c.Header("X-Content-Type-Options", "nosniff")
		c.Data(http.StatusOK, contentType, body)
	}
}
