package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/storage"
	"content_platform/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Content types accepted by the media library, with their canonical extension
var allowedMedia = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
	"video/mp4":       ".mp4",
}

// UploadInput describes an incoming file
type UploadInput struct {
	Body        io.Reader
	FileName    string
	ContentType string
	Size        int64
	UploaderID  uint
}

// MediaService stores uploads in object storage and indexes them in the database
type MediaService struct {
	db       *gorm.DB
	store    storage.Storage
	maxBytes int64
	now      func() time.Time
}

// NewMediaService creates a MediaService
func NewMediaService(db *gorm.DB, store storage.Storage, maxBytes int64) *MediaService {
	return &MediaService{db: db, store: store, maxBytes: maxBytes, now: time.Now}
}

func (s *MediaService) objectKey(contentType, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" || len(ext) > 8 {
		ext = allowedMedia[contentType]
	}
	return fmt.Sprintf("media/%s/%s%s", s.now().UTC().Format("2006/01"), uuid.NewString(), ext)
}

// Upload validates and stores a file
func (s *MediaService) Upload(ctx context.Context, in UploadInput) (*domain.Media, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	if _, ok := allowedMedia[contentType]; !ok {
		return nil, invalid("file", "unsupported file type "+contentType)
	}
	if in.Size <= 0 {
		return nil, invalid("file", "is empty")
	}
	if in.Size > s.maxBytes {
		return nil, invalid("file", fmt.Sprintf("exceeds %d bytes", s.maxBytes))
	}

	key := s.objectKey(contentType, in.FileName)
	if err := s.store.Save(ctx, key, io.LimitReader(in.Body, s.maxBytes), contentType); err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}

	m := &domain.Media{
		Key:         key,
		URL:         s.store.URL(key),
		FileName:    path.Base(in.FileName),
		ContentType: contentType,
		Size:        in.Size,
		UploaderID:  in.UploaderID,
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			logrus.WithError(derr).WithField("key", key).Error("Failed to roll back media object")
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"media_id": m.ID, "key": key, "size": m.Size}).Info("Media uploaded")
	return m, nil
}

// List returns media, newest first
func (s *MediaService) List(ctx context.Context, page utils.Page) ([]domain.Media, int64, error) {
	return listPage[domain.Media](ctx, s.db, noScope, "created_at desc", page)
}

// Delete removes the object and its row
func (s *MediaService) Delete(ctx context.Context, id uint) error {
	var m domain.Media
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return notFound(err, "media")
	}
	if err := s.store.Delete(ctx, m.Key); err != nil {
		return fmt.Errorf("delete media object: %w", err)
	}
	return s.db.WithContext(ctx).Delete(&m).Error
}
