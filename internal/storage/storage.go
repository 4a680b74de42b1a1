// Package storage keeps uploaded media in S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Storage defines the object operations the media library needs
type Storage interface {
	// Save stores the object under key
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	// Delete removes the object
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of the object
	URL(key string) string
}

// S3Config holds bucket settings
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // For R2, MinIO or other S3 compatible services
	AccessKey string
	SecretKey string
	PublicURL string
}

// S3Storage implements Storage on top of the AWS SDK
type S3Storage struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
}

// NewS3Storage creates an S3 backed storage
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for S3 storage")
	}
	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Storage{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
	}, nil
}

// Save uploads the object
func (s *S3Storage) Save(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Delete removes the object
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// URL returns the public URL for key
func (s *S3Storage) URL(key string) string {
	return s.baseURL + "/" + key
}

// MemoryStorage keeps objects in memory. Used in tests and local development.
type MemoryStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
	types   map[string]string
	BaseURL string
	SaveErr error
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{Objects: map[string][]byte{}, types: map[string]string{}, BaseURL: "http://media.local"}
}

// Save stores the object
func (m *MemoryStorage) Save(_ context.Context, key string, body io.Reader, contentType string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = buf.Bytes()
	m.types[key] = contentType
	return nil
}

// Get returns a stored object and its content type
func (m *MemoryStorage) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Objects[key]
	return b, m.types[key], ok
}

// Delete removes the object
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	delete(m.types, key)
	return nil
}

// URL returns the object URL
func (m *MemoryStorage) URL(key string) string { return m.BaseURL + "/" + key }

// Has reports whether key is stored
func (m *MemoryStorage) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[key]
	return ok
}
