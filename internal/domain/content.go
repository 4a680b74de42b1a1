package domain

import (
	"time"

	"gorm.io/datatypes" // JSON columns
)

// Post statuses
const (
	PostDraft     = "draft"
	PostScheduled = "scheduled"
	PostPublished = "published"
	PostArchived  = "archived"
)

// Category Model
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Slug        string    `gorm:"uniqueIndex;size:160;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	PostCount   int64     `gorm:"-" json:"post_count"` // Filled by queries, not stored
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Post Model
type Post struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Title       string                      `gorm:"size:255;not null" json:"title"`
	Slug        string                      `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Excerpt     string                      `gorm:"type:text" json:"excerpt"`
	Content     string                      `gorm:"type:text" json:"content,omitempty"`
	CoverImage  string                      `gorm:"size:512" json:"cover_image"`
	Status      string                      `gorm:"size:16;index;default:draft;not null" json:"status"`
	PublishAt   *time.Time                  `gorm:"index" json:"publish_at,omitempty"` // When a scheduled post goes live
	PublishedAt *time.Time                  `gorm:"index" json:"published_at,omitempty"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Views       int64                       `gorm:"default:0" json:"views"`
	AuthorID    uint                        `gorm:"index;not null" json:"author_id"`
	Author      *User                       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"author,omitempty"`
	CategoryID  *uint                       `gorm:"index" json:"category_id,omitempty"`
	Category    *Category                   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// Comment statuses
const (
	CommentPending  = "pending"
	CommentApproved = "approved"
	CommentRejected = "rejected"
	CommentSpam     = "spam"
)

// Comment Model
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	Post      *Post     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;" json:"user,omitempty"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"` // Replies are one level deep
	Content   string    `gorm:"type:text;not null" json:"content"`
	Status    string    `gorm:"size:16;index;default:pending;not null" json:"status"`
	Toxicity  float64   `gorm:"default:0" json:"toxicity"` // Moderation classifier score
	Replies   []Comment `gorm:"-" json:"replies,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project Model
type Project struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Title       string                      `gorm:"size:255;not null" json:"title"`
	Slug        string                      `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Summary     string                      `gorm:"type:text" json:"summary"`
	Description string                      `gorm:"type:text" json:"description,omitempty"`
	RepoURL     string                      `gorm:"size:512" json:"repo_url"`
	LiveURL     string                      `gorm:"size:512" json:"live_url"`
	ImageURL    string                      `gorm:"size:512" json:"image_url"`
	TechStack   datatypes.JSONSlice[string] `json:"tech_stack"`
	Featured    bool                        `gorm:"default:false;index" json:"featured"`
	SortOrder   int                         `gorm:"default:0" json:"sort_order"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// Testimonial Model
type Testimonial struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AuthorName  string    `gorm:"size:128;not null" json:"author_name"`
	AuthorTitle string    `gorm:"size:128" json:"author_title"`
	Company     string    `gorm:"size:128" json:"company"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Rating      int       `gorm:"not null" json:"rating"` // 1 to 5
	Approved    bool      `gorm:"default:false;index" json:"approved"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Media Model
type Media struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"uniqueIndex;size:255;not null" json:"key"` // Object storage key
	URL         string    `gorm:"size:1024;not null" json:"url"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	Size        int64     `json:"size"`
	UploaderID  uint      `gorm:"index" json:"uploader_id"`
	CreatedAt   time.Time `json:"created_at"`
}
