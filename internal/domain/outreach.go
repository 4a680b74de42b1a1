package domain

import "time"

// Contact form statuses
const (
	ContactNew      = "new"
	ContactRead     = "read"
	ContactArchived = "archived"
)

// ContactForm Model
type ContactForm struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Subject   string    `gorm:"size:255" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IP        string    `gorm:"size:64" json:"ip"`
	Status    string    `gorm:"size:16;index;default:new;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Newsletter subscription statuses
const (
	SubscriptionPending      = "pending"
	SubscriptionConfirmed    = "confirmed"
	SubscriptionUnsubscribed = "unsubscribed"
)

// Subscription Model (newsletter)
type Subscription struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Status         string     `gorm:"size:16;index;default:pending;not null" json:"status"`
	Token          string     `gorm:"uniqueIndex;size:64;not null" json:"-"` // Confirm/unsubscribe token
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Campaign statuses
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignFailed    = "failed"
)

// Campaign Model (newsletter issue)
type Campaign struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Subject     string     `gorm:"size:255;not null" json:"subject"`
	BodyHTML    string     `gorm:"type:text" json:"body_html"`
	BodyText    string     `gorm:"type:text" json:"body_text"`
	Status      string     `gorm:"size:16;index;default:draft;not null" json:"status"`
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	SentCount   int        `gorm:"default:0" json:"sent_count"`
	FailedCount int        `gorm:"default:0" json:"failed_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PushSubscription Model (browser web push endpoint)
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Endpoint  string    `gorm:"uniqueIndex;size:512;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:255;not null" json:"-"`
	Auth      string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// PageView Model (analytics)
type PageView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Path      string    `gorm:"size:512;index;not null" json:"path"`
	Referrer  string    `gorm:"size:512" json:"referrer"`
	IPHash    string    `gorm:"size:64;index" json:"-"` // Salted hash, the raw IP is never stored
	Country   string    `gorm:"size:2;index" json:"country"`
	City      string    `gorm:"size:128" json:"city"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// All returns every model managed by migrations
func All() []any {
	return []any{
		&User{}, &Category{}, &Post{}, &Comment{}, &Project{}, &Testimonial{}, &Media{},
		&ContactForm{}, &Subscription{}, &Campaign{}, &PushSubscription{}, &PageView{},
	}
}
