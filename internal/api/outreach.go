package api

import (
	"net/http" // HTTP status codes
	"time"     // Campaign scheduling

	"content_platform/internal/service" // Business logic

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for the contact form
type ContactRequest struct {
	Name    string `json:"name" binding:"required,max=128"`     // Sender name
	Email   string `json:"email" binding:"required,email"`      // Reply address
	Subject string `json:"subject" binding:"max=255"`           // Optional subject
	Message string `json:"message" binding:"required,max=5000"` // Message body
}

// Request struct for newsletter sign-ups
type SubscribeRequest struct {
	Email string `json:"email" binding:"required,email"` // Subscriber address
}

// Request struct for campaigns
type CampaignRequest struct {
	Subject  string `json:"subject" binding:"required,max=255"` // Mail subject
	BodyHTML string `json:"body_html"`                          // HTML body
	BodyText string `json:"body_text"`                          // Plain text body
}

func (r CampaignRequest) input() service.CampaignInput {
	return service.CampaignInput{Subject: r.Subject, BodyHTML: r.BodyHTML, BodyText: r.BodyText}
}

// Request struct for scheduling a campaign
type ScheduleRequest struct {
	At time.Time `json:"scheduled_at" binding:"required"` // RFC 3339, must be in the future
}

// SubmitContactHandler stores a contact message and notifies the admins
func SubmitContactHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ContactRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		form, err := s.Contacts.Submit(c.Request.Context(), service.ContactInput{
			Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message, IP: c.ClientIP(),
		})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, gin.H{"id": form.ID})
	}
}

// AdminListContactsHandler returns contact messages, filtered by ?status=
func AdminListContactsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		forms, total, err := s.Contacts.List(c.Request.Context(), c.Query("status"), page)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, forms, total, page)
	}
}

// MarkContactHandler moves a contact message to read or archived
func MarkContactHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req StatusRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		form, err := s.Contacts.MarkStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, form)
	}
}

// DeleteContactHandler removes a contact message
func DeleteContactHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Contacts.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// SubscribeHandler starts the double opt-in. The response never reveals whether the address was known.
func SubscribeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubscribeRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		if _, err := s.Subscriptions.Subscribe(c.Request.Context(), req.Email); err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusAccepted, gin.H{"message": "Check your inbox to confirm the subscription"})
	}
}

// ConfirmSubscriptionHandler completes the double opt-in from the mailed link
func ConfirmSubscriptionHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := s.Subscriptions.Confirm(c.Request.Context(), c.Param("token"))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"email": sub.Email, "status": sub.Status})
	}
}

// UnsubscribeHandler removes an address from the newsletter
func UnsubscribeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Subscriptions.Unsubscribe(c.Request.Context(), c.Param("token")); err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"status": "unsubscribed"})
	}
}

// AdminListSubscriptionsHandler returns subscribers, filtered by ?status=
func AdminListSubscriptionsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		subs, total, err := s.Subscriptions.List(c.Request.Context(), c.Query("status"), page)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, subs, total, page)
	}
}

// ListCampaignsHandler returns campaigns, newest first
func ListCampaignsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		campaigns, total, err := s.Campaigns.List(c.Request.Context(), page)
		if err != nil {
			fail(c, err)
			return
		}
		respondPage(c, campaigns, total, page)
	}
}

// GetCampaignHandler returns one campaign
func GetCampaignHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		campaign, err := s.Campaigns.Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, campaign)
	}
}

// CreateCampaignHandler drafts a campaign
func CreateCampaignHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CampaignRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		campaign, err := s.Campaigns.Create(c.Request.Context(), req.input())
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, campaign)
	}
}

// UpdateCampaignHandler edits a draft campaign
func UpdateCampaignHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req CampaignRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		campaign, err := s.Campaigns.Update(c.Request.Context(), id, req.input())
		if err != nil {
			fail(c, err) // Anything but a draft is a conflict
			return
		}
		respond(c, http.StatusOK, campaign)
	}
}

// ScheduleCampaignHandler queues a campaign for the minutely cron run
func ScheduleCampaignHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ScheduleRequest // Bind JSON request to struct
		if !bind(c, &req) {
			return
		}
		campaign, err := s.Campaigns.Schedule(c.Request.Context(), id, req.At)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, campaign)
	}
}

// SendCampaignHandler mails a campaign to every confirmed subscriber now
func SendCampaignHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		result, err := s.Campaigns.Send(c.Request.Context(), id)
		if err != nil {
			fail(c, err) // Already sending or sent is a conflict
			return
		}
		respond(c, http.StatusOK, result)
	}
}

// DeleteCampaignHandler removes a campaign that is not being sent
func DeleteCampaignHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := s.Campaigns.Delete(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
