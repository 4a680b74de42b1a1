package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"content_platform/internal/api"
	"content_platform/internal/app"
	"content_platform/internal/config"
	"content_platform/internal/domain"
	"content_platform/internal/geo"
	"content_platform/internal/mail"
	"content_platform/internal/middleware"
	"content_platform/internal/moderation"
	"content_platform/internal/push"
	"content_platform/internal/sms"
	"content_platform/internal/storage"
	"content_platform/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const cronSecret = "cron-secret"

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t        *testing.T
	router   *gin.Engine
	services *api.Services
	db       *gorm.DB
	mr       *miniredis.Miniredis
	mailer   *mail.Recorder
	store    *storage.MemoryStorage
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:          "https://example.test",
		JWTSecret:        "jwt-secret",
		SessionTTL:       time.Hour,
		SessionCookie:    "session",
		CSRFSecret:       "csrf-secret",
		RateLimitGlobal:  1000,
		RateLimitAuth:    1000,
		RateLimitForms:   1000,
		OTPTTL:           5 * time.Minute,
		OTPMaxAttempts:   5,
		StepUpWindow:     15 * time.Minute,
		AdminEmails:      []string{"owner@example.com"},
		MediaMaxBytes:    1 << 20,
		IPHashSalt:       "pepper",
		ViewRetention:    24 * time.Hour,
		ModerationSpam:   0.9,
		ModerationReview: 0.5,
		CronSecret:       cronSecret,
	}
}

func newHarness(t *testing.T, tweak ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	for _, f := range tweak {
		f(cfg)
	}
	gdb := testutil.NewDB(t)
	rdb, mr := testutil.NewRedis(t)
	h := &harness{t: t, db: gdb, mr: mr, mailer: &mail.Recorder{}, store: storage.NewMemoryStorage()}
	h.store.BaseURL = cfg.BaseURL + "/media"
	services := app.Build(cfg, gdb, rdb, &app.Collaborators{
		Mailer:     h.mailer,
		SMS:        &sms.Recorder{},
		Push:       push.Noop{},
		Storage:    h.store,
		Locator:    geo.NoopLocator{},
		Classifier: moderation.NoopClassifier{},
	})
	require.NoError(t, api.RegisterValidators())
	h.services = services
	h.router = gin.New()
	api.RegisterRoutes(h.router, services)
	return h
}

type response struct {
	Code    int
	Header  http.Header
	Cookies []*http.Cookie
	Body    map[string]any
}

func (r response) data() map[string]any {
	d, _ := r.Body["data"].(map[string]any)
	return d
}

// do sends a JSON request, authenticated with a bearer token when one is given
func (h *harness) do(method, path string, body any, token string) response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.serve(req)
}

func (h *harness) serve(req *http.Request) response {
	h.t.Helper()
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	out := response{Code: w.Code, Header: w.Header(), Cookies: w.Result().Cookies()}
	if w.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &out.Body), w.Body.String())
	}
	return out
}

// login signs in with the testutil password and returns the bearer token
func (h *harness) login(email string) string {
	h.t.Helper()
	res := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": "password123"}, "")
	require.Equal(h.t, http.StatusOK, res.Code, res.Body)
	return res.data()["token"].(string)
}

func (h *harness) lastCode() string {
	h.t.Helper()
	msgs := h.mailer.Messages()
	require.NotEmpty(h.t, msgs)
	m := codePattern.FindStringSubmatch(msgs[len(msgs)-1].Text)
	require.Len(h.t, m, 2)
	return m[1]
}

// stepUp verifies an emailed step-up code on the session behind token
func (h *harness) stepUp(token string) {
	h.t.Helper()
	res := h.do(http.MethodPost, "/api/auth/otp/step-up", nil, token)
	require.Equal(h.t, http.StatusAccepted, res.Code, res.Body)
	res = h.do(http.MethodPost, "/api/auth/otp/verify", gin.H{
		"challenge_id": res.data()["challenge_id"], "code": h.lastCode(), "purpose": "step_up",
	}, token)
	require.Equal(h.t, http.StatusOK, res.Code, res.Body)
}

func TestRegisterLoginAndMe(t *testing.T) {
	h := newHarness(t)

	res := h.do(http.MethodPost, "/api/auth/register", gin.H{
		"email": "Nina@Example.com", "username": "nina", "password": "longenough",
	}, "")
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	var session *http.Cookie
	for _, c := range res.Cookies {
		if c.Name == "session" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	res = h.do(http.MethodPost, "/api/auth/register", gin.H{
		"email": "nina@example.com", "username": "nina2", "password": "longenough",
	}, "")
	assert.Equal(t, http.StatusConflict, res.Code)

	token := h.login("nina@example.com")
	res = h.do(http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, res.Code)
	user := res.data()["user"].(map[string]any)
	assert.Equal(t, "nina@example.com", user["email"])
	assert.NotContains(t, user, "password")

	res = h.do(http.MethodGet, "/api/auth/sessions", nil, token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 2) // Registration and login

	res = h.do(http.MethodPost, "/api/auth/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = h.do(http.MethodGet, "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodPost, "/api/auth/register", gin.H{"email": "nope", "username": "x", "password": "short"}, "")
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Validation failed", res.Body["message"])
	errs := res.Body["errors"].(map[string]any)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "password")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "olga", domain.RoleUser)
	res := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "olga@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.NotEmpty(t, res.Body["message"])
}

func TestLoginWithEmailOTP(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "olga", domain.RoleUser)
	require.NoError(t, h.db.Model(user).Update("otp_method", domain.OTPMethodEmail).Error)

	res := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "olga@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusAccepted, res.Code, res.Body)
	challenge := res.data()["challenge_id"].(string)
	assert.Equal(t, "email", res.data()["method"])
	assert.NotContains(t, res.data(), "token")

	code := h.lastCode()
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	res = h.do(http.MethodPost, "/api/auth/otp/verify", gin.H{"challenge_id": challenge, "code": wrong}, "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = h.do(http.MethodPost, "/api/auth/otp/verify", gin.H{"challenge_id": challenge, "code": code}, "")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	token := res.data()["token"].(string)

	res = h.do(http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotNil(t, res.data()["session"].(map[string]any)["otp_verified_at"])

	// The challenge is single use
	res = h.do(http.MethodPost, "/api/auth/otp/verify", gin.H{"challenge_id": challenge, "code": code}, "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestOTPMethodAndPassword(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "olga", domain.RoleUser)
	token := h.login("olga@example.com")

	res := h.do(http.MethodPost, "/api/auth/otp/method", gin.H{"method": "sms"}, token)
	assert.Equal(t, http.StatusBadRequest, res.Code) // No phone yet

	res = h.do(http.MethodPut, "/api/users/me", gin.H{"phone": "+4915112345678"}, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = h.do(http.MethodPost, "/api/auth/otp/method", gin.H{"method": "sms"}, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = h.do(http.MethodPost, "/api/auth/otp/method", gin.H{"method": "none"}, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	res = h.do(http.MethodPut, "/api/auth/password", gin.H{"current_password": "nope", "new_password": "brand-new-pass"}, token)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = h.do(http.MethodPut, "/api/auth/password", gin.H{"current_password": "password123", "new_password": "brand-new-pass"}, token)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "olga@example.com", "password": "brand-new-pass"}, "")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestAuthenticatorNeedsCodeToDisable(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "tess", domain.RoleUser)
	token := h.login("tess@example.com")

	res := h.do(http.MethodPost, "/api/auth/totp/enroll", nil, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	secret := res.data()["secret"].(string)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	res = h.do(http.MethodPost, "/api/auth/totp/confirm", gin.H{"code": code}, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	for _, method := range []string{"none", "email"} {
		res = h.do(http.MethodPost, "/api/auth/otp/method", gin.H{"method": method}, token)
		assert.Equal(t, http.StatusConflict, res.Code, method)
	}
	var user domain.User
	require.NoError(t, h.db.First(&user, "email = ?", "tess@example.com").Error)
	assert.Equal(t, domain.OTPMethodTOTP, user.OTPMethod)
	assert.Equal(t, secret, user.TOTPSecret)

	res = h.do(http.MethodPost, "/api/auth/totp/disable", gin.H{"code": code}, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = h.do(http.MethodPost, "/api/auth/otp/method", gin.H{"method": "email"}, token)
	assert.Equal(t, http.StatusOK, res.Code, res.Body)
}

func TestCSRFForCookieSessions(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "olga", domain.RoleUser)
	token := h.login("olga@example.com")

	logout := func(csrfCookie, csrfHeader string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		if csrfCookie != "" {
			req.AddCookie(&http.Cookie{Name: middleware.CSRFCookie, Value: csrfCookie})
		}
		if csrfHeader != "" {
			req.Header.Set(middleware.CSRFHeader, csrfHeader)
		}
		return h.serve(req).Code
	}

	assert.Equal(t, http.StatusForbidden, logout("", ""))

	res := h.do(http.MethodGet, "/api/auth/csrf", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	csrf := res.data()["csrf_token"].(string)
	var cookie *http.Cookie
	for _, c := range res.Cookies {
		if c.Name == middleware.CSRFCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.False(t, cookie.HttpOnly) // The front-end echoes it in a header

	assert.Equal(t, http.StatusForbidden, logout(csrf, "forged.token"))
	assert.Equal(t, http.StatusNoContent, logout(csrf, csrf))
}

func TestAuthRateLimit(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RateLimitAuth = 2 })
	body := gin.H{"email": "ghost@example.com", "password": "whatever1"}
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/login", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/login", body, "").Code)
	res := h.do(http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.NotEmpty(t, res.Header.Get("Retry-After"))

	// Other buckets are unaffected
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/posts", nil, "").Code)
}

func TestAdminAccessAndStepUp(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	member := testutil.CreateUser(t, h.db, "olga", domain.RoleUser)
	memberToken := h.login("olga@example.com")
	adminToken := h.login("admin@example.com")

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/admin/users", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/users", nil, memberToken).Code)

	res := h.do(http.MethodGet, "/api/admin/users?page=1&page_size=1", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code)
	meta := res.Body["meta"].(map[string]any)
	assert.EqualValues(t, 2, meta["total"])
	assert.EqualValues(t, 2, meta["total_pages"])

	rolePath := "/api/admin/users/" + itoa(member.ID) + "/role"
	res = h.do(http.MethodPut, rolePath, gin.H{"role": "admin"}, adminToken)
	require.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, true, res.Body["step_up_required"])

	h.stepUp(adminToken)
	res = h.do(http.MethodPut, rolePath, gin.H{"role": "admin"}, adminToken)
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	// The member's live session picked up the new role
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/admin/users", nil, memberToken).Code)

	res = h.do(http.MethodDelete, "/api/admin/users/"+itoa(member.ID), nil, adminToken)
	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", nil, memberToken).Code)
}

func TestPostsAndComments(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	testutil.CreateUser(t, h.db, "olga", domain.RoleUser)
	adminToken := h.login("admin@example.com")
	readerToken := h.login("olga@example.com")

	res := h.do(http.MethodPost, "/api/admin/categories", gin.H{"name": "Go"}, adminToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	catID := res.data()["id"]

	res = h.do(http.MethodPost, "/api/admin/posts", gin.H{
		"title": "Hello World", "content": "First post", "status": "published", "tags": []string{"Intro"}, "category_id": catID,
	}, adminToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, "hello-world", res.data()["slug"])

	res = h.do(http.MethodPost, "/api/admin/posts", gin.H{"title": "Secret", "status": "draft"}, adminToken)
	require.Equal(t, http.StatusCreated, res.Code)

	res = h.do(http.MethodPost, "/api/admin/posts", gin.H{"title": "Bad", "slug": "Not A Slug"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(http.MethodGet, "/api/posts?category=go", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)
	assert.EqualValues(t, 1, res.Body["meta"].(map[string]any)["total"])

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/posts/secret", nil, "").Code)
	res = h.do(http.MethodGet, "/api/posts/hello-world", nil, "")
	require.Equal(t, http.StatusOK, res.Code)

	res = h.do(http.MethodGet, "/api/admin/posts/stats", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 2, res.data()["total"])

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/posts/hello-world/comments", gin.H{"content": "Hi"}, "").Code)
	res = h.do(http.MethodPost, "/api/posts/hello-world/comments", gin.H{"content": "Nice <script>x</script>post"}, readerToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, domain.CommentApproved, res.data()["status"])
	assert.NotContains(t, res.data()["content"], "<script>")
	commentID := int(res.data()["id"].(float64))

	res = h.do(http.MethodGet, "/api/posts/hello-world/comments", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)

	res = h.do(http.MethodPut, "/api/admin/comments/"+itoa(uint(commentID))+"/status", gin.H{"status": "rejected"}, adminToken)
	require.Equal(t, http.StatusOK, res.Code)
	res = h.do(http.MethodGet, "/api/posts/hello-world/comments", nil, "")
	assert.Len(t, res.Body["data"], 0)

	res = h.do(http.MethodDelete, "/api/comments/"+itoa(uint(commentID)), nil, readerToken)
	assert.Equal(t, http.StatusNoContent, res.Code)

	// Only the author or an admin may delete a comment
	res = h.do(http.MethodPost, "/api/posts/hello-world/comments", gin.H{"content": "Second thoughts"}, readerToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	second := uint(res.data()["id"].(float64))
	testutil.CreateUser(t, h.db, "mallory", domain.RoleUser)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/api/comments/"+itoa(second), nil, h.login("mallory@example.com")).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/comments/"+itoa(second), nil, adminToken).Code)

	// A category in use cannot be deleted
	res = h.do(http.MethodDelete, "/api/admin/categories/"+itoa(uint(catID.(float64))), nil, adminToken)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestPortfolioAndTestimonials(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	adminToken := h.login("admin@example.com")

	res := h.do(http.MethodPost, "/api/admin/projects", gin.H{
		"title": "Tracker", "repo_url": "https://github.com/example/tracker", "featured": true, "tech_stack": []string{"Go"},
	}, adminToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	res = h.do(http.MethodGet, "/api/projects?featured=true", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/projects/tracker", nil, "").Code)

	res = h.do(http.MethodPost, "/api/testimonials", gin.H{"author_name": "Ana", "content": "Great work", "rating": 6}, "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = h.do(http.MethodPost, "/api/testimonials", gin.H{"author_name": "Ana", "content": "Great work", "rating": 5}, "")
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	id := uint(res.data()["id"].(float64))

	res = h.do(http.MethodGet, "/api/testimonials", nil, "")
	assert.Len(t, res.Body["data"], 0) // Awaiting approval

	res = h.do(http.MethodPut, "/api/admin/testimonials/"+itoa(id)+"/approval", gin.H{"approved": true}, adminToken)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = h.do(http.MethodGet, "/api/testimonials", nil, "")
	assert.Len(t, res.Body["data"], 1)
}

func TestContactAndNewsletter(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	adminToken := h.login("admin@example.com")

	res := h.do(http.MethodPost, "/api/contact", gin.H{"name": "Ana", "email": "ana@example.com", "message": "Hello there"}, "")
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	res = h.do(http.MethodGet, "/api/admin/contacts?status=new", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)

	res = h.do(http.MethodPost, "/api/newsletter/subscribe", gin.H{"email": "reader@example.com"}, "")
	require.Equal(t, http.StatusAccepted, res.Code, res.Body)
	msgs := h.mailer.Messages()
	confirm := msgs[len(msgs)-1].Text // Ends with the link
	i := strings.Index(confirm, "/api/newsletter/confirm/")
	require.GreaterOrEqual(t, i, 0)
	token := confirm[i+len("/api/newsletter/confirm/"):]

	res = h.do(http.MethodGet, "/api/newsletter/confirm/"+token, nil, "")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, domain.SubscriptionConfirmed, res.data()["status"])
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/newsletter/confirm/unknown", nil, "").Code)

	res = h.do(http.MethodPost, "/api/admin/campaigns", gin.H{"subject": "Issue 1", "body_text": "News"}, adminToken)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	id := uint(res.data()["id"].(float64))
	res = h.do(http.MethodPost, "/api/admin/campaigns/"+itoa(id)+"/send", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.EqualValues(t, 1, res.data()["sent"])

	res = h.do(http.MethodPut, "/api/admin/campaigns/"+itoa(id), gin.H{"subject": "Too late"}, adminToken)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = h.do(http.MethodGet, "/api/newsletter/unsubscribe/"+token, nil, "")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestMediaUpload(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	adminToken := h.login("admin@example.com")

	upload := func(contentType string) response {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="cover.png"`)
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, _ = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/admin/media", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+adminToken)
		return h.serve(req)
	}

	res := upload("application/x-msdownload")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = upload("image/png")
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	key := res.data()["key"].(string)
	assert.True(t, h.store.Has(key))

	fileURL, err := url.Parse(res.data()["url"].(string))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fileURL.Path, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake image", w.Body.String())

	res = h.do(http.MethodGet, "/api/admin/media", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 1)

	id := uint(res.Body["data"].([]any)[0].(map[string]any)["id"].(float64))
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/admin/media/"+itoa(id), nil, adminToken).Code)
	assert.False(t, h.store.Has(key))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, fileURL.Path, nil, "").Code)
}

func TestAnalytics(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	adminToken := h.login("admin@example.com")

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/analytics/view", gin.H{"path": "no-slash"}, "").Code)
	for i := 0; i < 3; i++ {
		res := h.do(http.MethodPost, "/api/analytics/view", gin.H{"path": "/blog"}, "")
		require.Equal(t, http.StatusNoContent, res.Code, res.Body)
	}

	res := h.do(http.MethodGet, "/api/admin/analytics/summary", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.EqualValues(t, 3, res.data()["total_views"])
	assert.EqualValues(t, 1, res.data()["unique_visitors"])

	res = h.do(http.MethodGet, "/api/admin/analytics/heatmap?precision=9", nil, adminToken)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 4, res.data()["precision"])

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/admin/analytics/summary?from=yesterday", nil, adminToken).Code)
}

func TestCronTrigger(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/cron/hourly", nil, "wrong").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/cron/yearly", nil, cronSecret).Code)

	res := h.do(http.MethodPost, "/api/cron/daily", nil, cronSecret)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "daily", res.data()["frequency"])
	assert.Len(t, res.data()["results"], 2)

	disabled := newHarness(t, func(c *config.Config) { c.CronSecret = "" })
	assert.Equal(t, http.StatusNotFound, disabled.do(http.MethodPost, "/api/cron/daily", nil, cronSecret).Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	res := h.do(http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.data()["healthy"])

	h.mr.SetError("down")
	res = h.do(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestPushSubscriptions(t *testing.T) {
	h := newHarness(t)
	testutil.CreateUser(t, h.db, "admin", domain.RoleAdmin)
	token := h.login("admin@example.com")

	sub := gin.H{"endpoint": "https://push.example.com/abc", "keys": gin.H{"p256dh": "key", "auth": "secret"}}
	res := h.do(http.MethodPost, "/api/users/me/push", sub, token)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)

	var n int64
	require.NoError(t, h.db.WithContext(context.Background()).Model(&domain.PushSubscription{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	res = h.do(http.MethodDelete, "/api/users/me/push", gin.H{"endpoint": "https://push.example.com/abc"}, token)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = h.do(http.MethodDelete, "/api/users/me/push", gin.H{"endpoint": "https://push.example.com/abc"}, token)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
