package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"content_platform/internal/domain"
	"content_platform/internal/utils"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const ssoStateTTL = 10 * time.Minute

// Identity is what an identity provider tells us about a user
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// SSOProvider is one configured identity provider
type SSOProvider struct {
	Config *oauth2.Config
	// Fetch reads the identity with an authorised client
	Fetch func(ctx context.Context, client *http.Client) (*Identity, error)
}

// SSOCredentials configures the built-in providers
type SSOCredentials struct {
	BaseURL            string
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
}

// SSOService runs the OAuth2 authorization code flow
type SSOService struct {
	rdb       redis.Cmdable
	users     *UserService
	providers map[string]*SSOProvider
}

// NewSSOService registers every provider that has credentials
func NewSSOService(rdb redis.Cmdable, users *UserService, creds SSOCredentials) *SSOService {
	s := &SSOService{rdb: rdb, users: users, providers: map[string]*SSOProvider{}}
	callback := func(name string) string { return creds.BaseURL + "/api/auth/sso/" + name + "/callback" }
	if creds.GitHubClientID != "" {
		s.providers["github"] = &SSOProvider{
			Config: &oauth2.Config{
				ClientID:     creds.GitHubClientID,
				ClientSecret: creds.GitHubClientSecret,
				RedirectURL:  callback("github"),
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
			Fetch: fetchGitHubIdentity,
		}
	}
	if creds.GoogleClientID != "" {
		s.providers["google"] = &SSOProvider{
			Config: &oauth2.Config{
				ClientID:     creds.GoogleClientID,
				ClientSecret: creds.GoogleClientSecret,
				RedirectURL:  callback("google"),
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			Fetch: fetchGoogleIdentity,
		}
	}
	return s
}

// Register adds or replaces a provider
func (s *SSOService) Register(name string, p *SSOProvider) { s.providers[name] = p }

func (s *SSOService) provider(name string) (*SSOProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("sso provider %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// AuthURL starts a login and returns the provider consent URL
func (s *SSOService) AuthURL(ctx context.Context, name string) (string, error) {
	p, err := s.provider(name)
	if err != nil {
		return "", err
	}
	state, err := utils.RandomHex(16)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, "sso:state:"+state, name, ssoStateTTL).Err(); err != nil {
		return "", err
	}
	return p.Config.AuthCodeURL(state), nil
}

// Callback completes a login. The state is single use and bound to the provider.
func (s *SSOService) Callback(ctx context.Context, name, state, code string) (*domain.User, error) {
	p, err := s.provider(name)
	if err != nil {
		return nil, err
	}
	stored, err := s.rdb.GetDel(ctx, "sso:state:"+state).Result()
	if errors.Is(err, redis.Nil) || (err == nil && stored != name) {
		return nil, fmt.Errorf("invalid sso state: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %v: %w", err, ErrUnauthorized)
	}
	id, err := p.Fetch(ctx, p.Config.Client(ctx, tok))
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}
	if id.Email == "" {
		return nil, invalid("email", "identity provider did not return a verified email")
	}
	return s.users.FindOrCreateSSO(ctx, name, id.Subject, id.Email, id.Name)
}

func getJSON(ctx context.Context, client *http.Client, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func fetchGitHubIdentity(ctx context.Context, client *http.Client) (*Identity, error) {
	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &profile); err != nil {
		return nil, err
	}
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
		return nil, err
	}
	id := &Identity{Subject: strconv.FormatInt(profile.ID, 10), Name: profile.Name}
	if id.Name == "" {
		id.Name = profile.Login
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			id.Email = e.Email
		}
	}
	return id, nil
}

func fetchGoogleIdentity(ctx context.Context, client *http.Client) (*Identity, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://openidconnect.googleapis.com/v1/userinfo", &info); err != nil {
		return nil, err
	}
	id := &Identity{Subject: info.Sub, Name: info.Name}
	if info.EmailVerified {
		id.Email = info.Email
	}
	return id, nil
}
