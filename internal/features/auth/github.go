package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/vinsmoke-bot/console/internal/config"
)

// githubUserURL is the endpoint the access token is exchanged against for
// the user profile.
const githubUserURL = "https://api.github.com/user"

// OAuthProvider abstracts the GitHub OAuth dance so the service can be
// tested without talking to GitHub.
type OAuthProvider interface {
	// AuthURL returns the consent page URL for the given CSRF state.
	AuthURL(state string) string

	// Exchange trades an authorization code for an access token.
	Exchange(ctx context.Context, code string) (string, error)

	// FetchUser loads the profile of the token's owner.
	FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error)
}

// githubProvider implements OAuthProvider against the real GitHub API.
type githubProvider struct {
	oauth *oauth2.Config
	http  *http.Client
}

// NewGitHubProvider builds the provider from the auth config section.
func NewGitHubProvider(cfg config.AuthConfig, baseURL string) OAuthProvider {
	return &githubProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  baseURL + "/auth/github/callback",
			Scopes:       []string{"read:user"},
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *githubProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *githubProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok.AccessToken, nil
}

func (p *githubProvider) FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubUserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching github user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user endpoint returned %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding github user: %w", err)
	}
	return &user, nil
}
