package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"authgate/core"
)

type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AuthBaseURL  string `yaml:"auth_base_url"`
	OAuthBaseURL string `yaml:"oauth_base_url"`
	APIBaseURL   string `yaml:"api_base_url"`
}

type GitHubProvider struct {
	config     *GitHubConfig
	httpClient *http.Client
}

func NewGitHubProvider(config *GitHubConfig) *GitHubProvider {
	if config.AuthBaseURL == "" {
		config.AuthBaseURL = "https://github.com/login/oauth/authorize"
	}
	if config.OAuthBaseURL == "" {
		config.OAuthBaseURL = "https://github.com"
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = "https://api.github.com"
	}
	return &GitHubProvider{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"` // empty when the email is private
	AvatarURL string `json:"avatar_url"`
}

func (g *GitHubProvider) AuthURL(state string) string {
	query := url.Values{}
	query.Set("client_id", g.config.ClientID)
	query.Set("redirect_uri", g.config.RedirectURI)
	query.Set("scope", "read:user user:email")
	query.Set("state", state)
	return g.config.AuthBaseURL + "?" + query.Encode()
}

func (g *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*core.ProviderTokens, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", g.config.ClientID)
	data.Set("client_secret", g.config.ClientSecret)
	data.Set("redirect_uri", g.config.RedirectURI)

	tokenURL := g.config.OAuthBaseURL + "/login/oauth/access_token"
	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		tokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderTokenExchange, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderTokenExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrProviderTokenExchange, resp.StatusCode, string(body))
	}

	var tokenResp githubTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderTokenExchange, err)
	}

	// GitHub tokens do not expire and there is no refresh token.
	return &core.ProviderTokens{
		AccessToken: tokenResp.AccessToken,
	}, nil
}

func (g *GitHubProvider) FetchProfile(ctx context.Context, accessToken string) (*core.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", g.config.APIBaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderProfile, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderProfile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrProviderProfile, resp.StatusCode, string(body))
	}

	var user githubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderProfile, err)
	}

	displayName := user.Name
	if displayName == "" {
		displayName = user.Login
	}

	// A private email leaves Email empty here; the linker rejects the
	// profile with its MissingEmail error in that case.
	return &core.Profile{
		SubjectID:   strconv.FormatInt(user.ID, 10),
		Email:       user.Email,
		DisplayName: displayName,
		Photo:       user.AvatarURL,
	}, nil
}

func (g *GitHubProvider) Provider() core.Provider {
	return core.ProviderGitHub
}
