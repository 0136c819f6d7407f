package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Auth types.
const (
	AuthNone   = "none"
	AuthAPIKey = "api_key"
	AuthBearer = "bearer"
	AuthOAuth2 = "oauth2"
)

// refreshSkew is how early a cached OAuth2 token is considered expired.
const refreshSkew = 55 * time.Second

// AuthConfig configures how requests to a source are authenticated.
type AuthConfig struct {
	Type string `yaml:"type"`
	// api_key
	Header string `yaml:"header"`
	Key    string `yaml:"key"`
	// bearer
	Token string `yaml:"token"`
	// oauth2 client credentials
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

// authenticator attaches credentials to an outgoing request.
type authenticator interface {
	authenticate(ctx context.Context, req *http.Request) error
}

// newAuthenticator builds the authenticator for a config. An empty type
// means no authentication.
func newAuthenticator(cfg AuthConfig, client *http.Client) (authenticator, error) {
	switch cfg.Type {
	case "", AuthNone:
		return noAuth{}, nil
	case AuthAPIKey:
		if cfg.Key == "" {
			return nil, fmt.Errorf("auth: api_key requires a key")
		}
		header := cfg.Header
		if header == "" {
			header = "X-API-Key"
		}
		return apiKeyAuth{header: header, key: cfg.Key}, nil
	case AuthBearer:
		if cfg.Token == "" {
			return nil, fmt.Errorf("auth: bearer requires a token")
		}
		return bearerAuth{token: cfg.Token}, nil
	case AuthOAuth2:
		if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("auth: oauth2 requires token_url, client_id and client_secret")
		}
		return &oauth2Auth{cfg: cfg, client: client}, nil
	default:
		return nil, fmt.Errorf("auth: unknown type %q", cfg.Type)
	}
}

type noAuth struct{}

func (noAuth) authenticate(context.Context, *http.Request) error { return nil }

type apiKeyAuth struct {
	header string
	key    string
}

func (a apiKeyAuth) authenticate(_ context.Context, req *http.Request) error {
	req.Header.Set(a.header, a.key)
	return nil
}

type bearerAuth struct {
	token string
}

func (a bearerAuth) authenticate(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

// oauth2Auth implements the client-credentials grant with a cached access
// token. The token is reused until refreshSkew before its expiry so a
// request never goes out with a token about to lapse mid-flight.
type oauth2Auth struct {
	cfg    AuthConfig
	client *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (a *oauth2Auth) authenticate(ctx context.Context, req *http.Request) error {
	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *oauth2Auth) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Now().Before(a.expires.Add(-refreshSkew)) {
		return a.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientSecret},
	}
	if a.cfg.Scope != "" {
		form.Set("scope", a.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauth2: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth2: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth2: token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("oauth2: decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("oauth2: token endpoint returned no access_token")
	}

	a.token = body.AccessToken
	a.expires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return a.token, nil
}
