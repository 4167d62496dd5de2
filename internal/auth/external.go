package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/bgrizzle97/socialMedia/internal/config"
)

// ExternalIdentity is an identity already verified by a provider.
type ExternalIdentity struct {
	Provider   string
	ExternalID string
	Email      string
	Name       string
}

// ExternalIdentityProvider exchanges an authorization code for a verified
// identity. Session tokens are minted by the caller, not the provider.
type ExternalIdentityProvider interface {
	Name() string
	Exchange(ctx context.Context, code string) (ExternalIdentity, error)
}

// ProfileDecoder maps a provider's userinfo document to an ExternalIdentity.
type ProfileDecoder func(profile map[string]any) (ExternalIdentity, error)

// OAuth2Provider is an ExternalIdentityProvider backed by an OAuth2 code
// exchange followed by a userinfo request.
type OAuth2Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	decode      ProfileDecoder
	httpClient  *http.Client
}

var _ ExternalIdentityProvider = (*OAuth2Provider)(nil)

// NewOAuth2Provider builds a provider. httpClient may be nil.
func NewOAuth2Provider(name string, cfg *oauth2.Config, userInfoURL string, decode ProfileDecoder, httpClient *http.Client) *OAuth2Provider {
	return &OAuth2Provider{
		name:        name,
		config:      cfg,
		userInfoURL: userInfoURL,
		decode:      decode,
		httpClient:  httpClient,
	}
}

// Name returns the provider key, e.g. "github".
func (p *OAuth2Provider) Name() string {
	return p.name
}

// Exchange trades code for a token and fetches the provider profile.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (ExternalIdentity, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%s: exchange code: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%s: build userinfo request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%s: fetch userinfo: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExternalIdentity{}, fmt.Errorf("%s: userinfo returned status %d", p.name, resp.StatusCode)
	}

	var profile map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return ExternalIdentity{}, fmt.Errorf("%s: decode userinfo: %w", p.name, err)
	}

	identity, err := p.decode(profile)
	if err != nil {
		return ExternalIdentity{}, fmt.Errorf("%s: %w", p.name, err)
	}
	identity.Provider = p.name
	return identity, nil
}

// NewProviders builds every provider that has credentials configured.
func NewProviders(cfgs map[string]config.OAuthProvider) map[string]ExternalIdentityProvider {
	providers := make(map[string]ExternalIdentityProvider)
	for name, c := range cfgs {
		if !c.Enabled() {
			continue
		}
		if p := newKnownProvider(name, c); p != nil {
			providers[name] = p
		}
	}
	return providers
}

func newKnownProvider(name string, c config.OAuthProvider) *OAuth2Provider {
	oc := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
	}

	switch name {
	case "google":
		oc.Endpoint = oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		}
		oc.Scopes = []string{"openid", "email", "profile"}
		return NewOAuth2Provider(name, oc, "https://openidconnect.googleapis.com/v1/userinfo", decodeFields("sub", "email", "name", "email_verified"), nil)
	case "github":
		oc.Endpoint = oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		}
		oc.Scopes = []string{"read:user", "user:email"}
		return NewOAuth2Provider(name, oc, "https://api.github.com/user", decodeFields("id", "email", "login", ""), nil)
	case "discord":
		oc.Endpoint = oauth2.Endpoint{
			AuthURL:  "https://discord.com/api/oauth2/authorize",
			TokenURL: "https://discord.com/api/oauth2/token",
		}
		oc.Scopes = []string{"identify", "email"}
		return NewOAuth2Provider(name, oc, "https://discord.com/api/users/@me", decodeFields("id", "email", "username", "verified"), nil)
	default:
		return nil
	}
}

// decodeFields returns a decoder reading the given keys. When verifiedKey is
// set, a profile whose value for it is false is rejected.
func decodeFields(idKey, emailKey, nameKey, verifiedKey string) ProfileDecoder {
	return func(profile map[string]any) (ExternalIdentity, error) {
		id := stringField(profile, idKey)
		email := strings.TrimSpace(stringField(profile, emailKey))
		if id == "" || email == "" {
			return ExternalIdentity{}, fmt.Errorf("profile is missing id or email")
		}
		if verifiedKey != "" {
			if verified, ok := profile[verifiedKey].(bool); ok && !verified {
				return ExternalIdentity{}, fmt.Errorf("email is not verified")
			}
		}
		return ExternalIdentity{
			ExternalID: id,
			Email:      email,
			Name:       stringField(profile, nameKey),
		}, nil
	}
}

func stringField(profile map[string]any, key string) string {
	switch v := profile[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
