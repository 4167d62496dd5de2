package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/bgrizzle97/socialMedia/internal/config"
)

func newFakeOAuthServer(t *testing.T, profile map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-123","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server, decode ProfileDecoder) *OAuth2Provider {
	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return NewOAuth2Provider("github", cfg, srv.URL+"/userinfo", decode, srv.Client())
}

func TestOAuth2Provider_Exchange(t *testing.T) {
	srv := newFakeOAuthServer(t, map[string]any{"id": 12345, "email": "octo@x.com", "login": "octocat"})
	p := newTestProvider(srv, decodeFields("id", "email", "login", ""))

	identity, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, ExternalIdentity{
		Provider:   "github",
		ExternalID: "12345",
		Email:      "octo@x.com",
		Name:       "octocat",
	}, identity)
}

func TestOAuth2Provider_Exchange_BadCode(t *testing.T) {
	srv := newFakeOAuthServer(t, map[string]any{"id": "1", "email": "a@x.com"})
	p := newTestProvider(srv, decodeFields("id", "email", "login", ""))

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestOAuth2Provider_Exchange_UnverifiedEmail(t *testing.T) {
	srv := newFakeOAuthServer(t, map[string]any{"sub": "1", "email": "a@x.com", "email_verified": false})
	p := newTestProvider(srv, decodeFields("sub", "email", "name", "email_verified"))

	_, err := p.Exchange(context.Background(), "good-code")
	assert.ErrorContains(t, err, "not verified")
}

func TestOAuth2Provider_Exchange_MissingEmail(t *testing.T) {
	srv := newFakeOAuthServer(t, map[string]any{"id": 7, "login": "noemail"})
	p := newTestProvider(srv, decodeFields("id", "email", "login", ""))

	_, err := p.Exchange(context.Background(), "good-code")
	assert.ErrorContains(t, err, "missing id or email")
}

func TestNewProviders_OnlyConfigured(t *testing.T) {
	providers := NewProviders(map[string]config.OAuthProvider{
		"github":  {ClientID: "id", ClientSecret: "secret"},
		"google":  {},
		"myspace": {ClientID: "id", ClientSecret: "secret"},
	})

	require.Len(t, providers, 1)
	assert.Equal(t, "github", providers["github"].Name())
}
