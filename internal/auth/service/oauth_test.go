package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moviestream/auth/internal/auth/service"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// stubProvider runs a fake identity provider: a token endpoint that accepts
// the code "good-code" and a userinfo endpoint serving a fixed profile.
func stubProvider(t *testing.T, identity map[string]string) (*service.Provider, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "upstream-token",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(identity)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := &service.Provider{
		Name: "stub",
		Config: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/authorize",
				TokenURL: srv.URL + "/token",
			},
		},
		UserInfoURL: srv.URL + "/userinfo",
		Decode: func(body []byte) (service.Identity, error) {
			var payload struct {
				ID        string `json:"id"`
				Email     string `json:"email"`
				FirstName string `json:"first_name"`
				LastName  string `json:"last_name"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return service.Identity{}, err
			}
			return service.Identity{
				ID:        payload.ID,
				Email:     payload.Email,
				FirstName: payload.FirstName,
				LastName:  payload.LastName,
			}, nil
		},
	}
	return p, srv
}

func newOAuthEnv(t *testing.T, identity map[string]string) (*testEnv, *service.OAuthService) {
	t.Helper()

	env := newTestEnv(t)
	provider, srv := stubProvider(t, identity)

	oauth := &service.OAuthService{
		Store:      env.store,
		Tokens:     env.tokens,
		Providers:  map[string]*service.Provider{"stub": provider},
		HTTPClient: srv.Client(),
	}
	return env, oauth
}

func TestOAuthSignIn(t *testing.T) {
	env, oauth := newOAuthEnv(t, map[string]string{
		"id":         "prov-uid-1",
		"email":      "fed@example.com",
		"first_name": "Fed",
		"last_name":  "User",
	})
	ctx := context.Background()

	t.Run("first sign-in creates the account", func(t *testing.T) {
		pair, err := oauth.SignIn(ctx, "stub", "good-code", "203.0.113.9")
		require.NoError(t, err)

		userID, err := env.tokens.VerifyAccess(ctx, pair.AccessToken)
		require.NoError(t, err)

		user, err := env.users.GetByID(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, "fed@example.com", user.Email)
		require.Equal(t, "Fed", user.FirstName)

		links, err := env.store.SocialAccounts().ListForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, links, 1)
		require.Equal(t, "prov-uid-1", links[0].SocialID)
	})

	t.Run("repeat sign-in reuses the same account", func(t *testing.T) {
		pair, err := oauth.SignIn(ctx, "stub", "good-code", "")
		require.NoError(t, err)

		userID, err := env.tokens.VerifyAccess(ctx, pair.AccessToken)
		require.NoError(t, err)

		links, err := env.store.SocialAccounts().ListForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, links, 1)
	})

	t.Run("bad code maps to provider unavailable", func(t *testing.T) {
		_, err := oauth.SignIn(ctx, "stub", "bad-code", "")
		require.ErrorIs(t, err, service.ErrProviderUnavailable)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := oauth.SignIn(ctx, "github", "good-code", "")
		require.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestOAuthSignInAttachesToExistingEmail(t *testing.T) {
	env, oauth := newOAuthEnv(t, map[string]string{
		"id":    "prov-uid-2",
		"email": "existing@example.com",
	})
	ctx := context.Background()

	local := env.mustCreateUser(t, "existing@example.com", "Secret123")

	pair, err := oauth.SignIn(ctx, "stub", "good-code", "")
	require.NoError(t, err)

	userID, err := env.tokens.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, local.ID, userID)

	// The original password still works after linking.
	_, err = env.tokens.Login(ctx, "existing@example.com", "Secret123", "")
	require.NoError(t, err)
}

func TestOAuthAuthURL(t *testing.T) {
	_, oauth := newOAuthEnv(t, nil)

	url, err := oauth.AuthURL("stub", "state-123")
	require.NoError(t, err)
	require.Contains(t, url, "state=state-123")
	require.Contains(t, url, "client_id=client-id")

	_, err = oauth.AuthURL("github", "state-123")
	require.ErrorIs(t, err, service.ErrNotFound)
}
