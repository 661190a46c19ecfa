package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	redisc "github.com/moviestream/auth/internal/auth/cache/redis"
	authhttp "github.com/moviestream/auth/internal/auth/http"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/internal/auth/store/drivers/sqlite"
	"github.com/moviestream/auth/pkg/cryptox"
	"github.com/moviestream/auth/pkg/jwtx"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type apiEnv struct {
	router *authhttp.Router
	server *httptest.Server
	redis  *miniredis.Miniredis
	tokens *service.TokenService
	roles  *service.RolesService
	users  *service.UserService
}

func newAPIEnv(t *testing.T) *apiEnv {
	return newAPIEnvCeiling(t, 1000)
}

func newAPIEnvCeiling(t *testing.T, ceiling int64) *apiEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	srv := miniredis.RunT(t)
	sessions := redisc.NewWithClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = sessions.Close() })

	tokens := &service.TokenService{
		Store:        st,
		Cache:        sessions,
		AccessCodec:  jwtx.NewCodec([]byte("access-secret")),
		RefreshCodec: jwtx.NewCodec([]byte("refresh-secret")),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
	}
	users := &service.UserService{Store: st}
	roles := &service.RolesService{Store: st}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := authhttp.NewRouter("test", st, sessions, logger)
	router.TokenService = tokens
	router.UserService = users
	router.RolesService = roles
	router.OAuthService = &service.OAuthService{
		Store:     st,
		Tokens:    tokens,
		Providers: map[string]*service.Provider{},
	}
	router.RequestCeiling = ceiling
	router.ApplyRoutes()

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &apiEnv{
		router: router,
		server: ts,
		redis:  srv,
		tokens: tokens,
		roles:  roles,
		users:  users,
	}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSignupAndLoginFlow(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("signup", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/signup", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Secret123",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "admin@example.com", body["email"])
	})

	t.Run("duplicate signup", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/signup", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Other456",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "email_taken", body["error"])
	})

	var access, refresh string

	t.Run("login", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Secret123",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "bearer", body["token_type"])

		access = body["access_token"].(string)
		refresh = body["refresh_token"].(string)
		require.NotEmpty(t, access)
		require.NotEmpty(t, refresh)
	})

	t.Run("form login", func(t *testing.T) {
		form := url.Values{}
		form.Set("username", "admin@example.com")
		form.Set("password", "Secret123")

		resp, err := http.Post(env.server.URL+"/api/v1/auth/login",
			"application/x-www-form-urlencoded",
			strings.NewReader(form.Encode()))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.NotEmpty(t, body["access_token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "Incorrect username or password", body["error_description"])
	})

	t.Run("me", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/v1/users/me", access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "admin@example.com", body["email"])
	})

	t.Run("me with undefined token", func(t *testing.T) {
		resp, _ := env.do(t, "GET", "/api/v1/users/me", "undefined", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login history", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/v1/users/login-history?page_number=1&page_size=10", access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, body["items"], 2)
	})

	t.Run("change credentials", func(t *testing.T) {
		resp, _ := env.do(t, "PATCH", "/api/v1/users/change-login-password", access, map[string]string{
			"new_password": "Rotated456",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = env.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Secret123",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = env.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
			"email":    "admin@example.com",
			"password": "Rotated456",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRefreshRotation(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, "viewer@example.com", "Secret123", "", "")
	require.NoError(t, err)

	resp, body := env.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "viewer@example.com",
		"password": "Secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refresh := body["refresh_token"].(string)

	t.Run("first refresh succeeds", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{
			"refresh_token": refresh,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEqual(t, refresh, body["refresh_token"])
	})

	t.Run("second refresh with the same token fails", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{
			"refresh_token": refresh,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "must_relogin", body["error"])
	})
}

func TestLogoutFlow(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, "leaver@example.com", "Secret123", "", "")
	require.NoError(t, err)

	_, body := env.do(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "leaver@example.com",
		"password": "Secret123",
	})
	access := body["access_token"].(string)
	refresh := body["refresh_token"].(string)

	resp, body := env.do(t, "POST", "/api/v1/auth/logout", access, map[string]string{
		"refresh_token": refresh,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body)

	t.Run("access token is dead", func(t *testing.T) {
		resp, _ := env.do(t, "GET", "/api/v1/users/me", access, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("second logout still succeeds", func(t *testing.T) {
		resp, _ := env.do(t, "POST", "/api/v1/auth/logout", access, map[string]string{
			"refresh_token": refresh,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh token is dead", func(t *testing.T) {
		resp, _ := env.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{
			"refresh_token": refresh,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRoleEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	// Seed an admin role and a user holding it straight through the
	// services; the HTTP surface is what is under test.
	boss, err := env.users.Register(ctx, "boss@example.com", "Secret123", "", "")
	require.NoError(t, err)
	adminRole, err := env.roles.CreateRole(ctx, "admin", 100)
	require.NoError(t, err)
	require.NoError(t, env.roles.Assign(ctx, boss.ID, adminRole.ID))

	peon, err := env.users.Register(ctx, "peon@example.com", "Secret123", "", "")
	require.NoError(t, err)

	bossPair, err := env.tokens.IssueFor(ctx, boss.ID)
	require.NoError(t, err)
	peonPair, err := env.tokens.IssueFor(ctx, peon.ID)
	require.NoError(t, err)

	t.Run("non-admin cannot manage roles", func(t *testing.T) {
		resp, _ := env.do(t, "POST", "/api/v1/roles/create", peonPair.AccessToken, map[string]any{
			"title": "editor", "permissions": 20,
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	var editorID string

	t.Run("admin creates a role", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/roles/create", bossPair.AccessToken, map[string]any{
			"title": "editor", "permissions": 20,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		editorID = body["id"].(string)
	})

	t.Run("title too short", func(t *testing.T) {
		resp, _ := env.do(t, "POST", "/api/v1/roles/create", bossPair.AccessToken, map[string]any{
			"title": "ed", "permissions": 1,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate title", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/roles/create", bossPair.AccessToken, map[string]any{
			"title": "Editor", "permissions": 5,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "role_title_taken", body["error"])
	})

	t.Run("assign and list", func(t *testing.T) {
		resp, _ := env.do(t, "POST", "/api/v1/users/add-role", bossPair.AccessToken, map[string]string{
			"user_id": peon.ID, "role_id": editorID,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := env.do(t, "GET",
			"/api/v1/users/roles?user_id="+peon.ID,
			bossPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, body["roles"], 1)
	})

	t.Run("double assign is forbidden", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/users/add-role", bossPair.AccessToken, map[string]string{
			"user_id": peon.ID, "role_id": editorID,
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Equal(t, "role_already_assigned", body["error"])
	})

	t.Run("check_roles", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/users/check_roles", peonPair.AccessToken, map[string]string{
			"roles": "editor premium",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["has_role"])

		resp, _ = env.do(t, "POST", "/api/v1/users/check_roles", peonPair.AccessToken, map[string]string{
			"roles": "premium",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("check_admin", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/v1/users/check_admin", bossPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["is_admin"])

		resp, body = env.do(t, "GET", "/api/v1/users/check_admin", peonPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, false, body["is_admin"])
	})

	t.Run("remove role", func(t *testing.T) {
		resp, _ := env.do(t, "DELETE", "/api/v1/users/delete-role", bossPair.AccessToken, map[string]string{
			"user_id": peon.ID, "role_id": editorID,
		})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("delete role", func(t *testing.T) {
		resp, _ := env.do(t, "DELETE", "/api/v1/roles/delete/"+editorID, bossPair.AccessToken, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, body := env.do(t, "GET", "/api/v1/roles/", bossPair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, body["roles"], 1)
	})
}

func TestCheckAdminWithoutAdminRole(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, "solo@example.com", "Secret123", "", "")
	require.NoError(t, err)
	pair, err := env.tokens.IssueFor(ctx, user.ID)
	require.NoError(t, err)

	resp, body := env.do(t, "GET", "/api/v1/users/check_admin", pair.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "admin_role_missing", body["error"])
}

func TestWindowRateLimit(t *testing.T) {
	env := newAPIEnvCeiling(t, 5)

	for i := 0; i < 5; i++ {
		resp, _ := env.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{
			"refresh_token": "undefined",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	t.Run("request over the ceiling is rejected", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/refresh", "", map[string]string{
			"refresh_token": "undefined",
		})
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.Equal(t, "rate_limit_exceeded", body["error"])
		require.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("health probes bypass the window", func(t *testing.T) {
		resp, _ := env.do(t, "GET", "/livez", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLoginSSO(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, "panel@example.com", "Secret123", "Pat", "Panel")
	require.NoError(t, err)
	adminRole, err := env.roles.CreateRole(ctx, "admin", 100)
	require.NoError(t, err)
	require.NoError(t, env.roles.Assign(ctx, user.ID, adminRole.ID))

	t.Run("valid credentials return the account with roles", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/login-sso", "", map[string]string{
			"username": "panel@example.com",
			"password": "Secret123",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, user.ID, body["id"])
		require.Equal(t, "panel@example.com", body["email"])
		require.Equal(t, "Pat", body["first_name"])
		require.Equal(t, false, body["disabled"])
		require.Equal(t, true, body["is_admin"])
		require.Equal(t, []any{"admin"}, body["roles"])
	})

	t.Run("email key works too", func(t *testing.T) {
		resp, _ := env.do(t, "POST", "/api/v1/auth/login-sso", "", map[string]string{
			"email":    "panel@example.com",
			"password": "Secret123",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/v1/auth/login-sso", "", map[string]string{
			"username": "panel@example.com",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "Incorrect username or password", body["error_description"])
	})

	t.Run("sso logins land in the history", func(t *testing.T) {
		entries, err := env.users.LoginHistory(ctx, user.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})
}

func TestUserIDsLookup(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	one, err := env.users.Register(ctx, "one@example.com", "Secret123", "One", "")
	require.NoError(t, err)
	two, err := env.users.Register(ctx, "two@example.com", "Secret123", "Two", "")
	require.NoError(t, err)

	raw, err := json.Marshal([]string{one.ID, two.ID, "01UNKNOWNULIDULIDULIDULIDU"})
	require.NoError(t, err)

	resp, err := http.Post(env.server.URL+"/api/v1/users/user_ids",
		"application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var users []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 2)

	emails := []string{users[0]["email"].(string), users[1]["email"].(string)}
	require.ElementsMatch(t, []string{"one@example.com", "two@example.com"}, emails)
}

func TestOAuthEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("signup with unknown provider", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/v1/oauth/signup/github", "", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "not_found", body["error"])
	})

	t.Run("callback without a code", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/v1/oauth/redirect/github", "", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "invalid_request", body["error"])
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("livez", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/livez", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body["status"])
	})

	t.Run("readyz", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/readyz", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body["status"])
	})

	t.Run("readyz degrades when the cache is down", func(t *testing.T) {
		env.redis.Close()

		resp, body := env.do(t, "GET", "/readyz", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.Equal(t, "degraded", body["status"])
	})
}
