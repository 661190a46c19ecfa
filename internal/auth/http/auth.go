package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/pkg/httpx"
)

// TokenPairResponse is the body returned by every endpoint that issues
// tokens.
type TokenPairResponse struct {
	AccessToken         string    `json:"access_token"`
	AccessTokenExpires  time.Time `json:"access_token_expires"`
	RefreshToken        string    `json:"refresh_token"`
	RefreshTokenExpires time.Time `json:"refresh_token_expires"`
	TokenType           string    `json:"token_type"`
}

func tokenPairResponse(pair domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:         pair.AccessToken,
		AccessTokenExpires:  pair.AccessTokenExpires,
		RefreshToken:        pair.RefreshToken,
		RefreshTokenExpires: pair.RefreshTokenExpires,
		TokenType:           pair.TokenType,
	}
}

type AuthHandler struct {
	TokenService *service.TokenService
	UserService  *service.UserService
	RolesService *service.RolesService
}

// HandleSignup creates an account from email and password credentials.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "email and password are required",
		})
		return
	}

	user, err := h.UserService.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"email": user.Email,
	})
}

// HandleLogin verifies credentials and issues a token pair. Web clients
// post an OAuth2-style form with username/password; JSON bodies with
// email/password work too.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var email, password string

	if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "invalid_request",
			})
			return
		}
		email = r.PostFormValue("username")
		password = r.PostFormValue("password")
	} else {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		email, password = req.Email, req.Password
	}

	pair, err := h.TokenService.Login(r.Context(), email, password, httpx.ClientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse(pair))
}

// HandleLoginSSO verifies credentials and returns the account data with
// its role titles instead of a token pair. Sibling services (the admin
// panel's login backend among them) authenticate through this and apply
// their own session handling, which is why the disabled flag is returned
// rather than enforced.
func (h *AuthHandler) HandleLoginSSO(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	email := req.Username
	if email == "" {
		email = req.Email
	}

	user, err := h.UserService.Authenticate(r.Context(), email, req.Password, httpx.ClientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	titles, err := h.RolesService.RoleTitlesForUser(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse(user, titles))
}

// HandleRefresh trades a refresh token for a new pair. The old refresh
// token is dead afterwards whether or not the exchange succeeded for this
// particular caller.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.TokenService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse(pair))
}

// HandleLogout revokes the presented access token and retires the refresh
// token if one is supplied.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// Body is optional; a missing or empty body only skips the refresh half.
	_ = decodeBestEffort(r, &req)

	if err := h.TokenService.Logout(r.Context(), bearerToken(r), req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
