package http

import (
	"net/http"

	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/pkg/httpx"
	"github.com/moviestream/auth/pkg/idx"
)

type OAuthHandler struct {
	OAuthService *service.OAuthService
}

// HandleSignup starts the provider flow by sending the browser to the
// provider's consent page.
func (h *OAuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	url, err := h.OAuthService.AuthURL(r.PathValue("provider"), idx.New().String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleRedirect is the provider callback: it exchanges the code the
// provider handed back and signs the user in, creating or linking the
// local account as needed.
func (h *OAuthHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "code query parameter is required",
		})
		return
	}

	pair, err := h.OAuthService.SignIn(r.Context(), r.PathValue("provider"), code, httpx.ClientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse(pair))
}
