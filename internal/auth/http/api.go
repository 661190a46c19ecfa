package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/pkg/httpx"
	"github.com/moviestream/auth/pkg/slogx"
)

// ErrorResponse is the uniform error body for every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with no detail leaked to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrWrongCredentials):
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "wrong_credentials",
			ErrorDescription: "Incorrect username or password",
		})
	case errors.Is(err, service.ErrAccessExpired):
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "access_token_expired",
			ErrorDescription: "Access token has expired, refresh it",
		})
	case errors.Is(err, service.ErrMustRelogin):
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "must_relogin",
			ErrorDescription: "Session can not be refreshed, sign in again",
		})
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "unauthenticated",
		})
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "email_taken",
			ErrorDescription: "An account with this email already exists",
		})
	case errors.Is(err, service.ErrRoleTitleTaken):
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "role_title_taken",
			ErrorDescription: "A role with this title already exists",
		})
	case errors.Is(err, service.ErrInactive):
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "inactive_user",
			ErrorDescription: "Inactive user",
		})
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error: "forbidden",
		})
	case errors.Is(err, service.ErrRoleAssigned):
		httpx.WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error:            "role_already_assigned",
			ErrorDescription: "User already has this role",
		})
	case errors.Is(err, service.ErrAdminRoleMissing):
		httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
			Error:            "admin_role_missing",
			ErrorDescription: "No admin role is configured",
		})
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "not_found",
		})
	case errors.Is(err, service.ErrProviderUnavailable):
		httpx.WriteJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:            "provider_unavailable",
			ErrorDescription: "Identity provider did not complete the sign-in",
		})
	default:
		log.Error("request failed", slogx.Error(err))
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "server_error",
		})
	}
}

// decodeJSON reads a JSON request body into dst with a size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body is not valid JSON",
		})
		return false
	}
	return true
}

// decodeBestEffort decodes a JSON body into dst but treats a missing or
// malformed body as empty input.
func decodeBestEffort(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// bearerToken extracts the token from the Authorization header. A bare
// token without the Bearer prefix is accepted too.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(header)
}
