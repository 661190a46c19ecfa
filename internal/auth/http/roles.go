package http

import (
	"net/http"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/pkg/httpx"
)

type RolesHandler struct {
	RolesService *service.RolesService
}

// RoleResponse is the wire shape of a role.
type RoleResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Permissions int    `json:"permissions"`
}

func roleResponse(role domain.Role) RoleResponse {
	return RoleResponse{ID: role.ID, Title: role.Title, Permissions: role.Permissions}
}

// validRoleTitle enforces the 3 to 50 character bounds on role titles.
func validRoleTitle(title string) bool {
	return len(title) >= 3 && len(title) <= 50
}

// HandleList returns every role in the system.
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]RoleResponse, len(roles))
	for i, role := range roles {
		out[i] = roleResponse(role)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"roles": out})
}

// HandleCreate adds a new role.
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Permissions int    `json:"permissions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validRoleTitle(req.Title) {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "title must be between 3 and 50 characters",
		})
		return
	}

	role, err := h.RolesService.CreateRole(r.Context(), req.Title, req.Permissions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, roleResponse(role))
}

// HandleUpdate rewrites a role's title and permission level.
func (h *RolesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Permissions int    `json:"permissions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validRoleTitle(req.Title) {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "title must be between 3 and 50 characters",
		})
		return
	}

	role, err := h.RolesService.UpdateRole(r.Context(), r.PathValue("id"), req.Title, req.Permissions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, roleResponse(role))
}

// HandleDelete removes a role and all its assignments.
func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.RolesService.DeleteRole(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
