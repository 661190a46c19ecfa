package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/moviestream/auth/internal/auth/domain"
	"github.com/moviestream/auth/internal/auth/service"
	"github.com/moviestream/auth/pkg/httpx"
)

type UsersHandler struct {
	UserService  *service.UserService
	RolesService *service.RolesService
}

// UserResponse is the account shape returned to the owner and to sibling
// services.
type UserResponse struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Disabled  bool     `json:"disabled"`
	IsAdmin   bool     `json:"is_admin"`
	Roles     []string `json:"roles"`
}

func userResponse(user domain.User, titles []string) UserResponse {
	if titles == nil {
		titles = []string{}
	}
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Disabled:  user.Disabled,
		IsAdmin:   user.IsAdmin,
		Roles:     titles,
	}
}

// HandleMe returns the authenticated user's profile and role titles.
// Disabled accounts get the inactive-user rejection here.
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserID(ctx)

	user, err := h.UserService.CurrentUser(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	titles, err := h.RolesService.RoleTitlesForUser(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse(user, titles))
}

// HandleUserIDs is the batch lookup other platform services use to
// hydrate user references. The body is a bare JSON array of ids; ids
// without an account are left out of the response.
func (h *UsersHandler) HandleUserIDs(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if !decodeJSON(w, r, &ids) {
		return
	}

	users, err := h.UserService.GetByIDs(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]UserResponse, len(users))
	for i, user := range users {
		out[i] = userResponse(user, nil)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleChangeLoginPassword rewrites the account email, password or both.
func (h *UsersHandler) HandleChangeLoginPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewEmail    string `json:"new_email"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.NewEmail == "" && req.NewPassword == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "nothing to change",
		})
		return
	}

	if err := h.UserService.ChangeCredentials(r.Context(), UserID(r.Context()), req.NewEmail, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "changed"})
}

// LoginHistoryEntry is one sign-in record.
type LoginHistoryEntry struct {
	Source    string    `json:"source"`
	LoginTime time.Time `json:"login_time"`
}

// HandleLoginHistory returns a page of the caller's sign-in records,
// newest first. Paging uses page_number and page_size query parameters,
// both counted from 1.
func (h *UsersHandler) HandleLoginHistory(w http.ResponseWriter, r *http.Request) {
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	pageNumber, _ := strconv.Atoi(r.URL.Query().Get("page_number"))
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageNumber < 1 {
		pageNumber = 1
	}

	entries, err := h.UserService.LoginHistory(r.Context(), UserID(r.Context()), pageSize, (pageNumber-1)*pageSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]LoginHistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = LoginHistoryEntry{Source: e.Source, LoginTime: e.LoginTime}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

// HandleCheckRoles answers whether the caller holds any of the roles in
// the space-delimited "roles" field. Other services gate premium content
// on this.
func (h *UsersHandler) HandleCheckRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Roles string `json:"roles"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	titles := httpx.ParseSpaceDelimitedFields(req.Roles)
	if len(titles) == 0 {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "roles is required",
		})
		return
	}

	ok, err := h.RolesService.CheckAny(r.Context(), UserID(r.Context()), titles)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeServiceError(w, r, service.ErrForbidden)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"has_role": true})
}

// HandleCheckAdmin answers whether the authenticated caller clears the
// admin permission bar.
func (h *UsersHandler) HandleCheckAdmin(w http.ResponseWriter, r *http.Request) {
	ok, err := h.RolesService.CheckAdmin(r.Context(), UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"is_admin": ok})
}

// HandleAddRole gives a user a role. Admin only.
func (h *UsersHandler) HandleAddRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		RoleID string `json:"role_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.RolesService.Assign(r.Context(), req.UserID, req.RoleID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"status": "assigned"})
}

// HandleDeleteRole takes a role away from a user. Admin only.
func (h *UsersHandler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		RoleID string `json:"role_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.RolesService.Remove(r.Context(), req.UserID, req.RoleID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUserRoles lists the roles held by the user named in the user_id
// query parameter. Admin only.
func (h *UsersHandler) HandleUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "user_id is required",
		})
		return
	}

	roles, err := h.RolesService.RolesForUser(r.Context(), userID)
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
