package handlers

import (
	"net/http"

	"github.com/rohits-web03/softvault/internal/access"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/utils"
)

// Runtime configuration

func (h *Handlers) ListConfigs(w http.ResponseWriter, r *http.Request) {
	list, err := h.Configs.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Configs", list)
}

func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	e, err := h.Configs.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Config", e)
}

func (h *Handlers) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Key         string `json:"key"`
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	e := &models.ConfigEntry{Key: input.Key, Value: input.Value, Description: input.Description}
	if err := h.Configs.Create(r.Context(), e); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "create_config", "config", e.Key, nil)
	ok(w, http.StatusCreated, "Config created", e)
}

func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var input struct {
		Value       *string `json:"value"`
		Description *string `json:"description"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Value == nil {
		h.fail(w, r, errInvalid("value is required"))
		return
	}
	e, err := h.Configs.Update(r.Context(), key, *input.Value, input.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "update_config", "config", key, nil)
	ok(w, http.StatusOK, "Config updated", e)
}

func (h *Handlers) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := h.Configs.Delete(r.Context(), key); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "delete_config", "config", key, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Categories

func (h *Handlers) ListCategoryEntries(w http.ResponseWriter, r *http.Request) {
	list, err := h.Categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Categories", list)
}

// CategoryNames lists the curated category names in display order.
func (h *Handlers) CategoryNames(w http.ResponseWriter, r *http.Request) {
	list, err := h.Categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	ok(w, http.StatusOK, "Categories", names)
}

func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Categories.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Category", c)
}

func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		SortOrder   int    `json:"sortOrder"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	c := &models.Category{Name: input.Name, Description: input.Description, SortOrder: input.SortOrder}
	if err := h.Categories.Create(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "create_category", "category", c.ID.String(), map[string]string{"name": c.Name})
	ok(w, http.StatusCreated, "Category created", c)
}

func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd repositories.CategoryUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Categories.Update(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "update_category", "category", id.String(), upd)
	ok(w, http.StatusOK, "Category updated", c)
}

// DeleteCategory refuses categories still used by software.
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Categories.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "delete_category", "category", id.String(), nil)
	w.WriteHeader(http.StatusNoContent)
}

// User administration

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r, 50, 500)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	users, total, err := h.Users.List(r.Context(), skip, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Users", utils.Page[models.User]{Total: total, Items: users})
}

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string      `json:"username"`
		Email    string      `json:"email"`
		Password string      `json:"password"`
		Role     models.Role `json:"role"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Role == "" {
		input.Role = models.RoleUser
	}
	u, err := h.Users.Create(r.Context(), repositories.NewUser{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     input.Role,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "create_user", "user", u.ID.String(), map[string]any{"username": u.Username, "role": u.Role})
	ok(w, http.StatusCreated, "User created", u)
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd repositories.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Users.Update(r.Context(), principal(r).UserID, id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	details := map[string]any{}
	if upd.Role != nil {
		details["role"] = *upd.Role
	}
	if upd.IsActive != nil {
		details["isActive"] = *upd.IsActive
	}
	if upd.Password != nil {
		details["password"] = "changed"
	}
	h.audit(r, "update_user", "user", id.String(), details)
	ok(w, http.StatusOK, "User updated", u)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Users.Delete(r.Context(), principal(r).UserID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "delete_user", "user", id.String(), nil)
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard godoc
// @Summary Headline counts for the landing page
// @Description Pending requests and user counts are only filled in for reviewers
// @Tags Stats
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/stats/dashboard [get]
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := repositories.DashboardStats(r.Context(), h.DB, principal(r).Can(access.ViewAllRequests))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Dashboard", d)
}

// JobStats reports background job counters of this process.
func (h *Handlers) JobStats(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, "Tasks", h.Tasks.Stats())
}

func (h *Handlers) AuditLogs(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r, 50, 500)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := queryUUID(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	logs, total, err := h.Audit.List(r.Context(), repositories.AuditFilter{
		UserID:       userID,
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		Skip:         skip,
		Limit:        limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Audit logs", utils.Page[models.AuditLog]{Total: total, Items: logs})
}
