package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/rohits-web03/softvault/internal/access"
	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/config"
	"github.com/rohits-web03/softvault/internal/lifecycle"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/tasks"
	"github.com/rohits-web03/softvault/internal/utils"
)

type TaskStats interface {
	Stats() tasks.Stats
}

// Deps are the collaborators the HTTP handlers are built from.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Users      *repositories.UserStore
	Requests   *repositories.RequestStore
	Catalog    *repositories.CatalogStore
	Downloads  *repositories.DownloadStore
	Configs    *repositories.ConfigStore
	Categories *repositories.CategoryStore
	Audit      *repositories.AuditStore
	Lifecycle  *lifecycle.Manager
	Tasks      TaskStats
	Google     *oauth2.Config
	Log        zerolog.Logger
}

type Handlers struct {
	Deps
}

func New(d Deps) *Handlers {
	d.Log = d.Log.With().Str("component", "http").Logger()
	return &Handlers{Deps: d}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid input: %w", apperr.ErrValidation)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", name, apperr.ErrNotFound)
	}
	return id, nil
}

// queryInt reads an integer query parameter within [min, max].
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d: %w", name, min, max, apperr.ErrValidation)
	}
	return n, nil
}

func pagination(r *http.Request, defLimit, maxLimit int) (int, int, error) {
	skip, err := queryInt(r, "skip", 0, 0, 1<<31-1)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit", defLimit, 1, maxLimit)
	if err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, apperr.ErrValidation)
	}
	return &id, nil
}

func principal(r *http.Request) *access.Principal {
	return access.FromContext(r.Context())
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(err) == http.StatusInternalServerError && !errors.Is(err, apperr.ErrFetchFailed) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	utils.ErrorResponse(w, err)
}

func ok(w http.ResponseWriter, status int, msg string, data any) {
	utils.JSONResponse(w, status, utils.Payload{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func (h *Handlers) audit(r *http.Request, action, resourceType, resourceID string, details any) {
	p := principal(r)
	if p == nil {
		return
	}
	h.Audit.Record(r.Context(), repositories.AuditEntry{
		UserID:       p.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    utils.ClientIP(r),
	})
}

func errInvalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, apperr.ErrValidation)
}
