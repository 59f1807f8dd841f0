package handlers

import (
	"net/http"
	"strings"

	"github.com/rohits-web03/softvault/internal/access"
	"github.com/rohits-web03/softvault/internal/lifecycle"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/utils"
)

// CreateRequest godoc
// @Summary Ask for a piece of software to be added
// @Tags Requests
// @Accept json
// @Produce json
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/requests [post]
func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var input lifecycle.SubmitInput
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	p := principal(r)
	req, err := h.Lifecycle.Submit(r.Context(), input, p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ok(w, http.StatusCreated, "Request submitted", repositories.RequestRow{
		SoftwareRequest: *req,
		ApplicantName:   p.Username,
	})
}

// ListRequests godoc
// @Summary List software requests
// @Description Callers without view_all_requests only see their own requests
// @Tags Requests
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param skip query int false "offset"
// @Param limit query int false "page size (1-100)"
// @Success 200 {object} utils.Payload
// @Router /api/v1/requests [get]
func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r, 20, 100)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f := repositories.RequestFilter{Skip: skip, Limit: limit}
	if s := r.URL.Query().Get("status"); s != "" {
		f.Status = models.RequestStatus(strings.ToLower(s))
		if !f.Status.Valid() {
			h.fail(w, r, errInvalid("unknown status "+s))
			return
		}
	}
	p := principal(r)
	if !p.Can(access.ViewAllRequests) {
		f.ApplicantID = &p.UserID
	}

	rows, total, err := h.Requests.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Requests", utils.Page[repositories.RequestRow]{Total: total, Items: rows})
}

// ReviewRequest godoc
// @Summary Approve or reject a pending request
// @Description Approval creates or reuses the Software and schedules the download of the artifact
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "request id"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/requests/{id}/review [post]
func (h *Handlers) ReviewRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var input struct {
		Status  string `json:"status"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	decision := models.RequestStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	req, err := h.Lifecycle.Review(r.Context(), id, principal(r).UserID, decision, input.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "review_request", "request", id.String(), map[string]any{
		"decision":   decision,
		"softwareId": req.SoftwareID,
	})
	ok(w, http.StatusOK, "Request reviewed", req)
}
