package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/utils"
)

// ListSoftware godoc
// @Summary Browse the catalog
// @Tags Software
// @Produce json
// @Param category query string false "exact category"
// @Param search query string false "name substring"
// @Param skip query int false "offset"
// @Param limit query int false "page size (1-1000)"
// @Success 200 {object} utils.Payload
// @Router /api/v1/software [get]
func (h *Handlers) ListSoftware(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r, 20, 1000)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	list, total, err := h.Catalog.ListSoftware(r.Context(), repositories.SoftwareFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Software", utils.Page[repositories.SoftwareSummary]{Total: total, Items: list})
}

// GetCategories godoc
// @Summary Categories currently used by software
// @Tags Software
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/software/categories [get]
func (h *Handlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	ok(w, http.StatusOK, "Categories", cats)
}

type versionView struct {
	models.SoftwareVersion
	ReleaseNotesHTML    string `json:"releaseNotesHtml,omitempty"`
	OriginalDownloadURL string `json:"originalDownloadUrl,omitempty"`
}

type softwareView struct {
	models.Software
	Versions []versionView `json:"versions"`
}

// GetSoftware godoc
// @Summary Software detail with its versions
// @Description Each version carries the download URL of the request that introduced it, when there is one
// @Tags Software
// @Produce json
// @Param id path string true "software id"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/software/{id} [get]
func (h *Handlers) GetSoftware(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sw, err := h.Catalog.GetSoftware(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	urls, err := h.Requests.DownloadURLsByVersion(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := softwareView{Software: *sw, Versions: make([]versionView, len(sw.Versions))}
	for i, v := range sw.Versions {
		view.Versions[i] = versionView{
			SoftwareVersion:     v,
			ReleaseNotesHTML:    utils.RenderMarkdown(v.ReleaseNotes),
			OriginalDownloadURL: urls[v.Version],
		}
	}
	ok(w, http.StatusOK, "Software", view)
}

type softwareInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IconURL     string `json:"iconUrl"`
	Logo        string `json:"logo"`
	OfficialURL string `json:"officialUrl"`
}

// CreateSoftware godoc
// @Summary Add a catalog entry directly
// @Tags Software
// @Accept json
// @Produce json
// @Success 201 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/software [post]
func (h *Handlers) CreateSoftware(w http.ResponseWriter, r *http.Request) {
	var input softwareInput
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	sw := &models.Software{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		IconURL:     input.IconURL,
		Logo:        input.Logo,
		OfficialURL: input.OfficialURL,
		CreatedBy:   principal(r).UserID,
	}
	if err := h.Catalog.CreateSoftware(r.Context(), sw); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "create_software", "software", sw.ID.String(), map[string]string{"name": sw.Name})
	ok(w, http.StatusCreated, "Software created", sw)
}

// UpdateSoftware godoc
// @Summary Change catalog entry fields
// @Tags Software
// @Accept json
// @Produce json
// @Param id path string true "software id"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/software/{id} [put]
func (h *Handlers) UpdateSoftware(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var upd repositories.SoftwareUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	sw, err := h.Catalog.UpdateSoftware(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "update_software", "software", id.String(), upd)
	ok(w, http.StatusOK, "Software updated", sw)
}

// DeleteSoftware godoc
// @Summary Delete a catalog entry with all its versions and files
// @Tags Software
// @Param id path string true "software id"
// @Success 204
// @Failure 404 {object} utils.Payload
// @Router /api/v1/software/{id} [delete]
func (h *Handlers) DeleteSoftware(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sw, err := h.Catalog.DeleteSoftware(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "delete_software", "software", id.String(), map[string]string{"name": sw.Name})
	w.WriteHeader(http.StatusNoContent)
}

// UploadVersion godoc
// @Summary Upload a version file directly
// @Tags Software
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "software id"
// @Param version formData string true "version label"
// @Param file formData file true "artifact"
// @Param release_notes formData string false "markdown release notes"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/software/{id}/versions [post]
func (h *Handlers) UploadVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(w, r, errInvalid("file exceeds the upload limit"))
			return
		}
		h.fail(w, r, errInvalid("invalid file upload form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, errInvalid("no file provided"))
		return
	}
	defer file.Close()

	v, err := h.Catalog.UploadVersion(r.Context(), repositories.UploadInput{
		SoftwareID:   id,
		Version:      r.FormValue("version"),
		FileName:     header.Filename,
		Body:         file,
		ReleaseNotes: r.FormValue("release_notes"),
		UploaderID:   principal(r).UserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.audit(r, "upload_version", "software_version", v.ID.String(), map[string]any{
		"softwareId": id,
		"version":    v.Version,
		"size":       v.FileSize,
	})
	ok(w, http.StatusCreated, "Version uploaded", v)
}

// parts beyond this spill to temporary files
const multipartMemory = 32 << 20

// DeleteVersion godoc
// @Summary Delete one version and its file
// @Tags Software
// @Param id path string true "software id"
// @Param versionId path string true "version id"
// @Success 204
// @Failure 404 {object} utils.Payload
// @Router /api/v1/software/{id}/versions/{versionId} [delete]
func (h *Handlers) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	versionID, err := pathUUID(r, "versionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.Catalog.DeleteVersion(r.Context(), id, versionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "delete_version", "software_version", versionID.String(), map[string]string{"version": v.Version})
	w.WriteHeader(http.StatusNoContent)
}

// UploadLogo godoc
// @Summary Upload a logo image (5 MB max)
// @Tags Software
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "software id"
// @Param file formData file true "png, jpg, jpeg, gif, svg, webp or ico"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/software/{id}/logo [post]
func (h *Handlers) UploadLogo(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, repositories.MaxLogoSize+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, errInvalid("no logo provided"))
		return
	}
	defer file.Close()

	sw, err := h.Catalog.UploadLogo(r.Context(), id, header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Logo uploaded", sw)
}

// GetLogo serves logos/<filename>. It is public so the catalog can be
// rendered without a session.
func (h *Handlers) GetLogo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	rc, err := h.Catalog.OpenLogo(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(24*3600))
	_, _ = io.Copy(w, rc)
}
