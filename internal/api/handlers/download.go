package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rohits-web03/softvault/internal/access"
	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/storage"
	"github.com/rohits-web03/softvault/internal/utils"
)

const presignExpiry = 15 * time.Minute

// Download godoc
// @Summary Download a version file
// @Description Counts the download, then streams the file or redirects to a presigned object URL
// @Tags Downloads
// @Param versionId path string true "version id"
// @Success 200
// @Success 302
// @Failure 404 {object} utils.Payload
// @Router /api/v1/downloads/{versionId} [get]
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "versionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	v, err := h.Catalog.GetVersion(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p := principal(r)
	missing := fmt.Errorf("file of version %s is missing: %w", id, apperr.ErrNotFound)

	blobs := h.Catalog.Blobs()
	if ps, presign := blobs.(storage.Presigner); presign {
		exists, err := ps.Exists(ctx, v.FilePath)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !exists {
			h.fail(w, r, missing)
			return
		}
		url, err := ps.PresignGet(ctx, v.FilePath, v.FileName, presignExpiry)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if _, err := h.Catalog.RecordDownload(ctx, id, p.UserID, utils.ClientIP(r)); err != nil {
			h.fail(w, r, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := blobs.Open(ctx, v.FilePath)
	if errors.Is(err, apperr.ErrNotFound) {
		h.fail(w, r, missing)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	if _, err := h.Catalog.RecordDownload(ctx, id, p.UserID, utils.ClientIP(r)); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": v.FileName}))
	w.Header().Set("Content-Length", strconv.FormatInt(v.FileSize, 10))
	if _, err := io.Copy(w, rc); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("version_id", id.String()).Msg("download interrupted")
	}
}

// DownloadLogs godoc
// @Summary Download history
// @Description Callers without view_all_requests only see their own downloads
// @Tags Downloads
// @Produce json
// @Param version_id query string false "only this version"
// @Param skip query int false "offset"
// @Param limit query int false "page size (1-500)"
// @Success 200 {object} utils.Payload
// @Router /api/v1/downloads/logs [get]
func (h *Handlers) DownloadLogs(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r, 50, 500)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	versionID, err := queryUUID(r, "version_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f := repositories.DownloadFilter{VersionID: versionID, Skip: skip, Limit: limit}
	if p := principal(r); !p.Can(access.ViewAllRequests) {
		f.UserID = &p.UserID
	}
	rows, total, err := h.Downloads.Logs(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Download logs", utils.Page[repositories.DownloadRow]{Total: total, Items: rows})
}

// DownloadStats godoc
// @Summary Download totals and the ten most downloaded software
// @Tags Downloads
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/downloads/stats [get]
func (h *Handlers) DownloadStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Downloads.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Download stats", st)
}
