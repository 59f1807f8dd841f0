// Package fetcher retrieves artifacts from external URLs into storage.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/storage"
)

const (
	DefaultTimeout = 300 * time.Second
	defaultExt     = ".exe"
)

// Artifact describes a fetched and stored file.
type Artifact struct {
	Path     string
	FileName string
	Size     int64
	Digest   string
	Version  string
	Uploader uuid.UUID
}

type Fetcher struct {
	client *http.Client
	store  storage.Store
	log    zerolog.Logger
}

// New creates a Fetcher whose whole fetch is bounded by timeout. Zero means
// DefaultTimeout.
func New(store storage.Store, timeout time.Duration, log zerolog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		store:  store,
		log:    log.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch downloads rawURL and stores it under ownerID. The whole body is read
// before anything is written; no size limit applies.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, ownerID uuid.UUID, version string, uploaderID uuid.UUID) (*Artifact, error) {
	log := f.log.With().Str("url", rawURL).Stringer("software_id", ownerID).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build request for %s: %v: %w", rawURL, err, apperr.ErrFetchFailed)
	}

	log.Debug().Msg("fetching artifact")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot get %s: %v: %w", rawURL, err, apperr.ErrFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s returned %s: %w", rawURL, resp.Status, apperr.ErrFetchFailed)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read body of %s: %v: %w", rawURL, err, apperr.ErrFetchFailed)
	}

	name := FileName(rawURL, ownerID)
	key := storage.VersionKey(ownerID, name)
	size, digest, err := storage.Save(ctx, f.store, key, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("cannot store %s: %v: %w", key, err, apperr.ErrFetchFailed)
	}

	log.Info().Str("path", key).Int64("size", size).Str("sha256", digest).Msg("artifact stored")
	return &Artifact{
		Path:     key,
		FileName: name,
		Size:     size,
		Digest:   digest,
		Version:  version,
		Uploader: uploaderID,
	}, nil
}

// FileName derives the stored file name from the last path segment of
// rawURL, falling back to software_<ownerID>. A name without extension gets
// defaultExt.
func FileName(rawURL string, ownerID uuid.UUID) string {
	var name string
	if u, err := url.Parse(rawURL); err == nil {
		p := u.Path
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
		name = storage.SafeName(path.Base(p))
	}
	if name == "" {
		name = "software_" + ownerID.String()
	}
	if path.Ext(name) == "" {
		name += defaultExt
	}
	return name
}
