package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/storage"
)

func TestFetch(t *testing.T) {
	body := []byte("binary-content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	store := storage.NewFsStore(afero.NewMemMapFs())
	f := New(store, time.Second, zerolog.Nop())
	owner, uploader := uuid.New(), uuid.New()

	a, err := f.Fetch(context.Background(), srv.URL+"/dl/tool.bin", owner, "1.0", uploader)
	require.NoError(t, err)

	sum := sha256.Sum256(body)
	assert.Equal(t, "tool.bin", a.FileName)
	assert.Equal(t, owner.String()+"/tool.bin", a.Path)
	assert.Equal(t, int64(len(body)), a.Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), a.Digest)
	assert.Equal(t, "1.0", a.Version)
	assert.Equal(t, uploader, a.Uploader)

	rc, err := store.Open(context.Background(), a.Path)
	require.NoError(t, err)
	defer rc.Close()
	stored, _ := io.ReadAll(rc)
	assert.Equal(t, body, stored)
}

func TestFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(storage.NewFsStore(afero.NewMemMapFs()), time.Second, zerolog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL+"/tool.bin", uuid.New(), "1.0", uuid.New())
	assert.ErrorIs(t, err, apperr.ErrFetchFailed)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(storage.NewFsStore(afero.NewMemMapFs()), 50*time.Millisecond, zerolog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL+"/slow.bin", uuid.New(), "1.0", uuid.New())
	assert.ErrorIs(t, err, apperr.ErrFetchFailed)
}

func TestFetchWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ro := storage.NewFsStore(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	f := New(ro, time.Second, zerolog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL+"/tool.bin", uuid.New(), "1.0", uuid.New())
	assert.ErrorIs(t, err, apperr.ErrFetchFailed)
}

func TestFileName(t *testing.T) {
	owner := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	cases := map[string]string{
		"https://host/tool.bin":              "tool.bin",
		"https://host/path/setup.msi?x=1":    "setup.msi",
		"https://host/download/latest":       "latest.exe",
		"https://host/":                      "software_11111111-2222-3333-4444-555555555555.exe",
		"https://host":                       "software_11111111-2222-3333-4444-555555555555.exe",
		"https://host/My%20Tool%201.2.zip":   "My Tool 1.2.zip",
		"https://host/a/b/archive.tar.gz#go": "archive.tar.gz",
	}
	for in, want := range cases {
		assert.Equal(t, want, FileName(in, owner), in)
	}
}
