// Package storage persists artifact bytes under slash-separated keys. Version
// files live at "<softwareID>/<fileName>" and logos at "logos/<name>".
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rohits-web03/softvault/internal/apperr"
)

const LogoDir = "logos"

type Store interface {
	// Put writes everything read from r under key, replacing any previous
	// content, and returns the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes key. A missing key yields an error wrapping
	// apperr.ErrNotFound.
	Remove(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out a temporary direct
// download URL instead of streaming through the server.
type Presigner interface {
	PresignGet(ctx context.Context, key, fileName string, expires time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Save writes r under key and returns the size and hex sha256 digest of the
// written content.
func Save(ctx context.Context, s Store, key string, r io.Reader) (int64, string, error) {
	h := sha256.New()
	n, err := s.Put(ctx, key, io.TeeReader(r, h))
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// VersionKey namespaces fileName under its owning software.
func VersionKey(softwareID uuid.UUID, fileName string) string {
	return path.Join(softwareID.String(), SafeName(fileName))
}

// LogoKey returns a fresh key for a logo of softwareID, ext includes the dot.
func LogoKey(softwareID uuid.UUID, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return path.Join(LogoDir, fmt.Sprintf("%s_%s%s", softwareID, suffix, strings.ToLower(ext)))
}

// SafeName reduces name to a single path element.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid storage key %q: %w", key, apperr.ErrValidation)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid storage key %q: %w", key, apperr.ErrValidation)
		}
	}
	return nil
}
