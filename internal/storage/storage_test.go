package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/softvault/internal/apperr"
)

func TestSaveComputesDigest(t *testing.T) {
	ctx := context.Background()
	s := NewFsStore(afero.NewMemMapFs())
	id := uuid.New()

	n, digest, err := Save(ctx, s, VersionKey(id, "tool.bin"), strings.NewReader("hello"))
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, int64(5), n)
	assert.Equal(t, hex.EncodeToString(sum[:]), digest)

	rc, err := s.Open(ctx, id.String()+"/tool.bin")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	_, seekable := rc.(io.ReadSeeker)
	assert.True(t, seekable)
}

func TestRemoveMissing(t *testing.T) {
	s := NewFsStore(afero.NewMemMapFs())
	err := s.Remove(context.Background(), "a/b.bin")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Open(context.Background(), "a/b.bin")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestKeysStayInsideRoot(t *testing.T) {
	s := NewFsStore(afero.NewMemMapFs())
	for _, key := range []string{"", "/etc/passwd", "../x", "a/../../x", "a//b"} {
		_, err := s.Put(context.Background(), key, strings.NewReader("x"))
		assert.ErrorIs(t, err, apperr.ErrValidation, key)
	}
}

func TestKeyHelpers(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "11111111-2222-3333-4444-555555555555/tool.bin", VersionKey(id, "../../tool.bin"))
	assert.Equal(t, "", SafeName(".."))
	assert.Equal(t, "setup.exe", SafeName(`C:\Users\me\setup.exe`))

	key := LogoKey(id, ".PNG")
	assert.True(t, strings.HasPrefix(key, "logos/11111111-2222-3333-4444-555555555555_"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, LogoKey(id, ".png"))
}
