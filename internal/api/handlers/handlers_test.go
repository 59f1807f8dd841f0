package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/softvault/internal/apperr"
)

func TestPagination(t *testing.T) {
	skip, limit, err := pagination(httptest.NewRequest("GET", "/x", nil), 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, skip)
	assert.Equal(t, 20, limit)

	skip, limit, err = pagination(httptest.NewRequest("GET", "/x?skip=40&limit=100", nil), 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 40, skip)
	assert.Equal(t, 100, limit)

	for _, q := range []string{"limit=0", "limit=101", "skip=-1", "limit=ten"} {
		_, _, err := pagination(httptest.NewRequest("GET", "/x?"+q, nil), 20, 100)
		assert.ErrorIs(t, err, apperr.ErrValidation, q)
	}
}

func TestPathAndQueryUUID(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?version_id=bad", nil)
	r.SetPathValue("id", "not-a-uuid")

	_, err := pathUUID(r, "id")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = queryUUID(r, "version_id")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	id, err := queryUUID(r, "missing")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"a","extra":1}`))
	assert.ErrorIs(t, decodeJSON(r, &v), apperr.ErrValidation)

	r = httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, decodeJSON(r, &v))
	assert.Equal(t, "a", v.Name)
}
