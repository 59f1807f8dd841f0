package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return b
}

func TestReview(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(completion("```json\n{\"approved\": true, \"reason\": \"well known vendor\"}\n```"))
	}))
	defer srv.Close()

	a := New(zerolog.Nop())
	res := a.Review(context.Background(), Settings{Enabled: true, BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "m"},
		Summary{SoftwareName: "7zip", Version: "23.01", DownloadURL: "https://7-zip.org/a/7z.exe"})

	assert.True(t, res.Approved)
	assert.Equal(t, "well known vendor", res.Reason)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, 0.3, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "7zip")
}

func TestReviewNeverFails(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	a := New(zerolog.Nop())
	cases := map[string]Settings{
		"disabled":       {Enabled: false, BaseURL: bad.URL, APIKey: "k"},
		"no base url":    {Enabled: true, APIKey: "k"},
		"no key":         {Enabled: true, BaseURL: bad.URL},
		"server error":   {Enabled: true, BaseURL: bad.URL, APIKey: "k"},
		"bad envelope":   {Enabled: true, BaseURL: garbage.URL, APIKey: "k"},
		"unreachable":    {Enabled: true, BaseURL: "http://127.0.0.1:1", APIKey: "k"},
		"invalid scheme": {Enabled: true, BaseURL: "::nope", APIKey: "k"},
	}
	for name, s := range cases {
		res := a.Review(context.Background(), s, Summary{SoftwareName: "x"})
		assert.False(t, res.Approved, name)
		assert.NotEmpty(t, res.Reason, name)
	}
}

func TestParseVerdictBareFence(t *testing.T) {
	r := parseVerdict("Here you go:\n```\n{\"approved\": true, \"reason\": \"official vendor\"}\n```")
	assert.Equal(t, Result{Approved: true, Reason: "official vendor"}, r)
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		content  string
		approved bool
	}{
		{`{"approved": false, "reason": "unknown host"}`, false},
		{`{"approved": true, "reason": "ok"}`, true},
		{"Sure!\n```json\n{\"approved\": true, \"reason\": \"ok\"}\n```", true},
		{"```\n{\"approved\": true, \"reason\": \"ok\"}\n```", true},
		{"Verdict:\n```\n{\"approved\": false, \"reason\": \"mirror\"}\n```\napproved true", false},
		{"approved: true", true},
		{"approved: true, but maybe false", false},
		{"I cannot decide", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.approved, parseVerdict(c.content).Approved, c.content)
	}
}

type fakeSource map[string]string

func (f fakeSource) ConfigValues(ctx context.Context, keys ...string) (map[string]string, error) {
	if f == nil {
		return nil, errors.New("db down")
	}
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := f[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings(context.Background(), fakeSource{KeyEnabled: "true", KeyBaseURL: "https://api.example/v1", KeyAPIKey: "k"})
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.Equal(t, DefaultModel, s.Model)

	s, err = LoadSettings(context.Background(), fakeSource{KeyEnabled: "nope", KeyModel: "gpt-4o"})
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Equal(t, "gpt-4o", s.Model)

	_, err = LoadSettings(context.Background(), fakeSource(nil))
	assert.Error(t, err)
}
