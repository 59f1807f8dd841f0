// Package advisor asks an OpenAI-compatible chat-completions endpoint whether
// a software request looks safe to approve. It never fails: every problem is
// reported as a non-approving Result.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	KeyEnabled = "ai_auto_review_enabled"
	KeyBaseURL = "ai_base_url"
	KeyAPIKey  = "ai_api_key"
	KeyModel   = "ai_model_name"

	DefaultModel = "gpt-3.5-turbo"

	requestTimeout = 30 * time.Second
	temperature    = 0.3
)

type Settings struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
}

// ConfigSource is the key-value config store the settings are read from.
type ConfigSource interface {
	ConfigValues(ctx context.Context, keys ...string) (map[string]string, error)
}

// LoadSettings reads all advisor keys in one call. Missing keys keep their
// zero value, a missing model name falls back to DefaultModel.
func LoadSettings(ctx context.Context, src ConfigSource) (Settings, error) {
	vals, err := src.ConfigValues(ctx, KeyEnabled, KeyBaseURL, KeyAPIKey, KeyModel)
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		BaseURL: strings.TrimSpace(vals[KeyBaseURL]),
		APIKey:  strings.TrimSpace(vals[KeyAPIKey]),
		Model:   strings.TrimSpace(vals[KeyModel]),
	}
	s.Enabled, _ = strconv.ParseBool(strings.TrimSpace(vals[KeyEnabled]))
	if s.Model == "" {
		s.Model = DefaultModel
	}
	return s, nil
}

// Summary is what the model gets to see of a request.
type Summary struct {
	SoftwareName string
	Version      string
	DownloadURL  string
	Description  string
	Category     string
	OfficialURL  string
}

type Result struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

type Advisor struct {
	client *http.Client
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Advisor {
	return &Advisor{
		client: &http.Client{Timeout: requestTimeout},
		log:    log.With().Str("component", "advisor").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You review software installation requests for an internal distribution portal.
Decide whether the request is legitimate and its download link looks trustworthy.
Answer only with JSON of the form {"approved": true|false, "reason": "<short explanation>"}.`

func (a *Advisor) Review(ctx context.Context, s Settings, sum Summary) Result {
	if !s.Enabled {
		return Result{Reason: "auto-review is disabled"}
	}
	if s.BaseURL == "" || s.APIKey == "" {
		return Result{Reason: "auto-review is not configured"}
	}

	body, err := json.Marshal(chatRequest{
		Model: s.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt(sum)},
		},
		Temperature: temperature,
	})
	if err != nil {
		return a.unavailable(err)
	}

	endpoint := strings.TrimRight(s.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return a.unavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return a.unavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return a.unavailable(err)
	}
	if resp.StatusCode != http.StatusOK {
		return a.unavailable(fmt.Errorf("model endpoint returned %s", resp.Status))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil || len(cr.Choices) == 0 {
		return a.unavailable(fmt.Errorf("malformed completion response"))
	}
	return parseVerdict(cr.Choices[0].Message.Content)
}

func (a *Advisor) unavailable(err error) Result {
	a.log.Warn().Err(err).Msg("auto-review unavailable")
	return Result{Reason: "auto-review unavailable: " + err.Error()}
}

func prompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Software name: %s\n", s.SoftwareName)
	fmt.Fprintf(&b, "Version: %s\n", s.Version)
	fmt.Fprintf(&b, "Download URL: %s\n", s.DownloadURL)
	if s.OfficialURL != "" {
		fmt.Fprintf(&b, "Official site: %s\n", s.OfficialURL)
	}
	if s.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", s.Category)
	}
	if s.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	return b.String()
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseVerdict reads the model's answer. Content that is not JSON falls back
// to a keyword check that only approves on an unambiguous yes.
func parseVerdict(content string) Result {
	text := strings.TrimSpace(content)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var r Result
	if err := json.Unmarshal([]byte(text), &r); err == nil {
		return r
	}

	lower := strings.ToLower(content)
	approved := strings.Contains(lower, "approved") && strings.Contains(lower, "true") && !strings.Contains(lower, "false")
	return Result{Approved: approved, Reason: strings.TrimSpace(content)}
}
