package services

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rohits-web03/softvault/internal/config"
)

const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// NewGoogleOAuth returns the OAuth client config, or nil when Google login
// is not configured.
func NewGoogleOAuth(c config.GoogleConfig) *oauth2.Config {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}
