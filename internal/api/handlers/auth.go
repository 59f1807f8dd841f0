package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rohits-web03/softvault/internal/api/services"
	"github.com/rohits-web03/softvault/internal/apperr"
	"github.com/rohits-web03/softvault/internal/models"
	"github.com/rohits-web03/softvault/internal/repositories"
	"github.com/rohits-web03/softvault/internal/utils"
)

// RegisterUser godoc
// @Summary Create an account
// @Tags Auth
// @Accept json
// @Produce json
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/auth/sign-up [post]
func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.Users.Create(r.Context(), repositories.NewUser{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ok(w, http.StatusCreated, "User registered successfully", u)
}

// LoginUser godoc
// @Summary Log in with username and password
// @Description Sets the session cookie and also returns the token for bearer use
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/auth/login [post]
func (h *Handlers) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		h.fail(w, r, err)
		return
	}
	if input.Username == "" || input.Password == "" {
		h.fail(w, r, fmt.Errorf("invalid input: %w", apperr.ErrValidation))
		return
	}

	u, err := h.Users.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := h.setSession(w, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "Login successful", map[string]any{
		"token": token,
		"user":  u,
	})
}

// setSession issues a token for u and stores it in the session cookie.
func (h *Handlers) setSession(w http.ResponseWriter, u *models.User) (string, error) {
	token, expiration, err := services.IssueToken(h.Config.JWTSecret, u)
	if err != nil {
		return "", err
	}

	isProd := h.Config.IsProduction()
	sameSite := http.SameSiteLaxMode
	if isProd {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     services.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiration).Seconds()),
		Secure:   isProd,
		HttpOnly: true,
		SameSite: sameSite,
	})
	return token, nil
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/auth/logout [post]
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     services.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // maxAge < 0 deletes the cookie
		Secure:   h.Config.IsProduction(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	ok(w, http.StatusOK, "Logged out successfully", nil)
}

// Me godoc
// @Summary Current account
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/auth/me [get]
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), principal(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Current user", u)
}

func (h *Handlers) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{Success: false, Message: "Google login is not configured"})
		return
	}

	redirectType := r.URL.Query().Get("redirect") // "login" or "register"
	if redirectType == "" {
		redirectType = "login"
	}

	state, err := utils.GenerateState(map[string]string{"flow": redirectType})
	if err != nil {
		http.Error(w, "Failed to generate OAuth state", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *Handlers) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{Success: false, Message: "Google login is not configured"})
		return
	}

	stateData, err := utils.DecodeState(r.FormValue("state"))
	if err != nil {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	flowType := stateData["flow"]
	frontend := h.Config.FrontendURL
	log := h.Log.With().Str("flow", flowType).Logger()

	token, err := h.Google.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Warn().Err(err).Msg("oauth code exchange failed")
		http.Error(w, "Code exchange failed", http.StatusInternalServerError)
		return
	}

	resp, err := h.Google.Client(r.Context(), token).Get(services.GoogleUserInfoURL)
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var googleUser struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &googleUser); err != nil || googleUser.Email == "" {
		http.Error(w, "Failed to parse user info", http.StatusInternalServerError)
		return
	}

	user, err := h.Users.ByEmail(r.Context(), googleUser.Email)
	switch flowType {
	case "register":
		if err == nil {
			http.Redirect(w, r, frontend+"/login?error=user_already_exists", http.StatusTemporaryRedirect)
			return
		}
		name := googleUser.Name
		if name == "" {
			name = googleUser.Email
		}
		user, err = h.Users.CreateExternal(r.Context(), name, googleUser.Email)
		if err != nil {
			http.Error(w, "Failed to create user", http.StatusInternalServerError)
			return
		}
	default:
		if errors.Is(err, apperr.ErrNotFound) {
			http.Redirect(w, r, frontend+"/register?error=user_not_found", http.StatusTemporaryRedirect)
			return
		} else if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
	}

	if !user.IsActive {
		http.Redirect(w, r, frontend+"/login?error=account_disabled", http.StatusTemporaryRedirect)
		return
	}
	if err := h.Users.TouchLogin(r.Context(), user); err != nil {
		log.Warn().Err(err).Msg("cannot record login time")
	}
	if _, err := h.setSession(w, user); err != nil {
		http.Error(w, "Failed to create JWT", http.StatusInternalServerError)
		return
	}

	redirectURL := frontend + "/?status=success_login"
	if flowType == "register" {
		redirectURL = frontend + "/?status=success_register"
	}
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
