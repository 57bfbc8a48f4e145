package handlers

import (
	"errors"
	"net/http"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/liff"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"

	"github.com/gin-gonic/gin"
)

// handleHome is the entry page and runs the whole session bootstrap:
// LINE login, token exchange, session persistence. Pages further in
// never see an unauthenticated user.
func handleHome(c *gin.Context) {
	store := getStore(c)
	apiClient := getAPI(c)
	liffClient := getLiff(c)
	cfg := getConfig(c)

	if sess, err := store.Read(); err == nil && sess != nil {
		c.Redirect(http.StatusFound, "/tracker")
		return
	}

	ctx := c.Request.Context()

	idToken, _ := c.Cookie(idTokenCookie)
	user, err := liffClient.EnsureLoggedIn(ctx, idToken)
	if errors.Is(err, liff.ErrLoginRedirect) {
		// Control leaves the page here; nothing below may run.
		state := liff.NewState()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, 600, "/", "", !cfg.IsDevelopment(), true)
		c.Redirect(http.StatusFound, liffClient.LoginURL(state, callbackURL(c, cfg)))
		return
	}
	if err != nil {
		renderLoginError(c, err)
		return
	}

	token, err := apiClient.ExchangeToken(ctx, user.UserID)
	if err != nil {
		logger.Warn("Token exchange failed", "user_id", user.UserID, "error", err)
		renderLoginError(c, err)
		return
	}

	if err := store.Save(token, user); err != nil {
		logger.Error("Failed to persist session", "error", err)
		renderLoginError(c, err)
		return
	}

	// Profile enrichment is best-effort; a failure is not fatal.
	if profile, err := apiClient.FetchProfile(ctx); err != nil {
		logger.Debug("Profile enrichment skipped", "error", err)
	} else if profile.User != nil {
		logger.Info("Signed in", "user_id", user.UserID, "balance", profile.Balance)
	}

	c.Redirect(http.StatusFound, "/tracker")
}

// handleAuthCallback finishes the redirect-based login: the authorization
// code comes back from LINE and is traded for the ID token the entry page
// verifies.
func handleAuthCallback(c *gin.Context) {
	liffClient := getLiff(c)
	cfg := getConfig(c)

	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		renderLoginError(c, &apperr.AuthError{Message: "LINE login was cancelled or denied"})
		return
	}

	expectedState, err := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/", "", !cfg.IsDevelopment(), true)
	if err != nil || state == "" || state != expectedState {
		renderLoginError(c, &apperr.AuthError{Message: "login state mismatch, please try again"})
		return
	}

	idToken, err := liffClient.ExchangeCode(c.Request.Context(), code, callbackURL(c, cfg))
	if err != nil {
		renderLoginError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(idTokenCookie, idToken, 3600, "/", "", !cfg.IsDevelopment(), true)
	c.Redirect(http.StatusFound, "/")
}

func handleLogout(c *gin.Context) {
	cfg := getConfig(c)

	if err := getStore(c).Clear(); err != nil {
		logger.Error("Failed to clear session on logout", "error", err)
	}
	c.SetCookie(idTokenCookie, "", -1, "/", "", !cfg.IsDevelopment(), true)
	c.Redirect(http.StatusFound, "/")
}

func callbackURL(c *gin.Context, cfg *config.Config) string {
	scheme := "https"
	if cfg.IsDevelopment() {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host + "/auth/callback"
}

func renderLoginError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var apiErr *apperr.APIError
	if errors.As(err, &apiErr) {
		status = http.StatusBadGateway
	}
	var authErr *apperr.AuthError
	if errors.As(err, &authErr) {
		status = http.StatusUnauthorized
	}

	c.HTML(status, "home.html", gin.H{
		"Title": "Sign in - Lowest Carbon",
		"Error": apperr.UserMessage(err),
	})
}
