// Package liff wraps LINE login for the mini-app: one-time client
// initialization, login-state checks against the ID token issued on the
// login callback, and construction of the redirect-based login flow.
package liff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAuthorizeURL = "https://access.line.me/oauth2/v2.1/authorize"
	defaultTokenURL     = "https://api.line.me/oauth2/v2.1/token"
	idTokenIssuer       = "https://access.line.me"
)

// ErrLoginRedirect signals that the caller must hand control to the LINE
// login page. It is a normal control-flow branch, not a failure: the caller
// stops rendering and issues the redirect.
var ErrLoginRedirect = fmt.Errorf("login redirect required")

// Client performs the LINE side of the session bootstrap.
type Client struct {
	channelID     string
	channelSecret string
	httpClient    *http.Client

	authorizeURL string
	tokenURL     string

	mu          sync.Mutex
	initialized bool
	initErr     error
	pending     chan struct{}

	// initFn performs the one-time setup. Swapped out in tests.
	initFn func(ctx context.Context) error
}

func New(cfg *config.Config) *Client {
	c := &Client{
		channelID:     cfg.ChannelID,
		channelSecret: cfg.ChannelSecret,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		authorizeURL:  defaultAuthorizeURL,
		tokenURL:      defaultTokenURL,
	}
	c.initFn = c.setupEndpoints
	return c
}

func (c *Client) setupEndpoints(ctx context.Context) error {
	if _, err := url.Parse(c.authorizeURL); err != nil {
		return fmt.Errorf("invalid authorize endpoint: %w", err)
	}
	if _, err := url.Parse(c.tokenURL); err != nil {
		return fmt.Errorf("invalid token endpoint: %w", err)
	}
	return nil
}

// Initialize prepares the client exactly once. Concurrent callers during an
// in-flight initialization wait on the same attempt instead of starting
// another one. A failed attempt may be retried by a later call.
func (c *Client) Initialize(ctx context.Context) error {
	if c.channelID == "" {
		return &apperr.ConfigError{Key: "LIFF_CHANNEL_ID"}
	}

	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}

	if c.pending == nil {
		done := make(chan struct{})
		c.pending = done
		c.mu.Unlock()

		err := c.initFn(ctx)

		c.mu.Lock()
		if err == nil {
			c.initialized = true
		}
		c.initErr = err
		c.pending = nil
		c.mu.Unlock()
		close(done)
		return err
	}

	done := c.pending
	c.mu.Unlock()

	select {
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.initialized {
			return nil
		}
		return c.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureLoggedIn returns the LINE profile carried by idToken. An empty or
// unverifiable token means the user is not logged in, and the caller gets
// ErrLoginRedirect: it must stop and send the browser to LoginURL.
func (c *Client) EnsureLoggedIn(ctx context.Context, idToken string) (models.LineUser, error) {
	if err := c.Initialize(ctx); err != nil {
		return models.LineUser{}, err
	}

	if idToken == "" {
		return models.LineUser{}, ErrLoginRedirect
	}

	user, err := c.verifyIDToken(idToken)
	if err != nil {
		logger.Debug("ID token rejected, requesting fresh login", "error", err)
		return models.LineUser{}, ErrLoginRedirect
	}

	return user, nil
}

func (c *Client) verifyIDToken(idToken string) (models.LineUser, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(c.channelSecret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(idTokenIssuer),
		jwt.WithAudience(c.channelID),
	)
	if err != nil {
		return models.LineUser{}, fmt.Errorf("failed to verify ID token: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return models.LineUser{}, fmt.Errorf("ID token has no subject")
	}

	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	return models.LineUser{
		DisplayName: name,
		PictureURL:  picture,
		UserID:      sub,
	}, nil
}

// NewState returns the nonce tying a login redirect to its callback.
func NewState() string {
	return uuid.New().String()
}

// LoginURL builds the LINE authorize URL that starts the redirect-based
// login. Navigating there leaves the page; the flow resumes on redirectURI.
func (c *Client) LoginURL(state, redirectURI string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.channelID)
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)
	params.Set("scope", "profile openid")
	return c.authorizeURL + "?" + params.Encode()
}

// ExchangeCode trades the callback authorization code for the ID token that
// represents the logged-in LINE user.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", c.channelID)
	form.Set("client_secret", c.channelSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &apperr.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apperr.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := apperr.StatusMessage(resp.StatusCode)
		var errBody struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(body, &errBody) == nil && errBody.Description != "" {
			message = errBody.Description
		}
		return "", &apperr.AuthError{Message: message}
	}

	var tokenBody struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(body, &tokenBody); err != nil {
		return "", &apperr.AuthError{Message: "LINE returned an unreadable token response", Err: err}
	}
	if tokenBody.IDToken == "" {
		return "", &apperr.AuthError{Message: "LINE returned no ID token"}
	}

	return tokenBody.IDToken, nil
}
