// Package api is the single HTTP entry point to the core backend. Every
// request carries the session bearer token when one exists; the backend
// owns all carbon math, AI analysis, and the points ledger.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/session"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   session.Store
}

func New(cfg *config.Config, sessions session.Store) (*Client, error) {
	if cfg.CoreAPIURL == "" {
		return nil, &apperr.ConfigError{Key: "CORE_API_URL"}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.CoreAPIURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sessions:   sessions,
	}, nil
}

// do performs one JSON request. A transport failure maps to NetworkError, a
// non-2xx status to APIError carrying the backend's own message when the
// body has one.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.requestURL(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachToken(req)

	return c.send(req, out)
}

func (c *Client) requestURL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// attachToken adds the bearer header when the store holds a session. The
// request goes out bare otherwise; only the auth exchange relies on that.
func (c *Client) attachToken(req *http.Request) {
	if c.sessions == nil {
		return
	}
	sess, err := c.sessions.Read()
	if err != nil {
		logger.Warn("Failed to read session store", "error", err)
		return
	}
	if sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperr.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apperr.APIError{
			Status:  resp.StatusCode,
			Message: extractMessage(body, resp.StatusCode),
		}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// extractMessage surfaces the backend's message/error field verbatim,
// falling back to a generic status-derived line.
func extractMessage(body []byte, status int) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return apperr.StatusMessage(status)
}

// ExchangeToken trades a LINE user ID for a backend session token. Failures
// come back as AuthError so the login page can offer a retry.
func (c *Client) ExchangeToken(ctx context.Context, userID string) (string, error) {
	payload := map[string]string{"userId": userID}

	var result struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/line", nil, payload, &result)
	if err != nil {
		var apiErr *apperr.APIError
		if errors.As(err, &apiErr) {
			return "", &apperr.AuthError{Message: apiErr.Message}
		}
		return "", err
	}
	if result.Token == "" {
		return "", &apperr.AuthError{Message: "the server returned no session token"}
	}
	return result.Token, nil
}

// ProfileResponse is the enriched account view from the backend.
type ProfileResponse struct {
	Success bool                `json:"success"`
	User    *models.BackendUser `json:"user,omitempty"`
	Balance int                 `json:"balance"`
}

// FetchProfile is best-effort enrichment; callers treat a failure as "no
// enrichment", never as fatal.
func (c *Client) FetchProfile(ctx context.Context) (*ProfileResponse, error) {
	var result ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/profile", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateActivity(ctx context.Context, payload models.ActivityPayload) (*models.Activity, error) {
	var activity models.Activity
	if err := c.do(ctx, http.MethodPost, "/activities", nil, payload, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (c *Client) ListActivities(ctx context.Context, date string) ([]models.Activity, error) {
	query := url.Values{"date": {date}}

	var result struct {
		Activities []models.Activity `json:"activities"`
	}
	if err := c.do(ctx, http.MethodGet, "/activities", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Activities, nil
}

func (c *Client) UpdateActivityType(ctx context.Context, id, activityType string) (*models.Activity, error) {
	payload := map[string]string{"type": activityType}

	var activity models.Activity
	path := "/activities/" + url.PathEscape(id) + "/type"
	if err := c.do(ctx, http.MethodPatch, path, nil, payload, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

func (c *Client) GetCarbonSummary(ctx context.Context, date string) (*models.CarbonSummary, error) {
	query := url.Values{"date": {date}}

	var summary models.CarbonSummary
	if err := c.do(ctx, http.MethodGet, "/carbon/summary", query, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// calcActivityRef is the trimmed activity shape the AI endpoint accepts.
type calcActivityRef struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Date     string  `json:"date"`
}

// CalcActivitiesCO2 asks the backend AI to fill in CO2 for activities still
// pending. The whole batch goes in one request; callers pass only the
// pending subset (co2 == nil).
func (c *Client) CalcActivitiesCO2(ctx context.Context, pending []models.Activity) (*models.CalcResult, error) {
	refs := make([]calcActivityRef, 0, len(pending))
	for _, act := range pending {
		refs = append(refs, calcActivityRef{
			ID:       act.ID,
			Category: act.Category,
			Type:     act.Type,
			Value:    act.Value,
			Date:     act.Date,
		})
	}
	payload := map[string]interface{}{"activities": refs}

	var result models.CalcResult
	if err := c.do(ctx, http.MethodPost, "/ai/calc_co2", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// IdentifyFoodImage asks the backend AI to name the dish in an uploaded
// image. Older backend versions return the item at the top level, so both
// shapes are accepted.
func (c *Client) IdentifyFoodImage(ctx context.Context, imageURL string) (string, error) {
	payload := map[string]string{"imageUrl": imageURL}

	var result struct {
		Result *struct {
			Item struct {
				Name string `json:"name"`
			} `json:"item"`
		} `json:"result,omitempty"`
		Item *struct {
			Name string `json:"name"`
		} `json:"item,omitempty"`
	}
	if err := c.do(ctx, http.MethodPost, "/ai/identify_food_image", nil, payload, &result); err != nil {
		return "", err
	}

	if result.Result != nil && result.Result.Item.Name != "" {
		return result.Result.Item.Name, nil
	}
	if result.Item != nil && result.Item.Name != "" {
		return result.Item.Name, nil
	}
	return "", nil
}

// PlannerResponse is the AI daily planner envelope.
type PlannerResponse struct {
	Success bool                  `json:"success"`
	Result  *models.PlannerResult `json:"result,omitempty"`
	Message string                `json:"message,omitempty"`
}

func (c *Client) CreateDailyPlanner(ctx context.Context, activities []string) (*PlannerResponse, error) {
	payload := map[string]interface{}{"activities": activities}

	var result PlannerResponse
	if err := c.do(ctx, http.MethodPost, "/ai/daily_planner", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadFile sends the file as multipart form data and returns the durable
// URL the backend stored it under.
func (c *Client) UploadFile(ctx context.Context, filename string, file io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/storage/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.attachToken(req)

	var result struct {
		Success bool   `json:"success"`
		FileURL string `json:"fileUrl"`
	}
	if err := c.send(req, &result); err != nil {
		return "", err
	}
	if !result.Success || result.FileURL == "" {
		return "", &apperr.APIError{Status: http.StatusOK, Message: "upload did not return a file URL"}
	}
	return result.FileURL, nil
}

func (c *Client) ListRewards(ctx context.Context) ([]models.Reward, error) {
	var result struct {
		Success bool            `json:"success"`
		Rewards []models.Reward `json:"rewards"`
	}
	if err := c.do(ctx, http.MethodGet, "/rewards/list", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Rewards, nil
}

func (c *Client) GetRewardHistory(ctx context.Context) ([]models.RewardHistoryItem, error) {
	var result struct {
		Success bool                       `json:"success"`
		History []models.RewardHistoryItem `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/rewards/history", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.History, nil
}

// RedeemResult is the backend's answer to a redeem request. Redemption is
// atomic server-side; the only client-visible effect is a changed balance
// and a new history row on reload.
type RedeemResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (c *Client) RedeemReward(ctx context.Context, rewardID string) (*RedeemResult, error) {
	payload := map[string]string{"rewardId": rewardID}

	var result RedeemResult
	if err := c.do(ctx, http.MethodPost, "/rewards/redeem", nil, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetPointsBalance(ctx context.Context) (int, error) {
	var result struct {
		Success bool `json:"success"`
		Balance int  `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/points/balance", nil, nil, &result); err != nil {
		return 0, err
	}
	return result.Balance, nil
}

func (c *Client) GetPointsHistory(ctx context.Context) ([]models.PointsTransaction, error) {
	var result struct {
		Success bool                       `json:"success"`
		History []models.PointsTransaction `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/points/history", nil, nil, &result); err != nil {
		return nil, err
	}
	return result.History, nil
}

// EvaluateResult reports points granted by the daily evaluation.
type EvaluateResult struct {
	Success bool   `json:"success"`
	Points  int    `json:"points"`
	Message string `json:"message,omitempty"`
}

func (c *Client) EvaluatePoints(ctx context.Context) (*EvaluateResult, error) {
	var result EvaluateResult
	if err := c.do(ctx, http.MethodPost, "/points/evaluate", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
