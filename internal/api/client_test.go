package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.MemoryStore, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := session.NewMemoryStore()
	client, err := New(&config.Config{
		CoreAPIURL:    server.URL,
		ChannelID:     "2000000000",
		ChannelSecret: "secret",
	}, store)
	if err != nil {
		t.Fatal("Failed to create client:", err)
	}
	return client, store, server
}

func floatPtr(v float64) *float64 { return &v }

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(&config.Config{}, session.NewMemoryStore())
	var cfgErr *apperr.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "CORE_API_URL" {
		t.Fatalf("Expected ConfigError for CORE_API_URL, got %v", err)
	}
}

func TestBearerTokenAttachedWhenSessionPresent(t *testing.T) {
	var gotAuth string
	client, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"activities":[]}`))
	}))

	if _, err := client.ListActivities(context.Background(), "2026-08-28"); err != nil {
		t.Fatal("ListActivities failed:", err)
	}
	if gotAuth != "" {
		t.Errorf("Expected no Authorization header without a session, got %q", gotAuth)
	}

	if err := store.Save("tok-abc", models.LineUser{UserID: "U1"}); err != nil {
		t.Fatal("Failed to save session:", err)
	}
	if _, err := client.ListActivities(context.Background(), "2026-08-28"); err != nil {
		t.Fatal("ListActivities failed:", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Expected 'Bearer tok-abc', got %q", gotAuth)
	}
}

func TestExchangeToken(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/line" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error("Failed to decode body:", err)
		}
		if body["userId"] != "U1234567890abcdef" {
			t.Errorf("Expected userId 'U1234567890abcdef', got %q", body["userId"])
		}
		w.Write([]byte(`{"token":"backend-token"}`))
	}))

	token, err := client.ExchangeToken(context.Background(), "U1234567890abcdef")
	if err != nil {
		t.Fatal("ExchangeToken failed:", err)
	}
	if token != "backend-token" {
		t.Errorf("Expected 'backend-token', got %s", token)
	}
}

func TestExchangeTokenMissingTokenField(t *testing.T) {
	client, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))

	_, err := client.ExchangeToken(context.Background(), "U1")
	var authErr *apperr.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}

	// Nothing may have been persisted on the failed exchange.
	sess, _ := store.Read()
	if sess != nil {
		t.Error("Expected session store to stay empty after failed exchange")
	}
}

func TestExchangeTokenNon2xxBecomesAuthError(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"unknown LINE user"}`))
	}))

	_, err := client.ExchangeToken(context.Background(), "U1")
	var authErr *apperr.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if authErr.Message != "unknown LINE user" {
		t.Errorf("Expected backend message verbatim, got %q", authErr.Message)
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
	}{
		{"message field", http.StatusBadRequest, `{"message":"X"}`, "X"},
		{"error field", http.StatusBadRequest, `{"error":"bad category"}`, "bad category"},
		{"no body", http.StatusBadGateway, ``, apperr.StatusMessage(http.StatusBadGateway)},
		{"unparseable body", http.StatusInternalServerError, `<html>oops</html>`, apperr.StatusMessage(http.StatusInternalServerError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.GetCarbonSummary(context.Background(), "2026-08-28")
			var apiErr *apperr.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got %v", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Message != tt.want {
				t.Errorf("Expected message %q, got %q", tt.want, apiErr.Message)
			}
		})
	}
}

func TestNetworkErrorOnTransportFailure(t *testing.T) {
	client, _, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.ListActivities(context.Background(), "2026-08-28")
	var netErr *apperr.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
}

func TestCreateActivity(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.ActivityPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Error("Failed to decode payload:", err)
		}
		if payload.Category != models.CategoryTransport || payload.Type != "BTS" || payload.Value != 5 {
			t.Errorf("Unexpected payload %+v", payload)
		}
		w.Write([]byte(`{"id":"act-1","category":"TRANSPORT","type":"BTS","value":5,"date":"2026-08-28"}`))
	}))

	activity, err := client.CreateActivity(context.Background(), models.ActivityPayload{
		Category: models.CategoryTransport,
		Type:     "BTS",
		Value:    5,
		Date:     "2026-08-28",
	})
	if err != nil {
		t.Fatal("CreateActivity failed:", err)
	}
	if activity.ID != "act-1" {
		t.Errorf("Expected activity ID 'act-1', got %s", activity.ID)
	}
}

func TestCalcActivitiesCO2BatchesPendingIntoOneRequest(t *testing.T) {
	var requests int
	var gotIDs []string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var payload struct {
			Activities []struct {
				ID       string  `json:"id"`
				Category string  `json:"category"`
				Type     string  `json:"type"`
				Value    float64 `json:"value"`
				Date     string  `json:"date"`
			} `json:"activities"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Error("Failed to decode payload:", err)
		}
		for _, act := range payload.Activities {
			gotIDs = append(gotIDs, act.ID)
		}
		w.Write([]byte(`{"success":true,"updatedCount":2}`))
	}))

	activities := []models.Activity{
		{ID: "a1", Category: models.CategoryTransport, Type: "BTS", Value: 5, Date: "2026-08-28"},
		{ID: "a2", Category: models.CategoryFood, Type: "Pad Thai", Value: 1, Date: "2026-08-28", CO2: floatPtr(1.2)},
		{ID: "a3", Category: models.CategoryOther, Type: "Yoga", Value: 0.5, Date: "2026-08-28"},
	}

	pending := models.Pending(activities)
	result, err := client.CalcActivitiesCO2(context.Background(), pending)
	if err != nil {
		t.Fatal("CalcActivitiesCO2 failed:", err)
	}

	if requests != 1 {
		t.Errorf("Expected exactly 1 request for the whole batch, got %d", requests)
	}
	if len(gotIDs) != 2 || gotIDs[0] != "a1" || gotIDs[1] != "a3" {
		t.Errorf("Expected exactly the pending subset [a1 a3], got %v", gotIDs)
	}
	if result.UpdatedCount != 2 {
		t.Errorf("Expected updatedCount 2, got %d", result.UpdatedCount)
	}
}

func TestIdentifyFoodImageBothShapes(t *testing.T) {
	bodies := []string{
		`{"result":{"item":{"name":"Pad Thai"}}}`,
		`{"item":{"name":"Pad Thai"}}`,
	}
	for _, body := range bodies {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		name, err := client.IdentifyFoodImage(context.Background(), "https://cdn.example.com/food.jpg")
		if err != nil {
			t.Fatal("IdentifyFoodImage failed:", err)
		}
		if name != "Pad Thai" {
			t.Errorf("Expected 'Pad Thai' from %s, got %q", body, name)
		}
	}
}

func TestUploadFile(t *testing.T) {
	client, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Expected multipart content type, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer tok-up" {
			t.Errorf("Expected bearer header on upload, got %q", r.Header.Get("Authorization"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal("Missing file form field:", err)
		}
		defer file.Close()
		if header.Filename != "lunch.jpg" {
			t.Errorf("Expected filename 'lunch.jpg', got %s", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "jpeg-bytes" {
			t.Errorf("Unexpected file content %q", content)
		}
		w.Write([]byte(`{"success":true,"fileUrl":"https://storage.example.com/lunch.jpg"}`))
	}))

	if err := store.Save("tok-up", models.LineUser{UserID: "U1"}); err != nil {
		t.Fatal("Failed to save session:", err)
	}

	fileURL, err := client.UploadFile(context.Background(), "lunch.jpg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatal("UploadFile failed:", err)
	}
	if fileURL != "https://storage.example.com/lunch.jpg" {
		t.Errorf("Unexpected file URL %s", fileURL)
	}
}

func TestRewardsAndPoints(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rewards/list":
			w.Write([]byte(`{"success":true,"rewards":[{"id":"r1","name":"Tote bag","description":"Canvas","cost":100}]}`))
		case "/points/balance":
			w.Write([]byte(`{"success":true,"balance":120}`))
		case "/points/history":
			w.Write([]byte(`{"success":true,"history":[{"id":"p1","points":10,"reason":"Walked to campus","date":"2026-08-28"}]}`))
		case "/rewards/history":
			w.Write([]byte(`{"success":true,"history":[{"id":"h1","rewardName":"Tote bag","rewardPoints":100,"date":"2026-08-01"}]}`))
		case "/rewards/redeem":
			w.Write([]byte(`{"success":true,"message":"redeemed"}`))
		case "/points/evaluate":
			w.Write([]byte(`{"success":true,"points":15}`))
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))

	ctx := context.Background()

	rewards, err := client.ListRewards(ctx)
	if err != nil || len(rewards) != 1 || rewards[0].Cost != 100 {
		t.Fatalf("ListRewards failed: %v %+v", err, rewards)
	}

	balance, err := client.GetPointsBalance(ctx)
	if err != nil || balance != 120 {
		t.Fatalf("GetPointsBalance failed: %v %d", err, balance)
	}

	history, err := client.GetPointsHistory(ctx)
	if err != nil || len(history) != 1 || history[0].Points != 10 {
		t.Fatalf("GetPointsHistory failed: %v %+v", err, history)
	}

	rewardHistory, err := client.GetRewardHistory(ctx)
	if err != nil || len(rewardHistory) != 1 {
		t.Fatalf("GetRewardHistory failed: %v %+v", err, rewardHistory)
	}

	redeem, err := client.RedeemReward(ctx, "r1")
	if err != nil || !redeem.Success {
		t.Fatalf("RedeemReward failed: %v %+v", err, redeem)
	}

	eval, err := client.EvaluatePoints(ctx)
	if err != nil || eval.Points != 15 {
		t.Fatalf("EvaluatePoints failed: %v %+v", err, eval)
	}
}

func TestUpdateActivityType(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/activities/act-9/type" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != "Pad Thai" {
			t.Errorf("Expected type 'Pad Thai', got %q", body["type"])
		}
		w.Write([]byte(`{"id":"act-9","category":"FOOD","type":"Pad Thai","value":1,"date":"2026-08-28"}`))
	}))

	activity, err := client.UpdateActivityType(context.Background(), "act-9", "Pad Thai")
	if err != nil {
		t.Fatal("UpdateActivityType failed:", err)
	}
	if activity.Type != "Pad Thai" {
		t.Errorf("Expected updated type 'Pad Thai', got %s", activity.Type)
	}
}
