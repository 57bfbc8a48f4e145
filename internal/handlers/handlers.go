package handlers

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/api"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/liff"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/middleware"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	idTokenCookie = "liff_id_token"
	stateCookie   = "liff_state"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, store session.Store, apiClient *api.Client, liffClient *liff.Client) {
	r.Use(middleware.LogRequests())
	r.Use(middleware.SecurityHeaders(cfg))
	r.Use(addDeps(cfg, store, apiClient, liffClient))
	r.Use(middleware.TrimSpaces())

	r.GET("/", middleware.AuthRateLimit(cfg), handleHome)
	r.GET("/auth/callback", middleware.AuthRateLimit(cfg), handleAuthCallback)
	r.POST("/logout", handleLogout)

	protected := r.Group("/")
	protected.Use(middleware.SessionRequired(store))
	{
		protected.GET("/tracker", handleTracker)
		protected.POST("/tracker/transport", handleSaveTransport)
		protected.POST("/tracker/food", handleSaveFood)
		protected.POST("/tracker/food/photo", handleFoodPhoto)
		protected.POST("/tracker/activity", handleSaveOtherActivity)
		protected.POST("/tracker/calc", handleCalcCO2)

		protected.GET("/planner", handlePlanner)
		protected.POST("/planner", handleGeneratePlan)

		protected.GET("/rewards", handleRewards)
		protected.POST("/rewards/redeem", handleRedeemReward)
		protected.POST("/rewards/evaluate", handleEvaluatePoints)
	}
}

func addDeps(cfg *config.Config, store session.Store, apiClient *api.Client, liffClient *liff.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("cfg", cfg)
		c.Set("session_store", store)
		c.Set("api", apiClient)
		c.Set("liff", liffClient)
		c.Next()
	}
}

func getConfig(c *gin.Context) *config.Config {
	return c.MustGet("cfg").(*config.Config)
}

func getStore(c *gin.Context) session.Store {
	return c.MustGet("session_store").(session.Store)
}

func getAPI(c *gin.Context) *api.Client {
	return c.MustGet("api").(*api.Client)
}

func getLiff(c *gin.Context) *liff.Client {
	return c.MustGet("liff").(*liff.Client)
}

// sessionExpired handles the backend rejecting the stored token: the
// session is cleared and the user restarts at the login bootstrap. Returns
// true when the request was redirected.
func sessionExpired(c *gin.Context, err error) bool {
	if err == nil || !apperr.IsUnauthorized(err) {
		return false
	}

	logger.Info("Backend rejected session token, clearing session")
	if clearErr := getStore(c).Clear(); clearErr != nil {
		logger.Error("Failed to clear session", "error", clearErr)
	}
	c.Redirect(http.StatusFound, "/")
	c.Abort()
	return true
}

// TemplateFuncMap is shared by main and the handler tests so both render
// with identical templates.
func TemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		"co2": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
		"co2short": func(v float64) string {
			return fmt.Sprintf("%.1f", v)
		},
		"percent": func(v float64) int {
			return int(v)
		},
	}
}
