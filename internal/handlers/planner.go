package handlers

import (
	"net/http"
	"strings"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"

	"github.com/gin-gonic/gin"
)

func handlePlanner(c *gin.Context) {
	c.HTML(http.StatusOK, "planner.html", gin.H{
		"Title": "AI Daily Planner - Lowest Carbon",
		"User":  currentSessionView(c),
	})
}

// handleGeneratePlan turns the free-text day description into activity
// lines and asks the AI planner for lower-carbon alternatives.
func handleGeneratePlan(c *gin.Context) {
	description := c.PostForm("description")
	activities := splitActivities(description)

	view := gin.H{
		"Title":       "AI Daily Planner - Lowest Carbon",
		"User":        currentSessionView(c),
		"Description": description,
	}

	if len(activities) == 0 {
		view["Error"] = "Please describe your plans for today first"
		c.HTML(http.StatusBadRequest, "planner.html", view)
		return
	}

	result, err := getAPI(c).CreateDailyPlanner(c.Request.Context(), activities)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		logger.Warn("Daily planner request failed", "error", err)
		view["Error"] = apperr.UserMessage(err)
		c.HTML(http.StatusOK, "planner.html", view)
		return
	}
	if !result.Success || result.Result == nil {
		message := result.Message
		if message == "" {
			message = "The AI returned an unusable plan"
		}
		view["Error"] = message
		c.HTML(http.StatusOK, "planner.html", view)
		return
	}

	view["Result"] = result.Result
	c.HTML(http.StatusOK, "planner.html", view)
}

// splitActivities breaks the description on newlines and semicolons,
// dropping blank lines.
func splitActivities(description string) []string {
	parts := strings.FieldsFunc(description, func(r rune) bool {
		return r == '\n' || r == ';'
	})

	var activities []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			activities = append(activities, trimmed)
		}
	}
	return activities
}
