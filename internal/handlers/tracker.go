package handlers

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/fetch"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/middleware"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var transportMethods = []string{"Walk", "BTS", "MRT", "Bus", "Motorcycle", "Car", "Bicycle"}

// Daily logging targets per category; meeting them earns points.
const categoryTarget = 2

type progressRow struct {
	Label   string
	Current int
	Total   int
	Percent float64
}

type activityRow struct {
	models.Activity
	ValueLabel string
	CO2Label   string
}

func handleTracker(c *gin.Context) {
	today := models.Today(time.Now())

	view, redirected := loadTrackerView(c, today)
	if redirected {
		return
	}

	if notice := c.Query("notice"); notice != "" {
		view["Notice"] = notice
	}
	if errMsg := c.Query("error"); errMsg != "" {
		view["Error"] = errMsg
	}

	c.HTML(http.StatusOK, "tracker.html", view)
}

// loadTrackerView fetches activities and the carbon summary concurrently.
// Either fetch may fail without taking the other down; each failure shows
// up only in its own section of the page.
func loadTrackerView(c *gin.Context, today string) (gin.H, bool) {
	apiClient := getAPI(c)
	ctx := c.Request.Context()
	sess := currentSessionView(c)

	activitiesTask := fetch.Start(func() ([]models.Activity, error) {
		return apiClient.ListActivities(ctx, today)
	})
	summaryTask := fetch.Start(func() (*models.CarbonSummary, error) {
		return apiClient.GetCarbonSummary(ctx, today)
	})

	activitiesRes := activitiesTask.Wait()
	summaryRes := summaryTask.Wait()

	if sessionExpired(c, activitiesRes.Err) || sessionExpired(c, summaryRes.Err) {
		return nil, true
	}

	view := gin.H{
		"Title":            "Eco Tracker - Lowest Carbon",
		"User":             sess,
		"Today":            today,
		"TransportMethods": transportMethods,
	}

	if activitiesRes.Err != nil {
		logger.Warn("Failed to load activities", "date", today, "error", activitiesRes.Err)
		view["ActivitiesError"] = apperr.UserMessage(activitiesRes.Err)
	} else {
		rows := make([]activityRow, 0, len(activitiesRes.Data))
		for _, act := range activitiesRes.Data {
			rows = append(rows, activityRow{
				Activity:   act,
				ValueLabel: activityValueLabel(act),
				CO2Label:   activityCO2Label(act),
			})
		}
		view["Activities"] = rows
		view["PendingCount"] = len(models.Pending(activitiesRes.Data))
	}

	if summaryRes.Err != nil {
		logger.Warn("Failed to load carbon summary", "date", today, "error", summaryRes.Err)
		view["SummaryError"] = apperr.UserMessage(summaryRes.Err)
	} else {
		summary := summaryRes.Data
		view["Summary"] = summary

		progressValue := 0.0
		if summary.AverageCO2 > 0 {
			progressValue = math.Min(100, summary.TotalCO2/summary.AverageCO2*100)
		}
		view["ProgressValue"] = progressValue

		counts := summary.Categories
		view["ProgressRows"] = []progressRow{
			categoryProgress("Transport", counts.Transport),
			categoryProgress("Food", counts.Food),
			categoryProgress("Other activities", counts.Other),
		}
		view["RemainingTasks"] = remainingTasks(counts)
	}

	return view, false
}

func categoryProgress(label string, current int) progressRow {
	return progressRow{
		Label:   label,
		Current: current,
		Total:   categoryTarget,
		Percent: math.Min(100, float64(current)/categoryTarget*100),
	}
}

func remainingTasks(counts models.CategoryCounts) int {
	remaining := 0
	for _, current := range []int{counts.Transport, counts.Food, counts.Other} {
		if current < categoryTarget {
			remaining += categoryTarget - current
		}
	}
	return remaining
}

func activityValueLabel(act models.Activity) string {
	switch act.Category {
	case models.CategoryTransport:
		return fmt.Sprintf("%g km", act.Value)
	case models.CategoryFood:
		return fmt.Sprintf("%g meal", act.Value)
	case models.CategoryOther:
		minutes := int(math.Round(act.Value * 60))
		return fmt.Sprintf("%d min", minutes)
	}
	return ""
}

func activityCO2Label(act models.Activity) string {
	if act.CO2 == nil {
		return "awaiting AI"
	}
	return fmt.Sprintf("%.2f kg CO2", *act.CO2)
}

func currentSessionView(c *gin.Context) interface{} {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		return nil
	}
	return sess.User
}

func handleSaveTransport(c *gin.Context) {
	method := c.PostForm("method")
	if !validTransportMethod(method) {
		redirectTracker(c, "", "Please choose a transport method")
		return
	}

	value, err := strconv.ParseFloat(c.PostForm("distance"), 64)
	if err != nil || value <= 0 {
		redirectTracker(c, "", "Please enter a valid distance")
		return
	}

	_, err = getAPI(c).CreateActivity(c.Request.Context(), models.ActivityPayload{
		Category: models.CategoryTransport,
		Type:     method,
		Value:    value,
		Date:     models.Today(time.Now()),
	})
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}

	redirectTracker(c, "Trip saved", "")
}

func handleSaveFood(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		redirectTracker(c, "", "Please enter a dish name")
		return
	}

	_, err := getAPI(c).CreateActivity(c.Request.Context(), models.ActivityPayload{
		Category: models.CategoryFood,
		Type:     name,
		Value:    1,
		Date:     models.Today(time.Now()),
	})
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}

	redirectTracker(c, "Meal saved", "")
}

func handleSaveOtherActivity(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		redirectTracker(c, "", "Please enter an activity name")
		return
	}

	minutes, err := strconv.ParseFloat(c.PostForm("duration"), 64)
	if err != nil || minutes <= 0 {
		redirectTracker(c, "", "Please enter a duration in minutes")
		return
	}

	// The AI backend expects OTHER values in hours.
	_, err = getAPI(c).CreateActivity(c.Request.Context(), models.ActivityPayload{
		Category: models.CategoryOther,
		Type:     name,
		Value:    minutes / 60,
		Date:     models.Today(time.Now()),
	})
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}

	redirectTracker(c, "Activity saved", "")
}

// handleFoodPhoto uploads the photo, asks the AI to name the dish, then
// either updates a pending image activity or creates a fresh FOOD entry.
func handleFoodPhoto(c *gin.Context) {
	apiClient := getAPI(c)
	ctx := c.Request.Context()
	today := models.Today(time.Now())

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		redirectTracker(c, "", "Please choose a photo")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		redirectTracker(c, "", "Could not read the uploaded photo")
		return
	}
	defer file.Close()

	filename := fileHeader.Filename
	if filename == "" {
		filename = uuid.New().String() + ".jpg"
	} else {
		filename = filepath.Base(filename)
	}

	fileURL, err := apiClient.UploadFile(ctx, filename, file)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}

	name, err := apiClient.IdentifyFoodImage(ctx, fileURL)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}
	if name == "" {
		name = "Food"
	}

	// An activity that already carries this image (or is still waiting for
	// one) gets its type updated instead of a duplicate entry.
	activities, err := apiClient.ListActivities(ctx, today)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		logger.Warn("Could not check for pending image activity", "error", err)
	}

	if existing := findPendingImageActivity(activities, fileURL); existing != nil {
		if _, err := apiClient.UpdateActivityType(ctx, existing.ID, name); err != nil {
			if sessionExpired(c, err) {
				return
			}
			redirectTracker(c, "", apperr.UserMessage(err))
			return
		}
		redirectTracker(c, fmt.Sprintf("Identified: %s (updated existing entry)", name), "")
		return
	}

	_, err = apiClient.CreateActivity(ctx, models.ActivityPayload{
		Category: models.CategoryFood,
		Type:     name,
		Value:    1,
		Date:     today,
		ImageURL: &fileURL,
	})
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}

	redirectTracker(c, fmt.Sprintf("Identified: %s", name), "")
}

func findPendingImageActivity(activities []models.Activity, imageURL string) *models.Activity {
	for i, act := range activities {
		if act.Category == models.CategoryFood && act.ImageURL != nil && *act.ImageURL == imageURL {
			return &activities[i]
		}
	}
	for i, act := range activities {
		if act.Category == models.CategoryFood && act.Type == models.PendingImageType {
			return &activities[i]
		}
	}
	return nil
}

// handleCalcCO2 sends every pending activity to the AI in a single batch.
func handleCalcCO2(c *gin.Context) {
	apiClient := getAPI(c)
	ctx := c.Request.Context()
	today := models.Today(time.Now())

	activities, err := apiClient.ListActivities(ctx, today)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}

	pending := models.Pending(activities)
	if len(pending) == 0 {
		redirectTracker(c, "", "All activities are already calculated")
		return
	}

	result, err := apiClient.CalcActivitiesCO2(ctx, pending)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectTracker(c, "", apperr.UserMessage(err))
		return
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "AI calculation did not succeed"
		}
		redirectTracker(c, "", message)
		return
	}

	if result.UpdatedCount > 0 {
		redirectTracker(c, fmt.Sprintf("AI updated %d activities", result.UpdatedCount), "")
		return
	}
	redirectTracker(c, "AI checked, nothing to update yet", "")
}

func validTransportMethod(method string) bool {
	for _, known := range transportMethods {
		if method == known {
			return true
		}
	}
	return false
}

func redirectTracker(c *gin.Context, notice, errMsg string) {
	params := url.Values{}
	if notice != "" {
		params.Set("notice", notice)
	}
	if errMsg != "" {
		params.Set("error", errMsg)
	}

	target := "/tracker"
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	c.Redirect(http.StatusSeeOther, target)
}
