package models

import "time"

const (
	CategoryTransport = "TRANSPORT"
	CategoryFood      = "FOOD"
	CategoryOther     = "OTHER"
)

// PendingImageType marks a FOOD activity created from an uploaded photo that
// has not been classified yet. A later identify call updates the type in
// place instead of creating a duplicate entry.
const PendingImageType = "PENDING_IMAGE"

// LineUser is the profile returned by the LINE platform after login.
type LineUser struct {
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
	UserID      string `json:"userId"`
}

// Activity is one logged entry for a calendar day. CO2 stays nil until the
// backend's AI pass fills it in; a nil CO2 means the entry is pending and
// eligible for batched recomputation.
type Activity struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	Value       float64  `json:"value"`
	Date        string   `json:"date"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
	CO2         *float64 `json:"co2,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// Pending returns the subset of activities whose CO2 has not been computed.
func Pending(activities []Activity) []Activity {
	var pending []Activity
	for _, act := range activities {
		if act.CO2 == nil {
			pending = append(pending, act)
		}
	}
	return pending
}

// ActivityPayload is the creation request for a new activity.
type ActivityPayload struct {
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Date     string  `json:"date"`
	ImageURL *string `json:"imageUrl,omitempty"`
	SlipURL  *string `json:"slipUrl,omitempty"`
}

// CategoryCounts holds per-category activity counts for one day.
type CategoryCounts struct {
	Transport int `json:"TRANSPORT"`
	Food      int `json:"FOOD"`
	Other     int `json:"OTHER"`
}

// CarbonSummary is the backend's read-only daily aggregate. The client never
// recomputes any of these values.
type CarbonSummary struct {
	Success             bool           `json:"success"`
	Date                string         `json:"date"`
	TotalCO2            float64        `json:"totalCo2"`
	AverageCO2          float64        `json:"averageCo2"`
	IsBelowAverage      bool           `json:"isBelowAverage"`
	Categories          CategoryCounts `json:"categories"`
	ActivitiesCompleted bool           `json:"activitiesCompleted"`
}

// CalcActivities is the inner payload of a batched AI recomputation result.
type CalcActivities struct {
	Activities []struct {
		ID          string  `json:"id"`
		CO2         float64 `json:"co2"`
		Description *string `json:"description,omitempty"`
	} `json:"activities,omitempty"`
	TotalCO2 float64 `json:"totalCo2,omitempty"`
}

// CalcResult is the outcome of a batched AI CO2 recomputation.
type CalcResult struct {
	Success      bool            `json:"success"`
	UpdatedCount int             `json:"updatedCount"`
	Message      string          `json:"message,omitempty"`
	Result       *CalcActivities `json:"result,omitempty"`
}

// PlannerAnalysis is one suggested swap in the AI daily plan.
type PlannerAnalysis struct {
	Original       string  `json:"original"`
	CurrentCO2     float64 `json:"current_co2"`
	Alternative    string  `json:"alternative"`
	AlternativeCO2 float64 `json:"alternative_co2"`
	Reduced        float64 `json:"reduced"`
}

// PlannerTravel is one travel-specific recommendation in the AI daily plan.
type PlannerTravel struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	DistanceKM      float64 `json:"distance_km"`
	CurrentMode     string  `json:"current_mode"`
	CurrentCO2      float64 `json:"current_co2"`
	RecommendedMode string  `json:"recommended_mode"`
	RecommendedCO2  float64 `json:"recommended_co2"`
	Reduced         float64 `json:"reduced"`
}

// PlannerResult is the AI daily planner output.
type PlannerResult struct {
	Analysis         []PlannerAnalysis `json:"analysis"`
	TravelAnalysis   []PlannerTravel   `json:"travel_analysis"`
	SummaryReduction float64           `json:"summary_reduction"`
}

type Reward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
}

type RewardHistoryItem struct {
	ID           string `json:"id"`
	RewardName   string `json:"rewardName"`
	RewardPoints int    `json:"rewardPoints"`
	Date         string `json:"date"`
}

type PointsTransaction struct {
	ID        string `json:"id"`
	Points    int    `json:"points"`
	Reason    string `json:"reason"`
	Date      string `json:"date"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// BackendUser is the enriched profile the core backend keeps for a LINE user.
type BackendUser struct {
	ID          string `json:"id"`
	LineUserID  string `json:"lineUserId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Today formats t as the calendar-day key used throughout the backend API.
func Today(t time.Time) string {
	return t.Format("2006-01-02")
}
