package handlers

import (
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/apperr"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/fetch"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/models"

	"github.com/gin-gonic/gin"
)

type rewardRow struct {
	models.Reward
	Affordable bool
}

func handleRewards(c *gin.Context) {
	apiClient := getAPI(c)
	ctx := c.Request.Context()

	balanceTask := fetch.Start(func() (int, error) {
		return apiClient.GetPointsBalance(ctx)
	})
	rewardsTask := fetch.Start(func() ([]models.Reward, error) {
		return apiClient.ListRewards(ctx)
	})
	pointsHistoryTask := fetch.Start(func() ([]models.PointsTransaction, error) {
		return apiClient.GetPointsHistory(ctx)
	})
	rewardHistoryTask := fetch.Start(func() ([]models.RewardHistoryItem, error) {
		return apiClient.GetRewardHistory(ctx)
	})

	balanceRes := balanceTask.Wait()
	rewardsRes := rewardsTask.Wait()
	pointsHistoryRes := pointsHistoryTask.Wait()
	rewardHistoryRes := rewardHistoryTask.Wait()

	if sessionExpired(c, balanceRes.Err) || sessionExpired(c, rewardsRes.Err) ||
		sessionExpired(c, pointsHistoryRes.Err) || sessionExpired(c, rewardHistoryRes.Err) {
		return
	}

	view := gin.H{
		"Title": "Green Points - Lowest Carbon",
		"User":  currentSessionView(c),
	}

	balance := 0
	if balanceRes.Err != nil {
		logger.Warn("Failed to load points balance", "error", balanceRes.Err)
		view["BalanceError"] = apperr.UserMessage(balanceRes.Err)
	} else {
		balance = balanceRes.Data
		view["Balance"] = balance
	}

	if rewardsRes.Err != nil {
		logger.Warn("Failed to load rewards", "error", rewardsRes.Err)
		view["RewardsError"] = apperr.UserMessage(rewardsRes.Err)
	} else {
		rows := make([]rewardRow, 0, len(rewardsRes.Data))
		for _, reward := range rewardsRes.Data {
			rows = append(rows, rewardRow{
				Reward:     reward,
				Affordable: reward.Cost <= balance,
			})
		}
		view["Rewards"] = rows
		view["NextTarget"], view["TargetProgress"] = nextTarget(rewardsRes.Data, balance)
	}

	if pointsHistoryRes.Err != nil {
		view["PointsHistoryError"] = apperr.UserMessage(pointsHistoryRes.Err)
	} else {
		view["PointsHistory"] = pointsHistoryRes.Data
	}

	if rewardHistoryRes.Err != nil {
		view["RewardHistoryError"] = apperr.UserMessage(rewardHistoryRes.Err)
	} else {
		view["RewardHistory"] = rewardHistoryRes.Data
	}

	if notice := c.Query("notice"); notice != "" {
		view["Notice"] = notice
	}
	if errMsg := c.Query("error"); errMsg != "" {
		view["Error"] = errMsg
	}

	c.HTML(http.StatusOK, "rewards.html", view)
}

// nextTarget picks the cheapest reward still out of reach as the progress
// goal, falling back to the classic 200-point target.
func nextTarget(rewards []models.Reward, balance int) (int, float64) {
	target := 0
	for _, reward := range rewards {
		if reward.Cost > balance && (target == 0 || reward.Cost < target) {
			target = reward.Cost
		}
	}
	if target == 0 {
		target = 200
	}
	return target, math.Min(100, float64(balance)/float64(target)*100)
}

// handleRedeemReward refuses locally when the reward costs more than the
// current balance: no redeem request may reach the backend in that case.
func handleRedeemReward(c *gin.Context) {
	apiClient := getAPI(c)
	ctx := c.Request.Context()

	rewardID := c.PostForm("reward_id")
	if rewardID == "" {
		redirectRewards(c, "", "No reward selected")
		return
	}

	balanceTask := fetch.Start(func() (int, error) {
		return apiClient.GetPointsBalance(ctx)
	})
	rewardsTask := fetch.Start(func() ([]models.Reward, error) {
		return apiClient.ListRewards(ctx)
	})
	balanceRes := balanceTask.Wait()
	rewardsRes := rewardsTask.Wait()

	if sessionExpired(c, balanceRes.Err) || sessionExpired(c, rewardsRes.Err) {
		return
	}
	if balanceRes.Err != nil {
		redirectRewards(c, "", apperr.UserMessage(balanceRes.Err))
		return
	}
	if rewardsRes.Err != nil {
		redirectRewards(c, "", apperr.UserMessage(rewardsRes.Err))
		return
	}

	var reward *models.Reward
	for i := range rewardsRes.Data {
		if rewardsRes.Data[i].ID == rewardID {
			reward = &rewardsRes.Data[i]
			break
		}
	}
	if reward == nil {
		redirectRewards(c, "", "Unknown reward")
		return
	}

	if reward.Cost > balanceRes.Data {
		redirectRewards(c, "", "Not enough points for this reward")
		return
	}

	result, err := apiClient.RedeemReward(ctx, rewardID)
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectRewards(c, "", apperr.UserMessage(err))
		return
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "Redemption was declined"
		}
		redirectRewards(c, "", message)
		return
	}

	redirectRewards(c, fmt.Sprintf("Redeemed %s", reward.Name), "")
}

func handleEvaluatePoints(c *gin.Context) {
	result, err := getAPI(c).EvaluatePoints(c.Request.Context())
	if sessionExpired(c, err) {
		return
	}
	if err != nil {
		redirectRewards(c, "", apperr.UserMessage(err))
		return
	}
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "Evaluation did not succeed"
		}
		redirectRewards(c, "", message)
		return
	}

	redirectRewards(c, fmt.Sprintf("Earned %d points today", result.Points), "")
}

func redirectRewards(c *gin.Context, notice, errMsg string) {
	params := url.Values{}
	if notice != "" {
		params.Set("notice", notice)
	}
	if errMsg != "" {
		params.Set("error", errMsg)
	}

	target := "/rewards"
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	c.Redirect(http.StatusSeeOther, target)
}
