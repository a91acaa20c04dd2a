package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"beehive/internal/hiveapi"
)

func GetClaimableRewards(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	wallet := c.GetString("wallet")

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	rewards, err := queries.ClaimableRewards(wallet, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "count": len(rewards)})
}

func GetPendingRewards(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	wallet := c.GetString("wallet")

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	rewards, err := queries.PendingRewards(wallet, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "count": len(rewards)})
}

func GetRewardHistory(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	wallet := c.GetString("wallet")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	rewards, err := queries.History(wallet, limit, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "count": len(rewards)})
}

func GetRewardSummary(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	wallet := c.GetString("wallet")

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	summary, err := queries.Summary(wallet, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type claimParams struct {
	RewardId string `json:"reward_id" binding:"required"`
}

func ClaimReward(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	wallet := c.GetString("wallet")
	var params claimParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := hiveapi.NewTimerEngine(hiveapi.CurrentAppConfig.Settings)
	reward, err := engine.ClaimReward(hiveapi.NewStore(app.Db), wallet, params.RewardId)
	if err != nil {
		switch {
		case errors.Is(err, hiveapi.ErrNotEligible):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, hiveapi.ErrStaleReward):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reward": hiveapi.RewardDataOf(reward, time.Now()),
		"amount": hiveapi.Cents(reward.RewardAmountCents),
	})
}

// ProcessExpired runs one sweep pass on demand, same routine the
// background scheduler runs periodically.
func ProcessExpired(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)

	engine := hiveapi.NewTimerEngine(hiveapi.CurrentAppConfig.Settings)
	report, err := engine.SweepDue(hiveapi.NewStore(app.Db), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ScheduleSweep enqueues a sweep task for the sweeper process instead
// of running it inline.
func ScheduleSweep(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)

	info, err := app.Aqc.Enqueue(asynq.NewTask(hiveapi.SweepTaskType, nil, asynq.Queue("rewards")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": info.ID, "queue": info.Queue})
}

func GetSweeperStatus(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)

	info, err := app.Aqi.GetQueueInfo("rewards")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queue":     info.Queue,
		"size":      info.Size,
		"pending":   info.Pending,
		"active":    info.Active,
		"scheduled": info.Scheduled,
		"retry":     info.Retry,
		"failed":    info.Failed,
		"processed": info.Processed,
	})
}
