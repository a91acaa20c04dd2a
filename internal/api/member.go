package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"beehive/internal/hiveapi"
)

// GetMember returns the signed-in member's profile with balances and
// the activation-sequence label.
func GetMember(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	wallet := c.GetString("wallet")

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	profile, err := queries.MemberProfile(wallet)
	if err != nil {
		if errors.Is(err, hiveapi.ErrMemberUnknown) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type levelUpParams struct {
	Wallet string `json:"wallet" binding:"required"`
	Level  int    `json:"level" binding:"required"`
}

// LevelUp is the admin entry point for a confirmed level purchase.
// Payment verification happens upstream, this endpoint only applies
// the membership change.
func LevelUp(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	var params levelUpParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !hiveapi.IsValidWallet(params.Wallet) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format"})
		return
	}

	engine := hiveapi.NewTriggerEngine(hiveapi.CurrentAppConfig.Settings)
	result, err := engine.OnMemberLevelChanged(hiveapi.NewStore(app.Db), params.Wallet, params.Level)
	if err != nil {
		switch {
		case errors.Is(err, hiveapi.ErrMemberUnknown):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, hiveapi.ErrInvalidLevel):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, hiveapi.ErrMatrixFull):
			if alertErr := hiveapi.SendTelegramMessage(hiveapi.MatrixFullAlert(params.Wallet, params.Level), "rewards"); alertErr != nil {
				fmt.Println(alertErr)
			}
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	hiveapi.NotifyLevelChange(app.Rdb, result)

	c.JSON(http.StatusOK, gin.H{
		"wallet":           result.Wallet,
		"level":            result.NewLevel,
		"previous_level":   result.PreviousLevel,
		"first_activation": result.FirstActivation,
		"replayed":         result.Replayed,
		"placements":       len(result.Placements),
		"rewards":          result.Rewards,
		"unlocked":         result.Unlocked,
	})
}
