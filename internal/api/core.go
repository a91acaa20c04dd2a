package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"beehive/internal/hiveapi"
)

func GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, hiveapi.CurrentAppConfig)
}

func GetLevels(c *gin.Context) {
	c.JSON(http.StatusOK, hiveapi.DefaultLevelConfigs())
}
