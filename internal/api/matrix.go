package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"beehive/internal/hiveapi"
)

func matrixWallet(c *gin.Context) (string, bool) {
	address := c.Param("address")
	if address == "" {
		address = c.GetString("wallet")
	}
	if !hiveapi.IsValidWallet(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format"})
		return "", false
	}
	return address, true
}

func GetMatrixTree(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	address, ok := matrixWallet(c)
	if !ok {
		return
	}
	maxLayer, _ := strconv.Atoi(c.DefaultQuery("layers", "0"))

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	tree, err := queries.Tree(address, maxLayer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tree)
}

func GetMatrixStats(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	address, ok := matrixWallet(c)
	if !ok {
		return
	}

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	stats, err := queries.Stats(address)
	if err != nil {
		if errors.Is(err, hiveapi.ErrMemberUnknown) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func GetMatrixLayer(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	address, ok := matrixWallet(c)
	if !ok {
		return
	}
	layer, err := strconv.Atoi(c.Param("layer"))
	if err != nil || layer < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid layer"})
		return
	}

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	view, err := queries.Layer(address, layer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetMatrixPosition locates the given member inside the root's matrix.
func GetMatrixPosition(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	address, ok := matrixWallet(c)
	if !ok {
		return
	}
	member := c.Param("member")
	if !hiveapi.IsValidWallet(member) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format"})
		return
	}

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	position, err := queries.Position(address, member)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if position == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not placed in this matrix"})
		return
	}
	c.JSON(http.StatusOK, position)
}

// GetMatrixSummary lists every upline matrix the member occupies.
func GetMatrixSummary(c *gin.Context) {
	app := c.MustGet("app").(*hiveapi.App)
	address, ok := matrixWallet(c)
	if !ok {
		return
	}

	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	placements, err := queries.Placements(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet_address": hiveapi.NormalizeWallet(address),
		"placements":     placements,
	})
}
