package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"beehive/internal/api"
	"beehive/internal/api/jwt"
	"beehive/internal/api/middleware"
	"beehive/internal/hiveapi"
)

var App *hiveapi.App
var AppSweep *hiveapi.AppSweep

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func ApiInit() { // Run Api Server
	// @title Beehive Backend
	// @version 0.1
	// @description Beehive Backend: REST API & WebSocket Server
	// @host localhost:8000
	// @BasePath /
	// @schemes http https ws wss
	App = hiveapi.Init()
	router := gin.Default()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	// This makes it so each ip can only make 100 requests per second
	store := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: redis.NewClient(&redis.Options{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       1,
		}),
		Rate:  time.Second,
		Limit: 100,
	})
	mw := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://0.0.0.0:3000",
			"http://localhost:3000",
		},
		AllowHeaders:  []string{"Origin", "Access-Control-Allow-Origin", "Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		AllowMethods:  []string{"GET, POST, OPTIONS, PUT, DELETE"},
		MaxAge:        24 * time.Hour,
	}))
	router.Use(func(c *gin.Context) {
		c.Set("app", App)
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", mw, wsHandler)
	router.GET("/ws/", mw, wsHandler)
	core := router.Group("/core/")
	{
		core.GET("/config", mw, api.GetConfig)
		core.GET("/config/", mw, api.GetConfig)
		core.GET("/levels", mw, api.GetLevels)
		core.GET("/levels/", mw, api.GetLevels)
	}
	auth := router.Group("/auth/")
	{
		auth.GET("/nonce/:address", mw, api.Nonce)
		auth.GET("/nonce/:address/", mw, api.Nonce)
		auth.POST("/signin", mw, api.Signin)
		auth.POST("/signin/", mw, api.Signin)
	}
	members := router.Group("/members/").Use(middleware.Auth())
	{
		members.GET("/me", mw, api.GetMember)
		members.GET("/me/", mw, api.GetMember)
	}
	matrix := router.Group("/matrix/").Use(middleware.Auth())
	{
		matrix.GET("/tree/:address", mw, api.GetMatrixTree)
		matrix.GET("/tree/:address/", mw, api.GetMatrixTree)
		matrix.GET("/stats/:address", mw, api.GetMatrixStats)
		matrix.GET("/stats/:address/", mw, api.GetMatrixStats)
		matrix.GET("/layer/:address/:layer", mw, api.GetMatrixLayer)
		matrix.GET("/layer/:address/:layer/", mw, api.GetMatrixLayer)
		matrix.GET("/position/:address/:member", mw, api.GetMatrixPosition)
		matrix.GET("/position/:address/:member/", mw, api.GetMatrixPosition)
		matrix.GET("/summary/:address", mw, api.GetMatrixSummary)
		matrix.GET("/summary/:address/", mw, api.GetMatrixSummary)
	}
	rewards := router.Group("/rewards/").Use(middleware.Auth())
	{
		rewards.GET("/claimable", mw, api.GetClaimableRewards)
		rewards.GET("/claimable/", mw, api.GetClaimableRewards)
		rewards.GET("/pending", mw, api.GetPendingRewards)
		rewards.GET("/pending/", mw, api.GetPendingRewards)
		rewards.GET("/history", mw, api.GetRewardHistory)
		rewards.GET("/history/", mw, api.GetRewardHistory)
		rewards.GET("/summary", mw, api.GetRewardSummary)
		rewards.GET("/summary/", mw, api.GetRewardSummary)
		rewards.POST("/claim", mw, api.ClaimReward)
		rewards.POST("/claim/", mw, api.ClaimReward)
	}
	admin := router.Group("/admin/").Use(middleware.AdminKey())
	{
		admin.POST("/members/level-up", mw, api.LevelUp)
		admin.POST("/members/level-up/", mw, api.LevelUp)
		admin.POST("/rewards/process-expired", mw, api.ProcessExpired)
		admin.POST("/rewards/process-expired/", mw, api.ProcessExpired)
		admin.POST("/rewards/schedule-sweep", mw, api.ScheduleSweep)
		admin.POST("/rewards/schedule-sweep/", mw, api.ScheduleSweep)
		admin.GET("/sweeper/status", mw, api.GetSweeperStatus)
		admin.GET("/sweeper/status/", mw, api.GetSweeperStatus)
	}
	port := GlobalConfig.Port
	if port == "" {
		port = ":8000"
	}
	fmt.Println("[ Beehive Backend is up and listening to " + port + " ]")
	Logger.Info("Beehive Backend listening on " + port)
	if err := router.Run(port); err != nil {
		log.Fatal("Failed to run Beehive Backend on "+port+": ", err)
	}
}

func wsHandler(c *gin.Context) {
	// Extract token from query
	token := c.DefaultQuery("token", "")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	wallet, err := jwt.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	app := c.MustGet("app").(*hiveapi.App)
	member, err := hiveapi.NewStore(app.Db).GetMember(wallet)
	if err != nil || member == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}
	// Upgrade Connection
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to set websocket upgrade: %+v", err)
		return
	}
	defer conn.Close()

	appConfigRaw, _ := app.Rdb.Get(c, "app_config").Result()
	if len(appConfigRaw) > 0 {
		_ = json.Unmarshal([]byte(appConfigRaw), &hiveapi.CurrentAppConfig)
	}

	// push the current reward summary before streaming updates
	queries := hiveapi.NewQueries(hiveapi.NewStore(app.Db))
	if summary, err := queries.Summary(member.WalletAddress, time.Now()); err == nil {
		if payload, err := json.Marshal(hiveapi.Notification{
			Type:   "reward_summary",
			Wallet: member.WalletAddress,
			Data:   summary,
		}); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		}
	}

	// Set a pong handler to update the connection's last pong time
	lastPong := time.Now()
	conn.SetPongHandler(func(string) error {
		lastPong = time.Now()
		return nil
	})
	pingPeriod := 3 * time.Second
	timeout := 9 * time.Second
	var mu sync.Mutex // Mutex to synchronize writes to the WebSocket connection

	done := make(chan struct{})
	go func() {
		defer close(done)
		pubsub := app.Rdb.Subscribe(c, hiveapi.NotificationChannel(member.WalletAddress))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for msg := range ch {
			mu.Lock()
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.Println("Socket: Failed to send data:", err)
				mu.Unlock()
				_ = conn.Close()
				return
			}
			mu.Unlock()
		}
	}()

	// Drain client frames so pongs are processed
	go func() {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		if time.Since(lastPong) > timeout {
			log.Println("Socket: Client did not respond to ping, closing connection")
			return
		}
		mu.Lock()
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			log.Println("Socket: Failed to send ping:", err)
			mu.Unlock()
			return
		}
		mu.Unlock()
		time.Sleep(pingPeriod)
	}
}
