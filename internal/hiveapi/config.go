package hiveapi

import (
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type App struct {
	Rdb *redis.Client
	Db  *gorm.DB
	Aqc *asynq.Client
	Aqi *asynq.Inspector
}

type AppConfig struct {
	Settings MatrixSettings `json:"settings"`
}

// MatrixSettings are the business parameters of the placement and
// reward engines. Reward depth and timers are injectable, not
// hardcoded; the authoritative values live in redis under app_config
// so operators can tune them without a redeploy.
type MatrixSettings struct {
	RewardTimeoutHours  int `json:"reward_timeout_hours"`  // pending/claimable window
	RollupTimeoutHours  int `json:"rollup_timeout_hours"`  // window after a reallocation
	MaxReallocations    int `json:"max_reallocations"`     // rollup attempts ceiling
	RewardDepth         int `json:"reward_depth"`          // how many upline roots earn per trigger
	MaxPlacementDepth   int `json:"max_placement_depth"`   // BFS cutoff, layers
	PlacementRetries    int `json:"placement_retries"`     // slot CAS retries before escalating
	SweepIntervalMin    int `json:"sweep_interval_min"`    // expiry sweep period, minutes
	SweepBatch          int `json:"sweep_batch"`           // expired rewards per sweep run
	SweepWorkers        int `json:"sweep_workers"`         // worker pool size for the sweep
	QueryStalenessSecs  int `json:"query_staleness_secs"`  // documented polling bound for the UI
	DirectBonusPercent  int `json:"direct_bonus_percent"`  // share of level 1 price paid as direct bonus
	UpgradeBonusPercent int `json:"upgrade_bonus_percent"` // share of level price paid per upgrade reward
}

var (
	DefaultAppConfig *AppConfig
	CurrentAppConfig *AppConfig
)

func Init() *App {
	loadEnv()
	redisClient := setupRedis()
	db := setupDb()
	asynqClient := setupAsynqClient()
	asynqInspector := setupAsynqInspector()

	DefaultAppConfig = defaultAppConfig()

	app := &App{
		Rdb: redisClient,
		Db:  db,
		Aqc: asynqClient,
		Aqi: asynqInspector,
	}
	loadAppConfig(app.Rdb)
	return app
}

// InitSweeper builds the app container for the background sweeper
// process: same stores, an asynq server instead of a client.
type AppSweep struct {
	Rdb *redis.Client
	Db  *gorm.DB
	Aqs *asynq.Server
	Sch *asynq.Scheduler
}

func InitSweeper() *AppSweep {
	loadEnv()
	redisClient := setupRedis()
	db := setupDb()
	DefaultAppConfig = defaultAppConfig()

	concurrency, err := strconv.Atoi(os.Getenv("SWEEPER_SCALE"))
	if err != nil {
		concurrency = 2
	}
	redisOpt := asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"rewards": 1,
		},
	})
	scheduler := asynq.NewScheduler(redisOpt, nil)

	app := &AppSweep{
		Rdb: redisClient,
		Db:  db,
		Aqs: server,
		Sch: scheduler,
	}
	loadAppConfig(app.Rdb)
	return app
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Settings: MatrixSettings{
			RewardTimeoutHours:  72,
			RollupTimeoutHours:  24,
			MaxReallocations:    3,
			RewardDepth:         19,
			MaxPlacementDepth:   19,
			PlacementRetries:    5,
			SweepIntervalMin:    5,
			SweepBatch:          200,
			SweepWorkers:        4,
			QueryStalenessSecs:  30,
			DirectBonusPercent:  100,
			UpgradeBonusPercent: 100,
		},
	}
}

func loadAppConfig(rdb *redis.Client) {
	isSet := false
	appConfigRaw, _ := rdb.Get(context.Background(), "app_config").Result()
	if len(appConfigRaw) > 0 {
		err := json.Unmarshal([]byte(appConfigRaw), &CurrentAppConfig)
		if err == nil {
			isSet = true
		}
	}
	if !isSet {
		CurrentAppConfig = DefaultAppConfig
		currentConfig, _ := json.Marshal(DefaultAppConfig)
		rdb.Set(context.Background(), "app_config", currentConfig, 0)
	}
}

func setupRedis() *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	return redisClient
}

func setupDb() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect to the db")
	}
	err = db.AutoMigrate(
		&Member{},
		&ActivationCounter{},
		&MemberBalance{},
		&MatrixPlacement{},
		&RewardEvent{},
		&RewardRollup{},
		&LevelConfig{},
	)
	if err != nil {
		panic("failed to run migrations")
	}
	seedLevels(db)
	return db
}

func seedLevels(db *gorm.DB) {
	var levelCount int64
	db.Model(&LevelConfig{}).Count(&levelCount)
	if levelCount == 0 {
		levels := DefaultLevelConfigs()
		db.Create(&levels)
	}
	var counter ActivationCounter
	res := db.First(&counter)
	if res.RowsAffected == 0 {
		db.Create(&ActivationCounter{Id: 1, Next: 1})
	}
}

func setupAsynqClient() *asynq.Client {
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return asynqClient
}

func setupAsynqInspector() *asynq.Inspector {
	asynqInspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return asynqInspector
}

func loadEnv() {
	env := os.Getenv("APP_ENV")
	if "" == env {
		env = "development"
	}

	godotenv.Load(".env." + env + ".local")

	if "test" != env {
		godotenv.Load(".env.local")
	}
	godotenv.Load(".env." + env)
	godotenv.Load()
}
