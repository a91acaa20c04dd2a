package hiveapi

import "fmt"

const MaxLevel = 19

// LevelConfig is the 19-level NFT membership price table. Seeded on
// migration, operators may adjust prices without a redeploy.
type LevelConfig struct {
	Level                   int    `json:"level" gorm:"primaryKey;autoIncrement:false"`
	LevelName               string `json:"level_name"`
	PriceCents              int64  `json:"price_cents"`  // purchase price in USD cents
	RewardCents             int64  `json:"reward_cents"` // amount distributed per upgrade at this level
	RequiredDirectReferrals int    `json:"required_direct_referrals"`
	RequiredPreviousLevel   int    `json:"required_previous_level"` // 0 = none
}

// DefaultLevelConfigs builds the progressive table: Level 1 = 100 USDT,
// +50 USDT per level, Level 19 = 1000 USDT.
func DefaultLevelConfigs() []LevelConfig {
	names := map[int]string{
		1: "Bronze Member",
		2: "Silver Member",
		3: "Gold Member",
		4: "Platinum Member",
		5: "Diamond Member",
	}
	referrals := map[int]int{1: 0, 2: 3, 3: 5, 4: 7, 5: 10, 19: 50}
	configs := make([]LevelConfig, 0, MaxLevel)
	for level := 1; level <= MaxLevel; level++ {
		name, ok := names[level]
		if !ok {
			name = fmt.Sprintf("Elite Level %d", level)
		}
		if level == MaxLevel {
			name = "Master Level"
		}
		required, ok := referrals[level]
		if !ok {
			// Level 6 needs 12, then +2 per level up to 18
			required = 12 + (level-6)*2
		}
		price := int64(100+(level-1)*50) * 100
		configs = append(configs, LevelConfig{
			Level:                   level,
			LevelName:               name,
			PriceCents:              price,
			RewardCents:             price,
			RequiredDirectReferrals: required,
			RequiredPreviousLevel:   level - 1,
		})
	}
	return configs
}

// GetLevelConfig loads one level row from the store.
func GetLevelConfig(store Store, level int) (*LevelConfig, error) {
	if level < 1 || level > MaxLevel {
		return nil, ErrInvalidLevel
	}
	return store.GetLevel(level)
}
