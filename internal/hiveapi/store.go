package hiveapi

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence boundary of the matrix and reward engines.
// The gorm implementation backs production; tests run the engines
// against an in-memory double.
type Store interface {
	// WithinTx runs fn against a transactional view of the store.
	// All placements and rewards of one trigger event commit together.
	WithinTx(fn func(Store) error) error

	GetMember(wallet string) (*Member, error)
	GetMemberForUpdate(wallet string) (*Member, error)
	CreateMember(member *Member) error
	SaveMember(member *Member) error
	MemberByReferralCode(code string) (*Member, error)
	NextActivationSequence() (uint64, error)

	GetLevel(level int) (*LevelConfig, error)

	GetPlacement(root string, layer int, position string) (*MatrixPlacement, error)
	MemberPlacement(root, member string) (*MatrixPlacement, error)
	ListLayer(root string, layer int) ([]MatrixPlacement, error)
	CountLayer(root string, layer int) (int64, error)
	CountMatrix(root string) (int64, error)
	DeepestLayer(root string) (int, error)
	PlacementsOf(member string) ([]MatrixPlacement, error)
	InsertPlacement(placement *MatrixPlacement) error

	InsertReward(reward *RewardEvent) error
	GetReward(id string) (*RewardEvent, error)
	// UpdateRewardCAS persists the reward only if its version still
	// matches, then bumps the version. ErrStaleReward on a lost race.
	UpdateRewardCAS(reward *RewardEvent) error
	RewardsByRecipient(wallet string, statuses ...string) ([]RewardEvent, error)
	RewardHistory(wallet string, limit int) ([]RewardEvent, error)
	DueRewards(now time.Time, limit int) ([]RewardEvent, error)
	PendingBelowLevel(wallet string, maxRequiredLevel int) ([]RewardEvent, error)

	InsertRollup(rollup *RewardRollup) error
	RollupsByOriginal(wallet string) ([]RewardRollup, error)

	GetBalance(wallet string) (*MemberBalance, error)
	CreditBalance(wallet string, amountCents int64) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) WithinTx(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) GetMember(wallet string) (*Member, error) {
	var member Member
	res := s.db.Where("wallet_address = ?", wallet).First(&member)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &member, nil
}

func (s *gormStore) GetMemberForUpdate(wallet string) (*Member, error) {
	var member Member
	res := s.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_address = ?", wallet).
		First(&member)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &member, nil
}

func (s *gormStore) CreateMember(member *Member) error {
	return s.db.Create(member).Error
}

func (s *gormStore) SaveMember(member *Member) error {
	return s.db.Save(member).Error
}

func (s *gormStore) MemberByReferralCode(code string) (*Member, error) {
	var member Member
	res := s.db.Where("referral_code = ?", code).First(&member)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &member, nil
}

// NextActivationSequence increments the counter row under a row lock,
// which serializes concurrent first activations.
func (s *gormStore) NextActivationSequence() (uint64, error) {
	var counter ActivationCounter
	res := s.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&counter)
	if res.Error != nil {
		return 0, res.Error
	}
	sequence := counter.Next
	counter.Next++
	if err := s.db.Save(&counter).Error; err != nil {
		return 0, err
	}
	return sequence, nil
}

func (s *gormStore) GetLevel(level int) (*LevelConfig, error) {
	var config LevelConfig
	res := s.db.Where("level = ?", level).First(&config)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidLevel
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &config, nil
}

func (s *gormStore) GetPlacement(root string, layer int, position string) (*MatrixPlacement, error) {
	var placement MatrixPlacement
	res := s.db.Where(
		"matrix_root_wallet = ? AND layer = ? AND position = ?",
		root, layer, position,
	).First(&placement)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &placement, nil
}

func (s *gormStore) MemberPlacement(root, member string) (*MatrixPlacement, error) {
	var placement MatrixPlacement
	res := s.db.Where(
		"matrix_root_wallet = ? AND member_wallet = ?",
		root, member,
	).First(&placement)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &placement, nil
}

func (s *gormStore) ListLayer(root string, layer int) ([]MatrixPlacement, error) {
	var placements []MatrixPlacement
	res := s.db.Where(
		"matrix_root_wallet = ? AND layer = ?",
		root, layer,
	).Order("position ASC").Find(&placements)
	return placements, res.Error
}

func (s *gormStore) CountLayer(root string, layer int) (int64, error) {
	var total int64
	res := s.db.Model(&MatrixPlacement{}).Where(
		"matrix_root_wallet = ? AND layer = ?",
		root, layer,
	).Count(&total)
	return total, res.Error
}

func (s *gormStore) CountMatrix(root string) (int64, error) {
	var total int64
	res := s.db.Model(&MatrixPlacement{}).Where(
		"matrix_root_wallet = ?",
		root,
	).Count(&total)
	return total, res.Error
}

func (s *gormStore) DeepestLayer(root string) (int, error) {
	var deepest int
	row := s.db.Model(&MatrixPlacement{}).
		Where("matrix_root_wallet = ?", root).
		Select("COALESCE(MAX(layer), 0)").
		Row()
	if err := row.Scan(&deepest); err != nil {
		return 0, err
	}
	return deepest, nil
}

func (s *gormStore) PlacementsOf(member string) ([]MatrixPlacement, error) {
	var placements []MatrixPlacement
	res := s.db.Where("member_wallet = ?", member).
		Order("layer ASC").Find(&placements)
	return placements, res.Error
}

// InsertPlacement relies on the unique indexes for slot CAS. On a
// duplicate-key failure it re-checks which constraint fired: the same
// member under the same root is a duplicate event, a taken slot is a
// lost race the engine retries.
func (s *gormStore) InsertPlacement(placement *MatrixPlacement) error {
	err := s.db.Create(placement).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, lookupErr := s.MemberPlacement(placement.MatrixRootWallet, placement.MemberWallet)
		if lookupErr == nil && existing != nil {
			return ErrDuplicateMember
		}
		return ErrDuplicateSlot
	}
	return err
}

func (s *gormStore) InsertReward(reward *RewardEvent) error {
	err := s.db.Create(reward).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// same (trigger, level, root) already recorded: idempotent replay
		return nil
	}
	return err
}

func (s *gormStore) GetReward(id string) (*RewardEvent, error) {
	var reward RewardEvent
	res := s.db.Where("id = ?", id).First(&reward)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &reward, nil
}

func (s *gormStore) UpdateRewardCAS(reward *RewardEvent) error {
	expected := reward.Version
	reward.Version++
	res := s.db.Model(&RewardEvent{}).
		Where("id = ? AND version = ?", reward.Id, expected).
		Updates(map[string]interface{}{
			"current_recipient_wallet": reward.CurrentRecipientWallet,
			"status":                   reward.Status,
			"reward_type":              reward.RewardType,
			"reallocation_attempts":    reward.ReallocationAttempts,
			"expires_at":               reward.ExpiresAt,
			"claimed_at":               reward.ClaimedAt,
			"version":                  reward.Version,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleReward
	}
	return nil
}

func (s *gormStore) RewardsByRecipient(wallet string, statuses ...string) ([]RewardEvent, error) {
	var rewards []RewardEvent
	query := s.db.Where("current_recipient_wallet = ?", wallet)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	res := query.Order("created_at DESC").Find(&rewards)
	return rewards, res.Error
}

func (s *gormStore) RewardHistory(wallet string, limit int) ([]RewardEvent, error) {
	var rewards []RewardEvent
	res := s.db.Where(
		"current_recipient_wallet = ? OR original_recipient_wallet = ?",
		wallet, wallet,
	).Order("created_at DESC").Limit(limit).Find(&rewards)
	return rewards, res.Error
}

func (s *gormStore) DueRewards(now time.Time, limit int) ([]RewardEvent, error) {
	var rewards []RewardEvent
	res := s.db.Where(
		"status IN ? AND expires_at < ?",
		[]string{RewardStatusPending, RewardStatusClaimable}, now,
	).Order("expires_at ASC").Limit(limit).Find(&rewards)
	return rewards, res.Error
}

func (s *gormStore) PendingBelowLevel(wallet string, maxRequiredLevel int) ([]RewardEvent, error) {
	var rewards []RewardEvent
	res := s.db.Where(
		"current_recipient_wallet = ? AND status = ? AND required_level <= ?",
		wallet, RewardStatusPending, maxRequiredLevel,
	).Find(&rewards)
	return rewards, res.Error
}

func (s *gormStore) InsertRollup(rollup *RewardRollup) error {
	return s.db.Create(rollup).Error
}

func (s *gormStore) RollupsByOriginal(wallet string) ([]RewardRollup, error) {
	var rollups []RewardRollup
	res := s.db.Where("original_recipient = ?", wallet).
		Order("created_at DESC").Find(&rollups)
	return rollups, res.Error
}

func (s *gormStore) GetBalance(wallet string) (*MemberBalance, error) {
	var balance MemberBalance
	res := s.db.Where("wallet_address = ?", wallet).First(&balance)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &balance, nil
}

func (s *gormStore) CreditBalance(wallet string, amountCents int64) error {
	var balance MemberBalance
	res := s.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_address = ?", wallet).
		First(&balance)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		balance = MemberBalance{
			WalletAddress:     wallet,
			BccTransferable:   NewMemberBccBonus,
			UsdEarnedCents:    amountCents,
			UsdAvailableCents: amountCents,
		}
		return s.db.Create(&balance).Error
	}
	if res.Error != nil {
		return res.Error
	}
	balance.UsdEarnedCents += amountCents
	balance.UsdAvailableCents += amountCents
	return s.db.Save(&balance).Error
}
