package hiveapi

import (
	"time"

	"github.com/google/uuid"
)

// LevelChangeResult reports everything one activation produced, so the
// caller can fan out notifications after the transaction commits.
type LevelChangeResult struct {
	Wallet          string
	NewLevel        int
	PreviousLevel   int
	FirstActivation bool
	Replayed        bool
	Placements      []MatrixPlacement
	Rewards         []RewardEvent
	Unlocked        []RewardEvent
}

// TriggerEngine turns level activations into matrix placements and
// reward events. One activation runs in one transaction.
type TriggerEngine struct {
	Settings MatrixSettings
	Placer   *PlacementEngine
}

func NewTriggerEngine(settings MatrixSettings) *TriggerEngine {
	return &TriggerEngine{
		Settings: settings,
		Placer:   NewPlacementEngine(settings),
	}
}

// OnMemberLevelChanged handles a confirmed level purchase or upgrade.
// Replays and downgrades are no-ops, never errors: the chain may
// deliver the same confirmation more than once.
func (t *TriggerEngine) OnMemberLevelChanged(store Store, wallet string, newLevel int) (*LevelChangeResult, error) {
	wallet = NormalizeWallet(wallet)

	result := &LevelChangeResult{Wallet: wallet, NewLevel: newLevel}
	err := store.WithinTx(func(tx Store) error {
		member, err := tx.GetMemberForUpdate(wallet)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberUnknown
		}
		if newLevel < 1 || newLevel > MaxLevel {
			return ErrInvalidLevel
		}

		result.PreviousLevel = member.CurrentLevel
		if newLevel <= member.CurrentLevel {
			result.Replayed = true
			return nil
		}

		level, err := tx.GetLevel(newLevel)
		if err != nil {
			return err
		}

		if member.CurrentLevel == 0 {
			result.FirstActivation = true
			sequence, err := tx.NextActivationSequence()
			if err != nil {
				return err
			}
			now := time.Now()
			member.ActivationSequence = sequence
			member.ActivatedAt = &now

			placements, err := t.Placer.PlaceInUplines(tx, member)
			if err != nil {
				return err
			}
			result.Placements = placements
		}

		member.CurrentLevel = newLevel
		if err := tx.SaveMember(member); err != nil {
			return err
		}

		rewards, err := t.issueRewards(tx, member, level)
		if err != nil {
			return err
		}
		result.Rewards = rewards

		unlocked, err := t.unlockPending(tx, wallet, newLevel)
		if err != nil {
			return err
		}
		result.Unlocked = unlocked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// issueRewards creates the rewards of this activation. A level 1
// activation pays one bonus to the member's placement parent in the
// referrer's matrix; an upgrade to level N pays every upline root
// holding the member in its matrix, each reward gated on the
// recipient holding level N themselves.
func (t *TriggerEngine) issueRewards(tx Store, member *Member, level *LevelConfig) ([]RewardEvent, error) {
	if level.Level == 1 {
		return t.issueDirectBonus(tx, member, level)
	}

	var rewards []RewardEvent
	now := time.Now()
	wallet := member.ReferrerWallet
	for depth := 1; depth <= t.Settings.RewardDepth && wallet != ""; depth++ {
		recipient, err := tx.GetMember(wallet)
		if err != nil {
			return nil, err
		}
		if recipient == nil {
			break
		}

		layerNumber := depth
		placement, err := tx.MemberPlacement(recipient.WalletAddress, member.WalletAddress)
		if err != nil {
			return nil, err
		}
		if placement != nil {
			layerNumber = placement.Layer
		}

		status := RewardStatusPending
		if recipient.CurrentLevel >= level.Level {
			status = RewardStatusClaimable
		}

		reward := RewardEvent{
			Id:                      uuid.NewString(),
			CreatedAt:               now,
			TriggerWallet:           member.WalletAddress,
			TriggerLevel:            level.Level,
			MatrixRootWallet:        recipient.WalletAddress,
			LayerNumber:             layerNumber,
			CurrentRecipientWallet:  recipient.WalletAddress,
			OriginalRecipientWallet: recipient.WalletAddress,
			RewardAmountCents:       level.RewardCents * int64(t.Settings.UpgradeBonusPercent) / 100,
			RequiredLevel:           level.Level,
			RewardType:              RewardTypeUpgrade,
			Status:                  status,
			TimeoutHours:            t.Settings.RewardTimeoutHours,
			ExpiresAt:               now.Add(time.Duration(t.Settings.RewardTimeoutHours) * time.Hour),
		}
		if err := tx.InsertReward(&reward); err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)

		wallet = recipient.ReferrerWallet
	}
	return rewards, nil
}

// issueDirectBonus pays the level-1 activation bonus to the member's
// placement parent in the referrer's matrix: the referrer when the
// member took a layer-1 slot, the occupant above the slot when the
// member spilled over.
func (t *TriggerEngine) issueDirectBonus(tx Store, member *Member, level *LevelConfig) ([]RewardEvent, error) {
	if member.ReferrerWallet == "" {
		return nil, nil
	}

	recipientWallet := member.ReferrerWallet
	layerNumber := 1
	placement, err := tx.MemberPlacement(member.ReferrerWallet, member.WalletAddress)
	if err != nil {
		return nil, err
	}
	if placement != nil && placement.ParentWallet != "" {
		recipientWallet = placement.ParentWallet
		layerNumber = placement.Layer
	}

	recipient, err := tx.GetMember(recipientWallet)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, nil
	}

	status := RewardStatusPending
	if recipient.CurrentLevel >= level.Level {
		status = RewardStatusClaimable
	}

	now := time.Now()
	reward := RewardEvent{
		Id:                      uuid.NewString(),
		CreatedAt:               now,
		TriggerWallet:           member.WalletAddress,
		TriggerLevel:            level.Level,
		MatrixRootWallet:        member.ReferrerWallet,
		LayerNumber:             layerNumber,
		CurrentRecipientWallet:  recipient.WalletAddress,
		OriginalRecipientWallet: recipient.WalletAddress,
		RewardAmountCents:       level.RewardCents * int64(t.Settings.DirectBonusPercent) / 100,
		RequiredLevel:           level.Level,
		RewardType:              RewardTypeDirect,
		Status:                  status,
		TimeoutHours:            t.Settings.RewardTimeoutHours,
		ExpiresAt:               now.Add(time.Duration(t.Settings.RewardTimeoutHours) * time.Hour),
	}
	if err := tx.InsertReward(&reward); err != nil {
		return nil, err
	}
	return []RewardEvent{reward}, nil
}

// unlockPending flips the member's own held rewards whose level gate
// the new level now satisfies. The running countdown is kept.
func (t *TriggerEngine) unlockPending(tx Store, wallet string, newLevel int) ([]RewardEvent, error) {
	pending, err := tx.PendingBelowLevel(wallet, newLevel)
	if err != nil {
		return nil, err
	}
	var unlocked []RewardEvent
	for i := range pending {
		reward := pending[i]
		reward.Status = RewardStatusClaimable
		if err := tx.UpdateRewardCAS(&reward); err != nil {
			if err == ErrStaleReward {
				continue
			}
			return nil, err
		}
		unlocked = append(unlocked, reward)
	}
	return unlocked, nil
}
