package hiveapi

import (
	"time"
)

// SweepTaskType is the asynq task consumed by the sweeper process.
const SweepTaskType = "rewards:sweep"

// Sweep outcomes per reward, reported back to the scheduler.
const (
	SweepSkipped     = "skipped"
	SweepReallocated = "reallocated"
	SweepExpired     = "expired"
)

type SweepReport struct {
	Scanned     int `json:"scanned"`
	Reallocated int `json:"reallocated"`
	Expired     int `json:"expired"`
	Skipped     int `json:"skipped"`
}

// TimerEngine owns the reward lifecycle after creation: claims by the
// recipient and the periodic expiry sweep with upline reallocation.
type TimerEngine struct {
	Settings MatrixSettings
}

func NewTimerEngine(settings MatrixSettings) *TimerEngine {
	return &TimerEngine{Settings: settings}
}

// ClaimReward credits a claimable reward to its current recipient.
// Anything else, wrong wallet, wrong status, missed level gate, is
// ErrNotEligible. A concurrent sweep losing the version race surfaces
// as ErrStaleReward and the caller may retry.
func (t *TimerEngine) ClaimReward(store Store, wallet, rewardId string) (*RewardEvent, error) {
	wallet = NormalizeWallet(wallet)

	var claimed *RewardEvent
	err := store.WithinTx(func(tx Store) error {
		reward, err := tx.GetReward(rewardId)
		if err != nil {
			return err
		}
		if reward == nil || reward.CurrentRecipientWallet != wallet {
			return ErrNotEligible
		}
		if reward.Status != RewardStatusClaimable {
			return ErrNotEligible
		}
		member, err := tx.GetMember(wallet)
		if err != nil {
			return err
		}
		if member == nil || member.CurrentLevel < reward.RequiredLevel {
			return ErrNotEligible
		}

		now := time.Now()
		reward.Status = RewardStatusClaimed
		reward.ClaimedAt = &now
		if err := tx.UpdateRewardCAS(reward); err != nil {
			return err
		}
		if err := tx.CreditBalance(wallet, reward.RewardAmountCents); err != nil {
			return err
		}
		claimed = reward
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SweepDue processes every reward whose countdown ran out, one
// transaction per reward so a single bad row cannot wedge the batch.
func (t *TimerEngine) SweepDue(store Store, now time.Time) (*SweepReport, error) {
	due, err := store.DueRewards(now, t.Settings.SweepBatch)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Scanned: len(due)}
	for i := range due {
		outcome, err := t.ProcessDue(store, due[i].Id, now)
		if err != nil {
			return report, err
		}
		switch outcome {
		case SweepReallocated:
			report.Reallocated++
		case SweepExpired:
			report.Expired++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

// ProcessDue settles one overdue reward: reassign it to the next
// upline, or expire it once the chain or the attempt ceiling runs out.
// The version check makes this safe against a concurrent claim.
func (t *TimerEngine) ProcessDue(store Store, rewardId string, now time.Time) (string, error) {
	outcome := SweepSkipped
	err := store.WithinTx(func(tx Store) error {
		reward, err := tx.GetReward(rewardId)
		if err != nil {
			return err
		}
		if reward == nil || reward.Terminal() || reward.ExpiresAt.After(now) {
			return nil
		}

		if reward.ReallocationAttempts >= t.Settings.MaxReallocations {
			return t.expire(tx, reward, RollupReasonExpired, &outcome)
		}

		holder, err := tx.GetMember(reward.CurrentRecipientWallet)
		if err != nil {
			return err
		}
		nextWallet := ""
		if holder != nil {
			nextWallet = holder.ReferrerWallet
		}
		if nextWallet == "" {
			return t.expire(tx, reward, RollupReasonChainExhausted, &outcome)
		}
		next, err := tx.GetMember(nextWallet)
		if err != nil {
			return err
		}
		if next == nil {
			return t.expire(tx, reward, RollupReasonChainExhausted, &outcome)
		}

		from := reward.CurrentRecipientWallet
		reason := RollupReasonExpired
		reward.CurrentRecipientWallet = next.WalletAddress
		reward.RewardType = RewardTypeRollup
		reward.ReallocationAttempts++
		reward.TimeoutHours = t.Settings.RollupTimeoutHours
		reward.ExpiresAt = now.Add(time.Duration(t.Settings.RollupTimeoutHours) * time.Hour)
		if next.CurrentLevel >= reward.RequiredLevel {
			reward.Status = RewardStatusClaimable
		} else {
			reward.Status = RewardStatusPending
			reason = RollupReasonUnqualified
		}
		if err := tx.UpdateRewardCAS(reward); err != nil {
			if err == ErrStaleReward {
				return nil
			}
			return err
		}
		if err := tx.InsertRollup(&RewardRollup{
			RewardId:          reward.Id,
			TriggerWallet:     reward.TriggerWallet,
			TriggerLevel:      reward.TriggerLevel,
			OriginalRecipient: reward.OriginalRecipientWallet,
			FromRecipient:     from,
			RolledUpTo:        next.WalletAddress,
			Attempt:           reward.ReallocationAttempts,
			RewardAmountCents: reward.RewardAmountCents,
			Reason:            reason,
		}); err != nil {
			return err
		}
		outcome = SweepReallocated
		return nil
	})
	return outcome, err
}

func (t *TimerEngine) expire(tx Store, reward *RewardEvent, reason string, outcome *string) error {
	from := reward.CurrentRecipientWallet
	reward.Status = RewardStatusExpired
	if err := tx.UpdateRewardCAS(reward); err != nil {
		if err == ErrStaleReward {
			return nil
		}
		return err
	}
	if err := tx.InsertRollup(&RewardRollup{
		RewardId:          reward.Id,
		TriggerWallet:     reward.TriggerWallet,
		TriggerLevel:      reward.TriggerLevel,
		OriginalRecipient: reward.OriginalRecipientWallet,
		FromRecipient:     from,
		Attempt:           reward.ReallocationAttempts,
		RewardAmountCents: reward.RewardAmountCents,
		Reason:            reason,
	}); err != nil {
		return err
	}
	*outcome = SweepExpired
	return nil
}
