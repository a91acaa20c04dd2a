package hiveapi

import "time"

const (
	RewardStatusPending     = "pending"
	RewardStatusClaimable   = "claimable"
	RewardStatusClaimed     = "claimed"
	RewardStatusExpired     = "expired"
	RewardStatusReallocated = "reallocated"
)

const (
	RewardTypeDirect  = "L1_direct"
	RewardTypeUpgrade = "L2plus_upgrade"
	RewardTypeRollup  = "rollup"
)

const (
	RollupReasonExpired        = "pending_expired"
	RollupReasonUnqualified    = "recipient_unqualified"
	RollupReasonChainExhausted = "chain_exhausted"
)

// RewardEvent tracks one reward from trigger to its resting state.
// CurrentRecipientWallet moves on reallocation, OriginalRecipientWallet
// never does, so the full rollup history replays from the attempt
// counter against the trigger member's ancestry chain. Version guards
// the claim/expiry race.
type RewardEvent struct {
	Id                      string     `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt               time.Time  `json:"created_at"`
	TriggerWallet           string     `json:"trigger_wallet" gorm:"size:42;index;uniqueIndex:idx_reward_trigger,priority:1"`
	TriggerLevel            int        `json:"trigger_level" gorm:"uniqueIndex:idx_reward_trigger,priority:2"`
	MatrixRootWallet        string     `json:"matrix_root_wallet" gorm:"size:42;uniqueIndex:idx_reward_trigger,priority:3"`
	LayerNumber             int        `json:"layer_number"`
	CurrentRecipientWallet  string     `json:"current_recipient_wallet" gorm:"size:42;index"`
	OriginalRecipientWallet string     `json:"original_recipient_wallet" gorm:"size:42;index"`
	RewardAmountCents       int64      `json:"reward_amount_cents" gorm:"not null"`
	RequiredLevel           int        `json:"required_level" gorm:"not null"`
	RewardType              string     `json:"reward_type" gorm:"size:20;not null"`
	Status                  string     `json:"status" gorm:"size:12;not null;index"`
	TimeoutHours            int        `json:"timeout_hours" gorm:"not null"`
	ReallocationAttempts    int        `json:"reallocation_attempts" gorm:"not null;default:0"`
	Version                 int        `json:"version" gorm:"not null;default:0"`
	ExpiresAt               time.Time  `json:"expires_at" gorm:"index"`
	ClaimedAt               *time.Time `json:"claimed_at"`
}

// Terminal reports whether the event reached a resting state.
func (r *RewardEvent) Terminal() bool {
	return r.Status == RewardStatusClaimed || r.Status == RewardStatusExpired
}

// RewardRollup is the audit trail of one reallocation hop.
type RewardRollup struct {
	Id                uint      `json:"id" gorm:"primaryKey"`
	CreatedAt         time.Time `json:"created_at"`
	RewardId          string    `json:"reward_id" gorm:"size:36;index"`
	TriggerWallet     string    `json:"trigger_wallet" gorm:"size:42"`
	TriggerLevel      int       `json:"trigger_level"`
	OriginalRecipient string    `json:"original_recipient" gorm:"size:42;index"`
	FromRecipient     string    `json:"from_recipient" gorm:"size:42"`
	RolledUpTo        string    `json:"rolled_up_to" gorm:"size:42;index"`
	Attempt           int       `json:"attempt"`
	RewardAmountCents int64     `json:"reward_amount_cents"`
	Reason            string    `json:"reason" gorm:"size:24"`
}

const (
	CountdownActive   = "active"
	CountdownExpiring = "expiring_soon"
	CountdownExpired  = "expired"
)

// RewardData is the polling view of one reward. SecondsRemaining is
// recomputed from ExpiresAt on every query; client clocks never extend
// a timer.
type RewardData struct {
	Id               string  `json:"id"`
	TriggerWallet    string  `json:"trigger_wallet"`
	TriggerLevel     int     `json:"trigger_level"`
	MatrixRootWallet string  `json:"matrix_root_wallet"`
	LayerNumber      int     `json:"layer_number"`
	Amount           float64 `json:"amount"`
	RequiredLevel    int     `json:"required_level"`
	RewardType       string  `json:"reward_type"`
	Status           string  `json:"status"`
	SecondsRemaining int64   `json:"seconds_remaining"`
	CountdownStatus  string  `json:"countdown_status"`
	UnlockCondition  string  `json:"unlock_condition,omitempty"`
	ExpiresAt        string  `json:"expires_at"`
	CreatedAt        string  `json:"created_at"`
	ClaimedAt        string  `json:"claimed_at,omitempty"`
}

type RewardSummary struct {
	WalletAddress   string  `json:"wallet_address"`
	ClaimableAmount float64 `json:"claimable_amount"`
	PendingAmount   float64 `json:"pending_amount"`
	ClaimedAmount   float64 `json:"claimed_amount"`
	RolledUpAmount  float64 `json:"rolled_up_amount"`
	ClaimableCount  int     `json:"claimable_count"`
	PendingCount    int     `json:"pending_count"`
	ClaimedCount    int     `json:"claimed_count"`
	RolledUpCount   int     `json:"rolled_up_count"`
	TotalEarnings   float64 `json:"total_earnings"`
}

func Cents(amount int64) float64 {
	return float64(amount) / 100
}
