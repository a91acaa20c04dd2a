package hiveapi

import (
	"regexp"
	"strings"
	"time"
)

// Member is a wallet-identified platform account. Level 0 means
// registered but not yet activated; the activation sequence is assigned
// exactly once, at the first Level 1 activation.
type Member struct {
	WalletAddress      string     `json:"wallet_address" gorm:"primaryKey;size:42"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ReferrerWallet     string     `json:"referrer_wallet" gorm:"index;size:42"` // empty only for the company root
	ReferralCode       string     `json:"referral_code" gorm:"uniqueIndex;size:12"`
	CurrentLevel       int        `json:"current_level" gorm:"not null;default:0"`
	ActivationSequence uint64     `json:"activation_sequence" gorm:"index"` // 0 until first activation
	ActivatedAt        *time.Time `json:"activated_at"`
	DirectReferrals    int        `json:"direct_referrals" gorm:"not null;default:0"`
	TotalTeamSize      int        `json:"total_team_size" gorm:"not null;default:0"`
}

// ActivationCounter is a single locked row issuing activation sequences.
type ActivationCounter struct {
	Id   uint   `json:"id" gorm:"primaryKey"`
	Next uint64 `json:"next"`
}

// MemberBalance keeps the payable reward balance plus the BCC buckets
// funded by claims. Amounts in USD cents.
type MemberBalance struct {
	WalletAddress     string    `json:"wallet_address" gorm:"primaryKey;size:42"`
	UpdatedAt         time.Time `json:"updated_at"`
	BccTransferable   int64     `json:"bcc_transferable"`
	BccRestricted     int64     `json:"bcc_restricted"`
	UsdEarnedCents    int64     `json:"usd_earned_cents"`
	UsdAvailableCents int64     `json:"usd_available_cents"`
	UsdWithdrawnCents int64     `json:"usd_withdrawn_cents"`
}

// NewMemberBccBonus is seeded into the transferable bucket the first
// time a wallet earns a balance row.
const NewMemberBccBonus = 500

var walletCheck = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func IsValidWallet(address string) bool {
	return walletCheck.MatchString(address)
}

// NormalizeWallet lowercases an address so lookups are case-insensitive.
func NormalizeWallet(address string) string {
	return strings.ToLower(address)
}

type MemberData struct {
	WalletAddress      string     `json:"wallet_address"`
	ReferrerWallet     string     `json:"referrer_wallet"`
	ReferralCode       string     `json:"referral_code"`
	CurrentLevel       int        `json:"current_level"`
	LevelName          string     `json:"level_name"`
	ActivationSequence uint64     `json:"activation_sequence"`
	PositionLabel      string     `json:"position_label"` // eg. "Member #42"
	ActivatedAt        *time.Time `json:"activated_at"`
	DirectReferrals    int        `json:"direct_referrals"`
	TotalTeamSize      int        `json:"total_team_size"`
	BccTransferable    int64      `json:"bcc_transferable"`
	BccRestricted      int64      `json:"bcc_restricted"`
	UsdAvailable       float64    `json:"usd_available"`
	UsdEarned          float64    `json:"usd_earned"`
}
