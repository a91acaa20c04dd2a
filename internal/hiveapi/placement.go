package hiveapi

import (
	"strings"
	"time"
)

const (
	ReferralTypeDirect    = "direct"
	ReferralTypeSpillover = "spillover"
)

// MatrixPlacement is one node of a member's 3x3 matrix. Rows are
// append-only: a placement is never moved or deleted once committed.
// The unique index on (root, layer, position) is the compare-and-swap
// that serializes concurrent activations fighting for one slot.
type MatrixPlacement struct {
	Id               uint      `json:"id" gorm:"primaryKey"`
	PlacedAt         time.Time `json:"placed_at" gorm:"autoCreateTime"`
	MatrixRootWallet string    `json:"matrix_root_wallet" gorm:"size:42;uniqueIndex:idx_matrix_slot,priority:1;uniqueIndex:idx_matrix_member,priority:1"`
	MemberWallet     string    `json:"member_wallet" gorm:"index;size:42;uniqueIndex:idx_matrix_member,priority:2"`
	Layer            int       `json:"layer" gorm:"not null;uniqueIndex:idx_matrix_slot,priority:2;index:idx_root_layer"`
	Position         string    `json:"position" gorm:"size:80;uniqueIndex:idx_matrix_slot,priority:3"`
	ParentWallet     string    `json:"parent_wallet" gorm:"size:42"`
	ReferralType     string    `json:"referral_type" gorm:"size:10;not null"`
}

var slotLetters = [3]string{"L", "M", "R"}

// LayerCapacity is 3^layer.
func LayerCapacity(layer int) int64 {
	capacity := int64(1)
	for i := 0; i < layer; i++ {
		capacity *= 3
	}
	return capacity
}

// PositionPath encodes a slot index within a layer as the canonical
// dash path, eg. layer 2 index 5 -> "M-R". Index 0 is the leftmost
// slot, so lexicographic slot order equals index order.
func PositionPath(layer int, index int64) string {
	parts := make([]string, layer)
	for i := layer - 1; i >= 0; i-- {
		parts[i] = slotLetters[index%3]
		index /= 3
	}
	return strings.Join(parts, "-")
}

// PositionIndex is the inverse of PositionPath. ok is false for a
// malformed path or one that does not match the layer.
func PositionIndex(layer int, position string) (int64, bool) {
	parts := strings.Split(position, "-")
	if len(parts) != layer {
		return 0, false
	}
	var index int64
	for _, part := range parts {
		digit := int64(-1)
		for i, letter := range slotLetters {
			if part == letter {
				digit = int64(i)
				break
			}
		}
		if digit < 0 {
			return 0, false
		}
		index = index*3 + digit
	}
	return index, true
}

// ParentPosition is the slot one layer up that a path hangs under.
// Layer 1 slots hang directly under the root ("" parent).
func ParentPosition(position string) string {
	i := strings.LastIndex(position, "-")
	if i < 0 {
		return ""
	}
	return position[:i]
}

type LayerMemberView struct {
	MemberWallet string    `json:"member_wallet"`
	Position     string    `json:"position"`
	ParentWallet string    `json:"parent_wallet"`
	ReferralType string    `json:"referral_type"`
	CurrentLevel int       `json:"current_level"`
	PlacedAt     time.Time `json:"placed_at"`
}

type LayerView struct {
	MatrixRootWallet string            `json:"matrix_root_wallet"`
	Layer            int               `json:"layer"`
	MaxCapacity      int64             `json:"max_capacity"`
	CurrentCount     int64             `json:"current_count"`
	AvailableSlots   int64             `json:"available_slots"`
	FillPercentage   float64           `json:"fill_percentage"`
	Members          []LayerMemberView `json:"members"`
}

type MatrixStats struct {
	WalletAddress   string      `json:"wallet_address"`
	DirectReferrals int64       `json:"direct_referrals"`
	TotalTeamSize   int64       `json:"total_team_size"`
	DeepestLayer    int         `json:"deepest_layer"`
	Layers          []LayerStat `json:"layers"`
}

type LayerStat struct {
	Layer          int     `json:"layer"`
	MemberCount    int64   `json:"member_count"`
	MaxCapacity    int64   `json:"max_capacity"`
	FillPercentage float64 `json:"fill_percentage"`
}
