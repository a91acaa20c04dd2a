package hiveapi

import (
	"fmt"
	"time"
)

// ExpiringSoonWindow is the countdown band the UI renders as urgent.
const ExpiringSoonWindow = 24 * time.Hour

// MatrixTree is the layered view of one member's matrix.
type MatrixTree struct {
	MatrixRootWallet string      `json:"matrix_root_wallet"`
	DeepestLayer     int         `json:"deepest_layer"`
	TotalMembers     int64       `json:"total_members"`
	Layers           []LayerView `json:"layers"`
}

// PlacementView locates a member inside one upline matrix.
type PlacementView struct {
	MatrixRootWallet string    `json:"matrix_root_wallet"`
	Layer            int       `json:"layer"`
	Position         string    `json:"position"`
	ParentWallet     string    `json:"parent_wallet"`
	ReferralType     string    `json:"referral_type"`
	PlacedAt         time.Time `json:"placed_at"`
}

// Queries is the read side: everything is recomputed from stored rows
// on each call, safe under repeated polling.
type Queries struct {
	Store Store
}

func NewQueries(store Store) *Queries {
	return &Queries{Store: store}
}

func (q *Queries) MemberProfile(wallet string) (*MemberData, error) {
	wallet = NormalizeWallet(wallet)
	member, err := q.Store.GetMember(wallet)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberUnknown
	}

	data := &MemberData{
		WalletAddress:      member.WalletAddress,
		ReferrerWallet:     member.ReferrerWallet,
		ReferralCode:       member.ReferralCode,
		CurrentLevel:       member.CurrentLevel,
		ActivationSequence: member.ActivationSequence,
		ActivatedAt:        member.ActivatedAt,
		DirectReferrals:    member.DirectReferrals,
		TotalTeamSize:      member.TotalTeamSize,
	}
	if member.ActivationSequence > 0 {
		data.PositionLabel = fmt.Sprintf("Member #%d", member.ActivationSequence)
	}
	if member.CurrentLevel > 0 {
		level, err := q.Store.GetLevel(member.CurrentLevel)
		if err == nil {
			data.LevelName = level.LevelName
		}
	}
	balance, err := q.Store.GetBalance(wallet)
	if err != nil {
		return nil, err
	}
	if balance != nil {
		data.BccTransferable = balance.BccTransferable
		data.BccRestricted = balance.BccRestricted
		data.UsdAvailable = Cents(balance.UsdAvailableCents)
		data.UsdEarned = Cents(balance.UsdEarnedCents)
	}
	return data, nil
}

// Tree renders the matrix of root down to maxLayer layers.
func (q *Queries) Tree(root string, maxLayer int) (*MatrixTree, error) {
	root = NormalizeWallet(root)
	deepest, err := q.Store.DeepestLayer(root)
	if err != nil {
		return nil, err
	}
	total, err := q.Store.CountMatrix(root)
	if err != nil {
		return nil, err
	}
	if maxLayer < 1 || maxLayer > deepest {
		maxLayer = deepest
	}

	tree := &MatrixTree{
		MatrixRootWallet: root,
		DeepestLayer:     deepest,
		TotalMembers:     total,
	}
	for layer := 1; layer <= maxLayer; layer++ {
		view, err := q.Layer(root, layer)
		if err != nil {
			return nil, err
		}
		tree.Layers = append(tree.Layers, *view)
	}
	return tree, nil
}

// Layer renders one layer with its position map and fill numbers.
func (q *Queries) Layer(root string, layer int) (*LayerView, error) {
	root = NormalizeWallet(root)
	placements, err := q.Store.ListLayer(root, layer)
	if err != nil {
		return nil, err
	}

	capacity := LayerCapacity(layer)
	view := &LayerView{
		MatrixRootWallet: root,
		Layer:            layer,
		MaxCapacity:      capacity,
		CurrentCount:     int64(len(placements)),
		AvailableSlots:   capacity - int64(len(placements)),
		FillPercentage:   float64(len(placements)) / float64(capacity) * 100,
		Members:          []LayerMemberView{},
	}
	for _, p := range placements {
		entry := LayerMemberView{
			MemberWallet: p.MemberWallet,
			Position:     p.Position,
			ParentWallet: p.ParentWallet,
			ReferralType: p.ReferralType,
			PlacedAt:     p.PlacedAt,
		}
		member, err := q.Store.GetMember(p.MemberWallet)
		if err != nil {
			return nil, err
		}
		if member != nil {
			entry.CurrentLevel = member.CurrentLevel
		}
		view.Members = append(view.Members, entry)
	}
	return view, nil
}

// Stats summarizes a member's matrix layer by layer.
func (q *Queries) Stats(wallet string) (*MatrixStats, error) {
	wallet = NormalizeWallet(wallet)
	member, err := q.Store.GetMember(wallet)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberUnknown
	}
	deepest, err := q.Store.DeepestLayer(wallet)
	if err != nil {
		return nil, err
	}

	stats := &MatrixStats{
		WalletAddress:   wallet,
		DirectReferrals: int64(member.DirectReferrals),
		TotalTeamSize:   int64(member.TotalTeamSize),
		DeepestLayer:    deepest,
		Layers:          []LayerStat{},
	}
	for layer := 1; layer <= deepest; layer++ {
		count, err := q.Store.CountLayer(wallet, layer)
		if err != nil {
			return nil, err
		}
		capacity := LayerCapacity(layer)
		stats.Layers = append(stats.Layers, LayerStat{
			Layer:          layer,
			MemberCount:    count,
			MaxCapacity:    capacity,
			FillPercentage: float64(count) / float64(capacity) * 100,
		})
	}
	return stats, nil
}

// Position finds where a member sits inside one root's matrix.
func (q *Queries) Position(root, member string) (*PlacementView, error) {
	placement, err := q.Store.MemberPlacement(NormalizeWallet(root), NormalizeWallet(member))
	if err != nil {
		return nil, err
	}
	if placement == nil {
		return nil, nil
	}
	return placementView(placement), nil
}

// Placements lists every upline matrix the member occupies.
func (q *Queries) Placements(member string) ([]PlacementView, error) {
	placements, err := q.Store.PlacementsOf(NormalizeWallet(member))
	if err != nil {
		return nil, err
	}
	views := make([]PlacementView, 0, len(placements))
	for i := range placements {
		views = append(views, *placementView(&placements[i]))
	}
	return views, nil
}

func placementView(p *MatrixPlacement) *PlacementView {
	return &PlacementView{
		MatrixRootWallet: p.MatrixRootWallet,
		Layer:            p.Layer,
		Position:         p.Position,
		ParentWallet:     p.ParentWallet,
		ReferralType:     p.ReferralType,
		PlacedAt:         p.PlacedAt,
	}
}

func (q *Queries) PendingRewards(wallet string, now time.Time) ([]RewardData, error) {
	rewards, err := q.Store.RewardsByRecipient(NormalizeWallet(wallet), RewardStatusPending)
	if err != nil {
		return nil, err
	}
	return rewardDataList(rewards, now), nil
}

func (q *Queries) ClaimableRewards(wallet string, now time.Time) ([]RewardData, error) {
	rewards, err := q.Store.RewardsByRecipient(NormalizeWallet(wallet), RewardStatusClaimable)
	if err != nil {
		return nil, err
	}
	return rewardDataList(rewards, now), nil
}

func (q *Queries) History(wallet string, limit int, now time.Time) ([]RewardData, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rewards, err := q.Store.RewardHistory(NormalizeWallet(wallet), limit)
	if err != nil {
		return nil, err
	}
	return rewardDataList(rewards, now), nil
}

// Summary totals the wallet's rewards by state, rolled-away ones
// counted from the audit trail against the original recipient.
func (q *Queries) Summary(wallet string, now time.Time) (*RewardSummary, error) {
	wallet = NormalizeWallet(wallet)
	rewards, err := q.Store.RewardsByRecipient(wallet)
	if err != nil {
		return nil, err
	}

	summary := &RewardSummary{WalletAddress: wallet}
	var claimable, pending, claimed int64
	for i := range rewards {
		r := &rewards[i]
		switch r.Status {
		case RewardStatusClaimable:
			claimable += r.RewardAmountCents
			summary.ClaimableCount++
		case RewardStatusPending:
			pending += r.RewardAmountCents
			summary.PendingCount++
		case RewardStatusClaimed:
			claimed += r.RewardAmountCents
			summary.ClaimedCount++
		}
	}

	var rolled int64
	rollups, err := q.Store.RollupsByOriginal(wallet)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for i := range rollups {
		if rollups[i].RolledUpTo == "" || seen[rollups[i].RewardId] {
			continue
		}
		seen[rollups[i].RewardId] = true
		rolled += rollups[i].RewardAmountCents
		summary.RolledUpCount++
	}

	summary.ClaimableAmount = Cents(claimable)
	summary.PendingAmount = Cents(pending)
	summary.ClaimedAmount = Cents(claimed)
	summary.RolledUpAmount = Cents(rolled)
	summary.TotalEarnings = Cents(claimed)
	return summary, nil
}

func rewardDataList(rewards []RewardEvent, now time.Time) []RewardData {
	out := make([]RewardData, 0, len(rewards))
	for i := range rewards {
		out = append(out, *RewardDataOf(&rewards[i], now))
	}
	return out
}

// RewardDataOf recomputes the live countdown fields from ExpiresAt.
func RewardDataOf(r *RewardEvent, now time.Time) *RewardData {
	remaining := int64(r.ExpiresAt.Sub(now) / time.Second)
	countdown := CountdownActive
	if remaining <= 0 {
		remaining = 0
		countdown = CountdownExpired
	} else if r.ExpiresAt.Sub(now) <= ExpiringSoonWindow {
		countdown = CountdownExpiring
	}

	data := &RewardData{
		Id:               r.Id,
		TriggerWallet:    r.TriggerWallet,
		TriggerLevel:     r.TriggerLevel,
		MatrixRootWallet: r.MatrixRootWallet,
		LayerNumber:      r.LayerNumber,
		Amount:           Cents(r.RewardAmountCents),
		RequiredLevel:    r.RequiredLevel,
		RewardType:       r.RewardType,
		Status:           r.Status,
		SecondsRemaining: remaining,
		CountdownStatus:  countdown,
		ExpiresAt:        r.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Status == RewardStatusPending {
		data.UnlockCondition = fmt.Sprintf("Upgrade to Level %d", r.RequiredLevel)
	}
	if r.ClaimedAt != nil {
		data.ClaimedAt = r.ClaimedAt.UTC().Format(time.RFC3339)
	}
	if r.Terminal() {
		data.SecondsRemaining = 0
		data.CountdownStatus = CountdownExpired
	}
	return data
}
