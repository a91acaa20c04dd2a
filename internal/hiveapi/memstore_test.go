package hiveapi

import (
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store for engine tests. It enforces the
// same unique indexes the database does.
type memStore struct {
	mu         sync.Mutex
	members    map[string]*Member
	balances   map[string]*MemberBalance
	levels     map[int]*LevelConfig
	placements []*MatrixPlacement
	rewards    map[string]*RewardEvent
	rollups    []*RewardRollup
	nextSeq    uint64
	nextId     uint
}

func newMemStore() *memStore {
	s := &memStore{
		members:  map[string]*Member{},
		balances: map[string]*MemberBalance{},
		levels:   map[int]*LevelConfig{},
		rewards:  map[string]*RewardEvent{},
		nextSeq:  1,
		nextId:   1,
	}
	for _, level := range DefaultLevelConfigs() {
		l := level
		s.levels[level.Level] = &l
	}
	return s
}

func (s *memStore) WithinTx(fn func(Store) error) error {
	return fn(s)
}

func (s *memStore) GetMember(wallet string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[wallet]
	if !ok {
		return nil, nil
	}
	copied := *member
	return &copied, nil
}

func (s *memStore) GetMemberForUpdate(wallet string) (*Member, error) {
	return s.GetMember(wallet)
}

func (s *memStore) CreateMember(member *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.WalletAddress]; ok {
		return ErrDuplicateMember
	}
	copied := *member
	s.members[member.WalletAddress] = &copied
	return nil
}

func (s *memStore) SaveMember(member *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *member
	s.members[member.WalletAddress] = &copied
	return nil
}

func (s *memStore) MemberByReferralCode(code string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, member := range s.members {
		if member.ReferralCode == code {
			copied := *member
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) NextActivationSequence() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq, nil
}

func (s *memStore) GetLevel(level int) (*LevelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.levels[level]
	if !ok {
		return nil, ErrInvalidLevel
	}
	copied := *config
	return &copied, nil
}

func (s *memStore) GetPlacement(root string, layer int, position string) (*MatrixPlacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.placements {
		if p.MatrixRootWallet == root && p.Layer == layer && p.Position == position {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) MemberPlacement(root, member string) (*MatrixPlacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.placements {
		if p.MatrixRootWallet == root && p.MemberWallet == member {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListLayer(root string, layer int) ([]MatrixPlacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MatrixPlacement
	for _, p := range s.placements {
		if p.MatrixRootWallet == root && p.Layer == layer {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memStore) CountLayer(root string, layer int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, p := range s.placements {
		if p.MatrixRootWallet == root && p.Layer == layer {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountMatrix(root string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, p := range s.placements {
		if p.MatrixRootWallet == root {
			count++
		}
	}
	return count, nil
}

func (s *memStore) DeepestLayer(root string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deepest := 0
	for _, p := range s.placements {
		if p.MatrixRootWallet == root && p.Layer > deepest {
			deepest = p.Layer
		}
	}
	return deepest, nil
}

func (s *memStore) PlacementsOf(member string) ([]MatrixPlacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MatrixPlacement
	for _, p := range s.placements {
		if p.MemberWallet == member {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Layer < out[j].Layer })
	return out, nil
}

func (s *memStore) InsertPlacement(placement *MatrixPlacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.placements {
		if p.MatrixRootWallet == placement.MatrixRootWallet && p.MemberWallet == placement.MemberWallet {
			return ErrDuplicateMember
		}
		if p.MatrixRootWallet == placement.MatrixRootWallet && p.Layer == placement.Layer && p.Position == placement.Position {
			return ErrDuplicateSlot
		}
	}
	copied := *placement
	copied.Id = s.nextId
	copied.PlacedAt = time.Now()
	s.nextId++
	s.placements = append(s.placements, &copied)
	placement.Id = copied.Id
	placement.PlacedAt = copied.PlacedAt
	return nil
}

func (s *memStore) InsertReward(reward *RewardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rewards {
		if r.TriggerWallet == reward.TriggerWallet &&
			r.TriggerLevel == reward.TriggerLevel &&
			r.MatrixRootWallet == reward.MatrixRootWallet {
			return nil
		}
	}
	copied := *reward
	s.rewards[reward.Id] = &copied
	return nil
}

func (s *memStore) GetReward(id string) (*RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reward, ok := s.rewards[id]
	if !ok {
		return nil, nil
	}
	copied := *reward
	return &copied, nil
}

func (s *memStore) UpdateRewardCAS(reward *RewardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rewards[reward.Id]
	if !ok || stored.Version != reward.Version {
		return ErrStaleReward
	}
	reward.Version++
	copied := *reward
	s.rewards[reward.Id] = &copied
	return nil
}

func (s *memStore) RewardsByRecipient(wallet string, statuses ...string) ([]RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RewardEvent
	for _, r := range s.rewards {
		if r.CurrentRecipientWallet != wallet {
			continue
		}
		if len(statuses) > 0 {
			matched := false
			for _, status := range statuses {
				if r.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) RewardHistory(wallet string, limit int) ([]RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RewardEvent
	for _, r := range s.rewards {
		if r.CurrentRecipientWallet == wallet || r.OriginalRecipientWallet == wallet {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) DueRewards(now time.Time, limit int) ([]RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RewardEvent
	for _, r := range s.rewards {
		if (r.Status == RewardStatusPending || r.Status == RewardStatusClaimable) && r.ExpiresAt.Before(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) PendingBelowLevel(wallet string, maxRequiredLevel int) ([]RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RewardEvent
	for _, r := range s.rewards {
		if r.CurrentRecipientWallet == wallet && r.Status == RewardStatusPending && r.RequiredLevel <= maxRequiredLevel {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) InsertRollup(rollup *RewardRollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rollup
	copied.CreatedAt = time.Now()
	s.rollups = append(s.rollups, &copied)
	return nil
}

func (s *memStore) RollupsByOriginal(wallet string) ([]RewardRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RewardRollup
	for _, r := range s.rollups {
		if r.OriginalRecipient == wallet {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) GetBalance(wallet string) (*MemberBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[wallet]
	if !ok {
		return nil, nil
	}
	copied := *balance
	return &copied, nil
}

func (s *memStore) CreditBalance(wallet string, amountCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[wallet]
	if !ok {
		s.balances[wallet] = &MemberBalance{
			WalletAddress:     wallet,
			BccTransferable:   NewMemberBccBonus,
			UsdEarnedCents:    amountCents,
			UsdAvailableCents: amountCents,
		}
		return nil
	}
	balance.UsdEarnedCents += amountCents
	balance.UsdAvailableCents += amountCents
	return nil
}
