package hiveapi

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRewardBase(recipient string, requiredLevel int, status string, expiresAt time.Time, trigger string) *RewardEvent {
	return &RewardEvent{
		Id:                      uuid.NewString(),
		CreatedAt:               time.Now(),
		TriggerWallet:           trigger,
		TriggerLevel:            requiredLevel,
		MatrixRootWallet:        recipient,
		LayerNumber:             1,
		CurrentRecipientWallet:  recipient,
		OriginalRecipientWallet: recipient,
		RewardAmountCents:       20000,
		RequiredLevel:           requiredLevel,
		RewardType:              RewardTypeUpgrade,
		Status:                  status,
		TimeoutHours:            72,
		ExpiresAt:               expiresAt,
	}
}

func seedReward(t *testing.T, store Store, recipient string, requiredLevel int, status string, expiresAt time.Time, attempts int) *RewardEvent {
	t.Helper()
	reward := seedRewardBase(recipient, requiredLevel, status, expiresAt, testWallet(99))
	reward.ReallocationAttempts = attempts
	require.NoError(t, store.InsertReward(reward))
	return reward
}

func TestExpiredPendingReallocatesToUpline(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	upline := testWallet(1)
	recipient := testWallet(2)
	addMember(t, store, upline, "")
	addMember(t, store, recipient, upline)
	uplineMember, _ := store.GetMember(upline)
	uplineMember.CurrentLevel = 5
	require.NoError(t, store.SaveMember(uplineMember))

	now := time.Now()
	reward := seedReward(t, store, recipient, 3, RewardStatusPending, now.Add(-time.Hour), 0)

	outcome, err := engine.ProcessDue(store, reward.Id, now)
	require.NoError(t, err)
	assert.Equal(t, SweepReallocated, outcome)

	updated, err := store.GetReward(reward.Id)
	require.NoError(t, err)
	assert.Equal(t, upline, updated.CurrentRecipientWallet)
	assert.Equal(t, recipient, updated.OriginalRecipientWallet)
	assert.Equal(t, 1, updated.ReallocationAttempts)
	// upline holds level 5 >= 3, so the reward lands claimable
	assert.Equal(t, RewardStatusClaimable, updated.Status)
	assert.Equal(t, RewardTypeRollup, updated.RewardType)
	assert.Equal(t, 24, updated.TimeoutHours)
	assert.WithinDuration(t, now.Add(24*time.Hour), updated.ExpiresAt, time.Second)

	rollups, err := store.RollupsByOriginal(recipient)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, recipient, rollups[0].FromRecipient)
	assert.Equal(t, upline, rollups[0].RolledUpTo)
	assert.Equal(t, 1, rollups[0].Attempt)
	assert.Equal(t, RollupReasonExpired, rollups[0].Reason)
}

func TestReallocationToUnqualifiedUplineStaysPending(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	upline := testWallet(1)
	recipient := testWallet(2)
	addMember(t, store, upline, "")
	addMember(t, store, recipient, upline)

	now := time.Now()
	reward := seedReward(t, store, recipient, 3, RewardStatusPending, now.Add(-time.Hour), 0)

	outcome, err := engine.ProcessDue(store, reward.Id, now)
	require.NoError(t, err)
	assert.Equal(t, SweepReallocated, outcome)

	updated, _ := store.GetReward(reward.Id)
	assert.Equal(t, RewardStatusPending, updated.Status)

	rollups, _ := store.RollupsByOriginal(recipient)
	require.Len(t, rollups, 1)
	assert.Equal(t, RollupReasonUnqualified, rollups[0].Reason)
}

func TestAttemptCeilingExpiresReward(t *testing.T) {
	settings := newTestSettings()
	store := newMemStore()
	engine := NewTimerEngine(settings)

	upline := testWallet(1)
	recipient := testWallet(2)
	addMember(t, store, upline, "")
	addMember(t, store, recipient, upline)

	now := time.Now()
	reward := seedReward(t, store, recipient, 3, RewardStatusPending, now.Add(-time.Hour), settings.MaxReallocations)

	outcome, err := engine.ProcessDue(store, reward.Id, now)
	require.NoError(t, err)
	assert.Equal(t, SweepExpired, outcome)

	updated, _ := store.GetReward(reward.Id)
	assert.Equal(t, RewardStatusExpired, updated.Status)
	assert.Equal(t, recipient, updated.CurrentRecipientWallet)
}

func TestChainExhaustedExpiresReward(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	recipient := testWallet(1)
	addMember(t, store, recipient, "")

	now := time.Now()
	reward := seedReward(t, store, recipient, 3, RewardStatusPending, now.Add(-time.Hour), 1)

	outcome, err := engine.ProcessDue(store, reward.Id, now)
	require.NoError(t, err)
	assert.Equal(t, SweepExpired, outcome)

	rollups, _ := store.RollupsByOriginal(recipient)
	require.Len(t, rollups, 1)
	assert.Equal(t, RollupReasonChainExhausted, rollups[0].Reason)
}

func TestClaimCreditsBalance(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	recipient := testWallet(1)
	addMember(t, store, recipient, "")
	member, _ := store.GetMember(recipient)
	member.CurrentLevel = 3
	require.NoError(t, store.SaveMember(member))

	reward := seedReward(t, store, recipient, 3, RewardStatusClaimable, time.Now().Add(time.Hour), 0)

	claimed, err := engine.ClaimReward(store, recipient, reward.Id)
	require.NoError(t, err)
	assert.Equal(t, RewardStatusClaimed, claimed.Status)
	require.NotNil(t, claimed.ClaimedAt)

	balance, err := store.GetBalance(recipient)
	require.NoError(t, err)
	require.NotNil(t, balance)
	assert.Equal(t, int64(20000), balance.UsdAvailableCents)
	assert.Equal(t, int64(20000), balance.UsdEarnedCents)
}

func TestClaimByWrongWalletRejected(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	recipient := testWallet(1)
	other := testWallet(2)
	addMember(t, store, recipient, "")
	addMember(t, store, other, "")

	reward := seedReward(t, store, recipient, 1, RewardStatusClaimable, time.Now().Add(time.Hour), 0)

	_, err := engine.ClaimReward(store, other, reward.Id)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestClaimPendingRewardRejected(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	recipient := testWallet(1)
	addMember(t, store, recipient, "")

	reward := seedReward(t, store, recipient, 3, RewardStatusPending, time.Now().Add(time.Hour), 0)

	_, err := engine.ClaimReward(store, recipient, reward.Id)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestClaimedRewardIsTerminal(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	recipient := testWallet(1)
	addMember(t, store, recipient, "")
	member, _ := store.GetMember(recipient)
	member.CurrentLevel = 3
	require.NoError(t, store.SaveMember(member))

	now := time.Now()
	reward := seedReward(t, store, recipient, 3, RewardStatusClaimable, now.Add(-time.Minute), 0)

	// claim wins the race, the overdue sweep then finds a terminal row
	_, err := engine.ClaimReward(store, recipient, reward.Id)
	require.NoError(t, err)

	outcome, err := engine.ProcessDue(store, reward.Id, now)
	require.NoError(t, err)
	assert.Equal(t, SweepSkipped, outcome)

	_, err = engine.ClaimReward(store, recipient, reward.Id)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestStaleVersionLosesCleanly(t *testing.T) {
	store := newMemStore()

	recipient := testWallet(1)
	addMember(t, store, recipient, "")
	reward := seedReward(t, store, recipient, 3, RewardStatusClaimable, time.Now().Add(time.Hour), 0)

	fresh, err := store.GetReward(reward.Id)
	require.NoError(t, err)
	stale, err := store.GetReward(reward.Id)
	require.NoError(t, err)

	fresh.Status = RewardStatusClaimed
	require.NoError(t, store.UpdateRewardCAS(fresh))

	stale.Status = RewardStatusExpired
	assert.ErrorIs(t, store.UpdateRewardCAS(stale), ErrStaleReward)

	final, _ := store.GetReward(reward.Id)
	assert.Equal(t, RewardStatusClaimed, final.Status)
}

func TestSweepDueBatch(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	upline := testWallet(1)
	recipient := testWallet(2)
	addMember(t, store, upline, "")
	addMember(t, store, recipient, upline)

	now := time.Now()
	expired := seedReward(t, store, recipient, 3, RewardStatusPending, now.Add(-time.Hour), 0)
	live := seedReward(t, store, testWallet(3), 2, RewardStatusPending, now.Add(time.Hour), 0)

	report, err := engine.SweepDue(store, now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Reallocated)
	assert.Equal(t, 0, report.Expired)

	updated, _ := store.GetReward(expired.Id)
	assert.Equal(t, upline, updated.CurrentRecipientWallet)
	untouched, _ := store.GetReward(live.Id)
	assert.Equal(t, RewardStatusPending, untouched.Status)
}
