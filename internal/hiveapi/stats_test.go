package hiveapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixStatsAndLayerView(t *testing.T) {
	store := newMemStore()
	engine := NewTriggerEngine(newTestSettings())

	root := testWallet(1)
	addMember(t, store, root, "")
	activate(t, store, engine, root, 1)
	for i := 2; i <= 6; i++ {
		addMember(t, store, testWallet(i), root)
		activate(t, store, engine, testWallet(i), 1)
	}

	queries := NewQueries(store)
	stats, err := queries.Stats(root)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.DirectReferrals)
	assert.Equal(t, int64(5), stats.TotalTeamSize)
	assert.Equal(t, 2, stats.DeepestLayer)
	require.Len(t, stats.Layers, 2)
	assert.Equal(t, int64(3), stats.Layers[0].MemberCount)
	assert.Equal(t, int64(3), stats.Layers[0].MaxCapacity)
	assert.Equal(t, float64(100), stats.Layers[0].FillPercentage)
	assert.Equal(t, int64(2), stats.Layers[1].MemberCount)
	assert.Equal(t, int64(9), stats.Layers[1].MaxCapacity)

	layer, err := queries.Layer(root, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), layer.AvailableSlots)
	require.Len(t, layer.Members, 3)
	assert.Equal(t, "L", layer.Members[0].Position)
	assert.Equal(t, "M", layer.Members[1].Position)
	assert.Equal(t, "R", layer.Members[2].Position)

	tree, err := queries.Tree(root, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), tree.TotalMembers)
	require.Len(t, tree.Layers, 2)
}

func TestMemberProfileLabel(t *testing.T) {
	store := newMemStore()
	engine := NewTriggerEngine(newTestSettings())

	root := testWallet(1)
	addMember(t, store, root, "")
	activate(t, store, engine, root, 1)

	queries := NewQueries(store)
	profile, err := queries.MemberProfile(root)
	require.NoError(t, err)
	assert.Equal(t, "Member #1", profile.PositionLabel)
	assert.Equal(t, "Bronze Member", profile.LevelName)

	_, err = queries.MemberProfile(testWallet(404))
	assert.ErrorIs(t, err, ErrMemberUnknown)
}

func TestRewardCountdownFields(t *testing.T) {
	now := time.Now()
	reward := &RewardEvent{
		Id:        "r1",
		Status:    RewardStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(48 * time.Hour),

		RequiredLevel:     3,
		RewardAmountCents: 20000,
	}

	data := RewardDataOf(reward, now)
	assert.Equal(t, int64(48*3600), data.SecondsRemaining)
	assert.Equal(t, CountdownActive, data.CountdownStatus)
	assert.Equal(t, "Upgrade to Level 3", data.UnlockCondition)
	assert.Equal(t, float64(200), data.Amount)

	data = RewardDataOf(reward, now.Add(40*time.Hour))
	assert.Equal(t, CountdownExpiring, data.CountdownStatus)

	data = RewardDataOf(reward, now.Add(49*time.Hour))
	assert.Equal(t, CountdownExpired, data.CountdownStatus)
	assert.Equal(t, int64(0), data.SecondsRemaining)
}

func TestRewardSummaryTotals(t *testing.T) {
	store := newMemStore()
	engine := NewTimerEngine(newTestSettings())

	upline := testWallet(1)
	recipient := testWallet(2)
	addMember(t, store, upline, "")
	addMember(t, store, recipient, upline)
	member, _ := store.GetMember(recipient)
	member.CurrentLevel = 3
	require.NoError(t, store.SaveMember(member))

	now := time.Now()
	claimable := seedReward(t, store, recipient, 3, RewardStatusClaimable, now.Add(time.Hour), 0)
	seedRewardWithTrigger(t, store, recipient, 2, RewardStatusPending, now.Add(time.Hour), testWallet(50))
	rolled := seedRewardWithTrigger(t, store, recipient, 5, RewardStatusPending, now.Add(-time.Hour), testWallet(51))

	_, err := engine.ClaimReward(store, recipient, claimable.Id)
	require.NoError(t, err)
	_, err = engine.ProcessDue(store, rolled.Id, now)
	require.NoError(t, err)

	queries := NewQueries(store)
	summary, err := queries.Summary(recipient, now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClaimedCount)
	assert.Equal(t, float64(200), summary.ClaimedAmount)
	assert.Equal(t, 1, summary.PendingCount)
	assert.Equal(t, 1, summary.RolledUpCount)
	assert.Equal(t, float64(200), summary.RolledUpAmount)
	assert.Equal(t, float64(200), summary.TotalEarnings)
}

func seedRewardWithTrigger(t *testing.T, store Store, recipient string, requiredLevel int, status string, expiresAt time.Time, trigger string) *RewardEvent {
	t.Helper()
	reward := seedRewardBase(recipient, requiredLevel, status, expiresAt, trigger)
	require.NoError(t, store.InsertReward(reward))
	return reward
}
