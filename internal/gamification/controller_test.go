package gamification

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingbadge/pingbadge-web/internal/models"
	"github.com/pingbadge/pingbadge-web/internal/store"
)

var testDay = time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

func newTestController(t *testing.T) (*Controller, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	c := NewController("user-42", DefaultRuleset(), st)
	c.now = func() time.Time { return testDay }
	_, err := c.Initialize()
	require.NoError(t, err)
	return c, st
}

func TestInitializeCreatesFreshSnapshot(t *testing.T) {
	c, st := newTestController(t)

	snapshot, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "user-42", snapshot.UserID)
	assert.Equal(t, 0, snapshot.TotalPoints)
	assert.Equal(t, 1, snapshot.Level)
	assert.Equal(t, 0, snapshot.ActivitiesJoinedToday)
	assert.Equal(t, 0, snapshot.StreakDays)
	assert.Empty(t, snapshot.Achievements)

	// The fresh snapshot is persisted on creation
	persisted, err := st.Load("user-42")
	require.NoError(t, err)
	assert.Equal(t, snapshot.UserID, persisted.UserID)
}

func TestInitializeIsIdempotent(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.AddPoints(30, "seed"))

	snapshot, err := c.Initialize()
	require.NoError(t, err)
	assert.Equal(t, 30, snapshot.TotalPoints, "re-initialize must return the live snapshot, not reload")
}

func TestInitializeLoadsPersistedSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	saved := models.NewSnapshot("user-42")
	saved.TotalPoints = 300
	saved.Level = 1 // stale on purpose, level is derived state
	saved.StreakDays = 4
	require.NoError(t, st.Save("user-42", saved))

	c := NewController("user-42", DefaultRuleset(), st)
	snapshot, err := c.Initialize()
	require.NoError(t, err)
	assert.Equal(t, 300, snapshot.TotalPoints)
	assert.Equal(t, 3, snapshot.Level, "level recomputed from points on load")
	assert.Equal(t, 4, snapshot.StreakDays)
}

func TestInitializeRecoversFromCorruptStorage(t *testing.T) {
	st := store.NewMemoryStore()
	st.Corrupt("user-42")

	c := NewController("user-42", DefaultRuleset(), st)
	snapshot, err := c.Initialize()
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.TotalPoints)
	assert.Equal(t, 1, snapshot.Level)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	c := NewController("user-42", DefaultRuleset(), store.NewMemoryStore())

	assert.ErrorIs(t, c.JoinActivity(), ErrNotInitialized)
	_, err := c.CheckDailyBonus()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, c.AddPoints(10, "x"), ErrNotInitialized)
	_, err = c.Snapshot()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestJoinActivityPointSequence(t *testing.T) {
	c, _ := newTestController(t)

	var awards []int
	c.Subscribe(func(u models.GamificationUpdate) {
		awards = append(awards, u.AwardedPoints)
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, c.JoinActivity())
	}

	// The combo bonus fires exactly on the 3rd same-day join
	assert.Equal(t, []int{10, 10, 60, 10}, awards)

	snapshot, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 90, snapshot.TotalPoints)
	assert.Equal(t, 4, snapshot.ActivitiesJoinedToday)
	assert.Equal(t, 4, snapshot.TotalActivitiesJoined)
	assert.Equal(t, "2025-03-10", snapshot.LastLoginDate)
}

func TestJoinActivityDailyRollover(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.JoinActivity())
	require.NoError(t, c.JoinActivity())

	c.now = func() time.Time { return testDay.AddDate(0, 0, 1) }
	require.NoError(t, c.JoinActivity())

	snapshot, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.ActivitiesJoinedToday, "daily counter resets on a new calendar day")
	assert.Equal(t, 3, snapshot.TotalActivitiesJoined, "lifetime counter never resets")
	assert.Equal(t, "2025-03-11", snapshot.LastLoginDate)
}

func TestTripleThreatMilestone(t *testing.T) {
	c, _ := newTestController(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.JoinActivity())
	}

	snapshot, err := c.Snapshot()
	require.NoError(t, err)

	var milestones []models.Achievement
	for _, a := range snapshot.Achievements {
		if a.Category == models.CategoryMilestone {
			milestones = append(milestones, a)
		}
	}
	require.Len(t, milestones, 1)
	assert.Equal(t, "Triple Threat", milestones[0].Name)
	assert.Equal(t, 0, milestones[0].Points, "recognition only, points travel on the ledger entry")

	// The 4th join must not mint another milestone
	require.NoError(t, c.JoinActivity())
	snapshot, _ = c.Snapshot()
	count := 0
	for _, a := range snapshot.Achievements {
		if a.Category == models.CategoryMilestone {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCheckDailyBonus(t *testing.T) {
	c, _ := newTestController(t)

	broadcasts := 0
	c.Subscribe(func(models.GamificationUpdate) { broadcasts++ })

	claimed, err := c.CheckDailyBonus()
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 1, broadcasts)

	snapshot, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.TotalPoints)
	assert.Equal(t, 1, snapshot.StreakDays)
	assert.Equal(t, 0, snapshot.ActivitiesJoinedToday)
	assert.Equal(t, "2025-03-10", snapshot.LastLoginDate)
	require.Len(t, snapshot.Achievements, 1)
	assert.Equal(t, models.CategoryDaily, snapshot.Achievements[0].Category)
	assert.Equal(t, "Daily Visitor", snapshot.Achievements[0].Name)
	assert.Equal(t, 5, snapshot.Achievements[0].Points)
}

func TestCheckDailyBonusIdempotentWithinDay(t *testing.T) {
	c, _ := newTestController(t)

	broadcasts := 0
	c.Subscribe(func(models.GamificationUpdate) { broadcasts++ })

	claimed, err := c.CheckDailyBonus()
	require.NoError(t, err)
	require.True(t, claimed)
	before, _ := c.Snapshot()

	claimed, err = c.CheckDailyBonus()
	require.NoError(t, err)
	assert.False(t, claimed, "second check the same day is a no-op")
	assert.Equal(t, 1, broadcasts, "no broadcast on the no-op path")

	after, _ := c.Snapshot()
	assert.Equal(t, before, after, "no state change on the no-op path")
}

func TestDailyBonusForfeitedAfterJoinSameDay(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.JoinActivity())

	claimed, err := c.CheckDailyBonus()
	require.NoError(t, err)
	assert.False(t, claimed, "a join already marked today as evaluated")
}

func TestStreakIncrementsFromYesterday(t *testing.T) {
	c, _ := newTestController(t)

	c.snapshot.LastLoginDate = "2025-03-09" // exactly yesterday
	c.snapshot.StreakDays = 6

	claimed, err := c.CheckDailyBonus()
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, 7, c.snapshot.StreakDays)
}

func TestStreakResetsAfterGap(t *testing.T) {
	c, _ := newTestController(t)

	c.snapshot.LastLoginDate = "2025-03-05"
	c.snapshot.StreakDays = 12

	claimed, err := c.CheckDailyBonus()
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, 1, c.snapshot.StreakDays)
}

func TestAddPointsLevelUp(t *testing.T) {
	c, _ := newTestController(t)

	var updates []models.GamificationUpdate
	c.Subscribe(func(u models.GamificationUpdate) { updates = append(updates, u) })

	require.NoError(t, c.AddPoints(150, "Badge redeemed"))

	require.Len(t, updates, 1)
	assert.True(t, updates[0].LeveledUp)
	assert.Equal(t, 2, updates[0].Snapshot.Level)
	require.Len(t, updates[0].NewAchievements, 2)
	assert.Equal(t, models.CategoryPoints, updates[0].NewAchievements[0].Category)
	assert.Equal(t, "Badge redeemed", updates[0].NewAchievements[0].Description)
	assert.Equal(t, models.CategoryLevel, updates[0].NewAchievements[1].Category)
	assert.Equal(t, "Level 2 Unlocked!", updates[0].NewAchievements[1].Name)
	assert.Equal(t, 0, updates[0].NewAchievements[1].Points)
}

func TestAddPointsRejectsNegative(t *testing.T) {
	c, _ := newTestController(t)
	assert.Error(t, c.AddPoints(-10, "nope"))
	assert.Equal(t, 0, c.TotalPoints())
}

func TestMonotonicityAndLevelConsistency(t *testing.T) {
	c, _ := newTestController(t)
	rules := DefaultRuleset()

	prevPoints, prevJoined := 0, 0
	day := testDay

	for i := 0; i < 30; i++ {
		switch i % 3 {
		case 0:
			require.NoError(t, c.JoinActivity())
		case 1:
			_, err := c.CheckDailyBonus()
			require.NoError(t, err)
		case 2:
			require.NoError(t, c.AddPoints(i*7, fmt.Sprintf("award %d", i)))
			day = day.AddDate(0, 0, 1)
			func(d time.Time) { c.now = func() time.Time { return d } }(day)
		}

		snapshot, err := c.Snapshot()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snapshot.TotalPoints, prevPoints, "totalPoints never decreases")
		assert.GreaterOrEqual(t, snapshot.TotalActivitiesJoined, prevJoined, "lifetime joins never decrease")
		assert.Equal(t, rules.LevelForPoints(snapshot.TotalPoints), snapshot.Level, "level is always derived")
		prevPoints = snapshot.TotalPoints
		prevJoined = snapshot.TotalActivitiesJoined
	}
}

func TestLedgerReconciliation(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.JoinActivity())
	require.NoError(t, c.JoinActivity())
	require.NoError(t, c.JoinActivity()) // combo + milestone
	require.NoError(t, c.AddPoints(200, "manual"))
	c.now = func() time.Time { return testDay.AddDate(0, 0, 1) }
	_, err := c.CheckDailyBonus()
	require.NoError(t, err)

	snapshot, err := c.Snapshot()
	require.NoError(t, err)

	sum := 0
	for _, a := range snapshot.Achievements {
		sum += a.Points
	}
	assert.Equal(t, snapshot.TotalPoints, sum, "achievement ledger must reconcile with the total")
}

func TestBroadcastOrderingAndUnsubscribe(t *testing.T) {
	c, _ := newTestController(t)

	var order []string
	unsubA := c.Subscribe(func(models.GamificationUpdate) { order = append(order, "a") })
	c.Subscribe(func(models.GamificationUpdate) { order = append(order, "b") })

	require.NoError(t, c.AddPoints(5, "x"))
	assert.Equal(t, []string{"a", "b"}, order, "delivery follows registration order")

	unsubA()
	order = nil
	require.NoError(t, c.AddPoints(5, "y"))
	assert.Equal(t, []string{"b"}, order)
}

func TestBroadcastSnapshotIsConsistentCopy(t *testing.T) {
	c, _ := newTestController(t)

	var seen *models.Snapshot
	c.Subscribe(func(u models.GamificationUpdate) { seen = u.Snapshot })

	require.NoError(t, c.JoinActivity())
	require.NotNil(t, seen)
	assert.Equal(t, 10, seen.TotalPoints, "subscriber observes the post-mutation state")

	// Mutating the delivered snapshot must not affect the controller
	seen.TotalPoints = 999999
	assert.Equal(t, 10, c.TotalPoints())
}

func TestClearAchievements(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.JoinActivity())
	require.NotEmpty(t, c.NewAchievements())
	logLen := len(c.snapshot.Achievements)

	c.ClearAchievements()
	assert.Empty(t, c.NewAchievements())
	assert.Len(t, c.snapshot.Achievements, logLen, "persisted log is untouched")
}

func TestPersistenceFailureDoesNotBreakSession(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewController("user-42", DefaultRuleset(), st)
	c.now = func() time.Time { return testDay }
	_, err := c.Initialize()
	require.NoError(t, err)

	c.store = failingStore{}

	broadcasts := 0
	c.Subscribe(func(models.GamificationUpdate) { broadcasts++ })

	require.NoError(t, c.JoinActivity(), "write failure must not crash the triggering action")
	assert.Equal(t, 10, c.TotalPoints(), "in-memory snapshot stays authoritative")
	assert.Equal(t, 1, broadcasts)
}

func TestDerivedReadAccessors(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.AddPoints(150, "seed"))
	assert.Equal(t, 2, c.CurrentLevel())
	assert.Equal(t, 150, c.TotalPoints())
	assert.Equal(t, 250, c.NextLevelThreshold())
	assert.InDelta(t, 100.0*50.0/150.0, c.ProgressToNextLevel(), 0.001)
	assert.Equal(t, "user-42", c.UserID())
}

type failingStore struct{}

func (failingStore) Load(string) (*models.Snapshot, error) { return nil, store.ErrNotFound }
func (failingStore) Save(string, *models.Snapshot) error {
	return fmt.Errorf("storage quota exceeded")
}
