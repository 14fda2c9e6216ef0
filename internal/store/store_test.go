package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingbadge/pingbadge-web/internal/database"
	"github.com/pingbadge/pingbadge-web/internal/models"
)

func sampleSnapshot(userID string) *models.Snapshot {
	earned := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return &models.Snapshot{
		UserID:                userID,
		TotalPoints:           175,
		Level:                 2,
		ActivitiesJoinedToday: 2,
		LastLoginDate:         "2025-03-10",
		StreakDays:            5,
		TotalActivitiesJoined: 17,
		Achievements: []models.Achievement{
			{
				ID:          "daily_1741599000000000000",
				Name:        "Daily Visitor",
				Description: "Logged in today",
				Icon:        "🎯",
				Points:      5,
				EarnedAt:    earned,
				Category:    models.CategoryDaily,
			},
			{
				ID:          "triple_activity_2025-03-10",
				Name:        "Triple Threat",
				Description: "Joined 3 activities in one day",
				Icon:        "⚡",
				Points:      0,
				EarnedAt:    earned,
				Category:    models.CategoryMilestone,
			},
		},
	}
}

func newSQLiteStore(t *testing.T) (*SQLiteStore, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db), db
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	saved := sampleSnapshot("user-1")

	require.NoError(t, st.Save("user-1", saved))
	loaded, err := st.Load("user-1")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestMemoryStoreAbsent(t *testing.T) {
	st := NewMemoryStore()
	_, err := st.Load("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCorruptFailsSafe(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.Save("user-1", sampleSnapshot("user-1")))
	st.Corrupt("user-1")

	_, err := st.Load("user-1")
	assert.ErrorIs(t, err, ErrNotFound, "corrupt record behaves as absent")
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	st, _ := newSQLiteStore(t)
	saved := sampleSnapshot("user-1")

	require.NoError(t, st.Save("user-1", saved))
	loaded, err := st.Load("user-1")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	st, _ := newSQLiteStore(t)

	first := sampleSnapshot("user-1")
	require.NoError(t, st.Save("user-1", first))

	second := sampleSnapshot("user-1")
	second.TotalPoints = 500
	second.Level = 4
	require.NoError(t, st.Save("user-1", second))

	loaded, err := st.Load("user-1")
	require.NoError(t, err)
	assert.Equal(t, 500, loaded.TotalPoints)
}

func TestSQLiteStoreAbsent(t *testing.T) {
	st, _ := newSQLiteStore(t)
	_, err := st.Load("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreCorruptFailsSafe(t *testing.T) {
	st, db := newSQLiteStore(t)

	_, err := db.Exec(
		`INSERT INTO gamification_snapshots (key, data) VALUES (?, ?)`,
		"gamification_user-1", "{definitely not a snapshot",
	)
	require.NoError(t, err)

	_, err = st.Load("user-1")
	assert.ErrorIs(t, err, ErrNotFound, "corrupt record behaves as absent")
}

func TestSQLiteStoreSchemaMismatchFailsSafe(t *testing.T) {
	st, db := newSQLiteStore(t)

	// Valid JSON, but not a valid snapshot (no user id, negative points)
	_, err := db.Exec(
		`INSERT INTO gamification_snapshots (key, data) VALUES (?, ?)`,
		"gamification_user-1", `{"totalPoints":-3}`,
	)
	require.NoError(t, err)

	_, err = st.Load("user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageKeysAreNamespacedPerUser(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.Save("alice", sampleSnapshot("alice")))
	require.NoError(t, st.Save("bob", sampleSnapshot("bob")))

	alice, err := st.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.UserID)

	bob, err := st.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", bob.UserID)
}
