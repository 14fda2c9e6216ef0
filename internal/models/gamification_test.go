package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot("u1")
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, 1, s.Level)
	assert.Zero(t, s.TotalPoints)
	assert.NotNil(t, s.Achievements)
	require.NoError(t, s.Validate())
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"missing user id", func(s *Snapshot) { s.UserID = "" }},
		{"negative points", func(s *Snapshot) { s.TotalPoints = -1 }},
		{"zero level", func(s *Snapshot) { s.Level = 0 }},
		{"negative streak", func(s *Snapshot) { s.StreakDays = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnapshot("u1")
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := NewSnapshot("u1")
	s.Achievements = append(s.Achievements, Achievement{ID: "a1", Category: CategoryPoints})

	c := s.Clone()
	c.Achievements[0].ID = "mutated"
	c.TotalPoints = 50

	assert.Equal(t, "a1", s.Achievements[0].ID)
	assert.Zero(t, s.TotalPoints)
}

func TestHasAchievementOn(t *testing.T) {
	earned := time.Date(2025, 3, 10, 23, 45, 0, 0, time.Local)
	s := NewSnapshot("u1")
	s.Achievements = append(s.Achievements, Achievement{
		ID:       "triple_activity_2025-03-10",
		Category: CategoryMilestone,
		EarnedAt: earned,
	})

	assert.True(t, s.HasAchievementOn(CategoryMilestone, "2025-03-10"))
	assert.False(t, s.HasAchievementOn(CategoryMilestone, "2025-03-11"))
	assert.False(t, s.HasAchievementOn(CategoryDaily, "2025-03-10"))
}
