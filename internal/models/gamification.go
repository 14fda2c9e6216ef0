package models

import (
	"fmt"
	"time"
)

// AchievementCategory classifies how an achievement was earned.
type AchievementCategory string

const (
	CategoryDaily     AchievementCategory = "daily"
	CategoryActivity  AchievementCategory = "activity"
	CategoryMilestone AchievementCategory = "milestone"
	CategorySpecial   AchievementCategory = "special"
	CategoryPoints    AchievementCategory = "points"
	CategoryLevel     AchievementCategory = "level"
)

// Achievement is an immutable record of a single point-or-recognition event.
// Level-category achievements carry 0 points.
type Achievement struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Points      int                 `json:"points"`
	EarnedAt    time.Time           `json:"earnedAt"`
	Category    AchievementCategory `json:"category"`
}

// EarnedOn reports whether the achievement was earned on the given
// calendar date (formatted 2006-01-02, local time).
func (a Achievement) EarnedOn(date string) bool {
	return a.EarnedAt.Local().Format("2006-01-02") == date
}

// Snapshot is the complete per-user gamification state record. It is the
// sole persisted entity of the gamification subsystem; one snapshot exists
// per user, created on first access.
type Snapshot struct {
	UserID                string        `json:"userId"`
	TotalPoints           int           `json:"totalPoints"`
	Level                 int           `json:"level"`
	ActivitiesJoinedToday int           `json:"activitiesJoinedToday"`
	LastLoginDate         string        `json:"lastLoginDate"` // 2006-01-02, empty until first bonus evaluation
	StreakDays            int           `json:"streakDays"`
	TotalActivitiesJoined int           `json:"totalActivitiesJoined"`
	Achievements          []Achievement `json:"achievements"`
}

// NewSnapshot returns a fresh zeroed snapshot for a user.
func NewSnapshot(userID string) *Snapshot {
	return &Snapshot{
		UserID:       userID,
		Level:        1,
		Achievements: []Achievement{},
	}
}

// Clone returns a deep copy so callers can hand snapshots to subscribers
// without exposing the controller's mutable state.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Achievements = make([]Achievement, len(s.Achievements))
	copy(c.Achievements, s.Achievements)
	return &c
}

// HasAchievementOn reports whether an achievement of the given category was
// already earned on the given calendar date. Derivation is keyed on
// category+date to stay idempotent within a day.
func (s *Snapshot) HasAchievementOn(category AchievementCategory, date string) bool {
	for _, a := range s.Achievements {
		if a.Category == category && a.EarnedOn(date) {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants the engine relies on.
func (s *Snapshot) Validate() error {
	if s.UserID == "" {
		return fmt.Errorf("snapshot has no user id")
	}
	if s.TotalPoints < 0 {
		return fmt.Errorf("negative total points: %d", s.TotalPoints)
	}
	if s.Level < 1 {
		return fmt.Errorf("level below 1: %d", s.Level)
	}
	if s.ActivitiesJoinedToday < 0 || s.TotalActivitiesJoined < 0 || s.StreakDays < 0 {
		return fmt.Errorf("negative counter in snapshot for user %s", s.UserID)
	}
	return nil
}

// LevelBenefit describes the perks unlocked at a level, rendered by the
// profile and level-up views.
type LevelBenefit struct {
	Level       int      `json:"level"`
	Benefits    []string `json:"benefits"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
}

// GamificationUpdate is the payload broadcast to display subscribers after
// every mutation. Subscribers always observe a consistent post-mutation
// snapshot.
type GamificationUpdate struct {
	Snapshot        *Snapshot     `json:"snapshot"`
	AwardedPoints   int           `json:"awardedPoints"`
	NewAchievements []Achievement `json:"newAchievements"`
	LeveledUp       bool          `json:"leveledUp"`
}
