// Package gamification implements the client-facing engagement layer:
// point accrual, leveling, daily bonuses, streaks, and achievement
// derivation. It is decoupled from the server's authoritative activity
// state and trusts its callers completely.
package gamification

import (
	"fmt"
	"time"

	"github.com/pingbadge/pingbadge-web/config"
	"github.com/pingbadge/pingbadge-web/internal/models"
)

const dateLayout = "2006-01-02"

// Ruleset holds the validated gamification rules. Construct it once at
// startup with NewRuleset; its methods are pure and safe for concurrent use.
type Ruleset struct {
	pointsPerActivity    int
	dailyLoginBonus      int
	tripleActivityBonus  int
	tripleActivityTarget int
	levelThresholds      []int
}

// NewRuleset validates the configured rules. An invalid threshold table is
// a deployment misconfiguration and fails subsystem initialization.
func NewRuleset(cfg config.GamificationConfig) (*Ruleset, error) {
	if len(cfg.LevelThresholds) == 0 {
		return nil, fmt.Errorf("level threshold table is empty")
	}
	if cfg.LevelThresholds[0] != 0 {
		return nil, fmt.Errorf("level threshold table must start at 0, got %d", cfg.LevelThresholds[0])
	}
	for i := 1; i < len(cfg.LevelThresholds); i++ {
		if cfg.LevelThresholds[i] <= cfg.LevelThresholds[i-1] {
			return nil, fmt.Errorf("level thresholds must be strictly ascending: %v", cfg.LevelThresholds)
		}
	}
	if cfg.PointsPerActivity < 0 || cfg.DailyLoginBonus < 0 || cfg.TripleActivityBonus < 0 {
		return nil, fmt.Errorf("point awards must be non-negative")
	}
	if cfg.TripleActivityTarget < 1 {
		return nil, fmt.Errorf("triple activity target must be at least 1, got %d", cfg.TripleActivityTarget)
	}

	thresholds := make([]int, len(cfg.LevelThresholds))
	copy(thresholds, cfg.LevelThresholds)

	return &Ruleset{
		pointsPerActivity:    cfg.PointsPerActivity,
		dailyLoginBonus:      cfg.DailyLoginBonus,
		tripleActivityBonus:  cfg.TripleActivityBonus,
		tripleActivityTarget: cfg.TripleActivityTarget,
		levelThresholds:      thresholds,
	}, nil
}

// DefaultRuleset returns the production rules: 10 points per activity
// joined, a 5 point daily login bonus, a 50 point bonus on the 3rd join of
// a day, and thresholds [0,100,250,500,1000,2000,5000].
func DefaultRuleset() *Ruleset {
	rs, err := NewRuleset(config.GamificationConfig{
		PointsPerActivity:    10,
		DailyLoginBonus:      5,
		TripleActivityBonus:  50,
		TripleActivityTarget: 3,
		LevelThresholds:      []int{0, 100, 250, 500, 1000, 2000, 5000},
	})
	if err != nil {
		panic("default ruleset invalid: " + err.Error())
	}
	return rs
}

// LevelForPoints returns the level for a cumulative point total: the
// largest i+1 such that points >= thresholds[i]. Levels floor at 1 and cap
// at the table length.
func (r *Ruleset) LevelForPoints(points int) int {
	for i := len(r.levelThresholds) - 1; i >= 0; i-- {
		if points >= r.levelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// MaxLevel returns the highest attainable level.
func (r *Ruleset) MaxLevel() int {
	return len(r.levelThresholds)
}

// NextLevelThreshold returns the point total required for the level after
// currentLevel, or the top threshold when already at the max level.
func (r *Ruleset) NextLevelThreshold(currentLevel int) int {
	if currentLevel >= len(r.levelThresholds) {
		return r.levelThresholds[len(r.levelThresholds)-1]
	}
	if currentLevel < 1 {
		currentLevel = 1
	}
	return r.levelThresholds[currentLevel]
}

// ProgressToNextLevel returns the percentage [0,100] of the way from the
// current level's threshold to the next. At the max level there is no next
// threshold and progress is 100.
func (r *Ruleset) ProgressToNextLevel(points, currentLevel int) float64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	if currentLevel >= len(r.levelThresholds) {
		return 100
	}
	current := r.levelThresholds[currentLevel-1]
	next := r.levelThresholds[currentLevel]

	progress := float64(points-current) / float64(next-current) * 100
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// PointsForActivityJoin returns the award for a join, given the daily join
// count after the join was counted. The combo bonus fires exactly on the
// target join of the day, not "at least".
func (r *Ruleset) PointsForActivityJoin(activitiesJoinedToday int) int {
	points := r.pointsPerActivity
	if activitiesJoinedToday == r.tripleActivityTarget {
		points += r.tripleActivityBonus
	}
	return points
}

// DailyLoginBonus returns the once-per-day login award.
func (r *Ruleset) DailyLoginBonus() int {
	return r.dailyLoginBonus
}

// IsDailyBonusAvailable reports whether a daily bonus can be claimed:
// lastLoginDate differs from now's calendar date in local time. Claiming
// updates lastLoginDate, so a second check the same day returns false.
func (r *Ruleset) IsDailyBonusAvailable(lastLoginDate string, now time.Time) bool {
	return lastLoginDate != now.Local().Format(dateLayout)
}

// DeriveAchievements returns the recognition achievements implied by the
// state transition just applied to the snapshot. Derivation is idempotent
// per calendar day: an achievement of the same category already earned
// today is never duplicated. Derived achievements carry 0 points; the
// point award itself travels on the points or daily ledger entry.
func (r *Ruleset) DeriveAchievements(snapshot *models.Snapshot, now time.Time) []models.Achievement {
	today := now.Local().Format(dateLayout)
	var derived []models.Achievement

	if snapshot.ActivitiesJoinedToday == r.tripleActivityTarget &&
		!snapshot.HasAchievementOn(models.CategoryMilestone, today) {
		derived = append(derived, models.Achievement{
			ID:          fmt.Sprintf("triple_activity_%s", today),
			Name:        "Triple Threat",
			Description: fmt.Sprintf("Joined %d activities in one day", r.tripleActivityTarget),
			Icon:        "⚡",
			Points:      0,
			EarnedAt:    now,
			Category:    models.CategoryMilestone,
		})
	}

	return derived
}

// levelBenefits mirrors the perk table shown on the profile page and in the
// level-up modal.
var levelBenefits = []models.LevelBenefit{
	{
		Level:       1,
		Benefits:    []string{"Basic activity access", "Profile customization"},
		Description: "Welcome to PingBadge!",
		Color:       "blue",
	},
	{
		Level:       2,
		Benefits:    []string{"Priority notifications", "Enhanced leaderboard visibility"},
		Description: "You're getting the hang of it!",
		Color:       "green",
	},
	{
		Level:       3,
		Benefits:    []string{"Access to premium activities", "Early activity registration"},
		Description: "Expert level unlocked!",
		Color:       "purple",
	},
	{
		Level:       4,
		Benefits:    []string{"VIP status", "Exclusive badges", "Activity creation priority"},
		Description: "Champion status achieved!",
		Color:       "gold",
	},
}

// LevelBenefits returns the perks for a level, or nil when the level has no
// dedicated perk entry.
func LevelBenefits(level int) *models.LevelBenefit {
	for i := range levelBenefits {
		if levelBenefits[i].Level == level {
			return &levelBenefits[i]
		}
	}
	return nil
}

// AllLevelBenefits returns the full perk table.
func AllLevelBenefits() []models.LevelBenefit {
	return levelBenefits
}
