package gamification

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pingbadge/pingbadge-web/internal/logger"
	"github.com/pingbadge/pingbadge-web/internal/models"
	"github.com/pingbadge/pingbadge-web/internal/store"
)

// ErrNotInitialized is returned when an operation runs before Initialize.
var ErrNotInitialized = errors.New("gamification controller not initialized")

// Subscriber receives a GamificationUpdate after every mutation. Delivery
// is synchronous and in registration order, after the snapshot has been
// persisted. Subscribers must not call back into the controller.
type Subscriber func(models.GamificationUpdate)

type subscription struct {
	id int
	fn Subscriber
}

// Controller orchestrates one user's gamification state for the duration
// of a session. It holds the snapshot in memory, applies engine-computed
// transitions, writes through to the store, and broadcasts each mutation
// to subscribed display widgets. Exactly one controller exists per active
// user session; it is constructor-injected, never a shared singleton.
type Controller struct {
	mu     sync.Mutex
	userID string
	rules  *Ruleset
	store  store.Store
	now    func() time.Time

	snapshot        *models.Snapshot
	newAchievements []models.Achievement
	subscribers     []subscription
	nextSubID       int
	initialized     bool
}

// NewController creates an uninitialized controller for a user session.
func NewController(userID string, rules *Ruleset, st store.Store) *Controller {
	return &Controller{
		userID: userID,
		rules:  rules,
		store:  st,
		now:    time.Now,
	}
}

// Initialize loads the user's snapshot from the store, creating a fresh
// zeroed one when none is persisted (or the persisted one is unreadable).
// Safe to call repeatedly: once initialized it is a no-op returning the
// current snapshot.
func (c *Controller) Initialize() (*models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.snapshot.Clone(), nil
	}

	snapshot, err := c.store.Load(c.userID)
	if errors.Is(err, store.ErrNotFound) {
		snapshot = models.NewSnapshot(c.userID)
		if saveErr := c.store.Save(c.userID, snapshot); saveErr != nil {
			logger.Sugar.Warnw("failed to persist initial gamification snapshot",
				"user_id", c.userID, "error", saveErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to initialize gamification state: %w", err)
	}

	// Level is derived state; recompute on load rather than trusting the
	// stored value.
	snapshot.Level = c.rules.LevelForPoints(snapshot.TotalPoints)

	c.snapshot = snapshot
	c.initialized = true
	return c.snapshot.Clone(), nil
}

// JoinActivity records a confirmed activity join: rolls the daily counter
// over on a new calendar day, awards points (including the combo bonus on
// the day's target join), derives milestone achievements, persists, and
// broadcasts. The caller must only invoke this after the authoritative
// remote join has succeeded; there is no rollback path.
func (c *Controller) JoinActivity() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}

	now := c.now()
	today := now.Local().Format(dateLayout)

	if c.snapshot.LastLoginDate == today {
		c.snapshot.ActivitiesJoinedToday++
	} else {
		c.snapshot.ActivitiesJoinedToday = 1
	}
	c.snapshot.LastLoginDate = today
	c.snapshot.TotalActivitiesJoined++

	points := c.rules.PointsForActivityJoin(c.snapshot.ActivitiesJoinedToday)
	reason := fmt.Sprintf("Joined activity (+%d points)", c.rules.pointsPerActivity)
	if c.snapshot.ActivitiesJoinedToday == c.rules.tripleActivityTarget {
		reason += fmt.Sprintf(" + Triple Activity Bonus (+%d points)", c.rules.tripleActivityBonus)
	}

	earned := c.applyAward(points, reason, models.CategoryPoints, "Points Earned", "⭐", now)
	earned = append(earned, c.applyDerived(now)...)

	c.persist()
	c.broadcast(points, earned)
	return nil
}

// CheckDailyBonus claims the once-per-calendar-day login bonus when
// available: adjusts the streak, resets the daily activity counter, awards
// the bonus as a daily achievement, persists, and broadcasts. When the
// bonus was already claimed today this is a strict no-op with no broadcast.
// Returns whether the bonus was claimed.
func (c *Controller) CheckDailyBonus() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return false, ErrNotInitialized
	}

	now := c.now()
	if !c.rules.IsDailyBonusAvailable(c.snapshot.LastLoginDate, now) {
		return false, nil
	}

	today := now.Local().Format(dateLayout)
	yesterday := now.AddDate(0, 0, -1).Local().Format(dateLayout)

	if c.snapshot.LastLoginDate == yesterday {
		c.snapshot.StreakDays++
	} else {
		c.snapshot.StreakDays = 1
	}
	c.snapshot.LastLoginDate = today
	c.snapshot.ActivitiesJoinedToday = 0

	bonus := c.rules.DailyLoginBonus()
	earned := c.applyAward(bonus, "Logged in today", models.CategoryDaily, "Daily Visitor", "🎯", now)

	c.persist()
	c.broadcast(bonus, earned)
	return true, nil
}

// AddPoints is the generic award path: appends a points achievement
// carrying the reason, re-derives the level, persists, and broadcasts.
func (c *Controller) AddPoints(points int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}
	if points < 0 {
		return fmt.Errorf("point awards must be non-negative, got %d", points)
	}

	earned := c.applyAward(points, reason, models.CategoryPoints, "Points Earned", "⭐", c.now())

	c.persist()
	c.broadcast(points, earned)
	return nil
}

// applyAward appends a ledger achievement carrying the awarded points,
// bumps the total, recomputes the level, and records a 0-point level
// achievement on level-up. Caller holds the lock.
func (c *Controller) applyAward(points int, reason string, category models.AchievementCategory, name, icon string, now time.Time) []models.Achievement {
	earned := []models.Achievement{{
		ID:          fmt.Sprintf("%s_%d", category, now.UnixNano()),
		Name:        name,
		Description: reason,
		Icon:        icon,
		Points:      points,
		EarnedAt:    now,
		Category:    category,
	}}

	c.snapshot.TotalPoints += points
	newLevel := c.rules.LevelForPoints(c.snapshot.TotalPoints)
	if newLevel > c.snapshot.Level {
		earned = append(earned, models.Achievement{
			ID:          fmt.Sprintf("level_%d_%d", newLevel, now.UnixNano()),
			Name:        fmt.Sprintf("Level %d Unlocked!", newLevel),
			Description: fmt.Sprintf("You've reached level %d", newLevel),
			Icon:        "🏆",
			Points:      0,
			EarnedAt:    now,
			Category:    models.CategoryLevel,
		})
	}
	c.snapshot.Level = newLevel

	c.snapshot.Achievements = append(c.snapshot.Achievements, earned...)
	c.newAchievements = append(c.newAchievements, earned...)
	return earned
}

// applyDerived appends engine-derived recognition achievements. Caller
// holds the lock.
func (c *Controller) applyDerived(now time.Time) []models.Achievement {
	derived := c.rules.DeriveAchievements(c.snapshot, now)
	if len(derived) == 0 {
		return nil
	}
	c.snapshot.Achievements = append(c.snapshot.Achievements, derived...)
	c.newAchievements = append(c.newAchievements, derived...)
	return derived
}

// persist writes the snapshot through to the store. A write failure is
// logged and swallowed: the in-memory snapshot stays authoritative for the
// session and the triggering UI action has already rendered its feedback.
func (c *Controller) persist() {
	if err := c.store.Save(c.userID, c.snapshot); err != nil {
		logger.Sugar.Warnw("failed to persist gamification snapshot",
			"user_id", c.userID, "error", err)
	}
}

// broadcast delivers the post-mutation update to every subscriber in
// registration order. Caller holds the lock.
func (c *Controller) broadcast(awardedPoints int, earned []models.Achievement) {
	leveledUp := false
	for _, a := range earned {
		if a.Category == models.CategoryLevel {
			leveledUp = true
		}
	}

	update := models.GamificationUpdate{
		Snapshot:        c.snapshot.Clone(),
		AwardedPoints:   awardedPoints,
		NewAchievements: append([]models.Achievement(nil), earned...),
		LeveledUp:       leveledUp,
	}
	for _, sub := range c.subscribers {
		sub.fn(update)
	}
}

// Subscribe registers a display subscriber and returns its unsubscribe
// function.
func (c *Controller) Subscribe(fn Subscriber) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subscribers {
			if sub.id == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// ClearAchievements empties the transient new-achievements buffer used for
// one-shot UI animations. The persisted achievement log is untouched.
func (c *Controller) ClearAchievements() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newAchievements = nil
}

// NewAchievements returns the achievements earned since the last clear.
func (c *Controller) NewAchievements() []models.Achievement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Achievement(nil), c.newAchievements...)
}

// Snapshot returns a copy of the current snapshot.
func (c *Controller) Snapshot() (*models.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	return c.snapshot.Clone(), nil
}

// CurrentLevel returns the derived level, defaulting to 1 before
// initialization.
func (c *Controller) CurrentLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return 1
	}
	return c.snapshot.Level
}

// TotalPoints returns the lifetime cumulative point total.
func (c *Controller) TotalPoints() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return 0
	}
	return c.snapshot.TotalPoints
}

// ProgressToNextLevel returns the percentage toward the next level.
func (c *Controller) ProgressToNextLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return 0
	}
	return c.rules.ProgressToNextLevel(c.snapshot.TotalPoints, c.snapshot.Level)
}

// NextLevelThreshold returns the point total required for the next level.
func (c *Controller) NextLevelThreshold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return c.rules.NextLevelThreshold(1)
	}
	return c.rules.NextLevelThreshold(c.snapshot.Level)
}

// UserID returns the owning user's identifier.
func (c *Controller) UserID() string {
	return c.userID
}
