package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/pingbadge/pingbadge-web/internal/auth"
	"github.com/pingbadge/pingbadge-web/internal/gamification"
	"github.com/pingbadge/pingbadge-web/internal/logger"
	"github.com/pingbadge/pingbadge-web/internal/models"
	"github.com/pingbadge/pingbadge-web/internal/store"
	"github.com/pingbadge/pingbadge-web/internal/websocket"
)

// GamificationHandler exposes the gamification controller over HTTP. It
// keeps one controller per active user session and bridges controller
// broadcasts into the websocket hub.
type GamificationHandler struct {
	mu          sync.Mutex
	controllers map[string]*gamification.Controller
	rules       *gamification.Ruleset
	store       store.Store
	hub         *websocket.Hub
}

func NewGamificationHandler(rules *gamification.Ruleset, st store.Store, hub *websocket.Hub) *GamificationHandler {
	return &GamificationHandler{
		controllers: make(map[string]*gamification.Controller),
		rules:       rules,
		store:       st,
		hub:         hub,
	}
}

// controllerFor returns the session's controller, creating and
// initializing one on first access.
func (gh *GamificationHandler) controllerFor(userID string) (*gamification.Controller, error) {
	gh.mu.Lock()
	defer gh.mu.Unlock()

	if ctrl, ok := gh.controllers[userID]; ok {
		return ctrl, nil
	}

	ctrl := gamification.NewController(userID, gh.rules, gh.store)
	if _, err := ctrl.Initialize(); err != nil {
		return nil, err
	}
	if gh.hub != nil {
		ctrl.Subscribe(func(update models.GamificationUpdate) {
			gh.hub.PublishUpdate(userID, update)
		})
	}
	gh.controllers[userID] = ctrl
	return ctrl, nil
}

type statusResponse struct {
	Snapshot           *models.Snapshot     `json:"snapshot"`
	CurrentLevel       int                  `json:"currentLevel"`
	NextLevelThreshold int                  `json:"nextLevelThreshold"`
	Progress           float64              `json:"progressToNextLevel"`
	LevelBenefits      *models.LevelBenefit `json:"levelBenefits,omitempty"`
	NewAchievements    []models.Achievement `json:"newAchievements"`
}

func (gh *GamificationHandler) status(ctrl *gamification.Controller) (*statusResponse, error) {
	snapshot, err := ctrl.Snapshot()
	if err != nil {
		return nil, err
	}
	return &statusResponse{
		Snapshot:           snapshot,
		CurrentLevel:       ctrl.CurrentLevel(),
		NextLevelThreshold: ctrl.NextLevelThreshold(),
		Progress:           ctrl.ProgressToNextLevel(),
		LevelBenefits:      gamification.LevelBenefits(ctrl.CurrentLevel()),
		NewAchievements:    ctrl.NewAchievements(),
	}, nil
}

// GET /api/v1/gamification - current snapshot plus derived values
func (gh *GamificationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := gh.resolve(w, r)
	if !ok {
		return
	}
	gh.writeStatus(w, ctrl)
}

// POST /api/v1/gamification/activity-join - the activity-join confirmation
// signal. Callers invoke this only after the authoritative remote join has
// succeeded; the gamification layer trusts the caller completely and has
// no rollback path.
func (gh *GamificationHandler) JoinActivity(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := gh.resolve(w, r)
	if !ok {
		return
	}
	if err := ctrl.JoinActivity(); err != nil {
		http.Error(w, "Failed to record activity join", http.StatusInternalServerError)
		logger.Sugar.Errorw("activity join failed", "user_id", ctrl.UserID(), "error", err)
		return
	}
	gh.writeStatus(w, ctrl)
}

// POST /api/v1/gamification/daily-bonus - session-start bonus check
func (gh *GamificationHandler) CheckDailyBonus(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := gh.resolve(w, r)
	if !ok {
		return
	}
	claimed, err := ctrl.CheckDailyBonus()
	if err != nil {
		http.Error(w, "Failed to check daily bonus", http.StatusInternalServerError)
		return
	}
	status, err := gh.status(ctrl)
	if err != nil {
		http.Error(w, "Failed to read gamification state", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"claimed": claimed,
		"status":  status,
	})
}

// POST /api/v1/gamification/points - generic point award
func (gh *GamificationHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := gh.resolve(w, r)
	if !ok {
		return
	}

	var req struct {
		Points int    `json:"points"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Points < 0 {
		http.Error(w, "Points must be non-negative", http.StatusBadRequest)
		return
	}

	if err := ctrl.AddPoints(req.Points, req.Reason); err != nil {
		http.Error(w, "Failed to award points", http.StatusInternalServerError)
		return
	}
	gh.writeStatus(w, ctrl)
}

// POST /api/v1/gamification/achievements/clear - one-shot animation handshake
func (gh *GamificationHandler) ClearAchievements(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := gh.resolve(w, r)
	if !ok {
		return
	}
	ctrl.ClearAchievements()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/gamification/levels - level benefit table
func (gh *GamificationHandler) ListLevelBenefits(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"levels": gamification.AllLevelBenefits(),
	})
}

func (gh *GamificationHandler) resolve(w http.ResponseWriter, r *http.Request) (*gamification.Controller, bool) {
	userID := auth.UserIDFromSession(r)
	if userID == "" {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}
	ctrl, err := gh.controllerFor(userID)
	if err != nil {
		http.Error(w, "Failed to load gamification state", http.StatusInternalServerError)
		logger.Sugar.Errorw("controller init failed", "user_id", userID, "error", err)
		return nil, false
	}
	return ctrl, true
}

func (gh *GamificationHandler) writeStatus(w http.ResponseWriter, ctrl *gamification.Controller) {
	status, err := gh.status(ctrl)
	if err != nil {
		http.Error(w, "Failed to read gamification state", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// RegisterRoutes mounts the gamification API and returns the handler.
func RegisterRoutes(r *mux.Router, rules *gamification.Ruleset, st store.Store, hub *websocket.Hub) *GamificationHandler {
	gh := NewGamificationHandler(rules, st, hub)

	r.HandleFunc("/gamification", gh.GetStatus).Methods("GET")
	r.HandleFunc("/gamification/activity-join", gh.JoinActivity).Methods("POST")
	r.HandleFunc("/gamification/daily-bonus", gh.CheckDailyBonus).Methods("POST")
	r.HandleFunc("/gamification/points", gh.AddPoints).Methods("POST")
	r.HandleFunc("/gamification/achievements/clear", gh.ClearAchievements).Methods("POST")
	r.HandleFunc("/gamification/levels", gh.ListLevelBenefits).Methods("GET")

	return gh
}
