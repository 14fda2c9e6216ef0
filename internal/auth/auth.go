package auth

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"

	"github.com/pingbadge/pingbadge-web/config"
	"github.com/pingbadge/pingbadge-web/internal/models"
	"github.com/pingbadge/pingbadge-web/internal/services"
)

var (
	store       *sessions.CookieStore
	sessionName string
	userService *services.UserService
)

// Init wires the cookie store and user service for the package handlers.
func Init(cfg config.AuthConfig, us *services.UserService) {
	store = sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionName = cfg.SessionName
	userService = us
}

// RegisterHandler creates an account and starts a session.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "username, email and password are required", http.StatusBadRequest)
		return
	}

	user, err := userService.CreateUser(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	startSession(w, r, user.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// LoginHandler validates credentials and starts a session.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := userService.AuthenticateUser(&req)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	startSession(w, r, user.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// LogoutHandler ends the session.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := store.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "user_id")
	session.Options.MaxAge = -1
	session.Save(r, w)
	w.WriteHeader(http.StatusNoContent)
}

func startSession(w http.ResponseWriter, r *http.Request, userID int) {
	session, _ := store.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["user_id"] = userID
	session.Save(r, w)
}

// Middleware rejects requests without an authenticated session.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserIDFromSession(r) == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromSession returns the current user's identifier, or "" when the
// request carries no authenticated session. The gamification core uses
// this value only for storage namespacing.
func UserIDFromSession(r *http.Request) string {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
		return ""
	}
	id, ok := session.Values["user_id"].(int)
	if !ok {
		return ""
	}
	return strconv.Itoa(id)
}
