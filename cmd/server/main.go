// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pingbadge/pingbadge-web/config"
	"github.com/pingbadge/pingbadge-web/internal/api"
	"github.com/pingbadge/pingbadge-web/internal/auth"
	"github.com/pingbadge/pingbadge-web/internal/database"
	"github.com/pingbadge/pingbadge-web/internal/gamification"
	"github.com/pingbadge/pingbadge-web/internal/logger"
	"github.com/pingbadge/pingbadge-web/internal/services"
	"github.com/pingbadge/pingbadge-web/internal/store"
	"github.com/pingbadge/pingbadge-web/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Logger.Sync()

	// An invalid threshold table is a deployment misconfiguration; refuse
	// to start rather than limp along with broken leveling.
	rules, err := gamification.NewRuleset(cfg.Gamification)
	if err != nil {
		logger.Sugar.Fatalw("invalid gamification configuration", "error", err)
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Sugar.Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	snapshotStore := store.NewSQLiteStore(db)
	userService := services.NewUserService(db)
	auth.Init(cfg.Auth, userService)

	r := mux.NewRouter()

	// Public routes (no authentication required)
	r.HandleFunc("/api/v1/auth/register", auth.RegisterHandler).Methods("POST")
	r.HandleFunc("/api/v1/auth/login", auth.LoginHandler).Methods("POST")
	r.HandleFunc("/api/v1/auth/logout", auth.LogoutHandler).Methods("POST")

	// Authenticated routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(auth.Middleware)

	// Widget push channel
	hub := websocket.RegisterRoutes(authRouter)

	// Gamification API
	apiRouter := authRouter.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(apiRouter, rules, snapshotStore, hub)

	// CORS setup for the SPA front-end
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	logger.Sugar.Infow("PingBadge server starting",
		"port", port, "database", cfg.Database.Path)

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logger.Sugar.Fatalw("server exited", "error", err)
	}
}
