package main

import (
	"log"

	"taskboard/internal/config"
	"taskboard/internal/server"
)

// @title           Task Board Gateway API
// @version         1.0
// @description     Auth, projects, tasks, comments and a change feed for the shared task board.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	s, err := server.Init(cfg, logger)
	if err != nil {
		log.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
