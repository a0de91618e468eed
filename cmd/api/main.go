package main

import (
	"os"

	"github.com/schoollib/library/internal/pkg/logger"
	"github.com/schoollib/library/internal/server"
)

// @title School Library API
// @version 1.0
// @description Multi-school library management: catalog, students, borrowing ledger, imports and reports

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization

func main() {
	srv, err := server.NewServer()
	if err != nil {
		// Setup functions log the details; the logger's init defaults still apply here.
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// Run blocks until a shutdown signal arrives.
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
