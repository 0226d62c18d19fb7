// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Annany2002/cadastro-backend/api"
	"github.com/Annany2002/cadastro-backend/config"
	"github.com/Annany2002/cadastro-backend/internal/app"
	"github.com/Annany2002/cadastro-backend/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

func main() {
	customLog.Println("Starting Cadastro Backend server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Migrate, connect and wire the engine
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	// 3. Setup Router (passing dependencies)
	router := api.SetupRouter(a.Engine, cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Start Server
	go func() {
		customLog.Printf("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			customLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	customLog.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		customLog.Warnf("Server shutdown error: %v", err)
	}
}
