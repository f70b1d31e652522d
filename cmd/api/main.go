package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"stakeledger/internal/handlers"
	"stakeledger/internal/ledger"
	"stakeledger/internal/metrics"
	"stakeledger/internal/routes"
	"stakeledger/internal/store"
	"stakeledger/pkg/config"
	mcsolana "stakeledger/pkg/solana"
)

func main() {
	config.LoadEnv()
	config.InitLogger()

	// Initialize database
	config.InitDB()

	programID := mcsolana.DefaultStakingProgramID
	if raw := os.Getenv("STAKING_PROGRAM_ID"); raw != "" {
		id, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			log.Fatalf("Invalid STAKING_PROGRAM_ID %q: %v", raw, err)
		}
		programID = id
	}

	accounts := store.NewGormStore(config.DB)
	l := ledger.New(accounts,
		ledger.WithProgramID(programID),
		ledger.WithRecorder(metrics.NewRecorder()),
	)
	handlers.Setup(l, accounts)

	// Set up router
	r := routes.SetupRouter(routes.OptionsFromEnv())

	// Start server
	srv := &http.Server{
		Addr:              ":" + config.Env("PORT", "8080"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(log.Fields{"addr": srv.Addr, "program_id": programID}).Info("API server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
	log.Info("API server stopped")
}
