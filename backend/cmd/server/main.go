package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studentpredict/backend/internal/auth"
	"studentpredict/backend/internal/gateway"
	"studentpredict/backend/internal/mlclient"
	"studentpredict/backend/internal/prediction"
	"studentpredict/backend/internal/shared"
	"studentpredict/backend/internal/student"
)

func main() {
	log.Println("INFO: Starting Student Performance API...")

	// 1. Load Configuration
	shared.LoadEnv("")
	config, err := shared.LoadAppConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if shared.IsDevelopment(config) {
		shared.PrintConfig(config)
	}

	// 2. Connect to MongoDB
	client, db, err := shared.ConnectMongoDB(&config.MongoDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := shared.DisconnectMongoDB(client); err != nil {
			log.Printf("WARN: MongoDB disconnect error: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := shared.EnsureIndexes(ctx, db); err != nil {
		cancel()
		log.Fatalf("FATAL: Failed to create indexes: %v", err)
	}
	cancel()

	// 3. Build Services
	services := &gateway.Services{
		Auth:       auth.NewService(db, config),
		Prediction: prediction.NewService(db, config, mlclient.New(config.ML)),
		Student:    student.NewService(db),
	}

	// 4. Setup Routes and Middleware
	router := gateway.SetupRoutes(config, services)

	// 5. Configure Server
	server := &http.Server{
		Addr:         ":" + config.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // must outlast the ML batch timeout
		IdleTimeout:  60 * time.Second,
	}

	// 6. Start Server in a Goroutine
	go func() {
		log.Printf("INFO: API listening on port %s", config.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server error: %v", err)
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Forced shutdown: %v", err)
	}

	log.Println("INFO: Server stopped.")
}
