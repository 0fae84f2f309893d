package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/geolabel/conflator/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := server.NewServer()
	httpSrv := &http.Server{
		Addr:    ":" + port,
		Handler: srv.SetupRouter(),
	}

	go func() {
		log.Printf("Starting annotation server on port %s", port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}

	// The annotation log is the source of truth; flush it before exit.
	if err := srv.Engine.Store.Sync(); err != nil {
		log.Printf("Failed to sync label store: %v", err)
	}
	if err := srv.Engine.Store.Close(); err != nil {
		log.Printf("Failed to close label store: %v", err)
	}
}
