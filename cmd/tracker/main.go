// main.go - HTTP server application
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"tracker/internal"
)

func main() {
	// Initialize application; this opens and migrates the database
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	log.Println("Starting application...")
	if err := app.Run(ctx); err != nil {
		log.Fatalf("Application stopped with error: %v", err)
	}
	log.Println("Server shutdown complete")
}
