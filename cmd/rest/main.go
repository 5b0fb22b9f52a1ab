package main

import (
	"context"
	"log"

	"content-pipeline-be/internal/bootstrap"
	"content-pipeline-be/internal/config"
	"content-pipeline-be/internal/server"
	"content-pipeline-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()
	log.Printf("Environment: %s", cfg.App.Environment)

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	go func() {
		log.Println("Background: Starting event bridge...")
		if err := container.EventBridgeService.Consume(context.Background()); err != nil {
			log.Printf("Background event bridge error: %v", err)
		}
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
