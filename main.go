package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-studio-server/modules/app"
	clipeditor "media-studio-server/modules/clip-editor"
	"media-studio-server/modules/common/config"
	"media-studio-server/modules/files"
	generateimage "media-studio-server/modules/generate-image"
	"media-studio-server/modules/realtime"
	"media-studio-server/modules/veo3"
)

// enableCORS - allow the studio UI origin, including Range requests for the timeline
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Range, Accept-Ranges, Content-Length")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthCheck - liveness plus the optional features that are active
func healthCheck(cfg *config.Config, queueEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"service":   "media-studio",
			"asyncJobs": queueEnabled,
			"mirror":    cfg.MirrorEnabled(),
		})
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	studio, err := app.New(ctx, cfg, app.Options{ConnectRedis: true})
	if err != nil {
		log.Fatalf("❌ Failed to initialize services: %v", err)
	}
	defer studio.Close()

	hub := realtime.NewHub()
	go hub.Start(ctx)
	studio.Videos.SetProgress(hub)

	// async video worker (background)
	if studio.Jobs != nil {
		go veo3.NewWorker(studio.Jobs, studio.Videos).Start(ctx)
	} else {
		log.Println("ℹ️  Async video jobs disabled (no Redis)")
	}

	r := mux.NewRouter()
	r.Use(enableCORS)

	health := healthCheck(cfg, studio.Jobs != nil)
	r.HandleFunc("/", health).Methods("GET")
	r.HandleFunc("/health", health).Methods("GET")

	hub.RegisterRoutes(r)
	generateimage.NewHandler(studio.Images).RegisterRoutes(r)
	veo3.NewHandler(studio.Videos, studio.Jobs).RegisterRoutes(r)
	clipeditor.NewHandler(studio.Editor).RegisterRoutes(r)
	files.NewHandler(studio.Store).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Media Studio Server starting on port %s", cfg.Port)
	log.Printf("📡 Job progress: ws://localhost:%s/ws/jobs?job=<id>", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
}
