package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/agent"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/call"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/clinic"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/config"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/httpserver"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/scheduling"
	"github.com/BuckyMcYolo/ai-call-center-voice-server/internal/storage"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	agentClient := &agent.Client{
		APIKey: cfg.DeepgramAPIKey,
		URL:    cfg.AgentURL,
		NewSettings: func() agent.Settings {
			return clinic.NewSettings(cfg.ElevenLabsVoiceID, time.Now())
		},
	}

	backend := scheduling.NewClient(cfg.SchedulingBaseURL, cfg.SchedulingAPIKey)

	var store call.TranscriptStore
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		sb, err := storage.New(storage.Config{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Printf("transcript archive disabled: %v", err)
		} else {
			store = sb
		}
	} else {
		log.Println("transcript archive disabled: Supabase not configured")
	}

	sessions := &call.Factory{
		Dialer: call.AgentDialerFunc(func(ctx context.Context, h agent.Handlers) (call.Agent, error) {
			return agentClient.Dial(ctx, h)
		}),
		Dispatcher: clinic.NewDispatcher(backend),
		Store:      store,
		Config:     call.DefaultConfig(),
	}

	srv := httpserver.New(cfg, sessions)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.E,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
