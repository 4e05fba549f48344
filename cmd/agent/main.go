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

	"github.com/apexrevenue/atlas-agent/internal/config"
	"github.com/apexrevenue/atlas-agent/internal/handler"
	voicehandler "github.com/apexrevenue/atlas-agent/internal/handler/voice"
	agentservice "github.com/apexrevenue/atlas-agent/internal/service/agent"
	"github.com/apexrevenue/atlas-agent/internal/service/decision"
	"github.com/apexrevenue/atlas-agent/internal/service/gateway"
	voiceservice "github.com/apexrevenue/atlas-agent/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Pick the decision backend: remote webhook first, embedded engine as
	// the self-hosted alternative.
	var backend gateway.Backend
	switch {
	case cfg.Decision.WebhookEnabled():
		backend = gateway.NewWebhook(cfg.Decision.WebhookURL, cfg.Decision.RequestTimeout)
		log.Println("decision backend: webhook")
	case cfg.Decision.EngineEnabled():
		engine, err := decision.NewEngine(ctx, cfg.Decision)
		if err != nil {
			log.Fatalf("failed to initialize decision engine: %v", err)
		}
		backend = engine
		log.Println("decision backend: embedded engine")
	default:
		log.Fatal("no decision backend configured: set DECISION_WEBHOOK_URL or Ark credentials")
	}

	var player gateway.AudioPlayer = gateway.NopPlayer{}
	var speaker *gateway.SpeakerPlayer
	if cfg.Agent.AudioOutput {
		speaker = gateway.NewSpeakerPlayer()
		player = speaker
	} else {
		log.Println("audio output disabled, replies are text-only")
	}

	gw := gateway.New(backend, player, cfg.Decision.RequestTimeout)
	store := agentservice.NewStore(gw, cfg.Agent.FailsafeTimeout)
	if speaker != nil {
		speaker.SetEvents(store)
	}

	// Voice capture is optional: without a transcription token the agent
	// still serves typed interactions.
	var voiceH *voicehandler.Handler
	if cfg.Voice.Enabled {
		voiceH = voicehandler.New(store, cfg.Transcript)
		client := voiceservice.NewClient(cfg.Voice.Config, voiceservice.NewMalgoSource(), voiceH.OnTranscript, voiceH.OnLevel)
		voiceH.SetCapturer(client)
		defer client.Stop()
		log.Println("voice capture initialized")
	} else {
		log.Println("transcription token not configured, voice capture disabled")
	}

	router := handler.NewRouter(store, voiceH)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Atlas agent listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
