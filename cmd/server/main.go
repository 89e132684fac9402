package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xpert-backend/internal/config"
	"xpert-backend/internal/database"
	"xpert-backend/internal/handlers"
	"xpert-backend/internal/middleware"
	"xpert-backend/internal/router"
	"xpert-backend/internal/services"
	"xpert-backend/internal/vision"
	"xpert-backend/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// run returns only after the HTTP server has drained, so the deferred
// closes never race an in-flight inference or LLM call.
func run() error {
	log.Println("🚀 Starting Xpert Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Gemini Client ────
	gemini, err := services.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Printf("✗ Gemini client initialization failed: %v", err)
	}
	defer gemini.Close()
	if gemini.Ready() {
		log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)
	} else {
		log.Println("⚠ GEMINI_API_KEY not set, chat replies will report the missing client")
	}

	// ──── Step 3: Load Classifier ────
	var model vision.Model
	onnxModel, err := vision.LoadONNXModel(cfg.ModelPath, vision.LoadOptions{
		LibraryPath: cfg.ONNXLibPath,
		Height:      cfg.ModelInputHeight,
		Width:       cfg.ModelInputWidth,
		Order:       vision.ChannelOrder(cfg.ModelChannelOrder),
	})
	if err != nil {
		log.Printf("⚠ Classifier not loaded: %v (use ?mock=1)", err)
	} else {
		model = onnxModel
		spec := onnxModel.InputSpec()
		log.Printf("✓ Classifier loaded from %s (%dx%d, %s)", cfg.ModelPath, spec.Height, spec.Width, spec.Order)
	}
	classifier := vision.NewClassifier(model, cfg.ModelPath)
	defer classifier.Close()

	// ──── Step 4: Prepare Upload Directory ────
	if err := os.MkdirAll(cfg.UploadPath, 0o755); err != nil {
		log.Fatalf("✗ Upload directory unavailable: %v", err)
	}
	uploads := services.NewUploadStore(cfg.UploadPath)
	log.Printf("✓ Uploads stored under %s", cfg.UploadPath)

	// ──── Step 5: Initialize Rate Limit Store ────
	var store middleware.CounterStore
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClient.Close()
		store = middleware.NewRedisStore(redisClient)
		log.Println("✓ Redis connected (rate limit counters)")
	} else {
		store = middleware.NewMemoryStore(time.Minute)
		log.Println("✓ In-memory rate limit counters")
	}
	limiter := middleware.NewRateLimiter(store, cfg.RateLimitPerMinute, time.Minute)

	// ──── Initialize Services & Handlers ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	if !jwtAuth.Enabled() {
		log.Println("⚠ JWT_SECRET not set, API routes are unauthenticated")
	}

	gateway := services.NewChatGateway(gemini)
	analysis := services.NewAnalysisService(classifier, uploads)

	chatHandler := handlers.NewChatHandler(gateway)
	analysisHandler := handlers.NewAnalysisHandler(analysis, cfg.MaxUploadBytes())

	// ──── Step 6: Start WebSocket Chat Stream ────
	chatStream := websocket.NewChatStream(gateway, limiter)
	log.Println("✓ WebSocket chat stream ready")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		limiter,
		chatHandler,
		analysisHandler,
		chatStream,
		cfg.FrontendURL,
		cfg.TrustProxy,
	)
	if cfg.TrustProxy {
		log.Println("✓ Trusting X-Forwarded-For / X-Real-IP from the proxy")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		// LLM calls can take a while.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("✓ Xpert Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/v1/chat/completions", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/v1/chat/ws", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return runUntilSignal(server, server.ListenAndServe, sigChan, shutdownTimeout, chatStream.CloseAll)
}

const shutdownTimeout = 30 * time.Second

// runUntilSignal serves until a signal arrives, then drains in-flight
// requests for up to drain and returns once Shutdown has finished.
// beforeDrain runs first; hijacked websocket connections are not tracked by
// Shutdown.
func runUntilSignal(server *http.Server, serve func() error, sigChan <-chan os.Signal, drain time.Duration, beforeDrain func()) error {
	done := make(chan error, 1)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		if beforeDrain != nil {
			beforeDrain()
		}

		ctx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		done <- server.Shutdown(ctx)
	}()

	if err := serve(); err != http.ErrServerClosed {
		return err
	}

	if err := <-done; err != nil {
		log.Printf("✗ Shutdown did not drain cleanly: %v", err)
		return err
	}
	log.Println("✓ All requests drained")
	return nil
}
