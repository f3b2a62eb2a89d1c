package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/api"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/pubsub"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/source"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting REST API service",
		logger.Int("port", cfg.API.Port),
		logger.String("sync_source", cfg.Sync.SourceKind),
		logger.Int("rate_limit_rps", cfg.API.RateLimitRPS),
	)

	// Initialize Redis client
	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client",
			logger.ErrorField(err),
		)
	}
	defer redisClient.Close()

	// Initialize coin store when a database is configured
	var coinStore storage.CoinStorage
	if cfg.Database.Host != "" {
		store, err := storage.NewPostgresCoinStore(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize coin store",
				logger.ErrorField(err),
			)
		}
		defer store.Close()
		coinStore = store
	}

	// Build the session manager and pin every list so the API always has
	// a live projection to serve
	manager := source.BuildSessionManager(cfg, redisClient, coinStore)
	for _, name := range manager.Lists() {
		if _, err := manager.Acquire(name); err != nil {
			logger.Fatal("Failed to start list session",
				logger.ErrorField(err),
				logger.String("list", name),
			)
		}
	}
	defer manager.StopAll()

	// Initialize handlers
	listHandler := api.NewListHandler(manager)
	presenceHandler := api.NewPresenceHandler(redisClient)

	// Set up router
	router := mux.NewRouter()

	// API v1 routes
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Live ranked list endpoints
	v1.HandleFunc("/lists", listHandler.ListLists).Methods("GET")
	v1.HandleFunc("/lists/{list}", listHandler.GetList).Methods("GET")
	v1.HandleFunc("/lists/{list}/window", listHandler.GrowWindow).Methods("POST")
	v1.HandleFunc("/lists/{list}/sort", listHandler.SetSortOrder).Methods("POST")

	// Coin lookup endpoints (database-backed)
	if coinStore != nil {
		coinHandler := api.NewCoinHandler(coinStore)
		v1.HandleFunc("/coins", coinHandler.TopCoins).Methods("GET")
		v1.HandleFunc("/coins/{id}", coinHandler.GetCoin).Methods("GET")
	}

	// Room presence endpoints
	v1.HandleFunc("/rooms/{id}/presence", presenceHandler.GetRoomPresence).Methods("GET")

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := redisClient.Exists(ctx, "ready-probe"); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Apply middleware
	middlewares := api.ChainMiddleware(
		api.CORSMiddleware(),
		api.LoggingMiddleware(),
		api.RecoveryMiddleware(),
		api.RateLimitMiddleware(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
	)

	handler := middlewares(router)

	// Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      handler,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server",
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server",
				logger.ErrorField(err),
			)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down REST API service")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}

	logger.Info("REST API service stopped")
}
