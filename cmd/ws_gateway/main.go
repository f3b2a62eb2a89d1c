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

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/pubsub"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/source"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/wsgateway"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; the gateway serves public read-only data
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

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

	logger.Info("Starting WebSocket gateway service",
		logger.Int("port", cfg.Gateway.Port),
		logger.Int("max_connections", cfg.Gateway.MaxConnections),
		logger.String("sync_source", cfg.Sync.SourceKind),
	)

	// Initialize Redis client
	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client",
			logger.ErrorField(err),
		)
	}
	defer redisClient.Close()

	// Initialize coin store when ranking straight from the database
	var coinStore storage.CoinStorage
	if cfg.Sync.SourceKind == config.SourcePostgres {
		store, err := storage.NewPostgresCoinStore(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize coin store",
				logger.ErrorField(err),
			)
		}
		defer store.Close()
		coinStore = store
	}

	// Sessions are created on the first subscriber and retired on the
	// last, so an idle gateway polls nothing
	manager := source.BuildSessionManager(cfg, redisClient, coinStore)
	defer manager.StopAll()

	// Initialize auth manager
	authManager := wsgateway.NewAuthManager(cfg.Gateway.JWTSecret)

	// Initialize hub
	hub := wsgateway.NewHub(cfg.Gateway, cfg.Presence, manager, redisClient)
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start WebSocket hub",
			logger.ErrorField(err),
		)
	}
	defer hub.Stop()

	// Set up HTTP server
	router := mux.NewRouter()

	// WebSocket endpoint
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, authManager, w, r, cfg.Gateway)
	})

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

	// Stats endpoint
	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := hub.GetStats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: router,
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
	logger.Info("Shutting down WebSocket gateway service")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server",
			logger.ErrorField(err),
		)
	}

	logger.Info("WebSocket gateway service stopped")
}

// handleWebSocket upgrades an HTTP request into a gateway connection
func handleWebSocket(hub *wsgateway.Hub, authManager *wsgateway.AuthManager, w http.ResponseWriter, r *http.Request, cfg config.GatewayConfig) {
	stats := hub.GetStats()
	if int(stats.ConnectionsActive) >= cfg.MaxConnections {
		logger.Warn("Max connections reached, rejecting new connection",
			logger.Int("max_connections", cfg.MaxConnections),
			logger.Int64("active_connections", stats.ConnectionsActive),
		)
		http.Error(w, "Max connections reached", http.StatusServiceUnavailable)
		return
	}

	var userID string
	tokenString, err := authManager.ExtractToken(r)
	if err != nil {
		// Viewers without a token browse anonymously
		userID = "anonymous"
	} else {
		userID, err = authManager.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("Invalid token, rejecting connection",
				logger.ErrorField(err),
			)
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection",
			logger.ErrorField(err),
		)
		return
	}

	connectionID := uuid.New().String()
	wsConn := wsgateway.NewConnection(connectionID, userID, conn)
	hub.Register(wsConn)

	logger.Info("WebSocket connection established",
		logger.String("connection_id", connectionID),
		logger.String("user_id", userID),
		logger.String("remote_addr", r.RemoteAddr),
	)
}
