package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

var (
	coinStoreQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coin_store_queries_total",
			Help: "Total number of coin store queries",
		},
		[]string{"operation", "status"},
	)

	coinStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coin_store_query_latency_seconds",
			Help:    "Coin store query latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"operation"},
	)
)

// PostgresCoinStore implements CoinStorage backed by Postgres
type PostgresCoinStore struct {
	db *sql.DB
}

// NewPostgresCoinStore creates a new Postgres coin store
func NewPostgresCoinStore(dbConfig config.DatabaseConfig) (*PostgresCoinStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Database,
		dbConfig.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to Postgres",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return &PostgresCoinStore{db: db}, nil
}

// TopCoins retrieves the top coins ordered by the given metric column.
// Coins without a value for the metric sort last.
func (s *PostgresCoinStore) TopCoins(ctx context.Context, metric RankMetric, limit int) ([]*models.Coin, error) {
	start := time.Now()
	defer coinStoreLatency.WithLabelValues("top_coins").Observe(time.Since(start).Seconds())

	var orderBy string
	switch metric {
	case RankBySearchCount:
		orderBy = "search_count DESC"
	case RankByMarketCap:
		orderBy = "market_cap DESC NULLS LAST"
	default:
		coinStoreQueries.WithLabelValues("top_coins", "error").Inc()
		return nil, fmt.Errorf("unknown rank metric: %s", metric)
	}

	query := fmt.Sprintf(`
		SELECT id, name, ticker, image_url, description, price, market_cap, search_count, created_at, updated_at
		FROM coins
		ORDER BY %s, id
		LIMIT $1`, orderBy)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		coinStoreQueries.WithLabelValues("top_coins", "error").Inc()
		return nil, fmt.Errorf("failed to query top coins: %w", err)
	}
	defer rows.Close()

	var coins []*models.Coin
	for rows.Next() {
		coin, err := scanCoin(rows)
		if err != nil {
			coinStoreQueries.WithLabelValues("top_coins", "error").Inc()
			return nil, err
		}
		coins = append(coins, coin)
	}
	if err := rows.Err(); err != nil {
		coinStoreQueries.WithLabelValues("top_coins", "error").Inc()
		return nil, fmt.Errorf("failed to iterate coins: %w", err)
	}

	coinStoreQueries.WithLabelValues("top_coins", "success").Inc()
	return coins, nil
}

// GetCoin retrieves a single coin by ID. Returns nil when not found.
func (s *PostgresCoinStore) GetCoin(ctx context.Context, coinID string) (*models.Coin, error) {
	start := time.Now()
	defer coinStoreLatency.WithLabelValues("get_coin").Observe(time.Since(start).Seconds())

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, ticker, image_url, description, price, market_cap, search_count, created_at, updated_at
		FROM coins
		WHERE id = $1`, coinID)

	coin, err := scanCoin(row)
	if err == sql.ErrNoRows {
		coinStoreQueries.WithLabelValues("get_coin", "success").Inc()
		return nil, nil
	}
	if err != nil {
		coinStoreQueries.WithLabelValues("get_coin", "error").Inc()
		return nil, err
	}

	coinStoreQueries.WithLabelValues("get_coin", "success").Inc()
	return coin, nil
}

// UpsertCoin inserts or updates a coin
func (s *PostgresCoinStore) UpsertCoin(ctx context.Context, coin *models.Coin) error {
	start := time.Now()
	defer coinStoreLatency.WithLabelValues("upsert_coin").Observe(time.Since(start).Seconds())

	if err := coin.Validate(); err != nil {
		coinStoreQueries.WithLabelValues("upsert_coin", "error").Inc()
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coins (id, name, ticker, image_url, description, price, market_cap, search_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			ticker = EXCLUDED.ticker,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			market_cap = EXCLUDED.market_cap,
			search_count = EXCLUDED.search_count,
			updated_at = EXCLUDED.updated_at
		WHERE coins.updated_at < EXCLUDED.updated_at`,
		coin.ID, coin.Name, coin.Ticker, coin.ImageURL, coin.Description,
		coin.Price, coin.MarketCap, coin.SearchCount, coin.CreatedAt, coin.UpdatedAt,
	)
	if err != nil {
		coinStoreQueries.WithLabelValues("upsert_coin", "error").Inc()
		return fmt.Errorf("failed to upsert coin: %w", err)
	}

	coinStoreQueries.WithLabelValues("upsert_coin", "success").Inc()
	return nil
}

// DeleteCoin removes a coin
func (s *PostgresCoinStore) DeleteCoin(ctx context.Context, coinID string) error {
	start := time.Now()
	defer coinStoreLatency.WithLabelValues("delete_coin").Observe(time.Since(start).Seconds())

	_, err := s.db.ExecContext(ctx, `DELETE FROM coins WHERE id = $1`, coinID)
	if err != nil {
		coinStoreQueries.WithLabelValues("delete_coin", "error").Inc()
		return fmt.Errorf("failed to delete coin: %w", err)
	}

	coinStoreQueries.WithLabelValues("delete_coin", "success").Inc()
	return nil
}

// Close closes the database connection
func (s *PostgresCoinStore) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for scanCoin
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCoin(row scanner) (*models.Coin, error) {
	var coin models.Coin
	var imageURL, description sql.NullString
	var price, marketCap sql.NullFloat64

	err := row.Scan(
		&coin.ID, &coin.Name, &coin.Ticker, &imageURL, &description,
		&price, &marketCap, &coin.SearchCount, &coin.CreatedAt, &coin.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan coin: %w", err)
	}

	coin.ImageURL = imageURL.String
	coin.Description = description.String
	if price.Valid {
		coin.Price = &price.Float64
	}
	if marketCap.Valid {
		coin.MarketCap = &marketCap.Float64
	}
	return &coin, nil
}
