package source

import (
	"context"
	"fmt"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
)

// PostgresRankedSource fetches a ranked collection with a single SQL query
// over the coin catalog.
type PostgresRankedSource struct {
	store    storage.CoinStorage
	metric   storage.RankMetric
	pageSize int
}

// NewPostgresRankedSource creates a source over the coin catalog
func NewPostgresRankedSource(store storage.CoinStorage, metric storage.RankMetric, pageSize int) *PostgresRankedSource {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PostgresRankedSource{
		store:    store,
		metric:   metric,
		pageSize: pageSize,
	}
}

// Fetch implements livesync.Source. Query failures are transient (the
// connection may recover by the next tick); a row that fails to serialize
// is fatal.
func (s *PostgresRankedSource) Fetch(ctx context.Context) ([]livesync.Item, error) {
	coins, err := s.store.TopCoins(ctx, s.metric, s.pageSize)
	if err != nil {
		return nil, livesync.Transient(fmt.Errorf("failed to query top coins: %w", err))
	}

	items := make([]livesync.Item, 0, len(coins))
	for _, coin := range coins {
		payload, err := coin.ToJSON()
		if err != nil {
			return nil, livesync.Fatal(fmt.Errorf("failed to serialize coin %s: %w", coin.ID, err))
		}
		item := livesync.Item{
			ID:        coin.ID,
			Payload:   payload,
			UpdatedAt: coin.UpdatedAt,
		}
		switch s.metric {
		case storage.RankBySearchCount:
			item.Score = livesync.Score(float64(coin.SearchCount))
		default:
			if coin.MarketCap != nil {
				item.Score = coin.MarketCap
			}
		}
		items = append(items, item)
	}
	return items, nil
}
