package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
)

func seedCoin(t *testing.T, mockRedis *storage.MockRedisClient, coin *models.Coin, setKey string, score float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mockRedis.Set(ctx, models.GetCoinKey(coin.ID), coin, 0))
	require.NoError(t, mockRedis.ZAdd(ctx, setKey, score, coin.ID))
}

func TestRedisRankedSource_Fetch(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	now := time.Now().UTC().Truncate(time.Second)

	seedCoin(t, mockRedis, &models.Coin{
		ID: "coin-low", Name: "Low", UpdatedAt: now,
	}, models.TrendingSetKey, 10)
	seedCoin(t, mockRedis, &models.Coin{
		ID: "coin-high", Name: "High", UpdatedAt: now,
	}, models.TrendingSetKey, 99)

	src := NewRedisRankedSource(mockRedis, models.TrendingSetKey, models.GetCoinKey, 100)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	// ZREVRANGE order: highest score first
	assert.Equal(t, "coin-high", items[0].ID)
	require.NotNil(t, items[0].Score)
	assert.Equal(t, 99.0, *items[0].Score)
	assert.True(t, items[0].UpdatedAt.Equal(now))

	coin, err := models.CoinFromJSON(items[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "High", coin.Name)
}

func TestRedisRankedSource_MemberWithoutPayload(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	ctx := context.Background()
	require.NoError(t, mockRedis.ZAdd(ctx, models.TrendingSetKey, 5, "ghost"))

	src := NewRedisRankedSource(mockRedis, models.TrendingSetKey, models.GetCoinKey, 100)
	items, err := src.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// rank survives, payload is simply absent
	assert.Equal(t, "ghost", items[0].ID)
	assert.Nil(t, items[0].Payload)
	assert.True(t, items[0].UpdatedAt.IsZero())
}

func TestRedisRankedSource_EmptySet(t *testing.T) {
	src := NewRedisRankedSource(storage.NewMockRedisClient(), models.TrendingSetKey, models.GetCoinKey, 100)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisRankedSource_StoreFailureIsTransient(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	mockRedis.ZErr = assert.AnError

	src := NewRedisRankedSource(mockRedis, models.TrendingSetKey, models.GetCoinKey, 100)
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, livesync.KindTransient, livesync.KindOf(err))
}

func TestRedisRankedSource_MalformedPayloadIsFatal(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	ctx := context.Background()
	require.NoError(t, mockRedis.ZAdd(ctx, models.TrendingSetKey, 5, "bad"))
	mockRedis.Data[models.GetCoinKey("bad")] = "{not json"

	src := NewRedisRankedSource(mockRedis, models.TrendingSetKey, models.GetCoinKey, 100)
	_, err := src.Fetch(ctx)
	require.Error(t, err)
	assert.Equal(t, livesync.KindFatal, livesync.KindOf(err))
}

func TestRedisRankedSource_PageSizeLimits(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	now := time.Now()
	for i, id := range []string{"a", "b", "c", "d"} {
		seedCoin(t, mockRedis, &models.Coin{ID: id, Name: id, UpdatedAt: now}, models.TrendingSetKey, float64(i))
	}

	src := NewRedisRankedSource(mockRedis, models.TrendingSetKey, models.GetCoinKey, 2)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestPostgresRankedSource_Fetch(t *testing.T) {
	store := storage.NewMockCoinStorage()
	now := time.Now()
	mc := 5_000_000.0
	require.NoError(t, store.UpsertCoin(context.Background(), &models.Coin{
		ID: "coin-1", Name: "One", MarketCap: &mc, SearchCount: 3, UpdatedAt: now,
	}))
	require.NoError(t, store.UpsertCoin(context.Background(), &models.Coin{
		ID: "coin-2", Name: "Two", SearchCount: 42, UpdatedAt: now,
	}))

	byCap := NewPostgresRankedSource(store, storage.RankByMarketCap, 100)
	items, err := byCap.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "coin-1", items[0].ID)
	require.NotNil(t, items[0].Score)
	assert.Equal(t, mc, *items[0].Score)
	// a coin without a market cap has no score under that metric
	assert.Nil(t, items[1].Score)

	bySearch := NewPostgresRankedSource(store, storage.RankBySearchCount, 100)
	items, err = bySearch.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "coin-2", items[0].ID)
	assert.Equal(t, 42.0, *items[0].Score)
}

func TestPostgresRankedSource_QueryFailureIsTransient(t *testing.T) {
	store := storage.NewMockCoinStorage()
	store.QueryErr = assert.AnError

	src := NewPostgresRankedSource(store, storage.RankByMarketCap, 100)
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, livesync.KindTransient, livesync.KindOf(err))
}
