package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sdcoffey/big"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/pubsub"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// Demo data generator: seeds a coin catalog into Redis (and Postgres when
// configured), then churns prices, rankings, and live streams so the
// synchronizer has something to watch during local development.

var adjectives = []string{"moon", "turbo", "giga", "based", "degen", "hyper", "mega", "ultra", "sigma", "cosmic"}
var nouns = []string{"doge", "pepe", "cat", "frog", "rocket", "whale", "ape", "shiba", "wojak", "chad"}

func main() {
	coinCount := flag.Int("coins", 40, "number of demo coins to seed")
	streamCount := flag.Int("streams", 8, "number of live streams to keep open")
	churn := flag.Duration("churn", 2*time.Second, "interval between simulated updates")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting demo seeder",
		logger.Int("coins", *coinCount),
		logger.Int("streams", *streamCount),
		logger.Duration("churn", *churn),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client",
			logger.ErrorField(err),
		)
	}
	defer redisClient.Close()

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

	s := &seeder{
		redis: redisClient,
		store: coinStore,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.seed(ctx, *coinCount, *streamCount); err != nil {
		logger.Fatal("Failed to seed demo data",
			logger.ErrorField(err),
		)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*churn)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			logger.Info("Demo seeder stopped")
			return
		case <-ticker.C:
			s.churn(ctx)
		}
	}
}

type seeder struct {
	redis   storage.RedisClient
	store   storage.CoinStorage
	rng     *rand.Rand
	coins   []*models.Coin
	streams []*models.Stream
}

func (s *seeder) seed(ctx context.Context, coinCount, streamCount int) error {
	now := time.Now().UTC()

	for i := 0; i < coinCount; i++ {
		coin := s.randomCoin(now)
		s.coins = append(s.coins, coin)
		if err := s.writeCoin(ctx, coin, models.EventInsert); err != nil {
			return err
		}
	}

	for i := 0; i < streamCount; i++ {
		stream := s.randomStream(now)
		s.streams = append(s.streams, stream)
		if err := s.writeStream(ctx, stream, models.EventInsert); err != nil {
			return err
		}
	}

	logger.Info("Seeded demo data",
		logger.Int("coins", len(s.coins)),
		logger.Int("streams", len(s.streams)),
	)
	return nil
}

// churn applies one round of simulated market activity
func (s *seeder) churn(ctx context.Context) {
	now := time.Now().UTC()

	// a handful of price moves per tick
	for i := 0; i < 1+s.rng.Intn(5); i++ {
		coin := s.coins[s.rng.Intn(len(s.coins))]
		s.moveCoin(coin, now)
		if err := s.writeCoin(ctx, coin, models.EventUpdate); err != nil {
			logger.Warn("Failed to write coin update", logger.ErrorField(err))
		}
	}

	// occasionally a new coin launches or a stream flips state
	switch s.rng.Intn(10) {
	case 0:
		coin := s.randomCoin(now)
		s.coins = append(s.coins, coin)
		if err := s.writeCoin(ctx, coin, models.EventInsert); err != nil {
			logger.Warn("Failed to write coin insert", logger.ErrorField(err))
		}
		logger.Info("New coin launched", logger.String("coin_id", coin.ID), logger.String("ticker", coin.Ticker))
	case 1:
		stream := s.randomStream(now)
		s.streams = append(s.streams, stream)
		if err := s.writeStream(ctx, stream, models.EventInsert); err != nil {
			logger.Warn("Failed to write stream insert", logger.ErrorField(err))
		}
	case 2:
		if len(s.streams) > 1 {
			idx := s.rng.Intn(len(s.streams))
			stream := s.streams[idx]
			s.streams = append(s.streams[:idx], s.streams[idx+1:]...)
			if err := s.endStream(ctx, stream); err != nil {
				logger.Warn("Failed to end stream", logger.ErrorField(err))
			}
		}
	}

	// viewer counts drift on every open stream
	for _, stream := range s.streams {
		stream.ViewerCount += int64(s.rng.Intn(21) - 10)
		if stream.ViewerCount < 0 {
			stream.ViewerCount = 0
		}
		stream.UpdatedAt = now
		if err := s.writeStream(ctx, stream, models.EventUpdate); err != nil {
			logger.Warn("Failed to write stream update", logger.ErrorField(err))
		}
	}
}

func (s *seeder) randomCoin(now time.Time) *models.Coin {
	name := adjectives[s.rng.Intn(len(adjectives))] + nouns[s.rng.Intn(len(nouns))]
	price := s.rng.Float64() * 0.01
	marketCap := price * float64(1_000_000+s.rng.Intn(500_000_000))
	return &models.Coin{
		ID:          uuid.New().String(),
		Name:        name,
		Ticker:      tickerOf(name),
		Description: fmt.Sprintf("The %s community token", name),
		Price:       &price,
		MarketCap:   &marketCap,
		SearchCount: int64(s.rng.Intn(5000)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *seeder) randomStream(now time.Time) *models.Stream {
	var coinID string
	if len(s.coins) > 0 {
		coinID = s.coins[s.rng.Intn(len(s.coins))].ID
	}
	return &models.Stream{
		ID:          uuid.New().String(),
		CoinID:      coinID,
		Title:       fmt.Sprintf("%s to the moon", nouns[s.rng.Intn(len(nouns))]),
		HostID:      uuid.New().String(),
		ViewerCount: int64(s.rng.Intn(200)),
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// moveCoin applies a bounded random walk to price and market cap. The
// decimal round-trip keeps seeded prices at display precision so the UI
// and the wire agree.
func (s *seeder) moveCoin(coin *models.Coin, now time.Time) {
	if coin.Price != nil {
		drift := 1 + (s.rng.Float64()-0.5)*0.2
		price := big.NewDecimal(*coin.Price * drift).Float()
		coin.Price = &price
		if coin.MarketCap != nil {
			marketCap := *coin.MarketCap * drift
			coin.MarketCap = &marketCap
		}
	}
	coin.SearchCount += int64(s.rng.Intn(50))
	coin.UpdatedAt = now
}

func (s *seeder) writeCoin(ctx context.Context, coin *models.Coin, kind models.ChangeEventKind) error {
	if err := s.redis.Set(ctx, models.GetCoinKey(coin.ID), coin, 0); err != nil {
		return err
	}
	if err := s.redis.ZAdd(ctx, models.TrendingSetKey, float64(coin.SearchCount), coin.ID); err != nil {
		return err
	}
	var marketCap float64
	if coin.MarketCap != nil {
		marketCap = *coin.MarketCap
	}
	if err := s.redis.ZAdd(ctx, models.ExploreSetKey, marketCap, coin.ID); err != nil {
		return err
	}

	if s.store != nil {
		if err := s.store.UpsertCoin(ctx, coin); err != nil {
			return err
		}
	}

	return s.publishEvent(ctx, models.CoinChangesChannel, &models.ChangeEvent{
		Kind:      kind,
		ID:        coin.ID,
		UpdatedAt: coin.UpdatedAt,
	})
}

func (s *seeder) writeStream(ctx context.Context, stream *models.Stream, kind models.ChangeEventKind) error {
	payload, err := stream.ToJSON()
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, models.GetStreamKey(stream.ID), stream, 0); err != nil {
		return err
	}
	if err := s.redis.ZAdd(ctx, models.StreamsSetKey, float64(stream.ViewerCount), stream.ID); err != nil {
		return err
	}

	score := float64(stream.ViewerCount)
	// stream events carry their payload so subscribers can patch in place
	return s.publishEvent(ctx, models.StreamChangesChannel, &models.ChangeEvent{
		Kind:      kind,
		ID:        stream.ID,
		Score:     &score,
		Payload:   payload,
		UpdatedAt: stream.UpdatedAt,
	})
}

func (s *seeder) endStream(ctx context.Context, stream *models.Stream) error {
	if err := s.redis.ZRem(ctx, models.StreamsSetKey, stream.ID); err != nil {
		return err
	}
	if err := s.redis.Delete(ctx, models.GetStreamKey(stream.ID)); err != nil {
		return err
	}
	logger.Info("Stream ended", logger.String("stream_id", stream.ID))
	return s.publishEvent(ctx, models.StreamChangesChannel, &models.ChangeEvent{
		Kind: models.EventDelete,
		ID:   stream.ID,
	})
}

func (s *seeder) publishEvent(ctx context.Context, channel string, event *models.ChangeEvent) error {
	return s.redis.Publish(ctx, channel, event)
}

func tickerOf(name string) string {
	if len(name) > 5 {
		name = name[:5]
	}
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
