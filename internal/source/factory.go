package source

import (
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/config"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/feed"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
)

// List names served by the session manager
const (
	ListTrending = "trending"
	ListExplore  = "explore"
	ListStreams  = "streams"
)

// BuildSessionManager wires the standard lists into a session manager.
// Coin lists rank from Redis ZSETs or straight from Postgres depending on
// SYNC_SOURCE; the streams list always reads Redis since live streams are
// never persisted. store may be nil when SYNC_SOURCE is redis.
func BuildSessionManager(cfg *config.Config, redis storage.RedisClient, store storage.CoinStorage) *livesync.SessionManager {
	manager := livesync.NewSessionManager()

	trendingSource := coinSource(cfg, redis, store, models.TrendingSetKey, storage.RankBySearchCount, cfg.Sync.Trending.PageSize)
	exploreSource := coinSource(cfg, redis, store, models.ExploreSetKey, storage.RankByMarketCap, cfg.Sync.Explore.PageSize)
	streamsSource := NewRedisRankedSource(redis, models.StreamsSetKey, models.GetStreamKey, cfg.Sync.Streams.PageSize)

	manager.Register(ListTrending, listFactory(ListTrending, cfg.Sync.Trending, trendingSource, func() livesync.ChangeFeed {
		return feed.NewRedisFeed(redis, models.CoinChangesChannel, livesync.DefaultRetryPolicy())
	}))
	manager.Register(ListExplore, listFactory(ListExplore, cfg.Sync.Explore, exploreSource, func() livesync.ChangeFeed {
		return feed.NewRedisFeed(redis, models.CoinChangesChannel, livesync.DefaultRetryPolicy())
	}))
	manager.Register(ListStreams, listFactory(ListStreams, cfg.Sync.Streams, streamsSource, func() livesync.ChangeFeed {
		return feed.NewRedisFeed(redis, models.StreamChangesChannel, livesync.DefaultRetryPolicy())
	}))

	return manager
}

func coinSource(cfg *config.Config, redis storage.RedisClient, store storage.CoinStorage, setKey string, metric storage.RankMetric, pageSize int) livesync.Source {
	if cfg.Sync.SourceKind == config.SourcePostgres && store != nil {
		return NewPostgresRankedSource(store, metric, pageSize)
	}
	return NewRedisRankedSource(redis, setKey, models.GetCoinKey, pageSize)
}

func listFactory(name string, lc config.ListConfig, src livesync.Source, newFeed func() livesync.ChangeFeed) livesync.SessionFactory {
	return func(onChange func()) *livesync.Session {
		sc := livesync.SessionConfig{
			Name: name,
			Poll: livesync.PollerConfig{
				Name:     name,
				Interval: lc.PollInterval,
				Debounce: lc.Debounce,
			},
			SortOrder:       livesync.SortDesc,
			InitialWindow:   lc.InitialWindow,
			PatchFromEvents: lc.PatchFromEvents,
			Retry:           livesync.DefaultRetryPolicy(),
			OnChange:        onChange,
		}
		return livesync.NewSession(sc, src, newFeed())
	}
}
