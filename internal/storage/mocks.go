package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
)

// MockCoinStorage is a mock implementation of CoinStorage for testing
type MockCoinStorage struct {
	Coins    map[string]*models.Coin
	QueryErr error
	WriteErr error
	mu       sync.Mutex
}

func NewMockCoinStorage() *MockCoinStorage {
	return &MockCoinStorage{
		Coins: make(map[string]*models.Coin),
	}
}

func (m *MockCoinStorage) TopCoins(ctx context.Context, metric RankMetric, limit int) ([]*models.Coin, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coins := make([]*models.Coin, 0, len(m.Coins))
	for _, coin := range m.Coins {
		coins = append(coins, coin)
	}
	sort.SliceStable(coins, func(i, j int) bool {
		return metricValue(coins[i], metric) > metricValue(coins[j], metric)
	})
	if limit > 0 && len(coins) > limit {
		coins = coins[:limit]
	}
	return coins, nil
}

func metricValue(coin *models.Coin, metric RankMetric) float64 {
	switch metric {
	case RankBySearchCount:
		return float64(coin.SearchCount)
	default:
		if coin.MarketCap == nil {
			return 0
		}
		return *coin.MarketCap
	}
}

func (m *MockCoinStorage) GetCoin(ctx context.Context, coinID string) (*models.Coin, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Coins[coinID], nil
}

func (m *MockCoinStorage) UpsertCoin(ctx context.Context, coin *models.Coin) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Coins[coin.ID] = coin
	return nil
}

func (m *MockCoinStorage) DeleteCoin(ctx context.Context, coinID string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Coins, coinID)
	return nil
}

func (m *MockCoinStorage) Close() error {
	return nil
}

// MockRedisClient is an in-memory mock of RedisClient for testing.
// Publish delivers to in-process subscribers, so change-feed and presence
// round trips can be exercised without a Redis server.
type MockRedisClient struct {
	Data         map[string]string
	ZSets        map[string]map[string]float64
	Sets         map[string]map[string]struct{}
	GetErr       error
	SetErr       error
	ZErr         error
	PublishErr   error
	SubscribeErr error

	mu          sync.Mutex
	subscribers map[string][]chan PubSubMessage
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		Data:        make(map[string]string),
		ZSets:       make(map[string]map[string]float64),
		Sets:        make(map[string]map[string]struct{}),
		subscribers: make(map[string][]chan PubSubMessage),
	}
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = string(jsonData)
	return nil
}

func (m *MockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Data[key], nil
}

func (m *MockRedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if m.GetErr != nil {
		return m.GetErr
	}
	m.mu.Lock()
	data, ok := m.Data[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}

func (m *MockRedisClient) MGet(ctx context.Context, keys ...string) ([]string, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(keys))
	for i, key := range keys {
		result[i] = m.Data[key]
	}
	return result, nil
}

func (m *MockRedisClient) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	return nil
}

func (m *MockRedisClient) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Data[key]
	return ok, nil
}

func (m *MockRedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if m.ZErr != nil {
		return m.ZErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ZSets[key] == nil {
		m.ZSets[key] = make(map[string]float64)
	}
	m.ZSets[key][member] = score
	return nil
}

func (m *MockRedisClient) ZAddBatch(ctx context.Context, key string, members map[string]float64) error {
	if m.ZErr != nil {
		return m.ZErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ZSets[key] == nil {
		m.ZSets[key] = make(map[string]float64)
	}
	for member, score := range members {
		m.ZSets[key][member] = score
	}
	return nil
}

func (m *MockRedisClient) ZRem(ctx context.Context, key string, members ...string) error {
	if m.ZErr != nil {
		return m.ZErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range members {
		delete(m.ZSets[key], member)
	}
	return nil
}

func (m *MockRedisClient) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	if m.ZErr != nil {
		return nil, m.ZErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]ZMember, 0, len(m.ZSets[key]))
	for member, score := range m.ZSets[key] {
		members = append(members, ZMember{Member: member, Score: score})
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})

	if start < 0 {
		start = 0
	}
	if start >= int64(len(members)) {
		return nil, nil
	}
	end := stop + 1
	if stop < 0 || end > int64(len(members)) {
		end = int64(len(members))
	}
	return members[start:end], nil
}

func (m *MockRedisClient) ZScore(ctx context.Context, key string, member string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.ZSets[key][member]
	return score, ok
}

func (m *MockRedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	if m.ZErr != nil {
		return 0, m.ZErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.ZSets[key])), nil
}

func (m *MockRedisClient) SetAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Sets[key] == nil {
		m.Sets[key] = make(map[string]struct{})
	}
	for _, member := range members {
		m.Sets[key][member] = struct{}{}
	}
	return nil
}

func (m *MockRedisClient) SetMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]string, 0, len(m.Sets[key]))
	for member := range m.Sets[key] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *MockRedisClient) SetRemove(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, member := range members {
		delete(m.Sets[key], member)
	}
	return nil
}

func (m *MockRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	jsonData, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.mu.Lock()
	subs := append([]chan PubSubMessage(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- PubSubMessage{Channel: channel, Message: string(jsonData)}:
		default:
		}
	}
	return nil
}

func (m *MockRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error) {
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	ch := make(chan PubSubMessage, 100)
	m.mu.Lock()
	for _, channel := range channels {
		m.subscribers[channel] = append(m.subscribers[channel], ch)
	}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for _, channel := range channels {
			subs := m.subscribers[channel]
			for i, sub := range subs {
				if sub == ch {
					m.subscribers[channel] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (m *MockRedisClient) Close() error {
	return nil
}
