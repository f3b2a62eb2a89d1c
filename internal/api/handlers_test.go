package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
)

func floatPtr(v float64) *float64 {
	return &v
}

// newTestManager returns a manager with the trending list registered,
// acquired, and loaded with the given items.
func newTestManager(t *testing.T, items []livesync.Item) *livesync.SessionManager {
	t.Helper()

	manager := livesync.NewSessionManager()
	manager.Register("trending", func(onChange func()) *livesync.Session {
		cfg := livesync.DefaultSessionConfig("trending")
		cfg.Poll.Interval = time.Hour
		cfg.OnChange = onChange
		src := livesync.SourceFunc(func(ctx context.Context) ([]livesync.Item, error) {
			return items, nil
		})
		return livesync.NewSession(cfg, src, nil)
	})

	session, err := manager.Acquire("trending")
	if err != nil {
		t.Fatalf("Failed to acquire list: %v", err)
	}
	t.Cleanup(func() { manager.Release("trending") })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && session.View().Phase != livesync.PhaseLoaded {
		time.Sleep(5 * time.Millisecond)
	}
	if session.View().Phase != livesync.PhaseLoaded {
		t.Fatal("List never loaded")
	}
	return manager
}

func coinItem(t *testing.T, coin *models.Coin, score float64) livesync.Item {
	t.Helper()
	payload, err := coin.ToJSON()
	if err != nil {
		t.Fatalf("Failed to serialize coin: %v", err)
	}
	return livesync.Item{
		ID:        coin.ID,
		Score:     &score,
		Payload:   payload,
		UpdatedAt: coin.UpdatedAt,
	}
}

func TestListHandler_ListLists(t *testing.T) {
	manager := newTestManager(t, []livesync.Item{
		{ID: "a", Score: floatPtr(1), UpdatedAt: time.Now()},
	})
	handler := NewListHandler(manager)

	req := httptest.NewRequest("GET", "/api/v1/lists", nil)
	w := httptest.NewRecorder()
	handler.ListLists(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	lists, ok := response["lists"].([]interface{})
	if !ok || len(lists) != 1 {
		t.Fatalf("Expected 1 list in response, got %v", response["lists"])
	}
	entry := lists[0].(map[string]interface{})
	if entry["name"] != "trending" {
		t.Errorf("Expected trending list, got %v", entry["name"])
	}
	if entry["active"] != true {
		t.Error("Expected trending list active")
	}
	if entry["phase"] != "loaded" {
		t.Errorf("Expected loaded phase, got %v", entry["phase"])
	}
}

func TestListHandler_GetList(t *testing.T) {
	now := time.Now().UTC()
	mc := 2_000_000.0
	coin := &models.Coin{
		ID: "pepe", Name: "Pepe", Ticker: "PEPE",
		Price: floatPtr(0.0001), MarketCap: &mc, UpdatedAt: now,
	}
	manager := newTestManager(t, []livesync.Item{coinItem(t, coin, 42)})
	handler := NewListHandler(manager)

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/lists/trending", nil),
		map[string]string{"list": "trending"})
	w := httptest.NewRecorder()
	handler.GetList(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		List  string `json:"list"`
		Items []struct {
			ID      string       `json:"id"`
			Score   *float64     `json:"score"`
			Display *displayInfo `json:"display"`
		} `json:"items"`
		Total int    `json:"total"`
		Phase string `json:"phase"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Total != 1 || len(response.Items) != 1 {
		t.Fatalf("Expected 1 item, got %+v", response)
	}
	item := response.Items[0]
	if item.ID != "pepe" || item.Score == nil || *item.Score != 42 {
		t.Errorf("Unexpected item: %+v", item)
	}
	if item.Display == nil {
		t.Fatal("Expected display formatting for a coin payload")
	}
	if item.Display.MarketCapSize != models.BucketMid {
		t.Errorf("Expected mid bucket, got %s", item.Display.MarketCapSize)
	}
}

func TestListHandler_GetList_NotActive(t *testing.T) {
	handler := NewListHandler(livesync.NewSessionManager())

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/lists/trending", nil),
		map[string]string{"list": "trending"})
	w := httptest.NewRecorder()
	handler.GetList(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestListHandler_GrowWindow(t *testing.T) {
	items := make([]livesync.Item, 0, 40)
	now := time.Now()
	for i := 0; i < 40; i++ {
		score := float64(i)
		items = append(items, livesync.Item{
			ID: fmt.Sprintf("coin-%02d", i), Score: &score, UpdatedAt: now,
		})
	}
	manager := newTestManager(t, items)
	handler := NewListHandler(manager)

	body, _ := json.Marshal(map[string]int{"grow": 5})
	req := mux.SetURLVars(httptest.NewRequest("POST", "/api/v1/lists/trending/window", bytes.NewBuffer(body)),
		map[string]string{"list": "trending"})
	w := httptest.NewRecorder()
	handler.GrowWindow(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Visible int `json:"visible"`
		Total   int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Visible != 35 {
		t.Errorf("Expected 35 visible after growing the default window, got %d", response.Visible)
	}
	if response.Total != 40 {
		t.Errorf("Expected 40 total, got %d", response.Total)
	}
}

func TestListHandler_GrowWindow_Invalid(t *testing.T) {
	manager := newTestManager(t, []livesync.Item{
		{ID: "a", Score: floatPtr(1), UpdatedAt: time.Now()},
	})
	handler := NewListHandler(manager)

	body, _ := json.Marshal(map[string]int{"grow": -3})
	req := mux.SetURLVars(httptest.NewRequest("POST", "/api/v1/lists/trending/window", bytes.NewBuffer(body)),
		map[string]string{"list": "trending"})
	w := httptest.NewRecorder()
	handler.GrowWindow(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	req = mux.SetURLVars(httptest.NewRequest("POST", "/api/v1/lists/trending/window", bytes.NewBufferString("nope")),
		map[string]string{"list": "trending"})
	w = httptest.NewRecorder()
	handler.GrowWindow(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for bad body, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestListHandler_SetSortOrder(t *testing.T) {
	manager := newTestManager(t, []livesync.Item{
		{ID: "low", Score: floatPtr(1), UpdatedAt: time.Now()},
		{ID: "high", Score: floatPtr(9), UpdatedAt: time.Now()},
	})
	handler := NewListHandler(manager)

	body, _ := json.Marshal(map[string]string{"order": "asc"})
	req := mux.SetURLVars(httptest.NewRequest("POST", "/api/v1/lists/trending/sort", bytes.NewBuffer(body)),
		map[string]string{"list": "trending"})
	w := httptest.NewRecorder()
	handler.SetSortOrder(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	session, _ := manager.Get("trending")
	view := session.View()
	if view.Items[0].ID != "low" {
		t.Errorf("Expected ascending order, got %s first", view.Items[0].ID)
	}

	body, _ = json.Marshal(map[string]string{"order": "upside-down"})
	req = mux.SetURLVars(httptest.NewRequest("POST", "/api/v1/lists/trending/sort", bytes.NewBuffer(body)),
		map[string]string{"list": "trending"})
	w = httptest.NewRecorder()
	handler.SetSortOrder(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCoinHandler_GetCoin(t *testing.T) {
	store := storage.NewMockCoinStorage()
	coin := &models.Coin{ID: "pepe", Name: "Pepe", UpdatedAt: time.Now()}
	store.UpsertCoin(context.Background(), coin)
	handler := NewCoinHandler(store)

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/coins/pepe", nil),
		map[string]string{"id": "pepe"})
	w := httptest.NewRecorder()
	handler.GetCoin(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var got models.Coin
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if got.Name != "Pepe" {
		t.Errorf("Expected Pepe, got %s", got.Name)
	}

	req = mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/coins/unknown", nil),
		map[string]string{"id": "unknown"})
	w = httptest.NewRecorder()
	handler.GetCoin(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestCoinHandler_TopCoins(t *testing.T) {
	store := storage.NewMockCoinStorage()
	now := time.Now()
	mc := 1_000_000.0
	store.UpsertCoin(context.Background(), &models.Coin{
		ID: "big", Name: "Big", MarketCap: &mc, SearchCount: 1, UpdatedAt: now,
	})
	store.UpsertCoin(context.Background(), &models.Coin{
		ID: "hot", Name: "Hot", SearchCount: 50, UpdatedAt: now,
	})
	handler := NewCoinHandler(store)

	req := httptest.NewRequest("GET", "/api/v1/coins?rank_by=search_count&limit=1", nil)
	w := httptest.NewRecorder()
	handler.TopCoins(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Coins  []models.Coin `json:"coins"`
		Count  int           `json:"count"`
		RankBy string        `json:"rank_by"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Count != 1 || response.Coins[0].ID != "hot" {
		t.Errorf("Expected hot ranked first by search count, got %+v", response)
	}
	if response.RankBy != "search_count" {
		t.Errorf("Expected search_count rank, got %s", response.RankBy)
	}
}

func TestPresenceHandler_GetRoomPresence(t *testing.T) {
	mockRedis := storage.NewMockRedisClient()
	mockRedis.SetAdd(context.Background(), models.GetPresenceSetKey("room-1"), "viewer-1", "viewer-2")
	handler := NewPresenceHandler(mockRedis)

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/rooms/room-1/presence", nil),
		map[string]string{"id": "room-1"})
	w := httptest.NewRecorder()
	handler.GetRoomPresence(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		RoomID string `json:"room_id"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Count != 2 {
		t.Errorf("Expected 2 members, got %d", response.Count)
	}
}
