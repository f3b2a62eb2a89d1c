package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/livesync"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/models"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/internal/storage"
	"github.com/jameswalter4566/crypto-sparklerog-sub000/pkg/logger"
)

// ListHandler exposes the live ranked lists over REST
type ListHandler struct {
	manager *livesync.SessionManager
}

// NewListHandler creates a new list handler
func NewListHandler(manager *livesync.SessionManager) *ListHandler {
	return &ListHandler{manager: manager}
}

// listItem is the wire shape of one ranked entry
type listItem struct {
	ID        string          `json:"id"`
	Score     *float64        `json:"score"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Display   *displayInfo    `json:"display,omitempty"`
}

type displayInfo struct {
	Price         string `json:"price,omitempty"`
	MarketCap     string `json:"market_cap,omitempty"`
	MarketCapSize string `json:"market_cap_size,omitempty"`
}

// ListLists handles GET /api/v1/lists
func (h *ListHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	names := h.manager.Lists()
	lists := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		entry := map[string]interface{}{
			"name":   name,
			"active": false,
		}
		if session, ok := h.manager.Get(name); ok {
			view := session.View()
			entry["active"] = true
			entry["total"] = view.Total
			entry["phase"] = view.Phase.String()
		}
		lists = append(lists, entry)
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"lists": lists,
		"count": len(lists),
	})
}

// GetList handles GET /api/v1/lists/:list
func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	listName := vars["list"]

	session, ok := h.manager.Get(listName)
	if !ok {
		respondWithError(w, http.StatusNotFound, "List not active")
		return
	}

	view := session.View()
	items := make([]listItem, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, toListItem(item))
	}

	resp := map[string]interface{}{
		"list":       listName,
		"items":      items,
		"total":      view.Total,
		"is_loading": view.IsLoading,
		"phase":      view.Phase.String(),
	}
	if view.Error != nil {
		resp["error"] = view.Error.String()
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// GrowWindow handles POST /api/v1/lists/:list/window
func (h *ListHandler) GrowWindow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	listName := vars["list"]

	session, ok := h.manager.Get(listName)
	if !ok {
		respondWithError(w, http.StatusNotFound, "List not active")
		return
	}

	var req struct {
		Grow int `json:"grow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Grow <= 0 {
		respondWithError(w, http.StatusBadRequest, "grow must be positive")
		return
	}

	session.GrowWindow(req.Grow)

	view := session.View()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"list":    listName,
		"visible": len(view.Items),
		"total":   view.Total,
	})
}

// SetSortOrder handles POST /api/v1/lists/:list/sort
func (h *ListHandler) SetSortOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	listName := vars["list"]

	session, ok := h.manager.Get(listName)
	if !ok {
		respondWithError(w, http.StatusNotFound, "List not active")
		return
	}

	var req struct {
		Order string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var order livesync.SortOrder
	switch req.Order {
	case "asc":
		order = livesync.SortAsc
	case "desc":
		order = livesync.SortDesc
	default:
		respondWithError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	session.SetSortOrder(order)

	logger.Info("List sort order changed",
		logger.String("list", listName),
		logger.String("order", req.Order),
	)

	respondWithJSON(w, http.StatusOK, map[string]string{
		"list":  listName,
		"order": req.Order,
	})
}

// toListItem decorates a ranked entry with display formatting when its
// payload decodes as a coin
func toListItem(item livesync.Item) listItem {
	out := listItem{
		ID:        item.ID,
		Score:     item.Score,
		UpdatedAt: item.UpdatedAt,
		Payload:   item.Payload,
	}

	coin, err := models.CoinFromJSON(item.Payload)
	if err != nil {
		return out
	}

	display := &displayInfo{
		Price:         models.FormatPrice(coin.Price),
		MarketCap:     models.FormatMarketCap(coin.MarketCap),
		MarketCapSize: models.MarketCapBucket(coin.MarketCap),
	}
	if display.Price != "" || display.MarketCap != "" {
		out.Display = display
	}
	return out
}

// CoinHandler serves individual coin lookups
type CoinHandler struct {
	store storage.CoinStorage
}

// NewCoinHandler creates a new coin handler
func NewCoinHandler(store storage.CoinStorage) *CoinHandler {
	return &CoinHandler{store: store}
}

// GetCoin handles GET /api/v1/coins/:id
func (h *CoinHandler) GetCoin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	coinID := vars["id"]

	coin, err := h.store.GetCoin(r.Context(), coinID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve coin")
		return
	}
	if coin == nil {
		respondWithError(w, http.StatusNotFound, "Coin not found")
		return
	}

	respondWithJSON(w, http.StatusOK, coin)
}

// TopCoins handles GET /api/v1/coins
func (h *CoinHandler) TopCoins(w http.ResponseWriter, r *http.Request) {
	metric := storage.RankByMarketCap
	if r.URL.Query().Get("rank_by") == string(storage.RankBySearchCount) {
		metric = storage.RankBySearchCount
	}

	limit := parseIntQuery(r, "limit", 50, 1, 500)

	coins, err := h.store.TopCoins(r.Context(), metric, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve coins")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"coins":   coins,
		"count":   len(coins),
		"rank_by": string(metric),
	})
}

// PresenceHandler serves room occupancy reads
type PresenceHandler struct {
	redis storage.RedisClient
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(redis storage.RedisClient) *PresenceHandler {
	return &PresenceHandler{redis: redis}
}

// GetRoomPresence handles GET /api/v1/rooms/:id/presence
func (h *PresenceHandler) GetRoomPresence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["id"]

	members, err := h.redis.SetMembers(r.Context(), models.GetPresenceSetKey(roomID))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve presence")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"count":   len(members),
	})
}

// Helper functions

func parseIntQuery(r *http.Request, key string, defaultValue, min, max int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < min || value > max {
		return defaultValue
	}
	return value
}
