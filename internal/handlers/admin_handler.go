package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"DebtorBot/internal/contracts"
	"DebtorBot/internal/services"

	"github.com/gorilla/mux"
)

// AdminHandler обрабатывает HTTP запросы админ-панели
type AdminHandler struct {
	users      contracts.UserRepository
	balance    contracts.BalanceLookup
	cache      *services.CacheService
	reminder   *services.ReminderService
	refresher  *services.StatsRefreshService
	stats      *services.StatsService
	broadcasts *services.BroadcastService
	settings   *services.SettingsService
	location   *time.Location
	adminToken string
}

// NewAdminHandler создает новый обработчик админ-панели
func NewAdminHandler(
	users contracts.UserRepository,
	balance contracts.BalanceLookup,
	cache *services.CacheService,
	reminder *services.ReminderService,
	refresher *services.StatsRefreshService,
	stats *services.StatsService,
	broadcasts *services.BroadcastService,
	settings *services.SettingsService,
	location *time.Location,
	adminToken string,
) *AdminHandler {
	return &AdminHandler{
		users:      users,
		balance:    balance,
		cache:      cache,
		reminder:   reminder,
		refresher:  refresher,
		stats:      stats,
		broadcasts: broadcasts,
		settings:   settings,
		location:   location,
		adminToken: adminToken,
	}
}

// Router возвращает настроенный маршрутизатор админ-панели
func (h *AdminHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.authMiddleware)

	r.HandleFunc("/v1/users", h.GetUsers).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{telegram_id}/remind", h.RemindUser).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{telegram_id}", h.DeleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/v1/cache/clear", h.ClearCache).Methods(http.MethodPost)
	r.HandleFunc("/v1/stats/refresh", h.RefreshStats).Methods(http.MethodPost)
	r.HandleFunc("/v1/stats/today", h.GetTodayStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/broadcasts", h.CreateBroadcast).Methods(http.MethodPost)
	r.HandleFunc("/v1/broadcasts/{id}/send", h.SendBroadcast).Methods(http.MethodPost)
	r.HandleFunc("/v1/broadcasts/{id}", h.GetBroadcast).Methods(http.MethodGet)
	r.HandleFunc("/v1/settings/{key}", h.GetSetting).Methods(http.MethodGet)
	r.HandleFunc("/v1/settings/{key}", h.PutSetting).Methods(http.MethodPut)

	return r
}

// authMiddleware проверяет bearer-токен администратора
func (h *AdminHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			http.Error(w, "Админ-токен не настроен", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+h.adminToken {
			http.Error(w, "Не авторизован", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON сериализует ответ в JSON
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[AdminAPI] Ошибка сериализации ответа: %v", err)
	}
}

// userWithBalance пользователь, обогащённый текущим балансом
type userWithBalance struct {
	*contracts.BotUser
	Balance *contracts.CounterpartyBalance `json:"balance,omitempty"`
}

// GetUsers возвращает пользователей с их текущими балансами
func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetAll()
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка получения пользователей: %v", err), http.StatusInternalServerError)
		return
	}

	enriched := make([]userWithBalance, 0, len(users))
	for _, user := range users {
		balance, err := h.balance.Lookup(r.Context(), user.Phone, true)
		if err != nil {
			log.Printf("[AdminAPI] Ошибка поиска баланса для %s: %v", user.Phone, err)
		}
		enriched = append(enriched, userWithBalance{BotUser: user, Balance: balance})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":       enriched,
		"total_count": len(enriched),
	})
}

// parseTelegramID извлекает telegram_id из пути
func parseTelegramID(r *http.Request) (int64, error) {
	vars := mux.Vars(r)
	return strconv.ParseInt(vars["telegram_id"], 10, 64)
}

// RemindUser немедленно отправляет напоминание пользователю
func (h *AdminHandler) RemindUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := parseTelegramID(r)
	if err != nil {
		http.Error(w, "Неверный Telegram ID", http.StatusBadRequest)
		return
	}

	outcome, err := h.reminder.RemindNow(r.Context(), telegramID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка отправки напоминания: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"telegram_id": telegramID,
		"outcome":     outcome,
	})
}

// DeleteUser удаляет пользователя
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := parseTelegramID(r)
	if err != nil {
		http.Error(w, "Неверный Telegram ID", http.StatusBadRequest)
		return
	}

	if err := h.users.Delete(telegramID); err != nil {
		http.Error(w, fmt.Sprintf("Ошибка удаления пользователя: %v", err), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": telegramID})
}

// ClearCache полностью очищает кэш балансов
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(); err != nil {
		http.Error(w, fmt.Sprintf("Ошибка очистки кэша: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// RefreshStats запускает немедленный пересчёт статистики
func (h *AdminHandler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.RefreshNow(r.Context()); err != nil {
		http.Error(w, fmt.Sprintf("Ошибка пересчёта статистики: %v", err), http.StatusInternalServerError)
		return
	}
	h.GetTodayStats(w, r)
}

// GetTodayStats возвращает статистику за сегодня
func (h *AdminHandler) GetTodayStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)

	stats, err := h.stats.GetDay(day)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка чтения статистики: %v", err), http.StatusInternalServerError)
		return
	}
	if stats == nil {
		http.Error(w, "Статистика за сегодня ещё не собрана", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// createBroadcastRequest тело запроса создания рассылки
type createBroadcastRequest struct {
	Text     string `json:"text"`
	Audience string `json:"audience"`
}

// CreateBroadcast создает черновик рассылки
func (h *AdminHandler) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req createBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверное тело запроса", http.StatusBadRequest)
		return
	}

	b, err := h.broadcasts.Create(req.Text, contracts.BroadcastAudience(req.Audience))
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка создания рассылки: %v", err), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// SendBroadcast отправляет рассылку через очередь отправки
func (h *AdminHandler) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	b, err := h.broadcasts.Send(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка отправки рассылки: %v", err), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// GetBroadcast возвращает рассылку со счётчиками
func (h *AdminHandler) GetBroadcast(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	b, err := h.broadcasts.GetByID(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка чтения рассылки: %v", err), http.StatusInternalServerError)
		return
	}
	if b == nil {
		http.Error(w, "Рассылка не найдена", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// GetSetting возвращает значение настройки
func (h *AdminHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["key"]

	value, err := h.settings.Get(key)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка чтения настройки: %v", err), http.StatusInternalServerError)
		return
	}
	if value == "" {
		http.Error(w, "Настройка не найдена", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

// putSettingRequest тело запроса записи настройки
type putSettingRequest struct {
	Value string `json:"value"`
}

// PutSetting записывает значение настройки
func (h *AdminHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["key"]

	var req putSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверное тело запроса", http.StatusBadRequest)
		return
	}

	// Время рассылки валидируется до записи
	if key == contracts.SettingNotifyTime {
		if err := services.ValidateSendTime(req.Value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.settings.Set(key, req.Value); err != nil {
		http.Error(w, fmt.Sprintf("Ошибка записи настройки: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
