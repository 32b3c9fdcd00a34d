package contracts

import (
	"context"
	"time"
)

// --- Баланс контрагента ---

// BalanceStatus статус контрагента по знаку баланса
type BalanceStatus string

const (
	StatusDebtor   BalanceStatus = "debtor"
	StatusCreditor BalanceStatus = "creditor"
	StatusOK       BalanceStatus = "ok"
)

// CounterpartyBalance нормализованный результат поиска баланса в МойСклад.
// Balance хранится в основных единицах валюты (копейки уже поделены на 100).
type CounterpartyBalance struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	Balance   float64       `json:"balance"`
	Status    BalanceStatus `json:"status"`
	IsBlocked bool          `json:"is_blocked"`
}

// StatusForBalance классифицирует баланс: меньше нуля — должник
func StatusForBalance(balance float64) BalanceStatus {
	switch {
	case balance < 0:
		return StatusDebtor
	case balance > 0:
		return StatusCreditor
	default:
		return StatusOK
	}
}

// BalanceLookup поиск баланса по телефону со сквозным кэшем
type BalanceLookup interface {
	Lookup(ctx context.Context, phone string, useCache bool) (*CounterpartyBalance, error)
}

// --- Кэш ---

// CacheEntry запись кэша с временем истечения
type CacheEntry struct {
	Key       string
	Payload   []byte
	ExpiresAt time.Time
}

// CacheRepository хранилище кэша. Get возвращает (nil, nil) если записи нет —
// проверка истечения выполняется выше, в CacheService.
type CacheRepository interface {
	Get(key string) (*CacheEntry, error)
	Put(entry *CacheEntry) error
	Delete(key string) error
	DeleteAll() error
	DeleteExpired(now time.Time) (int64, error)
}

// --- Пользователи ---

// UserRepository хранилище получателей напоминаний
type UserRepository interface {
	GetByTelegramID(telegramID int64) (*BotUser, error)
	GetAll() ([]*BotUser, error)
	ListActive() ([]*BotUser, error)
	Save(user *BotUser) error
	Delete(telegramID int64) error
}

// --- Настройки ---

// SettingsRepository key-value настройки, last-write-wins.
// Get возвращает пустую строку если ключа нет.
type SettingsRepository interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Ключи настроек
const (
	SettingNotifyTime      = "notify_time"
	SettingCacheTTLSeconds = "cache_ttl_seconds"
	SettingLastSweepDay    = "last_sweep_day"
)

// --- Статистика ---

// Statistics агрегатная запись за календарный день
type Statistics struct {
	Day                 time.Time `json:"day"`
	TotalCounterparties int       `json:"total_counterparties"`
	DebtorCount         int       `json:"debtor_count"`
	TotalDebt           float64   `json:"total_debt"`
	TotalProfit         float64   `json:"total_profit"`
	RegisteredUsers     int       `json:"registered_users"`
	ActiveUsers         int       `json:"active_users"`
	MessagesSentToday   int       `json:"messages_sent_today"`
}

// StatsRepository хранилище дневной статистики
type StatsRepository interface {
	UpsertDay(stats *Statistics) error
	GetDay(day time.Time) (*Statistics, error)
	SetMessagesSent(day time.Time, count int) error
}

// --- Рассылки ---

// BroadcastStatus жизненный цикл рассылки
type BroadcastStatus string

const (
	BroadcastDraft     BroadcastStatus = "draft"
	BroadcastSending   BroadcastStatus = "sending"
	BroadcastCompleted BroadcastStatus = "completed"
	BroadcastFailed    BroadcastStatus = "failed"
)

// BroadcastAudience выборка получателей рассылки
type BroadcastAudience string

const (
	AudienceAll     BroadcastAudience = "all"
	AudienceActive  BroadcastAudience = "active"
	AudienceDebtors BroadcastAudience = "debtors"
)

// Broadcast массовое сообщение со счётчиками доставки
type Broadcast struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Audience  BroadcastAudience `json:"audience"`
	Status    BroadcastStatus   `json:"status"`
	Sent      int               `json:"sent"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BroadcastRepository хранилище рассылок
type BroadcastRepository interface {
	Create(b *Broadcast) error
	GetByID(id string) (*Broadcast, error)
	Update(b *Broadcast) error
}
