package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"DebtorBot/internal/contracts"
	"DebtorBot/internal/moysklad"
)

// MoySkladAPI описывает часть клиента МойСклад, используемую сервисами
type MoySkladAPI interface {
	FindCounterpartyByPhone(ctx context.Context, phone string) (*moysklad.Counterparty, error)
	GetCounterpartyReport(ctx context.Context, id string) (*moysklad.CounterpartyReport, error)
	ListCounterparties(ctx context.Context, limit, offset int) ([]moysklad.Counterparty, error)
}

// Cache описывает часть кэша, используемую при поиске баланса
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, payload []byte, ttl time.Duration) error
}

// BalanceService выполняет поиск баланса контрагента по телефону
// со сквозным кэшем. Ошибки внешнего API деградируют в (nil, nil).
type BalanceService struct {
	api        MoySkladAPI
	cache      Cache
	settings   contracts.SettingsRepository
	defaultTTL time.Duration
}

// NewBalanceService создает новый сервис балансов
func NewBalanceService(api MoySkladAPI, cache Cache, settings contracts.SettingsRepository, defaultTTL time.Duration) *BalanceService {
	return &BalanceService{
		api:        api,
		cache:      cache,
		settings:   settings,
		defaultTTL: defaultTTL,
	}
}

// cacheKey ключ кэша для телефона
func cacheKey(phone string) string {
	return "balance:" + phone
}

// ttl возвращает TTL кэша из настроек или значение по умолчанию
func (s *BalanceService) ttl() time.Duration {
	value, err := s.settings.Get(contracts.SettingCacheTTLSeconds)
	if err != nil || value == "" {
		return s.defaultTTL
	}
	d, err := time.ParseDuration(value + "s")
	if err != nil || d <= 0 {
		return s.defaultTTL
	}
	return d
}

// Lookup ищет баланс по телефону. useCache=false всегда идёт в сеть.
// (nil, nil) — контрагент не найден или внешний API недоступен.
func (s *BalanceService) Lookup(ctx context.Context, phoneNumber string, useCache bool) (*contracts.CounterpartyBalance, error) {
	key := cacheKey(phoneNumber)

	if useCache {
		payload, err := s.cache.Get(key)
		if err != nil {
			log.Printf("[Balance] Ошибка чтения кэша для %s: %v", phoneNumber, err)
		} else if payload != nil {
			var cached contracts.CounterpartyBalance
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
			log.Printf("[Balance] Повреждённая запись кэша для %s, идём в сеть", phoneNumber)
		}
	}

	cp, err := s.api.FindCounterpartyByPhone(ctx, phoneNumber)
	if err != nil {
		log.Printf("[Balance] Ошибка поиска контрагента %s: %v", phoneNumber, err)
		return nil, nil
	}
	if cp == nil {
		return nil, nil
	}

	// Отчёт по взаиморасчётам — необязательное обогащение: при его
	// недоступности берём остаток из самой сущности контрагента.
	balanceMinor := cp.AccountBalance
	report, err := s.api.GetCounterpartyReport(ctx, cp.ID)
	if err != nil {
		log.Printf("[Balance] Отчёт для контрагента %s недоступен, используем встроенный остаток: %v", cp.ID, err)
	} else if report != nil {
		balanceMinor = report.Balance
	}

	// Суммы приходят в копейках
	balance := balanceMinor / 100

	record := &contracts.CounterpartyBalance{
		ID:        cp.ID,
		Name:      cp.Name,
		Phone:     phoneNumber,
		Balance:   balance,
		Status:    contracts.StatusForBalance(balance),
		IsBlocked: cp.Archived,
	}

	payload, err := json.Marshal(record)
	if err == nil {
		if err := s.cache.Set(key, payload, s.ttl()); err != nil {
			log.Printf("[Balance] Ошибка записи кэша для %s: %v", phoneNumber, err)
		}
	}

	return record, nil
}
