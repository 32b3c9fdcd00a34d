package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"DebtorBot/internal/contracts"

	"github.com/jonboulle/clockwork"
)

// CacheService реализует TTL-кэш поверх хранилища: ленивая проверка
// истечения при чтении плюс фоновая зачистка. Истёкшая запись никогда
// не возвращается наружу.
type CacheService struct {
	store         contracts.CacheRepository
	clock         clockwork.Clock
	sweepInterval time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewCacheService создает новый сервис кэша
func NewCacheService(store contracts.CacheRepository, clock clockwork.Clock, sweepInterval time.Duration) *CacheService {
	return &CacheService{
		store:         store,
		clock:         clock,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Get возвращает значение по ключу. (nil, nil) — промах или истёкшая запись.
// Истёкшая запись удаляется на месте.
func (s *CacheService) Get(key string) ([]byte, error) {
	entry, err := s.store.Get(key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	if !entry.ExpiresAt.After(s.clock.Now()) {
		if err := s.store.Delete(key); err != nil {
			log.Printf("[Cache] Ошибка удаления истёкшей записи %s: %v", key, err)
		}
		return nil, nil
	}

	return entry.Payload, nil
}

// Set записывает значение с указанным TTL
func (s *CacheService) Set(key string, payload []byte, ttl time.Duration) error {
	return s.store.Put(&contracts.CacheEntry{
		Key:       key,
		Payload:   payload,
		ExpiresAt: s.clock.Now().Add(ttl),
	})
}

// Delete удаляет запись по ключу
func (s *CacheService) Delete(key string) error {
	return s.store.Delete(key)
}

// Clear очищает кэш полностью
func (s *CacheService) Clear() error {
	log.Printf("[Cache] Полная очистка кэша")
	return s.store.DeleteAll()
}

// Start запускает фоновую зачистку истёкших записей
func (s *CacheService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("зачистка кэша уже запущена")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true
	s.wg.Add(1)

	go s.sweepLoop()

	log.Printf("[Cache] Фоновая зачистка запущена с интервалом %v", s.sweepInterval)
	return nil
}

// Stop останавливает фоновую зачистку
func (s *CacheService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("зачистка кэша не запущена")
	}

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	s.wg.Wait()
	s.isRunning = false

	log.Printf("[Cache] Фоновая зачистка остановлена")
	return nil
}

// sweepLoop основной цикл зачистки
func (s *CacheService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := s.store.DeleteExpired(s.clock.Now())
			if err != nil {
				log.Printf("[Cache] Ошибка зачистки: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[Cache] Удалено истёкших записей: %d", removed)
			}
		case <-s.stopChan:
			return
		}
	}
}
