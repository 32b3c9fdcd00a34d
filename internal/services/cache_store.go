package services

import (
	"database/sql"
	"fmt"
	"time"

	"DebtorBot/internal/contracts"
)

// CacheStore хранит записи кэша в Postgres
type CacheStore struct {
	db *sql.DB
}

// NewCacheStore создает новое хранилище кэша
func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{
		db: db,
	}
}

// Get возвращает запись кэша. (nil, nil) — записи нет.
// Проверка истечения выполняется в CacheService.
func (s *CacheStore) Get(key string) (*contracts.CacheEntry, error) {
	var entry contracts.CacheEntry
	err := s.db.QueryRow(`SELECT key, payload, expires_at FROM cache_entries WHERE key = $1`, key).
		Scan(&entry.Key, &entry.Payload, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кэша: %w", err)
	}
	return &entry, nil
}

// Put создает или перезаписывает запись кэша
func (s *CacheStore) Put(entry *contracts.CacheEntry) error {
	query := `INSERT INTO cache_entries (key, payload, expires_at) VALUES ($1, $2, $3)
			  ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`
	if _, err := s.db.Exec(query, entry.Key, entry.Payload, entry.ExpiresAt); err != nil {
		return fmt.Errorf("ошибка записи кэша: %w", err)
	}
	return nil
}

// Delete удаляет запись кэша
func (s *CacheStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("ошибка удаления записи кэша: %w", err)
	}
	return nil
}

// DeleteAll очищает кэш полностью
func (s *CacheStore) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("ошибка очистки кэша: %w", err)
	}
	return nil
}

// DeleteExpired удаляет истёкшие записи и возвращает их количество
func (s *CacheStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM cache_entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления истёкших записей: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
