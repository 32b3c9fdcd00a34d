package services

import (
	"database/sql"
	"fmt"
	"strconv"
)

// SettingsService хранит настройки вида ключ-значение с семантикой last-write-wins
type SettingsService struct {
	db *sql.DB
}

// NewSettingsService создает новый сервис настроек
func NewSettingsService(db *sql.DB) *SettingsService {
	return &SettingsService{
		db: db,
	}
}

// Get возвращает значение настройки. Пустая строка — ключа нет.
func (s *SettingsService) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения настройки %s: %w", key, err)
	}
	return value, nil
}

// Set записывает значение настройки, перезаписывая существующее
func (s *SettingsService) Set(key, value string) error {
	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
			  ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("ошибка записи настройки %s: %w", key, err)
	}
	return nil
}

// GetOrDefault возвращает значение настройки или значение по умолчанию
func (s *SettingsService) GetOrDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

// GetIntOrDefault возвращает целочисленную настройку или значение по умолчанию
func (s *SettingsService) GetIntOrDefault(key string, defaultValue int) int {
	value, err := s.Get(key)
	if err != nil || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
