package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Database DatabaseConfig
	MoySklad MoySkladConfig
	Telegram TelegramConfig
	Admin    AdminConfig
	Notify   NotifyConfig
	Cache    CacheConfig
	HTTP     HTTPConfig
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	DSN string
}

// MoySkladConfig содержит конфигурацию клиента МойСклад
type MoySkladConfig struct {
	BaseURL string
	Token   string
}

// TelegramConfig содержит конфигурацию Telegram бота
type TelegramConfig struct {
	Token       string
	Mode        string
	WebhookURL  string
	WebhookPort string
}

// AdminConfig содержит конфигурацию администратора
type AdminConfig struct {
	Token               string
	GlobalAdminTgID     int64
	GlobalAdminUsername string
}

// NotifyConfig содержит конфигурацию рассылки напоминаний
type NotifyConfig struct {
	SendTime     string // HH:mm, запасное значение если нет в settings
	Timezone     string
	RatePerSec   int
	SpacingMs    int
	StatsRefresh int // интервал пересчёта статистики в минутах
}

// CacheConfig содержит конфигурацию кэша балансов
type CacheConfig struct {
	TTLSeconds   int
	SweepMinutes int
}

// HTTPConfig содержит конфигурацию HTTP сервера админки
type HTTPConfig struct {
	Addr string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	// .env необязателен, ошибка игнорируется
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN: getDSN(),
		},
		MoySklad: MoySkladConfig{
			BaseURL: getEnvOrDefault("MOYSKLAD_BASE_URL", "https://api.moysklad.ru/api/remap/1.2"),
			Token:   getEnvOrDefault("MOYSKLAD_TOKEN", ""),
		},
		Telegram: TelegramConfig{
			Token:       getEnvOrDefault("TELEGRAM_BOT_TOKEN", ""),
			Mode:        getEnvOrDefault("TELEGRAM_BOT_MODE", "polling"),
			WebhookURL:  getEnvOrDefault("TELEGRAM_WEBHOOK_URL", ""),
			WebhookPort: getEnvOrDefault("TELEGRAM_WEBHOOK_PORT", "8080"),
		},
		Admin: AdminConfig{
			Token:               getEnvOrDefault("ADMIN_API_TOKEN", ""),
			GlobalAdminTgID:     getEnvAsInt64("GLOBAL_ADMIN_TG_ID", 0),
			GlobalAdminUsername: getEnvOrDefault("GLOBAL_ADMIN_USERNAME", ""),
		},
		Notify: NotifyConfig{
			SendTime:     getEnvOrDefault("NOTIFY_SEND_TIME", "10:00"),
			Timezone:     getEnvOrDefault("NOTIFY_TIMEZONE", "Europe/Moscow"),
			RatePerSec:   getEnvAsInt("NOTIFY_RATE_PER_SEC", 25),
			SpacingMs:    getEnvAsInt("NOTIFY_SPACING_MS", 40),
			StatsRefresh: getEnvAsInt("STATS_REFRESH_MINUTES", 60),
		},
		Cache: CacheConfig{
			TTLSeconds:   getEnvAsInt("CACHE_TTL_SECONDS", 600),
			SweepMinutes: getEnvAsInt("CACHE_SWEEP_MINUTES", 10),
		},
		HTTP: HTTPConfig{
			Addr: getEnvOrDefault("HTTP_ADDR", ":25566"),
		},
	}
}

// getDSN формирует строку подключения к базе данных
func getDSN() string {
	// Сначала проверяем переменную окружения
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}

	// Если переменная не задана, формируем DSN из отдельных параметров
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "debtorbot_user")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "debtorbot_password")
	dbname := getEnvOrDefault("POSTGRES_DB", "debtorbot")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)
}

// getEnvOrDefault получает значение переменной окружения или возвращает значение по умолчанию
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsInt64 получает значение переменной окружения как int64 или возвращает значение по умолчанию
func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
