package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DebtorBot/internal/config"
	"DebtorBot/internal/handlers"
	"DebtorBot/internal/moysklad"
	"DebtorBot/internal/services"
	"DebtorBot/internal/telegram"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.Load()

	// Проверяем обязательные переменные окружения
	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN не задан в переменных окружения")
	}
	if cfg.MoySklad.Token == "" {
		log.Fatal("MOYSKLAD_TOKEN не задан в переменных окружения")
	}

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Ошибка подключения к Postgres: %v", err)
	}
	defer db.Close()

	// Применяем миграции
	if err := goose.Up(db, "internal/migrations"); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	// Часовой пояс рассылки фиксированный
	location, err := time.LoadLocation(cfg.Notify.Timezone)
	if err != nil {
		log.Printf("Не удалось загрузить часовой пояс %s, используем UTC: %v", cfg.Notify.Timezone, err)
		location = time.UTC
	}

	clock := clockwork.NewRealClock()

	// Клиент МойСклад
	moyskladClient := moysklad.NewClient(cfg.MoySklad.BaseURL, cfg.MoySklad.Token)

	// Инициализируем сервисы
	userService := services.NewUserService(db)
	settingsService := services.NewSettingsService(db)
	log.Println("Сервисы пользователей и настроек инициализированы")

	cacheService := services.NewCacheService(
		services.NewCacheStore(db),
		clock,
		time.Duration(cfg.Cache.SweepMinutes)*time.Minute,
	)
	if err := cacheService.Start(); err != nil {
		log.Printf("Предупреждение: не удалось запустить зачистку кэша: %v", err)
	}

	balanceService := services.NewBalanceService(
		moyskladClient,
		cacheService,
		settingsService,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
	)

	sendQueue := services.NewSendQueueService(
		cfg.Notify.RatePerSec,
		time.Duration(cfg.Notify.SpacingMs)*time.Millisecond,
		clock,
	)
	if err := sendQueue.Start(); err != nil {
		log.Fatalf("Ошибка запуска очереди отправки: %v", err)
	}

	statsService := services.NewStatsService(db)
	statsRefreshService := services.NewStatsRefreshService(
		moyskladClient,
		userService,
		statsService,
		clock,
		location,
		time.Duration(cfg.Notify.StatsRefresh)*time.Minute,
	)

	// Инициализируем Telegram бота
	mode := telegram.ModePolling
	if cfg.Telegram.Mode == "webhook" {
		mode = telegram.ModeWebhook
	}

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:       cfg.Telegram.Token,
		Mode:        mode,
		WebhookURL:  cfg.Telegram.WebhookURL,
		WebhookPort: cfg.Telegram.WebhookPort,
	})
	if err != nil {
		log.Fatalf("Ошибка создания Telegram бота: %v", err)
	}

	sender := &TelegramClientAdapter{bot: bot}

	reminderService := services.NewReminderService(
		userService,
		balanceService,
		sender,
		sendQueue,
		settingsService,
		statsService,
		clock,
		location,
		cfg.Notify.SendTime,
	)

	broadcastService := services.NewBroadcastService(
		services.NewBroadcastStore(db),
		userService,
		balanceService,
		sender,
		sendQueue,
	)

	// Обработчик сообщений бота
	messageProcessor := telegram.NewMessageProcessor(userService, balanceService)
	bot.AddHandler(messageProcessor.ProcessMessage)

	// Запускаем фоновые службы
	if err := statsRefreshService.Start(); err != nil {
		log.Printf("Предупреждение: не удалось запустить пересчёт статистики: %v", err)
	}
	if err := reminderService.Start(); err != nil {
		log.Fatalf("Ошибка запуска планировщика напоминаний: %v", err)
	}
	if err := bot.Start(); err != nil {
		log.Fatalf("Ошибка запуска Telegram бота: %v", err)
	}

	log.Printf("Telegram бот запущен в режиме: %s", bot.GetMode())

	if err := bot.GetClient().SetMyCommands([]map[string]string{
		{"command": "start", "description": "Регистрация по номеру телефона"},
		{"command": "balance", "description": "Текущий баланс"},
		{"command": "language", "description": "Сменить язык"},
		{"command": "stop", "description": "Отключить напоминания"},
		{"command": "resume", "description": "Включить напоминания"},
	}); err != nil {
		log.Printf("Предупреждение: не удалось установить команды бота: %v", err)
	}

	// Админ HTTP API
	adminHandler := handlers.NewAdminHandler(
		userService,
		balanceService,
		cacheService,
		reminderService,
		statsRefreshService,
		statsService,
		broadcastService,
		settingsService,
		location,
		cfg.Admin.Token,
	)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: adminHandler.Router(),
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Printf("Админ API запущен на %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнала для завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	<-signalChan

	log.Println("Сервер завершает работу")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка остановки HTTP сервера: %v", err)
	}

	if err := reminderService.Stop(); err != nil {
		log.Printf("Ошибка остановки планировщика: %v", err)
	}
	if err := statsRefreshService.Stop(); err != nil {
		log.Printf("Ошибка остановки пересчёта статистики: %v", err)
	}
	if err := cacheService.Stop(); err != nil {
		log.Printf("Ошибка остановки зачистки кэша: %v", err)
	}
	if err := sendQueue.Stop(); err != nil {
		log.Printf("Ошибка остановки очереди отправки: %v", err)
	}
	if err := bot.Stop(); err != nil {
		log.Printf("Ошибка остановки бота: %v", err)
	}

	log.Println("Сервер успешно завершил работу")
}

// TelegramClientAdapter адаптирует telegram.TelegramBot к интерфейсу contracts.TelegramMessageSender
type TelegramClientAdapter struct {
	bot *telegram.TelegramBot
}

func (a *TelegramClientAdapter) SendMessage(chatID int64, message string) error {
	return a.bot.SendMessage(chatID, message)
}
