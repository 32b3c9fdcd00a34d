package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"DebtorBot/internal/contracts"

	"github.com/jonboulle/clockwork"
)

// ReminderOutcome результат обработки одного пользователя при проходе
type ReminderOutcome string

const (
	OutcomeSent            ReminderOutcome = "sent"
	OutcomeSkippedInactive ReminderOutcome = "skipped(inactive)"
	OutcomeSkippedNoDebt   ReminderOutcome = "skipped(no_debt)"
	OutcomeSkippedNotFound ReminderOutcome = "skipped(not_found)"
	OutcomeFailed          ReminderOutcome = "failed(send_error)"
)

// SweepResult итоги одного прохода по пользователям
type SweepResult struct {
	Sent            int
	SkippedInactive int
	SkippedNoDebt   int
	SkippedNotFound int
	Failed          int
}

func (r *SweepResult) add(outcome ReminderOutcome) {
	switch outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeSkippedInactive:
		r.SkippedInactive++
	case OutcomeSkippedNoDebt:
		r.SkippedNoDebt++
	case OutcomeSkippedNotFound:
		r.SkippedNotFound++
	case OutcomeFailed:
		r.Failed++
	}
}

// Submitter часть очереди отправки, используемая напоминаниями
type Submitter interface {
	Submit(task SendTask) (interface{}, error)
}

// ReminderUserStore часть хранилища пользователей, используемая напоминаниями
type ReminderUserStore interface {
	GetAll() ([]*contracts.BotUser, error)
	GetByTelegramID(telegramID int64) (*contracts.BotUser, error)
	SetLastReminder(telegramID int64, at time.Time) error
}

// ReminderService раз в день в настроенное время HH:mm обходит всех
// пользователей и отправляет должникам напоминания через очередь отправки.
// Тик раз в минуту; повторный тик во время незавершённого прохода
// пропускается, повторное совпадение минуты в тот же день отсекается
// записью last_sweep_day в настройках.
type ReminderService struct {
	users    ReminderUserStore
	balance  contracts.BalanceLookup
	sender   contracts.TelegramMessageSender
	queue    Submitter
	settings contracts.SettingsRepository
	stats    contracts.StatsRepository
	clock    clockwork.Clock
	location *time.Location
	sendTime string // запасное значение если нет в settings

	sweeping  atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewReminderService создает новый сервис напоминаний
func NewReminderService(
	users ReminderUserStore,
	balance contracts.BalanceLookup,
	sender contracts.TelegramMessageSender,
	queue Submitter,
	settings contracts.SettingsRepository,
	stats contracts.StatsRepository,
	clock clockwork.Clock,
	location *time.Location,
	sendTime string,
) *ReminderService {
	return &ReminderService{
		users:    users,
		balance:  balance,
		sender:   sender,
		queue:    queue,
		settings: settings,
		stats:    stats,
		clock:    clock,
		location: location,
		sendTime: sendTime,
		stopChan: make(chan struct{}),
	}
}

// ValidateSendTime проверяет строку времени в формате HH:mm
func ValidateSendTime(value string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return fmt.Errorf("некорректное время %q, ожидается HH:mm", value)
	}
	return nil
}

// Start запускает минутный планировщик
func (s *ReminderService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("планировщик напоминаний уже запущен")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true
	s.wg.Add(1)

	go s.tickLoop()

	log.Printf("[Reminder] Планировщик запущен, время рассылки по умолчанию %s (%s)", s.sendTime, s.location)
	return nil
}

// Stop останавливает планировщик
func (s *ReminderService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("планировщик напоминаний не запущен")
	}

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	s.wg.Wait()
	s.isRunning = false

	log.Printf("[Reminder] Планировщик остановлен")
	return nil
}

// tickLoop основной цикл планировщика
func (s *ReminderService) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// targetTime возвращает настроенное время рассылки
func (s *ReminderService) targetTime() string {
	value, err := s.settings.Get(contracts.SettingNotifyTime)
	if err != nil || value == "" {
		return s.sendTime
	}
	if ValidateSendTime(value) != nil {
		return s.sendTime
	}
	return value
}

// Tick сравнивает текущую минуту с настроенным временем и при совпадении
// запускает полный проход. Несовпадение — no-op.
func (s *ReminderService) Tick(ctx context.Context) {
	now := s.clock.Now().In(s.location)
	current := now.Format("15:04")

	// Индивидуальные времена рассылки проверяются каждую минуту
	s.sweepOverrides(ctx, current)

	if current != s.targetTime() {
		return
	}

	day := now.Format("2006-01-02")
	if last, err := s.settings.Get(contracts.SettingLastSweepDay); err == nil && last == day {
		log.Printf("[Reminder] Проход за %s уже выполнен, повторное совпадение минуты пропущено", day)
		return
	}

	if !s.sweeping.CompareAndSwap(false, true) {
		log.Printf("[Reminder] Предыдущий проход ещё не завершён, тик пропущен")
		return
	}

	go func() {
		defer s.sweeping.Store(false)

		result := s.sweep(ctx)
		log.Printf("[Reminder] Проход завершён: отправлено=%d, неактивных=%d, без долга=%d, не найдено=%d, ошибок=%d",
			result.Sent, result.SkippedInactive, result.SkippedNoDebt, result.SkippedNotFound, result.Failed)

		// Счётчик за день перезаписывается результатом последнего прохода
		if err := s.stats.SetMessagesSent(dayOf(now), result.Sent); err != nil {
			log.Printf("[Reminder] Ошибка записи статистики: %v", err)
		}
		if err := s.settings.Set(contracts.SettingLastSweepDay, day); err != nil {
			log.Printf("[Reminder] Ошибка записи last_sweep_day: %v", err)
		}
	}()
}

// sweep выполняет глобальный проход по всем пользователям.
// Пользователи с индивидуальным временем из него исключаются.
func (s *ReminderService) sweep(ctx context.Context) SweepResult {
	var result SweepResult

	users, err := s.users.GetAll()
	if err != nil {
		log.Printf("[Reminder] Ошибка получения пользователей: %v", err)
		return result
	}

	for _, user := range users {
		if user.NotifyAt != "" {
			continue
		}
		outcome := s.RemindUser(ctx, user)
		result.add(outcome)
	}

	return result
}

// sweepOverrides рассылает напоминания пользователям, чьё индивидуальное
// время совпало с текущей минутой
func (s *ReminderService) sweepOverrides(ctx context.Context, current string) {
	users, err := s.users.GetAll()
	if err != nil {
		log.Printf("[Reminder] Ошибка получения пользователей: %v", err)
		return
	}

	for _, user := range users {
		if user.NotifyAt != current {
			continue
		}
		outcome := s.RemindUser(ctx, user)
		log.Printf("[Reminder] Индивидуальное напоминание для telegram_id=%d: %s", user.TelegramID, outcome)
	}
}

// RemindNow отправляет напоминание одному пользователю (ручной запуск из админки)
func (s *ReminderService) RemindNow(ctx context.Context, telegramID int64) (ReminderOutcome, error) {
	user, err := s.users.GetByTelegramID(telegramID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("пользователь с telegram_id=%d не найден", telegramID)
	}
	return s.RemindUser(ctx, user), nil
}

// RemindUser проверяет долг пользователя и отправляет напоминание через
// очередь. Все исходы классифицируются, ошибка одного пользователя не
// влияет на остальных.
func (s *ReminderService) RemindUser(ctx context.Context, user *contracts.BotUser) ReminderOutcome {
	if !user.IsActive {
		return OutcomeSkippedInactive
	}

	balance, err := s.balance.Lookup(ctx, user.Phone, true)
	if err != nil {
		log.Printf("[Reminder] Ошибка поиска баланса для %s: %v", user.Phone, err)
		return OutcomeSkippedNotFound
	}
	if balance == nil {
		return OutcomeSkippedNotFound
	}
	if balance.Status != contracts.StatusDebtor {
		return OutcomeSkippedNoDebt
	}

	text := reminderText(user, -balance.Balance)
	chatID := user.TelegramID

	_, err = s.queue.Submit(func() (interface{}, error) {
		return nil, s.sender.SendMessage(chatID, text)
	})
	if err != nil {
		// Блокировка бота пользователем отличается от временного сбоя
		// только для логов, поведение не меняется
		if strings.Contains(err.Error(), "blocked") {
			log.Printf("[Reminder] Пользователь %d заблокировал бота: %v", chatID, err)
		} else {
			log.Printf("[Reminder] Ошибка отправки пользователю %d: %v", chatID, err)
		}
		return OutcomeFailed
	}

	if err := s.users.SetLastReminder(user.TelegramID, s.clock.Now()); err != nil {
		log.Printf("[Reminder] Ошибка записи времени напоминания: %v", err)
	}
	return OutcomeSent
}

// reminderText формирует текст напоминания на языке пользователя
func reminderText(user *contracts.BotUser, debt float64) string {
	amount := FormatAmount(debt)
	if user.Language == "en" {
		return fmt.Sprintf("Hello, %s! You have an outstanding balance of %s ₽. Please settle it at your earliest convenience.",
			contracts.FullName(user), amount)
	}
	return fmt.Sprintf("Здравствуйте, %s! Напоминаем о задолженности %s ₽. Пожалуйста, погасите её при первой возможности.",
		contracts.FullName(user), amount)
}

// FormatAmount форматирует сумму с пробелами между разрядами, без копеек
func FormatAmount(amount float64) string {
	if amount < 0 {
		return "-" + FormatAmount(-amount)
	}

	digits := fmt.Sprintf("%.0f", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
