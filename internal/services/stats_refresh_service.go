package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"DebtorBot/internal/contracts"

	"github.com/jonboulle/clockwork"
)

// statsPageSize размер страницы при обходе коллекции контрагентов
const statsPageSize = 100

// UserCounter возвращает количество зарегистрированных и активных пользователей
type UserCounter interface {
	Counts() (total int, active int, err error)
}

// StatsRefreshService периодически пересчитывает агрегатную статистику,
// обходя всю коллекцию контрагентов МойСклад. Полный O(N) пересчёт без
// инкрементального режима.
type StatsRefreshService struct {
	api      MoySkladAPI
	users    UserCounter
	stats    contracts.StatsRepository
	clock    clockwork.Clock
	location *time.Location
	interval time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewStatsRefreshService создает новый сервис пересчёта статистики
func NewStatsRefreshService(
	api MoySkladAPI,
	users UserCounter,
	stats contracts.StatsRepository,
	clock clockwork.Clock,
	location *time.Location,
	interval time.Duration,
) *StatsRefreshService {
	return &StatsRefreshService{
		api:      api,
		users:    users,
		stats:    stats,
		clock:    clock,
		location: location,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start запускает периодический пересчёт
func (s *StatsRefreshService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("пересчёт статистики уже запущен")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true
	s.wg.Add(1)

	go s.refreshLoop()

	log.Printf("[StatsRefresh] Пересчёт статистики запущен с интервалом %v", s.interval)
	return nil
}

// Stop останавливает периодический пересчёт
func (s *StatsRefreshService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("пересчёт статистики не запущен")
	}

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	s.wg.Wait()
	s.isRunning = false

	log.Printf("[StatsRefresh] Пересчёт статистики остановлен")
	return nil
}

// refreshLoop основной цикл пересчёта
func (s *StatsRefreshService) refreshLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Первый пересчёт выполняем сразу
	if err := s.RefreshNow(context.Background()); err != nil {
		log.Printf("[StatsRefresh] Ошибка первого пересчёта: %v", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.RefreshNow(context.Background()); err != nil {
				log.Printf("[StatsRefresh] Ошибка пересчёта: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// RefreshNow выполняет немедленный пересчёт и перезаписывает статистику
// за сегодняшний день. Счётчик отправленных сообщений сохраняется.
func (s *StatsRefreshService) RefreshNow(ctx context.Context) error {
	log.Printf("[StatsRefresh] Начинаем полный пересчёт статистики")
	started := s.clock.Now()

	var (
		total   int
		debtors int
		debt    float64
		profit  float64
	)

	// Обходим всю коллекцию контрагентов постранично,
	// конец коллекции — страница короче statsPageSize
	offset := 0
	for {
		page, err := s.api.ListCounterparties(ctx, statsPageSize, offset)
		if err != nil {
			return fmt.Errorf("ошибка получения страницы контрагентов (offset=%d): %w", offset, err)
		}

		for i := range page {
			cp := &page[i]
			total++

			balanceMinor := cp.AccountBalance
			report, err := s.api.GetCounterpartyReport(ctx, cp.ID)
			if err != nil {
				log.Printf("[StatsRefresh] Отчёт для контрагента %s недоступен: %v", cp.ID, err)
			} else if report != nil {
				balanceMinor = report.Balance
				profit += report.Profit / 100
			}

			balance := balanceMinor / 100
			if balance < 0 {
				debtors++
				debt += -balance
			}
		}

		if len(page) < statsPageSize {
			break
		}
		offset += statsPageSize
	}

	registered, active, err := s.users.Counts()
	if err != nil {
		log.Printf("[StatsRefresh] Ошибка подсчёта пользователей: %v", err)
	}

	day := dayOf(s.clock.Now().In(s.location))
	messagesSent := 0
	if existing, err := s.stats.GetDay(day); err == nil && existing != nil {
		messagesSent = existing.MessagesSentToday
	}

	stats := &contracts.Statistics{
		Day:                 day,
		TotalCounterparties: total,
		DebtorCount:         debtors,
		TotalDebt:           debt,
		TotalProfit:         profit,
		RegisteredUsers:     registered,
		ActiveUsers:         active,
		MessagesSentToday:   messagesSent,
	}

	if err := s.stats.UpsertDay(stats); err != nil {
		return fmt.Errorf("ошибка сохранения статистики: %w", err)
	}

	log.Printf("[StatsRefresh] Пересчёт завершён за %v: контрагентов=%d, должников=%d, долг=%.2f",
		s.clock.Now().Sub(started), total, debtors, debt)
	return nil
}

// dayOf обнуляет время, оставляя календарный день
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
