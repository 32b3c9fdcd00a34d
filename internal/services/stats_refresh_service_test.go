package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"DebtorBot/internal/contracts"
	"DebtorBot/internal/moysklad"

	"github.com/jonboulle/clockwork"
)

// fakeUserCounter фиксированные счётчики пользователей
type fakeUserCounter struct {
	total  int
	active int
}

func (f fakeUserCounter) Counts() (int, int, error) {
	return f.total, f.active, nil
}

// memStats in-memory реализация contracts.StatsRepository
type memStats struct {
	mu   sync.Mutex
	days map[string]*contracts.Statistics
}

var _ contracts.StatsRepository = (*memStats)(nil)

func newMemStats() *memStats {
	return &memStats{days: map[string]*contracts.Statistics{}}
}

func (m *memStats) UpsertDay(stats *contracts.Statistics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *stats
	m.days[stats.Day.Format("2006-01-02")] = &c
	return nil
}

func (m *memStats) GetDay(day time.Time) (*contracts.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.days[day.Format("2006-01-02")]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (m *memStats) SetMessagesSent(day time.Time, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := day.Format("2006-01-02")
	if s, ok := m.days[key]; ok {
		s.MessagesSentToday = count
		return nil
	}
	m.days[key] = &contracts.Statistics{Day: day, MessagesSentToday: count}
	return nil
}

func makePage(n int, balanceMinor float64) []moysklad.Counterparty {
	page := make([]moysklad.Counterparty, n)
	for i := range page {
		page[i] = moysklad.Counterparty{
			ID:             fmt.Sprintf("cp-%d", i),
			AccountBalance: balanceMinor,
		}
	}
	return page
}

func TestStatsRefresh_AggregatesOverAllPages(t *testing.T) {
	// Две полные страницы и одна короткая: обход должен остановиться
	// на короткой странице
	api := &fakeMoySklad{
		pages: [][]moysklad.Counterparty{
			makePage(statsPageSize, -10000), // должники, 100 ₽ долга каждый
			makePage(statsPageSize, 5000),
			makePage(3, 0),
		},
	}
	stats := newMemStats()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	svc := NewStatsRefreshService(api, fakeUserCounter{total: 40, active: 25}, stats, clock, time.UTC, time.Hour)

	if err := svc.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	if api.listCalls != 3 {
		t.Errorf("страниц запрошено %d, ожидалось 3", api.listCalls)
	}

	got, _ := stats.GetDay(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	if got == nil {
		t.Fatal("статистика за день не записана")
	}
	if got.TotalCounterparties != 2*statsPageSize+3 {
		t.Errorf("контрагентов %d, ожидалось %d", got.TotalCounterparties, 2*statsPageSize+3)
	}
	if got.DebtorCount != statsPageSize {
		t.Errorf("должников %d, ожидалось %d", got.DebtorCount, statsPageSize)
	}
	if got.TotalDebt != float64(statsPageSize)*100 {
		t.Errorf("долг %v, ожидалось %v", got.TotalDebt, float64(statsPageSize)*100)
	}
	if got.RegisteredUsers != 40 || got.ActiveUsers != 25 {
		t.Errorf("пользователи %d/%d, ожидалось 40/25", got.RegisteredUsers, got.ActiveUsers)
	}
}

func TestStatsRefresh_PreservesMessagesSentToday(t *testing.T) {
	api := &fakeMoySklad{pages: [][]moysklad.Counterparty{makePage(2, -100)}}
	stats := newMemStats()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	// Планировщик уже записал счётчик отправленных за сегодня
	if err := stats.SetMessagesSent(day, 7); err != nil {
		t.Fatalf("SetMessagesSent: %v", err)
	}

	svc := NewStatsRefreshService(api, fakeUserCounter{}, stats, clock, time.UTC, time.Hour)
	if err := svc.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	got, _ := stats.GetDay(day)
	if got.MessagesSentToday != 7 {
		t.Errorf("пересчёт затёр messages_sent_today: %d", got.MessagesSentToday)
	}
	if got.TotalCounterparties != 2 {
		t.Errorf("контрагентов %d, ожидалось 2", got.TotalCounterparties)
	}
}

func TestStatsRefresh_ReportOverridesEmbeddedBalance(t *testing.T) {
	api := &fakeMoySklad{
		pages:  [][]moysklad.Counterparty{makePage(1, 5000)},
		report: &moysklad.CounterpartyReport{Balance: -20000, Profit: 100000},
	}
	stats := newMemStats()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	svc := NewStatsRefreshService(api, fakeUserCounter{}, stats, clock, time.UTC, time.Hour)

	if err := svc.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	got, _ := stats.GetDay(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	if got.DebtorCount != 1 || got.TotalDebt != 200 {
		t.Errorf("отчёт должен иметь приоритет над встроенным балансом: должников=%d, долг=%v", got.DebtorCount, got.TotalDebt)
	}
	if got.TotalProfit != 1000 {
		t.Errorf("прибыль %v, ожидалось 1000", got.TotalProfit)
	}
}

func TestStatsRefresh_ReportFailureFallsBackToEmbedded(t *testing.T) {
	api := &fakeMoySklad{
		pages:     [][]moysklad.Counterparty{makePage(1, -30000)},
		reportErr: fmt.Errorf("bad status: 502"),
	}
	stats := newMemStats()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	svc := NewStatsRefreshService(api, fakeUserCounter{}, stats, clock, time.UTC, time.Hour)

	if err := svc.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	got, _ := stats.GetDay(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	if got.DebtorCount != 1 || got.TotalDebt != 300 {
		t.Errorf("ожидался откат на встроенный баланс: должников=%d, долг=%v", got.DebtorCount, got.TotalDebt)
	}
}

func TestStatsRefresh_ListErrorPropagates(t *testing.T) {
	failing := &failingListAPI{fakeMoySklad: &fakeMoySklad{}, err: fmt.Errorf("bad status: 500")}
	stats := newMemStats()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	svc := NewStatsRefreshService(failing, fakeUserCounter{}, stats, clock, time.UTC, time.Hour)

	if err := svc.RefreshNow(context.Background()); err == nil {
		t.Fatal("ошибка обхода коллекции должна прерывать пересчёт")
	}
	if got, _ := stats.GetDay(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)); got != nil {
		t.Error("при ошибке обхода статистика не должна записываться")
	}
}

// failingListAPI подменяет только постраничный обход
type failingListAPI struct {
	*fakeMoySklad
	err error
}

func (f *failingListAPI) ListCounterparties(ctx context.Context, limit, offset int) ([]moysklad.Counterparty, error) {
	return nil, f.err
}
