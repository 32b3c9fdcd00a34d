package services

import (
	"database/sql"
	"fmt"
	"time"

	"DebtorBot/internal/contracts"
)

// StatsService хранит дневную статистику в Postgres.
// На каждый календарный день ровно одна строка, перезаписываемая целиком.
type StatsService struct {
	db *sql.DB
}

// NewStatsService создает новый сервис статистики
func NewStatsService(db *sql.DB) *StatsService {
	return &StatsService{
		db: db,
	}
}

// UpsertDay создает или перезаписывает статистику за день
func (s *StatsService) UpsertDay(stats *contracts.Statistics) error {
	query := `INSERT INTO statistics
				(day, total_counterparties, debtor_count, total_debt, total_profit, registered_users, active_users, messages_sent_today)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (day) DO UPDATE SET
				total_counterparties = EXCLUDED.total_counterparties,
				debtor_count = EXCLUDED.debtor_count,
				total_debt = EXCLUDED.total_debt,
				total_profit = EXCLUDED.total_profit,
				registered_users = EXCLUDED.registered_users,
				active_users = EXCLUDED.active_users,
				messages_sent_today = EXCLUDED.messages_sent_today,
				updated_at = NOW()`

	_, err := s.db.Exec(query,
		stats.Day.Format("2006-01-02"),
		stats.TotalCounterparties,
		stats.DebtorCount,
		stats.TotalDebt,
		stats.TotalProfit,
		stats.RegisteredUsers,
		stats.ActiveUsers,
		stats.MessagesSentToday,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи статистики: %w", err)
	}
	return nil
}

// GetDay возвращает статистику за день. (nil, nil) — записи нет.
func (s *StatsService) GetDay(day time.Time) (*contracts.Statistics, error) {
	query := `SELECT day, total_counterparties, debtor_count, total_debt, total_profit, registered_users, active_users, messages_sent_today
			  FROM statistics WHERE day = $1`

	var stats contracts.Statistics
	err := s.db.QueryRow(query, day.Format("2006-01-02")).Scan(
		&stats.Day,
		&stats.TotalCounterparties,
		&stats.DebtorCount,
		&stats.TotalDebt,
		&stats.TotalProfit,
		&stats.RegisteredUsers,
		&stats.ActiveUsers,
		&stats.MessagesSentToday,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения статистики: %w", err)
	}
	return &stats, nil
}

// SetMessagesSent перезаписывает счётчик отправленных за день сообщений
// результатом последнего прохода (не суммирует)
func (s *StatsService) SetMessagesSent(day time.Time, count int) error {
	query := `INSERT INTO statistics (day, messages_sent_today) VALUES ($1, $2)
			  ON CONFLICT (day) DO UPDATE SET messages_sent_today = EXCLUDED.messages_sent_today, updated_at = NOW()`
	if _, err := s.db.Exec(query, day.Format("2006-01-02"), count); err != nil {
		return fmt.Errorf("ошибка записи счётчика сообщений: %w", err)
	}
	return nil
}
