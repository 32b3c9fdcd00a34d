package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"DebtorBot/internal/contracts"
)

// UserService предоставляет методы для работы с получателями напоминаний
type UserService struct {
	db *sql.DB
}

// NewUserService создает новый сервис пользователей
func NewUserService(db *sql.DB) *UserService {
	return &UserService{
		db: db,
	}
}

const userColumns = `id, telegram_id, phone, name, is_active, language, notify_at, last_reminder_at, created_at, updated_at`

// scanUser читает строку пользователя из результата запроса
func scanUser(row interface{ Scan(...interface{}) error }) (*contracts.BotUser, error) {
	var user contracts.BotUser
	var notifyAt sql.NullString
	var lastReminder sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Phone,
		&user.Name,
		&user.IsActive,
		&user.Language,
		&notifyAt,
		&lastReminder,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if notifyAt.Valid {
		user.NotifyAt = notifyAt.String
	}
	if lastReminder.Valid {
		user.LastReminderAt = &lastReminder.Time
	}
	return &user, nil
}

// GetByTelegramID получает пользователя по Telegram ID.
// Возвращает (nil, nil) если пользователь не найден.
func (s *UserService) GetByTelegramID(telegramID int64) (*contracts.BotUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(s.db.QueryRow(query, telegramID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// GetAll получает всех пользователей
func (s *UserService) GetAll() ([]*contracts.BotUser, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	return s.queryUsers(query)
}

// ListActive получает активных пользователей
func (s *UserService) ListActive() ([]*contracts.BotUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = TRUE ORDER BY created_at`
	return s.queryUsers(query)
}

func (s *UserService) queryUsers(query string, args ...interface{}) ([]*contracts.BotUser, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var users []*contracts.BotUser
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Save создает пользователя или обновляет существующего по Telegram ID
func (s *UserService) Save(user *contracts.BotUser) error {
	query := `INSERT INTO users (telegram_id, phone, name, is_active, language, notify_at, last_reminder_at)
			  VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
			  ON CONFLICT (telegram_id) DO UPDATE SET
				phone = EXCLUDED.phone,
				name = EXCLUDED.name,
				is_active = EXCLUDED.is_active,
				language = EXCLUDED.language,
				notify_at = EXCLUDED.notify_at,
				last_reminder_at = EXCLUDED.last_reminder_at,
				updated_at = NOW()
			  RETURNING id, created_at, updated_at`

	var lastReminder sql.NullTime
	if user.LastReminderAt != nil {
		lastReminder = sql.NullTime{Time: *user.LastReminderAt, Valid: true}
	}

	err := s.db.QueryRow(query,
		user.TelegramID,
		user.Phone,
		user.Name,
		user.IsActive,
		user.Language,
		user.NotifyAt,
		lastReminder,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}

	log.Printf("[UserService] Сохранён пользователь: %s (telegram_id=%d)", contracts.FullName(user), user.TelegramID)
	return nil
}

// Delete удаляет пользователя по Telegram ID
func (s *UserService) Delete(telegramID int64) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("пользователь с telegram_id=%d не найден", telegramID)
	}
	return nil
}

// SetLastReminder фиксирует время последнего напоминания
func (s *UserService) SetLastReminder(telegramID int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_reminder_at = $2, updated_at = NOW() WHERE telegram_id = $1`, telegramID, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени напоминания: %w", err)
	}
	return nil
}

// Counts возвращает количество зарегистрированных и активных пользователей
func (s *UserService) Counts() (total int, active int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`
	if err := s.db.QueryRow(query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return total, active, nil
}
