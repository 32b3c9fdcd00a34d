package contracts

import "time"

// User представляет пользователя Telegram
type User struct {
	ID           int    `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// BotUser представляет получателя напоминаний в базе данных
type BotUser struct {
	ID             int        `json:"id"`
	TelegramID     int64      `json:"telegram_id"`
	Phone          string     `json:"phone"`
	Name           string     `json:"name"`
	IsActive       bool       `json:"is_active"`
	Language       string     `json:"language"`
	NotifyAt       string     `json:"notify_at,omitempty"` // HH:mm, пусто = глобальное время
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName возвращает отображаемое имя пользователя
func FullName(u *BotUser) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Phone
}
