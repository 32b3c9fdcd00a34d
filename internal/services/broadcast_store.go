package services

import (
	"database/sql"
	"fmt"

	"DebtorBot/internal/contracts"
)

// BroadcastStore хранит рассылки в Postgres
type BroadcastStore struct {
	db *sql.DB
}

// NewBroadcastStore создает новое хранилище рассылок
func NewBroadcastStore(db *sql.DB) *BroadcastStore {
	return &BroadcastStore{
		db: db,
	}
}

// Create создает черновик рассылки
func (s *BroadcastStore) Create(b *contracts.Broadcast) error {
	query := `INSERT INTO broadcasts (id, text, audience, status, sent, failed, total)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at, updated_at`

	err := s.db.QueryRow(query, b.ID, b.Text, b.Audience, b.Status, b.Sent, b.Failed, b.Total).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания рассылки: %w", err)
	}
	return nil
}

// GetByID возвращает рассылку. (nil, nil) — рассылки нет.
func (s *BroadcastStore) GetByID(id string) (*contracts.Broadcast, error) {
	query := `SELECT id, text, audience, status, sent, failed, total, created_at, updated_at
			  FROM broadcasts WHERE id = $1`

	var b contracts.Broadcast
	err := s.db.QueryRow(query, id).Scan(
		&b.ID,
		&b.Text,
		&b.Audience,
		&b.Status,
		&b.Sent,
		&b.Failed,
		&b.Total,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения рассылки: %w", err)
	}
	return &b, nil
}

// Update сохраняет статус и счётчики рассылки
func (s *BroadcastStore) Update(b *contracts.Broadcast) error {
	query := `UPDATE broadcasts
			  SET status = $2, sent = $3, failed = $4, total = $5, updated_at = NOW()
			  WHERE id = $1`

	if _, err := s.db.Exec(query, b.ID, b.Status, b.Sent, b.Failed, b.Total); err != nil {
		return fmt.Errorf("ошибка обновления рассылки: %w", err)
	}
	return nil
}
