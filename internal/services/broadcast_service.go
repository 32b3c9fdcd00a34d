package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"DebtorBot/internal/contracts"

	"github.com/google/uuid"
)

// BroadcastUserStore часть хранилища пользователей, используемая рассылками
type BroadcastUserStore interface {
	GetAll() ([]*contracts.BotUser, error)
	ListActive() ([]*contracts.BotUser, error)
}

// BroadcastService управляет жизненным циклом массовых рассылок:
// draft → sending → completed|failed. Доставка идёт через общую
// очередь отправки, счётчики обновляются по ходу.
type BroadcastService struct {
	repo    contracts.BroadcastRepository
	users   BroadcastUserStore
	balance contracts.BalanceLookup
	sender  contracts.TelegramMessageSender
	queue   Submitter
}

// NewBroadcastService создает новый сервис рассылок
func NewBroadcastService(
	repo contracts.BroadcastRepository,
	users BroadcastUserStore,
	balance contracts.BalanceLookup,
	sender contracts.TelegramMessageSender,
	queue Submitter,
) *BroadcastService {
	return &BroadcastService{
		repo:    repo,
		users:   users,
		balance: balance,
		sender:  sender,
		queue:   queue,
	}
}

// Create создает черновик рассылки
func (s *BroadcastService) Create(text string, audience contracts.BroadcastAudience) (*contracts.Broadcast, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("текст рассылки не может быть пустым")
	}

	switch audience {
	case contracts.AudienceAll, contracts.AudienceActive, contracts.AudienceDebtors:
	default:
		return nil, fmt.Errorf("неизвестная аудитория рассылки: %s", audience)
	}

	b := &contracts.Broadcast{
		ID:       uuid.NewString(),
		Text:     text,
		Audience: audience,
		Status:   contracts.BroadcastDraft,
	}
	if err := s.repo.Create(b); err != nil {
		return nil, err
	}

	log.Printf("[Broadcast] Создан черновик рассылки %s (аудитория %s)", b.ID, b.Audience)
	return b, nil
}

// GetByID возвращает рассылку со счётчиками. (nil, nil) — рассылки нет.
func (s *BroadcastService) GetByID(id string) (*contracts.Broadcast, error) {
	return s.repo.GetByID(id)
}

// Send отправляет рассылку. Допускается только из статуса draft.
func (s *BroadcastService) Send(ctx context.Context, id string) (*contracts.Broadcast, error) {
	b, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("рассылка %s не найдена", id)
	}
	if b.Status != contracts.BroadcastDraft {
		return nil, fmt.Errorf("рассылка %s уже в статусе %s", id, b.Status)
	}

	recipients, err := s.selectAudience(ctx, b.Audience)
	if err != nil {
		b.Status = contracts.BroadcastFailed
		if updateErr := s.repo.Update(b); updateErr != nil {
			log.Printf("[Broadcast] Ошибка обновления рассылки %s: %v", b.ID, updateErr)
		}
		return nil, err
	}

	b.Total = len(recipients)
	b.Status = contracts.BroadcastSending
	if err := s.repo.Update(b); err != nil {
		return nil, err
	}

	log.Printf("[Broadcast] Рассылка %s: получателей %d", b.ID, b.Total)

	for _, user := range recipients {
		chatID := user.TelegramID
		_, err := s.queue.Submit(func() (interface{}, error) {
			return nil, s.sender.SendMessage(chatID, b.Text)
		})
		if err != nil {
			b.Failed++
			log.Printf("[Broadcast] Ошибка отправки пользователю %d: %v", chatID, err)
		} else {
			b.Sent++
		}
		if err := s.repo.Update(b); err != nil {
			log.Printf("[Broadcast] Ошибка обновления счётчиков рассылки %s: %v", b.ID, err)
		}
	}

	if b.Total > 0 && b.Sent == 0 {
		b.Status = contracts.BroadcastFailed
	} else {
		b.Status = contracts.BroadcastCompleted
	}
	if err := s.repo.Update(b); err != nil {
		return nil, err
	}

	log.Printf("[Broadcast] Рассылка %s завершена: отправлено=%d, ошибок=%d", b.ID, b.Sent, b.Failed)
	return b, nil
}

// selectAudience выбирает получателей по селектору аудитории
func (s *BroadcastService) selectAudience(ctx context.Context, audience contracts.BroadcastAudience) ([]*contracts.BotUser, error) {
	switch audience {
	case contracts.AudienceAll:
		return s.users.GetAll()
	case contracts.AudienceActive:
		return s.users.ListActive()
	case contracts.AudienceDebtors:
		active, err := s.users.ListActive()
		if err != nil {
			return nil, err
		}
		var debtors []*contracts.BotUser
		for _, user := range active {
			balance, err := s.balance.Lookup(ctx, user.Phone, true)
			if err != nil || balance == nil {
				continue
			}
			if balance.Status == contracts.StatusDebtor {
				debtors = append(debtors, user)
			}
		}
		return debtors, nil
	default:
		return nil, fmt.Errorf("неизвестная аудитория рассылки: %s", audience)
	}
}
