package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"DebtorBot/internal/contracts"
)

// memBroadcastRepo in-memory реализация contracts.BroadcastRepository
type memBroadcastRepo struct {
	mu   sync.Mutex
	data map[string]*contracts.Broadcast
}

var _ contracts.BroadcastRepository = (*memBroadcastRepo)(nil)

func newMemBroadcastRepo() *memBroadcastRepo {
	return &memBroadcastRepo{data: map[string]*contracts.Broadcast{}}
}

func (m *memBroadcastRepo) Create(b *contracts.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.data[b.ID] = &c
	return nil
}

func (m *memBroadcastRepo) GetByID(id string) (*contracts.Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.data[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, nil
}

func (m *memBroadcastRepo) Update(b *contracts.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.data[b.ID] = &c
	return nil
}

func newTestBroadcast(repo contracts.BroadcastRepository, users BroadcastUserStore, lookup contracts.BalanceLookup, sender contracts.TelegramMessageSender) *BroadcastService {
	return NewBroadcastService(repo, users, lookup, sender, directQueue{})
}

func TestBroadcast_CreateDraft(t *testing.T) {
	repo := newMemBroadcastRepo()
	svc := newTestBroadcast(repo, newMemUserStore(), &fakeLookup{}, &fakeSender{})

	b, err := svc.Create("Плановые работы в воскресенье", contracts.AudienceAll)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != contracts.BroadcastDraft {
		t.Errorf("статус %s, ожидался draft", b.Status)
	}
	if b.ID == "" {
		t.Error("черновик без идентификатора")
	}

	stored, _ := repo.GetByID(b.ID)
	if stored == nil {
		t.Fatal("черновик не сохранён в хранилище")
	}
}

func TestBroadcast_CreateRejectsEmptyTextAndBadAudience(t *testing.T) {
	svc := newTestBroadcast(newMemBroadcastRepo(), newMemUserStore(), &fakeLookup{}, &fakeSender{})

	if _, err := svc.Create("   ", contracts.AudienceAll); err == nil {
		t.Error("пустой текст должен отклоняться")
	}
	if _, err := svc.Create("текст", contracts.BroadcastAudience("everyone")); err == nil {
		t.Error("неизвестная аудитория должна отклоняться")
	}
}

func TestBroadcast_SendToAllCompletes(t *testing.T) {
	users := newMemUserStore(
		&contracts.BotUser{TelegramID: 1, Phone: "+79990000001", IsActive: true},
		&contracts.BotUser{TelegramID: 2, Phone: "+79990000002", IsActive: false},
	)
	sender := &fakeSender{}
	repo := newMemBroadcastRepo()
	svc := newTestBroadcast(repo, users, &fakeLookup{}, sender)

	draft, err := svc.Create("Сообщение всем", contracts.AudienceAll)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done, err := svc.Send(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if done.Status != contracts.BroadcastCompleted {
		t.Errorf("статус %s, ожидался completed", done.Status)
	}
	if done.Total != 2 || done.Sent != 2 || done.Failed != 0 {
		t.Errorf("счётчики total=%d sent=%d failed=%d", done.Total, done.Sent, done.Failed)
	}
	// Неактивные входят в аудиторию all
	if len(sender.sent) != 2 {
		t.Errorf("доставлено %d сообщений, ожидалось 2", len(sender.sent))
	}
}

func TestBroadcast_ActiveAudienceSkipsInactive(t *testing.T) {
	users := newMemUserStore(
		&contracts.BotUser{TelegramID: 1, Phone: "+79990000001", IsActive: true},
		&contracts.BotUser{TelegramID: 2, Phone: "+79990000002", IsActive: false},
	)
	sender := &fakeSender{}
	svc := newTestBroadcast(newMemBroadcastRepo(), users, &fakeLookup{}, sender)

	draft, _ := svc.Create("Только активным", contracts.AudienceActive)
	done, err := svc.Send(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if done.Total != 1 || done.Sent != 1 {
		t.Errorf("счётчики total=%d sent=%d, ожидалось по 1", done.Total, done.Sent)
	}
}

func TestBroadcast_DebtorsAudienceFiltersByBalance(t *testing.T) {
	users := newMemUserStore(
		&contracts.BotUser{TelegramID: 1, Phone: "+79990000001", IsActive: true},
		&contracts.BotUser{TelegramID: 2, Phone: "+79990000002", IsActive: true},
		&contracts.BotUser{TelegramID: 3, Phone: "+79990000003", IsActive: true},
	)
	lookup := &fakeLookup{balances: map[string]*contracts.CounterpartyBalance{
		"+79990000001": {ID: "cp-1", Balance: -5000, Status: contracts.StatusDebtor},
		"+79990000002": {ID: "cp-2", Balance: 300, Status: contracts.StatusCreditor},
		// +79990000003 не найден в МойСклад, пропускается
	}}
	sender := &fakeSender{}
	svc := newTestBroadcast(newMemBroadcastRepo(), users, lookup, sender)

	draft, _ := svc.Create("Напоминаем о долге", contracts.AudienceDebtors)
	done, err := svc.Send(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if done.Total != 1 || done.Sent != 1 {
		t.Errorf("счётчики total=%d sent=%d, ожидалось по 1", done.Total, done.Sent)
	}
}

func TestBroadcast_AllSendsFailedMarksFailed(t *testing.T) {
	users := newMemUserStore(
		&contracts.BotUser{TelegramID: 1, Phone: "+79990000001", IsActive: true},
	)
	sender := &fakeSender{fail: fmt.Errorf("Telegram API error: Too Many Requests")}
	svc := newTestBroadcast(newMemBroadcastRepo(), users, &fakeLookup{}, sender)

	draft, _ := svc.Create("Сообщение", contracts.AudienceAll)
	done, err := svc.Send(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if done.Status != contracts.BroadcastFailed {
		t.Errorf("статус %s, ожидался failed", done.Status)
	}
	if done.Failed != 1 || done.Sent != 0 {
		t.Errorf("счётчики sent=%d failed=%d", done.Sent, done.Failed)
	}
}

func TestBroadcast_EmptyAudienceCompletes(t *testing.T) {
	svc := newTestBroadcast(newMemBroadcastRepo(), newMemUserStore(), &fakeLookup{}, &fakeSender{})

	draft, _ := svc.Create("Сообщение", contracts.AudienceAll)
	done, err := svc.Send(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if done.Status != contracts.BroadcastCompleted || done.Total != 0 {
		t.Errorf("пустая аудитория: статус %s, total=%d", done.Status, done.Total)
	}
}

func TestBroadcast_SendOnlyFromDraft(t *testing.T) {
	repo := newMemBroadcastRepo()
	svc := newTestBroadcast(repo, newMemUserStore(), &fakeLookup{}, &fakeSender{})

	draft, _ := svc.Create("Сообщение", contracts.AudienceAll)
	if _, err := svc.Send(context.Background(), draft.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Повторная отправка завершённой рассылки отклоняется
	if _, err := svc.Send(context.Background(), draft.ID); err == nil {
		t.Fatal("повторная отправка должна отклоняться")
	}

	if _, err := svc.Send(context.Background(), "нет-такой"); err == nil {
		t.Fatal("отправка несуществующей рассылки должна отклоняться")
	}
}
