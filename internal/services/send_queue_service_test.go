package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestSendQueue_CompletesAllTasksInOrder(t *testing.T) {
	queue := NewSendQueueService(1000, 0, clockwork.NewRealClock())
	if err := queue.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer queue.Stop()

	var mu sync.Mutex
	var order []int

	// Задачи ставятся последовательно, чтобы порядок постановки был известен
	results := make([]interface{}, 100)
	for i := 0; i < 100; i++ {
		i := i
		value, err := queue.Submit(func() (interface{}, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		results[i] = value
	}

	if len(order) != 100 {
		t.Fatalf("выполнено %d задач, ожидалось 100", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("нарушен порядок FIFO: позиция %d содержит %d", i, v)
		}
	}
	for i, v := range results {
		if v != i {
			t.Fatalf("результат задачи %d потерян: %v", i, v)
		}
	}
}

func TestSendQueue_RespectsRollingWindowCap(t *testing.T) {
	const windowCap = 5
	queue := NewSendQueueService(windowCap, 0, clockwork.NewRealClock())
	if err := queue.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer queue.Stop()

	var mu sync.Mutex
	var dispatched []time.Time

	for i := 0; i < 12; i++ {
		_, err := queue.Submit(func() (interface{}, error) {
			mu.Lock()
			dispatched = append(dispatched, time.Now())
			mu.Unlock()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	if len(dispatched) != 12 {
		t.Fatalf("выполнено %d задач, ожидалось 12", len(dispatched))
	}

	// В любом скользящем секундном окне не больше windowCap отправок
	for i := range dispatched {
		count := 1
		for j := i + 1; j < len(dispatched); j++ {
			if dispatched[j].Sub(dispatched[i]) < time.Second {
				count++
			}
		}
		if count > windowCap {
			t.Fatalf("в окне начиная с отправки %d выполнено %d задач при лимите %d", i, count, windowCap)
		}
	}
}

func TestSendQueue_TaskFailureDoesNotAbortQueue(t *testing.T) {
	queue := NewSendQueueService(1000, 0, clockwork.NewRealClock())
	if err := queue.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer queue.Stop()

	if _, err := queue.Submit(func() (interface{}, error) {
		return nil, fmt.Errorf("сбой доставки")
	}); err == nil {
		t.Fatal("ожидалась ошибка задачи")
	}

	// Следующая задача выполняется как ни в чём не бывало
	value, err := queue.Submit(func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("submit после сбоя: %v", err)
	}
	if value != "ok" {
		t.Fatalf("результат потерян: %v", value)
	}
}

func TestSendQueue_PanicInTaskIsContained(t *testing.T) {
	queue := NewSendQueueService(1000, 0, clockwork.NewRealClock())
	if err := queue.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer queue.Stop()

	if _, err := queue.Submit(func() (interface{}, error) {
		panic("авария")
	}); err == nil {
		t.Fatal("паника должна превращаться в ошибку")
	}

	if _, err := queue.Submit(func() (interface{}, error) { return nil, nil }); err != nil {
		t.Fatalf("очередь не пережила панику: %v", err)
	}
}

func TestSendQueue_SubmitAfterStop(t *testing.T) {
	queue := NewSendQueueService(1000, 0, clockwork.NewRealClock())
	if err := queue.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := queue.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := queue.Submit(func() (interface{}, error) { return nil, nil }); err == nil {
		t.Fatal("submit после остановки должен возвращать ошибку")
	}
}
