package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SendTask единица работы очереди отправки
type SendTask func() (interface{}, error)

type taskResult struct {
	value interface{}
	err   error
}

type queueItem struct {
	task   SendTask
	result chan taskResult
}

// SendQueueService очередь отправки с ограничением скорости.
// Один потребитель выгребает задачи в порядке поступления, соблюдая
// лимит операций в скользящем секундном окне и фиксированный интервал
// между задачами. Ошибка задачи возвращается её отправителю и не
// останавливает очередь.
type SendQueueService struct {
	queue      chan *queueItem
	ratePerSec int
	spacing    time.Duration
	clock      clockwork.Clock

	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewSendQueueService создает новую очередь отправки
func NewSendQueueService(ratePerSec int, spacing time.Duration, clock clockwork.Clock) *SendQueueService {
	if ratePerSec <= 0 {
		ratePerSec = 25
	}
	return &SendQueueService{
		queue:      make(chan *queueItem, 1024),
		ratePerSec: ratePerSec,
		spacing:    spacing,
		clock:      clock,
		stopChan:   make(chan struct{}),
	}
}

// Start запускает потребителя очереди
func (s *SendQueueService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("очередь отправки уже запущена")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true
	s.wg.Add(1)

	go s.drainLoop()

	log.Printf("[SendQueue] Очередь отправки запущена: %d оп/сек, интервал %v", s.ratePerSec, s.spacing)
	return nil
}

// Stop останавливает потребителя. Задачи, ожидающие в очереди,
// получают ошибку остановки.
func (s *SendQueueService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("очередь отправки не запущена")
	}

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	s.wg.Wait()
	s.isRunning = false

	log.Printf("[SendQueue] Очередь отправки остановлена")
	return nil
}

// Submit ставит задачу в очередь и ждёт её результата.
// Порядок отправки совпадает с порядком постановки.
func (s *SendQueueService) Submit(task SendTask) (interface{}, error) {
	item := &queueItem{
		task:   task,
		result: make(chan taskResult, 1),
	}

	select {
	case s.queue <- item:
	case <-s.stopChan:
		return nil, fmt.Errorf("очередь отправки остановлена")
	}

	select {
	case res := <-item.result:
		return res.value, res.err
	case <-s.stopChan:
		return nil, fmt.Errorf("очередь отправки остановлена")
	}
}

// drainLoop основной цикл потребителя
func (s *SendQueueService) drainLoop() {
	defer s.wg.Done()

	windowStart := s.clock.Now()
	dispatched := 0

	for {
		select {
		case <-s.stopChan:
			return
		case item := <-s.queue:
			now := s.clock.Now()

			// Скользящее секундное окно: сбрасываем счётчик по его истечении
			if now.Sub(windowStart) >= time.Second {
				windowStart = now
				dispatched = 0
			}

			// Лимит окна исчерпан — ждём его конца
			if dispatched >= s.ratePerSec {
				wait := time.Second - now.Sub(windowStart)
				if wait > 0 {
					select {
					case <-s.clock.After(wait):
					case <-s.stopChan:
						item.result <- taskResult{err: fmt.Errorf("очередь отправки остановлена")}
						return
					}
				}
				windowStart = s.clock.Now()
				dispatched = 0
			}

			s.runTask(item)
			dispatched++

			// Равномерное распределение нагрузки внутри окна
			if s.spacing > 0 {
				select {
				case <-s.clock.After(s.spacing):
				case <-s.stopChan:
					return
				}
			}
		}
	}
}

// runTask выполняет задачу и доставляет результат отправителю
func (s *SendQueueService) runTask(item *queueItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SendQueue] Паника в задаче: %v", r)
			item.result <- taskResult{err: fmt.Errorf("паника в задаче: %v", r)}
		}
	}()

	value, err := item.task()
	item.result <- taskResult{value: value, err: err}
}
