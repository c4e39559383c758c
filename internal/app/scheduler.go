package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми задачами: рассылкой напоминаний и повтором выплат
type Scheduler struct {
	reminders *service.ReminderService
	escrow    *service.EscrowService
	sender    service.ReminderSender

	reminderInterval   time.Duration
	settlementInterval time.Duration

	logger   *zap.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик. sender может быть nil,
// тогда напоминания забирает внешний отправитель через HTTP.
func NewScheduler(
	reminders *service.ReminderService,
	escrow *service.EscrowService,
	sender service.ReminderSender,
	reminderInterval, settlementInterval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		reminders:          reminders,
		escrow:             escrow,
		sender:             sender,
		reminderInterval:   reminderInterval,
		settlementInterval: settlementInterval,
		logger:             logger,
		stopChan:           make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("reminder_interval", s.reminderInterval),
		zap.Duration("settlement_interval", s.settlementInterval),
	)

	if s.sender != nil {
		s.run(ctx, "reminder dispatch", s.reminderInterval, s.dispatchReminders)
	}
	s.run(ctx, "settlement retry", s.settlementInterval, s.retrySettlements)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Первый запуск сразу при старте
		task(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				task(ctx)
			case <-s.stopChan:
				s.logger.Info("Background task stopped", zap.String("task", name))
				return
			case <-ctx.Done():
				s.logger.Info("Background task cancelled", zap.String("task", name))
				return
			}
		}
	}()
}

func (s *Scheduler) dispatchReminders(ctx context.Context) {
	if _, err := s.reminders.Dispatch(ctx, s.sender); err != nil {
		s.logger.Error("Failed to dispatch reminders", zap.Error(err))
	}
}

func (s *Scheduler) retrySettlements(ctx context.Context) {
	if _, err := s.escrow.RetryFailed(ctx, 50); err != nil {
		s.logger.Error("Failed to retry settlements", zap.Error(err))
	}
}
