package sweep

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/ndertimnet/leadengine/internal/logger"
)

// JobSweeps периодические проходы по заявкам: закрытие истёкших и
// автоматическое повторное открытие заглохших раундов.
type JobSweeps interface {
	CloseExpiredJobs(ctx context.Context) (int, error)
	ReopenStaleJobs(ctx context.Context) (int, error)
}

// Sweeper оборачивает robfig/cron и гоняет оба прохода по расписанию.
type Sweeper struct {
	cron *cron.Cron
	jobs JobSweeps
	spec string
}

// New создаёт Sweeper с cron-спецификацией вида "@every 1h".
func New(jobs JobSweeps, spec string) *Sweeper {
	return &Sweeper{
		cron: cron.New(),
		jobs: jobs,
		spec: spec,
	}
}

// Start регистрирует проход и запускает планировщик. Первый проход
// выполняется сразу, не дожидаясь первого тика.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("sweep: cron.AddFunc: %w", err)
	}

	s.cron.Start()
	logger.Log.WithField("spec", s.spec).Info("Планировщик проходов запущен")

	go s.run(ctx)
	return nil
}

// Stop останавливает планировщик.
func (s *Sweeper) Stop() {
	s.cron.Stop()
	logger.Log.Info("Планировщик проходов остановлен")
}

func (s *Sweeper) run(ctx context.Context) {
	closed, err := s.jobs.CloseExpiredJobs(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Проход по истёкшим заявкам завершился ошибкой")
	} else if closed > 0 {
		logger.Log.WithField("closed", closed).Info("Закрыты заявки с истёкшим сроком")
	}

	reopened, err := s.jobs.ReopenStaleJobs(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Проход по заглохшим раундам завершился ошибкой")
	} else if reopened > 0 {
		logger.Log.WithField("reopened", reopened).Info("Повторно открыты заглохшие раунды")
	}
}
