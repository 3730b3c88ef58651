package cron

import (
	"context"
	"fmt"
	"time"

	use_cases "marketplace/internal/application/use-cases"
	"marketplace/pkg/config"

	"go.uber.org/zap"
)

const (
	defaultDispatchSchedule = "@every 5s"
	defaultReclaimSchedule  = "@every 1m"
	defaultPurgeSchedule    = "0 0 3 * * *"
)

type Controller struct {
	scheduler *Scheduler
	logger    *zap.SugaredLogger
}

func NewController(ctx context.Context, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		scheduler: NewScheduler(ctx, logger),
		logger:    logger,
	}
}

// RegisterJobs регистрирует dispatch, reclaim и purge. Purge не регистрируется при retentionDays <= 0.
// Расписание: cron формат с секундами ("0 0 3 * * *") или интервал ("@every 5s").
func (c *Controller) RegisterJobs(usecase use_cases.UseCaser, conf config.Cron, relay config.RelayConfig) error {
	dispatchTimeout := relay.ProcessTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = 30 * time.Second
	}

	if err := c.register(NewDispatchJob(usecase), conf.DispatchSchedule, defaultDispatchSchedule, dispatchTimeout); err != nil {
		return err
	}
	if err := c.register(NewReclaimJob(usecase), conf.ReclaimSchedule, defaultReclaimSchedule, time.Minute); err != nil {
		return err
	}
	if conf.RetentionDays <= 0 {
		c.logger.Info("retentionDays не задан, очистка completed строк отключена")
		return nil
	}
	return c.register(NewPurgeJob(usecase), conf.PurgeSchedule, defaultPurgeSchedule, 55*time.Minute)
}

func (c *Controller) register(job Job, spec, fallback string, timeout time.Duration) error {
	if spec == "" {
		spec = fallback
		c.logger.Warnf("Расписание задачи %s не указано, используется по умолчанию: %s", job.Name(), spec)
	}

	entryID, err := c.scheduler.Add(spec, timeout, func(ctx context.Context) {
		c.run(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать задачу %s: %w", job.Name(), err)
	}

	c.logger.Infof("Задача %s зарегистрирована с ID: %d, расписание: %s", job.Name(), entryID, spec)
	return nil
}

func (c *Controller) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("Паника при выполнении задачи %s: %v", job.Name(), r)
		}
	}()

	if err := job.Run(ctx); err != nil {
		c.logger.Errorf("Задача %s завершилась с ошибкой: %v", job.Name(), err)
	}
}

// Start запускает планировщик задач
func (c *Controller) Start() {
	c.logger.Info("Запуск планировщика cron задач")
	c.scheduler.Start()
}

// Stop останавливает планировщик и ждёт завершения запущенных задач
func (c *Controller) Stop() {
	c.logger.Info("Остановка планировщика cron задач")
	c.scheduler.Stop()
	c.logger.Info("Планировщик cron задач остановлен")
}
