package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	c   *cron.Cron
	ctx context.Context
}

// zapCronLogger пробрасывает служебные сообщения robfig/cron в zap.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewScheduler(ctx context.Context, logger *zap.SugaredLogger) *Scheduler {
	cl := zapCronLogger{logger: logger}
	// Поддерживаем cron формат с секундами и интервалы (@every, @daily, ...)
	c := cron.New(
		cron.WithParser(cron.NewParser(
			cron.Second|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)),
		cron.WithLogger(cl),
		// долгий проход не должен наслаиваться на следующий тик
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{c: c, ctx: ctx}
}

func (s *Scheduler) Add(spec string, timeout time.Duration, run func(ctx context.Context)) (cron.EntryID, error) {
	return s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		run(ctx)
	})
}

func (s *Scheduler) Entries() int {
	return len(s.c.Entries())
}

func (s *Scheduler) Start() {
	s.c.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}
