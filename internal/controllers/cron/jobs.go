package cron

import (
	"context"

	use_cases "marketplace/internal/application/use-cases"
)

// DispatchJob - проход dispatcher: забрать подходящие строки ledger и отдать воркерам.
type DispatchJob struct {
	usecase use_cases.UseCaser
}

func NewDispatchJob(usecase use_cases.UseCaser) *DispatchJob {
	return &DispatchJob{usecase: usecase}
}

func (j *DispatchJob) Name() string { return "dispatch" }

func (j *DispatchJob) Run(ctx context.Context) error {
	_, err := j.usecase.RunDispatch(ctx, 0)
	return err
}

// ReclaimJob возвращает в очередь строки, зависшие в processing.
type ReclaimJob struct {
	usecase use_cases.UseCaser
}

func NewReclaimJob(usecase use_cases.UseCaser) *ReclaimJob {
	return &ReclaimJob{usecase: usecase}
}

func (j *ReclaimJob) Name() string { return "reclaim" }

func (j *ReclaimJob) Run(ctx context.Context) error {
	_, err := j.usecase.ReclaimStale(ctx)
	return err
}

// PurgeJob удаляет completed строки старше retentionDays.
type PurgeJob struct {
	usecase use_cases.UseCaser
}

func NewPurgeJob(usecase use_cases.UseCaser) *PurgeJob {
	return &PurgeJob{usecase: usecase}
}

func (j *PurgeJob) Name() string { return "purge" }

func (j *PurgeJob) Run(ctx context.Context) error {
	_, err := j.usecase.PurgeCompleted(ctx)
	return err
}
