package common

import (
	"context"
	"math/rand"
	"time"

	"github.com/gofrs/uuid"
)

// Version переопределяется при сборке: -ldflags "-X marketplace/internal/application/common.Version=..."
var Version = "0.1.0"

// maxBackoffShift ограничивает сдвиг, чтобы time.Duration не переполнился
// при больших max_attempts.
const maxBackoffShift = 20

// externalIDNamespace - фиксированный namespace для UUIDv5 внешних идентификаторов.
// Менять нельзя: от него зависят id уже записанных документов.
var externalIDNamespace = uuid.Must(uuid.FromString("6f1c2a3e-9b57-4c1e-8d0a-2f4b7e5c9a10"))

// Backoff возвращает задержку перед следующей попыткой ledger события: 2^n минут.
// n - количество уже неудачных попыток (1 -> 2m, 2 -> 4m, ... 5 -> 32m).
func Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return time.Minute
	}
	if attempts > maxBackoffShift {
		attempts = maxBackoffShift
	}
	return time.Minute << attempts
}

// ExternalID детерминированно выводит идентификатор документа во внешнем хранилище
// из (aggregate_type, aggregate_id). Повторная доставка того же события перезаписывает
// тот же документ, а не создаёт дубль.
func ExternalID(aggregateType, aggregateID string) string {
	return uuid.NewV5(externalIDNamespace, aggregateType+":"+aggregateID).String()
}

// NextBackoffWithJitter - короткий бэкофф для повторов внутри одной попытки (kafka, http).
func NextBackoffWithJitter(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}

	base := time.Second << attempts

	limit := 30 * time.Second
	if base > limit {
		base = limit
	}

	jitter := time.Duration(rand.Int63n(int64(base / 2)))

	return base/2 + jitter
}

func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer func() {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
	}()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
