package repo

// LEDGER
const ledgerColumns = `id, event_type, aggregate_type, aggregate_id, payload, status, attempts, max_attempts,
	last_error, processed_at, next_retry_at, claimed_at, created_at, updated_at`

const insertLedgerSQL = `
INSERT INTO sync_ledger (
  event_type, aggregate_type, aggregate_id, payload, status, attempts, max_attempts, created_at, updated_at
) VALUES ($1, $2, $3, ($4)::jsonb, $5, 0, $6, $7, $7)
RETURNING id, created_at
`

// Очередь: pending и время ретрая наступило. FIFO по created_at внутри подходящего набора.
const selectEligibleSQL = `
SELECT ` + ledgerColumns + `
FROM sync_ledger
WHERE status = 'pending'
	AND (next_retry_at IS NULL OR next_retry_at <= $1)
ORDER BY created_at, id
LIMIT $2
`

// Claim - compare-and-swap по статусу: строку забирает ровно один вызов.
const claimLedgerSQL = `
UPDATE sync_ledger
SET status = 'processing', claimed_at = $2, updated_at = $2
WHERE id = $1
	AND status = 'pending'
	AND (next_retry_at IS NULL OR next_retry_at <= $2)
`

const getLedgerSQL = `SELECT ` + ledgerColumns + ` FROM sync_ledger WHERE id = $1`

const getLedgerForUpdateSQL = getLedgerSQL + ` FOR UPDATE`

const updateLedgerSQL = `
UPDATE sync_ledger
SET status = $2, attempts = $3, last_error = $4, processed_at = $5, next_retry_at = $6, claimed_at = $7, updated_at = $8
WHERE id = $1
`

const listFailedLedgerSQL = `
SELECT ` + ledgerColumns + `
FROM sync_ledger
WHERE status = 'failed' AND attempts >= max_attempts
ORDER BY updated_at DESC, id DESC
LIMIT $1
`

const lockStaleProcessingSQL = `
SELECT ` + ledgerColumns + `
FROM sync_ledger
WHERE status = 'processing' AND claimed_at < $1
ORDER BY claimed_at
LIMIT $2
FOR UPDATE SKIP LOCKED
`

const lockFailedByAggregateSQL = `
SELECT ` + ledgerColumns + `
FROM sync_ledger
WHERE aggregate_type = $1 AND aggregate_id = $2 AND status = 'failed'
ORDER BY id
FOR UPDATE
`

// Более свежее событие агрегата, которое ещё в пути: старое завершение не должно помечать tracker synced.
const hasNewerOpenEventSQL = `
SELECT EXISTS (
	SELECT 1 FROM sync_ledger
	WHERE aggregate_type = $1 AND aggregate_id = $2 AND id > $3 AND status IN ('pending', 'processing')
)
`

const purgeCompletedSQL = `DELETE FROM sync_ledger WHERE status = 'completed' AND processed_at < $1`

const distinctOpenEventTypesSQL = `
SELECT DISTINCT event_type FROM sync_ledger WHERE status IN ('pending', 'processing')
`

// TRACKER. Имя таблицы подставляется только из trackerTables.
const trackerColumns = `id, sync_status, sync_attempts, sync_error, external_record_id, synced_at`

const getTrackerSQL = `SELECT ` + trackerColumns + ` FROM %s WHERE id = $1`

const getTrackerForUpdateSQL = getTrackerSQL + ` FOR UPDATE`

const updateTrackerSQL = `
UPDATE %s
SET sync_status = $2, sync_attempts = $3, sync_error = $4, external_record_id = $5, synced_at = $6, updated_at = now()
WHERE id = $1
`

const listNeedsSyncSQL = `
SELECT ` + trackerColumns + `
FROM %s
WHERE sync_status = 'pending' OR (sync_status = 'failed' AND sync_attempts < $1)
ORDER BY updated_at, id
LIMIT $2
`

// ORDER ITEMS
const updateOrderItemContentSQL = `
UPDATE order_items
SET title = COALESCE(NULLIF($2, ''), title), content = ($3)::jsonb, updated_at = $4
WHERE id = $1
`
