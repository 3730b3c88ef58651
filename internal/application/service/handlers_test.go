package service

import (
	"encoding/json"
	"testing"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDocument(t *testing.T) {
	syncedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := entity.LedgerEvent{
		ID:            7,
		EventType:     EventTemplatePublished,
		AggregateType: entity.AggregateTemplate,
		AggregateID:   "tpl-1",
		Payload:       json.RawMessage(`{"id":"tpl-1","title":"Wedding","event_type":"spoofed","tags":["a","b"]}`),
	}

	doc, err := buildDocument(e, syncedAt)
	require.NoError(t, err)

	assert.Equal(t, "tpl-1", doc["source_id"])
	assert.NotContains(t, doc, "id")
	assert.Equal(t, "Wedding", doc["title"])
	assert.Equal(t, EventTemplatePublished, doc["event_type"])
	assert.Equal(t, int64(7), doc["ledger_event_id"])
	assert.Equal(t, syncedAt.Unix(), doc["synced_at"])
	assert.Equal(t, false, doc["deleted"])
	assert.Equal(t, []any{"a", "b"}, doc["tags"])
}

func TestBuildDocumentRejectsNonObject(t *testing.T) {
	for _, payload := range []string{`[1]`, `"text"`, `null`, `42`} {
		_, err := buildDocument(entity.LedgerEvent{Payload: json.RawMessage(payload)}, time.Now())
		require.Error(t, err, payload)
		assert.True(t, appers.IsPermanent(err), payload)
	}
}
