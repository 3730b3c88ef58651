package validator

import (
	"encoding/json"
	"testing"

	"marketplace/internal/application/entity"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeTag(t *testing.T) {
	type probe struct {
		EventType string `validate:"event_type"`
	}

	for _, v := range []string{"template.published", "order_item.content_ready", "a.b.c"} {
		assert.NoError(t, Validate.Struct(probe{EventType: v}), v)
	}
	for _, v := range []string{"", "template", "Template.Published", ".published", "template.", "template published"} {
		assert.Error(t, Validate.Struct(probe{EventType: v}), v)
	}
}

func TestEnqueueRequestValidation(t *testing.T) {
	ok := entity.EnqueueRequest{
		EventType:     "review.created",
		AggregateType: "review",
		AggregateID:   "rv-1",
		Payload:       json.RawMessage(`{"rating":5}`),
	}
	assert.NoError(t, Validate.Struct(&ok))

	missing := ok
	missing.AggregateID = ""
	assert.Error(t, Validate.Struct(&missing))

	tooMany := ok
	tooMany.MaxAttempts = 100
	assert.Error(t, Validate.Struct(&tooMany))
}
