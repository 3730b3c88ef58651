package service

import (
	"context"
	"testing"

	"marketplace/internal/application/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, entity.LedgerEvent) (string, error) { return "x", nil }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b.created", noop)
	reg.Register("a.created", noop)

	assert.True(t, reg.Has("a.created"))
	assert.False(t, reg.Has("c.created"))
	assert.Equal(t, []string{"a.created", "b.created"}, reg.EventTypes())

	h, ok := reg.Lookup("b.created")
	require.True(t, ok)
	id, err := h(context.Background(), entity.LedgerEvent{})
	require.NoError(t, err)
	assert.Equal(t, "x", id)
}

func TestRegistryPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a.created", noop)
	assert.Panics(t, func() { reg.Register("a.created", noop) })
	assert.Panics(t, func() { reg.Register("", noop) })
}

func TestRegistryValidate(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a.created", noop)

	require.NoError(t, reg.Validate(nil))
	require.NoError(t, reg.Validate([]string{"a.created"}))

	err := reg.Validate([]string{"z.old", "a.created", "m.old"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m.old, z.old")
}

func TestDefaultHandlersWithoutKafka(t *testing.T) {
	reg := NewRegistry()
	RegisterDefaultHandlers(reg, newFakeDocStore(), nil, nil)

	assert.False(t, reg.Has(EventOrderCompleted))
	assert.True(t, reg.Has(EventOrderItemContentReady))
	assert.True(t, reg.Has(EventTemplateUnpublished))
}
