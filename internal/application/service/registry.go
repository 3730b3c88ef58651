package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marketplace/internal/application/entity"
)

// Handler выполняет внешнюю запись для одного события ledger и возвращает
// идентификатор записи во внешнем хранилище. Вызов обязан быть идемпотентным.
type Handler func(ctx context.Context, e entity.LedgerEvent) (externalID string, err error)

// Registry сопоставляет event_type обработчику.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register паникует на пустой тип и на повторную регистрацию: это ошибка сборки приложения.
func (r *Registry) Register(eventType string, h Handler) {
	if eventType == "" || h == nil {
		panic("service: empty event type or nil handler")
	}
	if _, dup := r.handlers[eventType]; dup {
		panic(fmt.Sprintf("service: handler for %q registered twice", eventType))
	}
	r.handlers[eventType] = h
}

func (r *Registry) Lookup(eventType string) (Handler, bool) {
	h, ok := r.handlers[eventType]
	return h, ok
}

func (r *Registry) Has(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}

func (r *Registry) EventTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate проверяет, что для всех типов есть обработчик. Используется на старте
// против типов незавершённых строк ledger: неизвестный тип иначе молча копился бы в очереди.
func (r *Registry) Validate(eventTypes []string) error {
	var unknown []string
	for _, t := range eventTypes {
		if !r.Has(t) {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("no handler registered for event types: %s", strings.Join(unknown, ", "))
	}
	return nil
}
