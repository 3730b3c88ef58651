package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/common"
	"marketplace/internal/application/entity"
	use_cases "marketplace/internal/application/use-cases"
	"marketplace/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler interface {
	Enqueue(c *fiber.Ctx) error
	GetEvent(c *fiber.Ctx) error
	ListFailed(c *fiber.Ctx) error
	ResetEvent(c *fiber.Ctx) error
	Dispatch(c *fiber.Ctx) error
	Reclaim(c *fiber.Ctx) error

	GetSyncState(c *fiber.Ctx) error
	ListNeedsSync(c *fiber.Ctx) error
	ResetSync(c *fiber.Ctx) error

	PublishOrderItemContent(c *fiber.Ctx) error
	HealthCheck(c *fiber.Ctx) error
}
type HandlerImpl struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewLedgerHandler(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *HandlerImpl {
	return &HandlerImpl{
		usecase: usecase,
		logger:  logger,
	}
}

// formatValidationErrors форматирует ошибки валидации в понятный формат для клиента
func formatValidationErrors(err error) fiber.Map {
	var errors []string
	if validationErrors, ok := err.(playgroundvalidator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			var message string
			switch e.Tag() {
			case "required":
				message = fmt.Sprintf("поле '%s' обязательно для заполнения", field)
			case "min":
				message = fmt.Sprintf("поле '%s' должно быть не меньше %s", field, e.Param())
			case "max":
				message = fmt.Sprintf("поле '%s' должно быть не больше %s", field, e.Param())
			case "event_type":
				message = fmt.Sprintf("поле '%s' должно иметь вид <aggregate>.<fact>, например template.published", field)
			default:
				message = fmt.Sprintf("поле '%s' не прошло валидацию: %s", field, e.Tag())
			}
			errors = append(errors, message)
		}
	} else {
		errors = append(errors, err.Error())
	}
	return fiber.Map{
		"error":   "validation failed",
		"details": errors,
	}
}

func paramID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// HealthCheck godoc
// @Summary     Проверка состояния сервиса
// @Description Проверяет PostgreSQL, хранилище документов и Kafka. Возвращает состояние каждого компонента.
// @Produce     json
// @Success     200   {object} entity.HealthCheckResponse "Все сервисы доступны"
// @Failure     503   {object} entity.HealthCheckResponse "Один или несколько сервисов недоступны"
// @tags        Health
// @Router      /health [get]
func (h *HandlerImpl) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	report := h.usecase.HealthCheck(ctx)

	item := func(kind string, err error) entity.HealthCheckItem {
		it := entity.HealthCheckItem{Status: err == nil, Type: kind}
		if err != nil {
			h.logger.Warnf("health check %s failed: %v", kind, err)
			it.Error = kind + " connection failed"
		}
		return it
	}

	resp := entity.HealthCheckResponse{
		Status:  report.Healthy(),
		Message: "success",
		Version: common.Version,
		Checks: entity.HealthCheckResponseData{
			Database: item("postgresql", report.Database),
			DocStore: item("docstore", report.DocStore),
			Kafka:    item("kafka", report.Kafka),
		},
	}
	if !resp.Status {
		resp.Message = "Some services are unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Enqueue godoc
// @Summary     Постановка факта в ledger
// @Description Записывает событие в sync_ledger для доставки во внешнее хранилище
// @Accept      json
// @Produce     json
// @Param       body  body     entity.EnqueueRequest  true  "Факт"
// @Success     201   {object} entity.EnqueueResponse
// @Failure     400
// @Failure     422
// @Failure     500
// @tags        Ledger
// @Router      /v1/ledger/events [post]
func (h *HandlerImpl) Enqueue(c *fiber.Ctx) error {
	var req entity.EnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := validator.Validate.Struct(&req); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	id, err := h.usecase.Enqueue(c.Context(), req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entity.EnqueueResponse{ID: id})
}

// GetEvent godoc
// @Summary     Строка ledger
// @Produce     json
// @Param       id   path     int  true  "ID события"
// @Success     200  {object} entity.LedgerEvent
// @Failure     400
// @Failure     404
// @tags        Ledger
// @Router      /v1/ledger/events/{id} [get]
func (h *HandlerImpl) GetEvent(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}

	ev, err := h.usecase.GetEvent(c.Context(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ev)
}

// ListFailed godoc
// @Summary     Терминально упавшие события
// @Description События в failed с исчерпанными попытками, ждут решения оператора
// @Produce     json
// @Param       limit  query    int  false  "Сколько вернуть (по умолчанию 50, максимум 500)"
// @Success     200    {array}  entity.LedgerEvent
// @tags        Ledger
// @Router      /v1/ledger/events/failed [get]
func (h *HandlerImpl) ListFailed(c *fiber.Ctx) error {
	events, err := h.usecase.ListFailed(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if events == nil {
		events = []entity.LedgerEvent{}
	}
	return c.Status(fiber.StatusOK).JSON(events)
}

// ResetEvent godoc
// @Summary     Вернуть событие в очередь
// @Description pending, attempts=0. Завершённые события не сбрасываются (409).
// @Produce     json
// @Param       id   path     int  true  "ID события"
// @Success     200  {object} entity.LedgerEvent
// @Failure     400
// @Failure     404
// @Failure     409
// @tags        Ledger
// @Router      /v1/ledger/events/{id}/reset [post]
func (h *HandlerImpl) ResetEvent(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
	}

	ev, err := h.usecase.ResetEvent(c.Context(), id)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(ev)
}

// Dispatch godoc
// @Summary     Внеочередной проход dispatcher
// @Description Забирает до limit подходящих событий и отдаёт воркерам, окончания обработки не ждёт
// @Produce     json
// @Param       limit  query    int  false  "Размер пачки (по умолчанию relay.batchSize)"
// @Success     200    {object} entity.DispatchResponse
// @tags        Ledger
// @Router      /v1/ledger/dispatch [post]
func (h *HandlerImpl) Dispatch(c *fiber.Ctx) error {
	n, err := h.usecase.RunDispatch(c.Context(), c.QueryInt("limit"))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(entity.DispatchResponse{Submitted: n})
}

// Reclaim godoc
// @Summary     Вернуть зависшие processing строки
// @Produce     json
// @Success     200  {object} entity.ReclaimResponse
// @tags        Ledger
// @Router      /v1/ledger/reclaim [post]
func (h *HandlerImpl) Reclaim(c *fiber.Ctx) error {
	n, err := h.usecase.ReclaimStale(c.Context())
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(entity.ReclaimResponse{Reclaimed: n})
}

// GetSyncState godoc
// @Summary     Статус синхронизации агрегата
// @Produce     json
// @Param       aggregateType  path     string  true  "Тип агрегата, например order_item"
// @Param       aggregateId    path     string  true  "ID агрегата"
// @Success     200            {object} entity.SyncStateResponse
// @Failure     400
// @Failure     404
// @tags        Sync
// @Router      /v1/sync/{aggregateType}/{aggregateId} [get]
func (h *HandlerImpl) GetSyncState(c *fiber.Ctx) error {
	state, err := h.usecase.GetSyncState(c.Context(), c.Params("aggregateType"), c.Params("aggregateId"))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(state)
}

// ListNeedsSync godoc
// @Summary     Агрегаты, ожидающие синхронизации
// @Produce     json
// @Param       aggregateType  path     string  true   "Тип агрегата"
// @Param       limit          query    int     false  "Сколько вернуть"
// @Success     200            {array}  entity.SyncTracker
// @Failure     400
// @tags        Sync
// @Router      /v1/sync/{aggregateType} [get]
func (h *HandlerImpl) ListNeedsSync(c *fiber.Ctx) error {
	items, err := h.usecase.ListNeedsSync(c.Context(), c.Params("aggregateType"), c.QueryInt("limit"))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	if items == nil {
		items = []entity.SyncTracker{}
	}
	return c.Status(fiber.StatusOK).JSON(items)
}

// ResetSync godoc
// @Summary     Сброс синхронизации агрегата
// @Description Tracker -> pending, failed события агрегата возвращаются в очередь
// @Produce     json
// @Param       aggregateType  path     string  true  "Тип агрегата"
// @Param       aggregateId    path     string  true  "ID агрегата"
// @Success     200            {object} entity.ResetSyncResponse
// @Failure     400
// @Failure     404
// @tags        Sync
// @Router      /v1/sync/{aggregateType}/{aggregateId}/reset [post]
func (h *HandlerImpl) ResetSync(c *fiber.Ctx) error {
	res, err := h.usecase.ResetSync(c.Context(), c.Params("aggregateType"), c.Params("aggregateId"))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// PublishOrderItemContent godoc
// @Summary     Новое содержимое позиции заказа
// @Description Сохраняет содержимое, сбрасывает статус синхронизации и ставит событие в ledger одной транзакцией
// @Accept      json
// @Produce     json
// @Param       id    path     string                   true  "ID позиции заказа"
// @Param       body  body     entity.OrderItemContent  true  "Содержимое"
// @Success     202   {object} entity.EnqueueResponse
// @Failure     400
// @Failure     404
// @tags        OrderItems
// @Router      /v1/order-items/{id}/content [put]
func (h *HandlerImpl) PublishOrderItemContent(c *fiber.Ctx) error {
	var in entity.OrderItemContent
	if err := c.BodyParser(&in); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	in.ID = c.Params("id")

	if err := validator.Validate.Struct(&in); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	id, err := h.usecase.PublishOrderItemContent(c.Context(), in)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(entity.EnqueueResponse{ID: id})
}
