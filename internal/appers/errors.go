package appers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ErrPermanent помечает ошибку внешней записи, которую бессмысленно ретраить
// (4xx от хранилища, битый payload, нет прав на топик).
var ErrPermanent = errors.New("permanent failure")

// ErrInvalidMessage - входящее сообщение kafka не разобрать или не пройти валидацию; повтор не поможет.
var ErrInvalidMessage = errors.New("invalid message")

// ErrInvalidTransition возвращается state machine ledger/tracker на недопустимый переход.
var ErrInvalidTransition = errors.New("invalid state transition")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent оборачивает err так, что errors.Is(err, ErrPermanent) == true,
// при этом исходная ошибка тоже остаётся доступной через errors.Is/As.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

type ErrorResp struct {
	StatusCode int    `json:"statusCode,omitempty"`
	StatusDesc string `json:"statusDesc,omitempty"`
}

func (e ErrorResp) Error() string {
	return e.StatusDesc
}

var (
	ErrLedgerEventNotFound = ErrorResp{
		http.StatusNotFound,
		"ledger event not found",
	}
	ErrLedgerEventCompleted = ErrorResp{
		http.StatusConflict,
		"ledger event already completed",
	}
	ErrLedgerEventNotClaimed = ErrorResp{
		http.StatusConflict,
		"ledger event is not in processing",
	}
	ErrUnknownEventType = ErrorResp{
		http.StatusUnprocessableEntity,
		"unknown event type",
	}
	ErrAggregateNotTracked = ErrorResp{
		http.StatusBadRequest,
		"aggregate type has no sync tracker",
	}
	ErrAggregateNotFound = ErrorResp{
		http.StatusNotFound,
		"aggregate not found",
	}
)

func SanitizeError(c *fiber.Ctx, err error) error {
	var errResp ErrorResp

	if ok := errors.As(err, &errResp); ok {
		return c.Status(errResp.StatusCode).JSON(fiber.Map{
			"message": errResp.StatusDesc,
		})
	} else {
		return NewErr(c, http.StatusInternalServerError, err)
	}
}

func NewErr(ctx *fiber.Ctx, status int, err error) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}
