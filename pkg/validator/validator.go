package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate - общий экземпляр: validator кэширует разбор структур
	Validate *validator.Validate

	// "template.published", "order_item.content_ready"
	eventTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("event_type", validateEventType)
}

// validateEventType проверяет формат "<aggregate>.<fact>" в нижнем регистре
func validateEventType(fl validator.FieldLevel) bool {
	return eventTypeRe.MatchString(fl.Field().String())
}
