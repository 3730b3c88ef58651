package httpserver

import (
	"strconv"
	"strings"
	"time"

	"marketplace/pkg/config"
	"marketplace/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewFiber(conf config.Config, m *metrics.Metrics) *fiber.App {
	fc := fiber.Config{
		ReadBufferSize: 1024 * 100,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"status":  false,
				"message": err.Error(),
			})
		},
	}
	if conf.Server.BodyLimit > 0 {
		fc.BodyLimit = conf.Server.BodyLimit
	}
	app := fiber.New(fc)

	app.Use(
		cors.New(cors.Config{
			AllowOrigins:  "*",
			ExposeHeaders: "Authorization",
		}),
		recover.New(recover.Config{EnableStackTrace: true}),
		logger.New(),
	)

	if m != nil {
		app.Use(prometheusMiddleware(m))
	}

	return app
}

// prometheusMiddleware считает запросы по шаблону роута, а не по фактическому пути,
// иначе каждый :id давал бы отдельную серию.
func prometheusMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		method := c.Method()
		if r := c.Route(); r != nil {
			if r.Path != "" {
				path = r.Path
			}
			if r.Method != "" {
				method = r.Method
			}
		}
		if path == "/metrics" {
			return err
		}

		status := strconv.Itoa(c.Response().StatusCode())
		method = normalizeHTTPMethod(method)
		m.API.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.API.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		return err
	}
}

// normalizeHTTPMethod держит кардинальность метки method под контролем
func normalizeHTTPMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete,
		fiber.MethodPatch, fiber.MethodHead, fiber.MethodOptions:
		return method
	default:
		return "OTHER"
	}
}
