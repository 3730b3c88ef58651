package handler

import (
	"marketplace/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Router struct {
	handler  Handler
	app      *fiber.App
	conf     *config.Config
	gatherer prometheus.Gatherer
	logger   *zap.SugaredLogger
}

func NewRouter(handler Handler, app *fiber.App, conf *config.Config, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Router {
	return &Router{
		logger:   logger,
		app:      app,
		conf:     conf,
		gatherer: gatherer,
		handler:  handler,
	}
}

func (r *Router) RegisterRouter() {
	r.app.Get("/health", r.handler.HealthCheck)
	if r.gatherer != nil {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	r.app.Route("/marketplace", func(router fiber.Router) {
		swaggerURL := "/marketplace/swagger/doc.json"
		if r.conf != nil && r.conf.Server.SwaggerUrl != "" {
			swaggerURL = r.conf.Server.SwaggerUrl
		}
		router.Use("/swagger/*", swagger.New(swagger.Config{
			DeepLinking: false,
			URL:         swaggerURL,
		}))

		v1 := router.Group("/api").Group("/v1")

		ledger := v1.Group("/ledger")
		ledger.Post("/events", r.handler.Enqueue)
		// failed до :id, иначе "failed" уйдёт в параметр
		ledger.Get("/events/failed", r.handler.ListFailed)
		ledger.Get("/events/:id", r.handler.GetEvent)
		ledger.Post("/events/:id/reset", r.handler.ResetEvent)
		ledger.Post("/dispatch", r.handler.Dispatch)
		ledger.Post("/reclaim", r.handler.Reclaim)

		sync := v1.Group("/sync")
		sync.Get("/:aggregateType", r.handler.ListNeedsSync)
		sync.Get("/:aggregateType/:aggregateId", r.handler.GetSyncState)
		sync.Post("/:aggregateType/:aggregateId/reset", r.handler.ResetSync)

		v1.Put("/order-items/:id/content", r.handler.PublishOrderItemContent)
	})
}
