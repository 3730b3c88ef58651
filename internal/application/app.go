package application

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/application/common"
	"marketplace/internal/application/repo"
	"marketplace/internal/application/service"
	use_cases "marketplace/internal/application/use-cases"
	"marketplace/internal/controllers/cron"
	"marketplace/internal/controllers/handler"
	"marketplace/internal/controllers/listener"
	"marketplace/internal/transport/docstore"
	"marketplace/internal/transport/producer"
	"marketplace/pkg/broker"
	"marketplace/pkg/config"
	"marketplace/pkg/db"
	"marketplace/pkg/httpclient"
	"marketplace/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const consumerRetryDelay = time.Second

type App struct {
	ctx            context.Context
	conf           *config.Config
	logger         *zap.SugaredLogger
	postgres       *db.Postgres
	httpServer     *fiber.App
	httpClient     *httpclient.Client
	kafka          *broker.KafkaBroker
	pool           *service.Pool
	cronController *cron.Controller
	consumerDone   chan struct{}
}

// NewApp собирает relay. kafkaBroker может быть nil: тогда нет входящего топика
// и order.completed не принимается.
func NewApp(
	ctx context.Context,
	conf *config.Config,
	logger *zap.SugaredLogger,
	postgres *db.Postgres,
	httpServer *fiber.App,
	kafkaBroker *broker.KafkaBroker,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) (*App, error) {
	//Логируем версию приложения
	logger.Infof("Запуск Marketplace Sync Service версии: %s", common.Version)

	app := &App{
		ctx:        ctx,
		conf:       conf,
		logger:     logger,
		postgres:   postgres,
		httpServer: httpServer,
		kafka:      kafkaBroker,
	}

	app.httpClient = httpclient.NewClient(conf.HTTPClient)
	retryClient := httpclient.NewRetryClient(app.httpClient, conf.HTTPClient.MaxRetries, logger)

	docStore, err := docstore.NewStore(ctx, conf.DocStore, retryClient, logger, m)
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	logger.Infof("Хранилище документов: %s", docStore.Driver())

	var (
		kafkaProducer producer.Producer
		kafkaHealth   service.HealthChecker
	)
	if kafkaBroker != nil {
		p := producer.NewProducer(kafkaBroker, logger, conf.Broker.Kafka.MaxAttempts, m)
		kafkaProducer, kafkaHealth = p, p
	}

	registry := service.NewRegistry()
	service.RegisterDefaultHandlers(registry, docStore, kafkaProducer, nil)

	store := repo.NewRepo(postgres, logger, m)
	tx := repo.NewTransactions(store, logger, conf.Tracker.MaxAttempts)

	executor := service.NewExecutor(tx, registry, logger, m, nil, conf.Relay.ProcessTimeout)
	app.pool = service.NewPool(conf.Relay.Workers, conf.Relay.QueueSize, executor.Work, logger, m)
	dispatcher := service.NewDispatcher(store, app.pool, logger, m, nil, conf.Relay.BatchSize)

	srv := service.NewService(store, tx, registry, dispatcher, docStore, kafkaHealth, logger, m, *conf, nil)

	// неизвестный тип в открытых строках ledger - ошибка конфигурации, стартовать нельзя
	if err = srv.ValidateOpenEventTypes(ctx); err != nil {
		return nil, fmt.Errorf("ledger event types: %w", err)
	}

	uc := use_cases.NewUseCase(srv, logger)
	h := handler.NewLedgerHandler(uc, logger)
	r := handler.NewRouter(h, httpServer, conf, gatherer, logger)
	r.RegisterRouter()

	app.pool.Start(ctx)

	// Инициализация cron контроллера
	app.cronController = cron.NewController(ctx, logger)
	if err = app.cronController.RegisterJobs(uc, conf.Cron, conf.Relay); err != nil {
		app.pool.Stop()
		return nil, err
	}
	app.cronController.Start()

	if kafkaBroker != nil {
		app.consumerDone = make(chan struct{})
		go app.runConsumer(ctx, uc, kafkaBroker, m)
	}

	return app, nil
}

func (a *App) Run() error {
	return a.httpServer.Listen(fmt.Sprintf(":%s", a.conf.Server.Port))
}

// Shutdown: сначала перестаём брать новую работу (cron, http, consumer), потом дожидаемся
// воркеров, которые ещё пишут complete/fail в postgres. Postgres закрывает вызывающий.
func (a *App) Shutdown() error {
	// Останавливаем cron задачи
	if a.cronController != nil {
		a.cronController.Stop()
	}

	err := a.httpServer.Shutdown()

	if a.consumerDone != nil {
		<-a.consumerDone
	}

	if a.pool != nil {
		a.pool.Stop()
	}

	if a.kafka != nil {
		if cerr := a.kafka.Close(); cerr != nil {
			a.logger.Errorf("закрытие kafka: %v", cerr)
		}
	}

	if a.httpClient != nil {
		a.httpClient.CloseIdle()
	}
	return err
}

func (a *App) runConsumer(ctx context.Context, usecase use_cases.UseCaser, kafkaBroker *broker.KafkaBroker, m *metrics.Metrics) {
	defer close(a.consumerDone)
	a.logger.Infof("Запуск consumer для топика: %s", kafkaBroker.ConsumerTopic)

	kafkaBrokerConsumer := listener.NewKafkaBrokerConsumer(usecase, a.logger, m)

	for {
		a.logger.Info("Подключение к consumer group...")
		err := kafkaBroker.ConsumerGroup.Consume(ctx, []string{kafkaBroker.ConsumerTopic}, kafkaBrokerConsumer)
		if ctx.Err() != nil {
			a.logger.Info("Consumer остановлен по контексту")
			return
		}
		if err != nil {
			a.logger.Errorf("Ошибка consumer: %v", err)
			// сообщение не закоммичено, перечитаем после паузы
			select {
			case <-ctx.Done():
				return
			case <-time.After(consumerRetryDelay):
			}
		}
	}
}
