package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"marketplace/docs"
	"marketplace/internal/application"
	"marketplace/internal/application/common"
	"marketplace/pkg/broker"
	"marketplace/pkg/config"
	"marketplace/pkg/db"
	"marketplace/pkg/httpserver"
	"marketplace/pkg/metrics"
	"marketplace/pkg/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// @title           Marketplace Sync Service API
// @version         1.0
// @description     Репликация фактов маркетплейса во внешние хранилища через sync_ledger

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @BasePath /marketplace/api

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := observability.InitLogger(conf.LoggingLevel, "marketplace-sync", common.Version)
	defer func() { _ = logger.Sync() }()

	logger.Infof("LOGGING_LEVEL = %s", conf.LoggingLevel)
	if strings.ToLower(conf.LoggingLevel) == "debug" {
		broker.EnableSaramaZapLogs(logger)
	}

	docs.SwaggerInfo.Host = conf.Server.SwaggerHost
	if conf.Server.SwaggerSchema != "" {
		docs.SwaggerInfo.Schemes = []string{conf.Server.SwaggerSchema}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	fiberServer := httpserver.NewFiber(conf, m)
	if fiberServer == nil {
		logger.Fatal(errors.New("fiber server is nil"))
	}

	store, err := db.NewPostgres(ctx, conf.Postgres)
	if err != nil {
		logger.Fatal(err)
	}

	var kafka *broker.KafkaBroker
	if conf.Broker.Kafka.Brokers != "" {
		kafka, err = broker.NewKafkaBroker(conf.Broker.Kafka, logger)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infof("Kafka broker создан успешно. Consumer topic: %s, Producer topic: %s", kafka.ConsumerTopic, kafka.ProducerTopic)
	} else {
		logger.Warn("broker.kafka.brokers не задан: входящий топик и order.completed отключены")
	}

	server, err := application.NewApp(ctx, &conf, logger, store, fiberServer, kafka, m, prometheus.DefaultGatherer)
	if err != nil {
		logger.Fatalf("не удалось запустить сервис: %v", err)
	}

	logger.Info("Marketplace sync service started successfully")
	logger.Infof("Server config: %+v", conf.Server)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("error listening for server: %v", err)
				return
			}

			logger.Infof("server %v closed", conf.Server.Port)
		}
	}()

	//graceful shutdown
	osSignal := <-interrupt
	switch osSignal {
	case os.Interrupt:
		logger.Infof("%v Got SIGINT...", conf.Server.Port)
	case syscall.SIGTERM:
		logger.Infof("%v Got SIGTERM...", conf.Server.Port)
	}

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Errorf("server %v forced to shutdown: %v", conf.Server.Port, err)
	}

	store.Close()
	logger.Infof("postgres db connection closed")

	logger.Infof("server shutdown %v done", conf.Server.Port)
}
