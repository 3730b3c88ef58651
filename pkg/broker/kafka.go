package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/pkg/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaBroker держит consumer group для входящих фактов и sync producer для исходящих событий.
type KafkaBroker struct {
	ConsumerTopic string
	ProducerTopic string
	ConsumerGroup sarama.ConsumerGroup
	SyncProducer  sarama.SyncProducer
	Brokers       []string
	conf          config.Kafka
	logger        *zap.SugaredLogger
}

func NewKafkaBroker(conf config.Kafka, logger *zap.SugaredLogger) (*KafkaBroker, error) {
	brokers := strings.Split(conf.Brokers, ",")

	logger.Debugf("Создание consumer group %s для brokers: %s", conf.ConsumerGroup, conf.Brokers)
	consumerGroup, err := newConsumerGroup(brokers, conf)
	if err != nil {
		logger.Errorf("Ошибка создания consumer group: %v", err)
		return nil, err
	}

	logger.Debugf("Создание producer для brokers: %s", conf.Brokers)
	syncProducer, err := newSyncProducer(brokers, conf)
	if err != nil {
		_ = consumerGroup.Close()
		logger.Errorf("Ошибка создания producer: %v", err)
		return nil, err
	}

	broker := &KafkaBroker{
		ConsumerTopic: conf.ReaderTopic,
		ProducerTopic: conf.WriterTopic,
		ConsumerGroup: consumerGroup,
		SyncProducer:  syncProducer,
		Brokers:       brokers,
		conf:          conf,
		logger:        logger,
	}
	logger.Infof("KafkaBroker создан. Consumer topic: %s, Producer topic: %s", broker.ConsumerTopic, broker.ProducerTopic)
	return broker, nil
}

// HealthCheck не зовёт client.Partitions(): для этого нужен Describe в ACL,
// которого у технических учёток может не быть. Проверяем, что клиенты созданы
// и что хотя бы один брокер отвечает на подключение.
func (kb *KafkaBroker) HealthCheck(ctx context.Context) error {
	if kb.SyncProducer == nil {
		return errors.New("kafka producer is not initialized")
	}
	if kb.ConsumerGroup == nil {
		return errors.New("kafka consumer group is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 2 * time.Second
	cfg.Net.ReadTimeout = 2 * time.Second
	cfg.Net.WriteTimeout = 2 * time.Second
	cfg.Metadata.Timeout = 2 * time.Second
	cfg.Metadata.Retry.Max = 1
	applySASLConfig(cfg, kb.conf, kb.conf.WriterUsr != "" && kb.conf.WriterUsrPwd != "")

	client, err := sarama.NewClient(kb.Brokers, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka brokers: %w", err)
	}
	defer client.Close()

	if len(client.Brokers()) == 0 {
		return errors.New("no kafka brokers available")
	}
	return nil
}

func (kb *KafkaBroker) Close() error {
	var errs []error
	if kb.ConsumerGroup != nil {
		errs = append(errs, kb.ConsumerGroup.Close())
	}
	if kb.SyncProducer != nil {
		errs = append(errs, kb.SyncProducer.Close())
	}
	return errors.Join(errs...)
}

// applySASLConfig: writer-учётка для producer, reader-учётка для consumer.
func applySASLConfig(cfg *sarama.Config, conf config.Kafka, useWriterCreds bool) {
	usr, pwd := conf.ReaderUsr, conf.ReaderUsrPwd
	if useWriterCreds {
		usr, pwd = conf.WriterUsr, conf.WriterUsrPwd
	}
	if usr == "" || pwd == "" {
		return
	}
	cfg.Net.SASL.User = usr
	cfg.Net.SASL.Password = pwd
	cfg.Net.SASL.Enable = true
	cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
}

func EnableSaramaZapLogs(base *zap.SugaredLogger) {
	sarama.Logger = &zapSarama{base.Named("sarama")}
}

type zapSarama struct{ l *zap.SugaredLogger }

func (z *zapSarama) Print(v ...interface{})                 { z.l.Debug(v...) }
func (z *zapSarama) Printf(format string, v ...interface{}) { z.l.Debugf(format, v...) }
func (z *zapSarama) Println(v ...interface{})               { z.l.Debug(v...) }

func newConsumerGroup(brokers []string, conf config.Kafka) (sarama.ConsumerGroup, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	kafkaConfig.Consumer.Return.Errors = true
	applySASLConfig(kafkaConfig, conf, false)

	group := conf.ConsumerGroup
	if group == "" {
		group = "marketplace-sync"
	}

	consumer, err := sarama.NewConsumerGroup(brokers, group, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании Kafka Consumer Group: %w", err)
	}
	return consumer, nil
}

func newSyncProducer(brokers []string, conf config.Kafka) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()

	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 15 * time.Second
	kafkaConfig.Net.WriteTimeout = 15 * time.Second
	kafkaConfig.Net.KeepAlive = 30 * time.Second

	kafkaConfig.Metadata.Timeout = 10 * time.Second
	kafkaConfig.Metadata.Retry.Max = 1
	kafkaConfig.Metadata.Retry.Backoff = 1 * time.Second
	kafkaConfig.Metadata.RefreshFrequency = 1 * time.Minute

	// ретраи делает producer сам, а долгие - ledger
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 0
	kafkaConfig.Producer.Timeout = 10 * time.Second
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	applySASLConfig(kafkaConfig, conf, true)

	producer, err := sarama.NewSyncProducer(brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании Kafka Sync Producer: %w", err)
	}
	return producer, nil
}
