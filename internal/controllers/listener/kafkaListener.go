package listener

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/appers"
	use_cases "marketplace/internal/application/use-cases"
	"marketplace/pkg/metrics"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaBrokerConsumer принимает факты из входного топика и кладёт их в ledger.
type KafkaBrokerConsumer struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
	m       *metrics.Metrics
}

func NewKafkaBrokerConsumer(usecase use_cases.UseCaser, logger *zap.SugaredLogger, m *metrics.Metrics) *KafkaBrokerConsumer {
	return &KafkaBrokerConsumer{
		logger:  logger,
		usecase: usecase,
		m:       m,
	}
}

func (k *KafkaBrokerConsumer) Setup(session sarama.ConsumerGroupSession) error {
	k.logger.Infof("Kafka setup success, claims: %v", session.Claims())
	if k.m != nil {
		k.m.Kafka.ConsumerRebalancesTotal.WithLabelValues("setup").Inc()
	}
	return nil
}

func (k *KafkaBrokerConsumer) Cleanup(session sarama.ConsumerGroupSession) error {
	k.logger.Info("Kafka cleanup success")
	if k.m != nil {
		k.m.Kafka.ConsumerRebalancesTotal.WithLabelValues("cleanup").Inc()
	}
	return nil
}

// ConsumeClaim коммитит offset только после записи в ledger. Невалидные сообщения пропускаются,
// на остальных ошибках claim завершается без коммита и сообщение будет прочитано повторно.
func (k *KafkaBrokerConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	topic := claim.Topic()

	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := k.handle(session.Context(), topic, msg); err != nil {
				return err
			}
			session.MarkMessage(msg, "")
		}
	}
}

func (k *KafkaBrokerConsumer) handle(ctx context.Context, topic string, msg *sarama.ConsumerMessage) error {
	if k.m != nil {
		k.m.Kafka.ConsumerInFlight.WithLabelValues(topic).Inc()
	}
	start := time.Now()
	k.logger.Debugf("Message topic:%q partition:%d offset:%d value:%s", msg.Topic, msg.Partition, msg.Offset, msg.Value)

	err := k.usecase.ConsumerMessage(ctx, msg.Value, msg.Timestamp)

	result := "enqueued"
	switch {
	case err == nil:
	case errors.Is(err, appers.ErrInvalidMessage):
		result = "invalid"
		k.logger.Warnf("skip message partition:%d offset:%d: %v", msg.Partition, msg.Offset, err)
		err = nil
	default:
		result = "error"
		k.logger.Errorf("message partition:%d offset:%d not enqueued, will be redelivered: %v", msg.Partition, msg.Offset, err)
	}

	if k.m != nil {
		k.m.Kafka.ConsumerMessagesTotal.WithLabelValues(topic, result).Inc()
		k.m.Kafka.ConsumerProcessDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
		k.m.Kafka.ConsumerInFlight.WithLabelValues(topic).Dec()
	}
	return err
}
