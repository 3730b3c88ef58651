package producer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/common"
	"marketplace/pkg/broker"
	"marketplace/pkg/metrics"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Producer interface {
	// ProduceMessage публикует сообщение с ключом key. Ключ задаёт партицию,
	// поэтому события одного агрегата идут в одну партицию.
	ProduceMessage(ctx context.Context, key string, message []byte) error
	HealthCheck(ctx context.Context) error
}

type KafkaProducer struct {
	producer    sarama.SyncProducer
	topic       string
	health      func(ctx context.Context) error
	logger      *zap.SugaredLogger
	maxAttempts int
	m           *metrics.Metrics
}

func NewProducer(b *broker.KafkaBroker, logger *zap.SugaredLogger, maxAttempts int, m *metrics.Metrics) *KafkaProducer {
	return newKafkaProducer(b.SyncProducer, b.ProducerTopic, b.HealthCheck, logger, maxAttempts, m)
}

func newKafkaProducer(p sarama.SyncProducer, topic string, health func(ctx context.Context) error, logger *zap.SugaredLogger, maxAttempts int, m *metrics.Metrics) *KafkaProducer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &KafkaProducer{
		producer:    p,
		topic:       topic,
		health:      health,
		logger:      logger,
		maxAttempts: maxAttempts,
		m:           m,
	}
}

func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	if p.producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	if p.health == nil {
		return nil
	}
	return p.health(ctx)
}

// ProduceMessage делает до maxAttempts коротких попыток. Ошибки, которые повтором
// не лечатся, помечаются appers.Permanent: ledger не будет тратить на них попытки.
func (p *KafkaProducer) ProduceMessage(ctx context.Context, key string, message []byte) error {
	topic := p.topic
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic:     topic,
			Key:       sarama.StringEncoder(key),
			Value:     sarama.ByteEncoder(message),
			Timestamp: time.Now(),
		}

		t0 := time.Now()
		part, off, err := p.producer.SendMessage(msg)
		rt := time.Since(t0)

		if p.m != nil {
			res := "ok"
			if err != nil {
				res = "error"
			}
			p.m.Kafka.ProducerAttemptLatencySeconds.WithLabelValues(topic, res).Observe(rt.Seconds())
		}

		if err == nil {
			if p.m != nil {
				p.m.Kafka.ProducerOperationsTotal.WithLabelValues(topic, "success").Inc()
				p.m.Kafka.ProducerSuccessAttempts.WithLabelValues(topic).Observe(float64(attempt))
			}
			p.logger.Infof("[key %s] sent topic=%s partition=%d offset=%d attempt=%d rt=%s",
				key, topic, part, off, attempt, rt)
			return nil
		}

		lastErr = err

		var kerr sarama.KError
		if errors.As(err, &kerr) {
			if isPermanent(kerr) {
				if p.m != nil {
					p.m.Kafka.ProducerOperationsTotal.WithLabelValues(topic, "permanent").Inc()
				}
				p.logger.Errorf("[key %s] permanent kafka error attempt=%d rt=%s kafka_error=%s code=%d",
					key, attempt, rt, kerr.Error(), int16(kerr))
				return appers.Permanent(fmt.Errorf("permanent kafka error: %w", kerr))
			}
			p.logger.Warnf("[key %s] retryable kafka error attempt=%d rt=%s reason=%s",
				key, attempt, rt, ClassifyRetry(err))
		} else {
			p.logger.Warnf("[key %s] retryable non-kafka error attempt=%d rt=%s reason=%s err=%v",
				key, attempt, rt, ClassifyRetry(err), err)
		}

		if attempt == p.maxAttempts {
			break
		}

		if err := common.SleepCtx(ctx, common.NextBackoffWithJitter(attempt-1)); err != nil {
			if p.m != nil {
				p.m.Kafka.ProducerOperationsTotal.WithLabelValues(topic, "canceled").Inc()
			}
			return err
		}
	}

	if p.m != nil {
		p.m.Kafka.ProducerOperationsTotal.WithLabelValues(topic, "exhausted").Inc()
	}
	p.logger.Errorf("[key %s] produce failed after %d attempts: %v", key, p.maxAttempts, lastErr)
	return fmt.Errorf("produce failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func isPermanent(k sarama.KError) bool {
	switch k {
	case sarama.ErrTopicAuthorizationFailed,
		sarama.ErrClusterAuthorizationFailed,
		sarama.ErrInvalidRequest,
		sarama.ErrInvalidMessage,
		sarama.ErrMessageSizeTooLarge,
		sarama.ErrSASLAuthenticationFailed:
		return true
	default:
		return false
	}
}

// ClassifyRetry - короткая причина для логов.
func ClassifyRetry(err error) string {
	var k sarama.KError
	if errors.As(err, &k) {
		switch k {
		case sarama.ErrLeaderNotAvailable:
			return "leader_not_available"
		case sarama.ErrRequestTimedOut:
			return "broker_timeout"
		case sarama.ErrNotEnoughReplicas, sarama.ErrNotEnoughReplicasAfterAppend:
			return "not_enough_replicas"
		default:
			return k.Error()
		}
	}
	// context.DeadlineExceeded сам реализует net.Error с Timeout() == true, проверяем его раньше
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "client_deadline"
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return "net_timeout"
	}
	return "other"
}
