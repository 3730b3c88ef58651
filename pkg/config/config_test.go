package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", conf.Server.Port)
	assert.Equal(t, "typesense", conf.DocStore.Driver)
	assert.Equal(t, "marketplace-sync", conf.Broker.Kafka.ConsumerGroup)
	assert.Equal(t, 8, conf.Relay.Workers)
	assert.Equal(t, int32(12), conf.Postgres.MaxConnections)
	assert.Equal(t, 16, conf.Relay.QueueSize)
	assert.Equal(t, 5, conf.Relay.MaxAttempts)
	assert.Equal(t, 30*time.Second, conf.Relay.ProcessTimeout)
	assert.Equal(t, 10*time.Minute, conf.Relay.StaleAfter)
	assert.Equal(t, "@every 5s", conf.Cron.DispatchSchedule)
	assert.Zero(t, conf.Cron.RetentionDays)
	assert.Equal(t, "info", conf.LoggingLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_WORKERS", "3")
	t.Setenv("RELAY_STALEAFTER", "2m")
	t.Setenv("DOCSTORE_DRIVER", "http")
	t.Setenv("BROKER_KAFKA_CONSUMERGROUP", "sync-test")
	t.Setenv("CRON_RETENTIONDAYS", "14")
	t.Setenv("LOGGING_LEVEL", "debug")

	conf, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, conf.Relay.Workers)
	assert.Equal(t, 2*time.Minute, conf.Relay.StaleAfter)
	assert.Equal(t, "http", conf.DocStore.Driver)
	assert.Equal(t, "sync-test", conf.Broker.Kafka.ConsumerGroup)
	assert.Equal(t, 14, conf.Cron.RetentionDays)
	assert.Equal(t, "debug", conf.LoggingLevel)
}

func TestPostgresPoolCoversRelayWorkers(t *testing.T) {
	t.Setenv("RELAY_WORKERS", "20")
	t.Setenv("POSTGRES_MAX_CONNECTIONS", "5")

	conf, err := load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int32(20+postgresConnHeadroom), conf.Postgres.MaxConnections)

	t.Setenv("POSTGRES_MAX_CONNECTIONS", "50")
	conf, err = load(viper.New(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int32(50), conf.Postgres.MaxConnections, "explicit larger pool is kept")
}
