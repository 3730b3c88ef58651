package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       Server      `mapstructure:"server"`
	Postgres     Postgres    `mapstructure:"postgres"`
	Broker       Broker      `mapstructure:"broker"`
	DocStore     DocStore    `mapstructure:"docstore"`
	Cron         Cron        `mapstructure:"cron"`
	Relay        RelayConfig `mapstructure:"relay"`
	Tracker      Tracker     `mapstructure:"tracker"`
	HTTPClient   HTTPClient  `mapstructure:"httpClient"`
	LoggingLevel string      `mapstructure:"logging-level"`
}

type Server struct {
	Port          string `mapstructure:"port"`
	SwaggerUrl    string `mapstructure:"swagger_json"`
	SwaggerHost   string `mapstructure:"swagger_host"`
	SwaggerSchema string `mapstructure:"swagger_schema"`
	BodyLimit     int    `mapstructure:"body_limit"`
}

type Postgres struct {
	ConnString      string        `mapstructure:"conn_string"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	SkipMigrations  bool          `mapstructure:"skip_migrations"` // миграции катит отдельный job
}

type Broker struct {
	Kafka Kafka `mapstructure:"kafka"`
}

type Kafka struct {
	Brokers       string `mapstructure:"brokers"`
	ReaderTopic   string `mapstructure:"readerTopic"`
	ReaderUsr     string `mapstructure:"readerUsr"`
	ReaderUsrPwd  string `mapstructure:"readerUsrPwd"`
	WriterTopic   string `mapstructure:"writerTopic"`
	WriterUsr     string `mapstructure:"writerUsr"`
	WriterUsrPwd  string `mapstructure:"writerUsrPwd"`
	ConsumerGroup string `mapstructure:"consumerGroup"`
	MaxAttempts   int    `mapstructure:"maxAttempts"`
}

// DocStore выбирает внешнее хранилище документов, в которое реплицируется ledger.
type DocStore struct {
	Driver    string    `mapstructure:"driver"` // typesense | http
	Typesense Typesense `mapstructure:"typesense"`
	BaseURL   string    `mapstructure:"baseURL"` // для driver=http: PUT {baseURL}/{collection}/{id}
	APIKey    string    `mapstructure:"apiKey"`
}

type Typesense struct {
	Hosts             string        `mapstructure:"hosts"`
	APIKey            string        `mapstructure:"apiKey"`
	ConnectionTimeout time.Duration `mapstructure:"connectionTimeout"`
	EnsureTimeout     time.Duration `mapstructure:"ensureTimeout"` // сколько ждём коллекции на старте
}

type Cron struct {
	DispatchSchedule string `mapstructure:"dispatchSchedule"` // "@every 5s"
	ReclaimSchedule  string `mapstructure:"reclaimSchedule"`  // "@every 1m"
	PurgeSchedule    string `mapstructure:"purgeSchedule"`    // "0 0 3 * * *" - каждый день в 03:00
	RetentionDays    int    `mapstructure:"retentionDays"`    // 0 - не удаляем completed строки
}

type RelayConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queueSize"`
	BatchSize      int           `mapstructure:"batchSize"`
	MaxAttempts    int           `mapstructure:"maxAttempts"`
	ProcessTimeout time.Duration `mapstructure:"processTimeout"`
	StaleAfter     time.Duration `mapstructure:"staleAfter"`
}

type Tracker struct {
	MaxAttempts int `mapstructure:"maxAttempts"`
}

type HTTPClient struct {
	//конфиг клиента
	ConnectTimeout        time.Duration `mapstructure:"connectTimeout"`        // TCP коннект
	TLSHandshakeTimeout   time.Duration `mapstructure:"TLSHandshakeTimeout"`   // TLS рукопожатие
	ResponseHeaderTimeout time.Duration `mapstructure:"responseHeaderTimeout"` // ожидание заголовков ответа
	ExpectContinueTimeout time.Duration `mapstructure:"expectContinueTimeout"` // 100-continue

	// Пул соединений
	IdleConnTimeout     time.Duration `mapstructure:"idleConnTimeout"`
	MaxIdleConns        int           `mapstructure:"maxIdleConns"`
	MaxIdleConnsPerHost int           `mapstructure:"maxIdleConnsPerHost"`
	MaxConnsPerHost     int           `mapstructure:"maxConnsPerHost"`
	KeepAlives          bool          `mapstructure:"keepAlives"`

	// Общий таймаут клиента. 0 - контролируем дедлайном через context.
	ClientTimeout time.Duration `mapstructure:"clientTimeout"`

	// Прочее
	UserAgent  string `mapstructure:"userAgent"`
	MaxRetries int    `mapstructure:"maxRetries"`

	// SSL/TLS настройки
	InsecureSkipVerify bool `mapstructure:"insecureSkipVerify"` // отключить проверку SSL сертификатов
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("postgres.max_connections", 12)
	v.SetDefault("postgres.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("postgres.migrations_dir", "resources/migrations")
	v.SetDefault("broker.kafka.maxAttempts", 3)
	v.SetDefault("broker.kafka.consumerGroup", "marketplace-sync")

	v.SetDefault("docstore.driver", "typesense")
	v.SetDefault("docstore.typesense.connectionTimeout", 5*time.Second)
	v.SetDefault("docstore.typesense.ensureTimeout", time.Minute)

	v.SetDefault("cron.dispatchSchedule", "@every 5s")
	v.SetDefault("cron.reclaimSchedule", "@every 1m")
	v.SetDefault("cron.purgeSchedule", "0 0 3 * * *")
	v.SetDefault("cron.retentionDays", 0)

	v.SetDefault("relay.workers", 8)
	v.SetDefault("relay.queueSize", 16)
	v.SetDefault("relay.batchSize", 100)
	v.SetDefault("relay.maxAttempts", 5)
	v.SetDefault("relay.processTimeout", 30*time.Second)
	v.SetDefault("relay.staleAfter", 10*time.Minute)

	v.SetDefault("tracker.maxAttempts", 5)

	v.SetDefault("httpClient.connectTimeout", 3*time.Second)
	v.SetDefault("httpClient.responseHeaderTimeout", 10*time.Second)
	v.SetDefault("httpClient.maxIdleConns", 100)
	v.SetDefault("httpClient.maxIdleConnsPerHost", 10)
	v.SetDefault("httpClient.keepAlives", true)
	v.SetDefault("httpClient.maxRetries", 1)
	v.SetDefault("httpClient.userAgent", "marketplace-sync")

	v.SetDefault("logging-level", "info")
}

func NewConfig() (Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, path string) (Config, error) {
	v.AutomaticEnv()
	// Настраиваем замену точек и дефисов на подчеркивания для переменных окружения
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(path)
	setDefaults(v)

	var conf Config
	err := v.ReadInConfig()
	// Игнорируем ошибку, если файл не найден - используем только переменные окружения
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return conf, err
		}
	}

	if err = v.Unmarshal(&conf); err != nil {
		return conf, err
	}
	conf.fitPostgresPool()

	return conf, nil
}

// каждый воркер relay держит соединение на complete/fail, сверху запас на dispatcher, HTTP API и cron
const postgresConnHeadroom = 4

// fitPostgresPool поднимает max_connections, если пул БД меньше пула воркеров relay.
func (c *Config) fitPostgresPool() {
	need := int32(c.Relay.Workers + postgresConnHeadroom)
	if c.Postgres.MaxConnections < need {
		c.Postgres.MaxConnections = need
	}
}
