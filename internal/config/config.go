package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
)

var config *Config

// Config holds every env-driven setting for the delivery core. Only
// this struct should be consulted for configuration; no direct env
// reads elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=campaign_delivery"`
	AppDebug bool   `env:"APP_DEBUG,default=true"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	APIKey string `env:"API_KEY"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE,default=campaign_delivery"`

	DeliveryQueueName     string        `env:"DELIVERY_QUEUE_NAME,default=campaign-delivery"`
	BatchQueueName        string        `env:"BATCH_QUEUE_NAME,default=batch-processing"`
	QueueConsumerGroup    string        `env:"QUEUE_CONSUMER_GROUP,default=delivery-workers"`
	QueueConsumerName     string        `env:"QUEUE_CONSUMER_NAME,default=worker"`
	QueuePollInterval     time.Duration `env:"QUEUE_POLL_INTERVAL,default=100ms"`
	QueueProcessTimeout   time.Duration `env:"QUEUE_PROCESS_TIMEOUT,default=30s"`
	DeliveryConcurrency   int           `env:"DELIVERY_CONCURRENCY,default=5"`
	BatchConcurrency      int           `env:"BATCH_CONCURRENCY,default=2"`
	DeliveryKeepCompleted int64         `env:"DELIVERY_KEEP_COMPLETED,default=100"`
	DeliveryKeepFailed    int64         `env:"DELIVERY_KEEP_FAILED,default=50"`
	BatchKeepCompleted    int64         `env:"BATCH_KEEP_COMPLETED,default=50"`
	BatchKeepFailed       int64         `env:"BATCH_KEEP_FAILED,default=25"`

	VendorSendURL     string        `env:"VENDOR_SEND_URL,default=http://localhost:9090/api/v1/vendor/send"`
	VendorCallbackURL string        `env:"VENDOR_CALLBACK_URL,default=http://localhost:8080/api/v1/webhooks/delivery-receipts"`
	VendorTimeout     time.Duration `env:"VENDOR_TIMEOUT,default=10s"`

	VendorListenAddr  string  `env:"VENDOR_LISTEN_ADDR,default=:9090"`
	VendorSuccessRate float64 `env:"VENDOR_SUCCESS_RATE,default=0.9"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
