package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/config"
	"github.com/im-subhadeep/Xeno-Assignment/internal/handlers"
	"github.com/im-subhadeep/Xeno-Assignment/internal/pubsub"
	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
	"github.com/im-subhadeep/Xeno-Assignment/internal/services"
	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/prom"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/redis"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	defer logger.Sync()

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := config.Get().AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	if err := repository.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	deliveryQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:           config.Get().DeliveryQueueName,
		ConsumerGroup:  config.Get().QueueConsumerGroup,
		ConsumerName:   config.Get().QueueConsumerName,
		Retry:          queue.DeliveryRetryPolicy(),
		KeepCompleted:  config.Get().DeliveryKeepCompleted,
		KeepFailed:     config.Get().DeliveryKeepFailed,
		PollInterval:   config.Get().QueuePollInterval,
		ProcessTimeout: config.Get().QueueProcessTimeout,
	})
	if err != nil {
		logger.Error("failed creating delivery queue", "error", err)
		return
	}
	batchQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:           config.Get().BatchQueueName,
		ConsumerGroup:  config.Get().QueueConsumerGroup,
		ConsumerName:   config.Get().QueueConsumerName,
		Retry:          queue.BatchRetryPolicy(),
		KeepCompleted:  config.Get().BatchKeepCompleted,
		KeepFailed:     config.Get().BatchKeepFailed,
		PollInterval:   config.Get().QueuePollInterval,
		ProcessTimeout: config.Get().QueueProcessTimeout,
	})
	if err != nil {
		logger.Error("failed creating batch queue", "error", err)
		return
	}

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	logRepo := repository.NewCommunicationLogRepository(db)

	broker := pubsub.NewBroker(redisAdap)
	subscriber := pubsub.NewSubscriber(redisAdap)

	deliveryService := services.NewDeliveryService(campaignRepo, logRepo, customerRepo, deliveryQueue, batchQueue, broker)
	receiptService := services.NewReceiptService(logRepo, campaignRepo, broker)
	campaignService := services.NewCampaignService(campaignRepo, customerRepo)

	auth := xhttp.APIKeyMiddleware(config.Get().APIKey)

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, handlers.NewCampaignHandler(deliveryService, campaignService), auth)
	handlers.RegisterWebhookRoutes(g, handlers.NewWebhookHandler(receiptService))
	handlers.RegisterQueueRoutes(g, handlers.NewQueueHandler(deliveryQueue, batchQueue), auth)
	handlers.RegisterRealtimeRoutes(g, handlers.NewRealtimeHandler(subscriber))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(config.Get().HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	if err := subscriber.Close(); err != nil {
		logger.Error("error closing subscriber", "error", err)
	}
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
