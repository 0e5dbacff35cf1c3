package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/im-subhadeep/Xeno-Assignment/internal/config"
	gateway "github.com/im-subhadeep/Xeno-Assignment/internal/gateways"
	"github.com/im-subhadeep/Xeno-Assignment/internal/processor"
	"github.com/im-subhadeep/Xeno-Assignment/internal/pubsub"
	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
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

	vendorClient, err := gateway.NewClient(gateway.Config{
		SendURL:     config.Get().VendorSendURL,
		CallbackURL: config.Get().VendorCallbackURL,
		Timeout:     config.Get().VendorTimeout,
	})
	if err != nil {
		logger.Error("failed to create vendor client", "error", err)
		return
	}

	campaignRepo := repository.NewCampaignRepository(db)
	logRepo := repository.NewCommunicationLogRepository(db)
	broker := pubsub.NewBroker(redisAdap)

	deliveryWorker, err := processor.NewProcessorService(redisAdap, processor.WorkerConfig{
		Queue: queue.QueueConfig{
			Name:           config.Get().DeliveryQueueName,
			ConsumerGroup:  config.Get().QueueConsumerGroup,
			ConsumerName:   config.Get().QueueConsumerName,
			Retry:          queue.DeliveryRetryPolicy(),
			KeepCompleted:  config.Get().DeliveryKeepCompleted,
			KeepFailed:     config.Get().DeliveryKeepFailed,
			PollInterval:   config.Get().QueuePollInterval,
			ProcessTimeout: config.Get().QueueProcessTimeout,
		},
		Concurrency: config.Get().DeliveryConcurrency,
	})
	if err != nil {
		logger.Error("failed to create delivery worker", "error", err)
		return
	}
	deliveryWorker.RegisterProcessor(processor.NewDeliveryProcessor(logRepo, campaignRepo, vendorClient, broker))

	batchWorker, err := processor.NewProcessorService(redisAdap, processor.WorkerConfig{
		Queue: queue.QueueConfig{
			Name:           config.Get().BatchQueueName,
			ConsumerGroup:  config.Get().QueueConsumerGroup,
			ConsumerName:   config.Get().QueueConsumerName,
			Retry:          queue.BatchRetryPolicy(),
			KeepCompleted:  config.Get().BatchKeepCompleted,
			KeepFailed:     config.Get().BatchKeepFailed,
			PollInterval:   config.Get().QueuePollInterval,
			ProcessTimeout: config.Get().QueueProcessTimeout,
		},
		Concurrency: config.Get().BatchConcurrency,
	})
	if err != nil {
		logger.Error("failed to create batch worker", "error", err)
		return
	}
	batchWorker.RegisterProcessor(processor.NewBatchProcessor(broker))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	if err := deliveryWorker.Start(); err != nil {
		logger.Error("failed to start delivery worker", "error", err)
		return
	}
	if err := batchWorker.Start(); err != nil {
		logger.Error("failed to start batch worker", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	deliveryWorker.Stop()
	batchWorker.Stop()
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
