package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/prom"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/redis"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/worker"
)

const ShutdownTimeout = time.Minute

// Processor handles one kind of queued job.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// WorkerConfig binds a queue to its consumer ceiling. Concurrency is
// enforced here, by how many consumers feed the pool, not by the
// processors themselves.
type WorkerConfig struct {
	Queue       queue.QueueConfig
	Concurrency int
}

// ProcessorService drains one queue through a bounded worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	config    WorkerConfig
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	log       logger.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewProcessorService(adapter redis.RedisAdapter, config WorkerConfig) (*ProcessorService, error) {
	if config.Concurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter: adapter,
		config:  config,
		queues:  make([]*queue.Queue, 0, config.Concurrency),
		metrics: NewServiceMetrics(),
		worker:  worker.NewWorkerManager(config.Concurrency*4, config.Concurrency, nil),
		log:     logger.With("queue", config.Queue.Name),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	s.log.Info("registered processor", "type", processor.GetType())
}

// Start spins up the worker pool and one queue consumer per slot.
func (s *ProcessorService) Start() error {
	if s.processor == nil {
		return fmt.Errorf("no processor registered")
	}

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			s.log.Error("worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < s.config.Concurrency; i++ {
		queueConfig := s.config.Queue
		queueConfig.ConsumerName = fmt.Sprintf("%s-slot-%d", queueConfig.ConsumerName, i)
		queueConfig.BatchSize = 1

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.log.Info("processor service started",
		"type", s.processor.GetType(),
		"concurrency", s.config.Concurrency)
	return nil
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands a delivered job to the pool and waits for its
// verdict, so each queue consumer keeps at most one job in flight.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	job := &jobResult{
		msg:        msg,
		resultChan: make(chan error, 1),
		ctx:        ctx,
	}

	s.worker.Enqueue(job)

	select {
	case err := <-job.resultChan:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", ctx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		s.log.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-jobRes.ctx.Done():
		return
	default:
	}

	start := time.Now()
	err := s.processor.Process(jobRes.ctx, jobRes.msg)
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordFailure()
		prom.IncJobProcessed(s.config.Queue.Name, "failed")
		s.log.Error("job processing failed",
			"worker", workerIndex, "job", jobRes.msg.ID,
			"attempt", jobRes.msg.Attempts, "error", err)
	} else {
		s.metrics.RecordSuccess(duration)
		prom.IncJobProcessed(s.config.Queue.Name, "completed")
		prom.ObserveJobDuration(s.config.Queue.Name, duration.Seconds())
	}

	select {
	case jobRes.resultChan <- err:
	case <-jobRes.ctx.Done():
	}
}

// Stats reports processing totals since startup.
func (s *ProcessorService) Stats() map[string]interface{} {
	return s.metrics.GetStats()
}

// Stop drains consumers and shuts the pool down.
func (s *ProcessorService) Stop() {
	s.cancel()

	stopChan := make(chan bool, len(s.queues))
	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(ShutdownTimeout); err != nil {
				s.log.Error("error stopping queue consumer", "consumer", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}
	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(ShutdownTimeout + 5*time.Second):
			s.log.Warn("timeout waiting for queue consumers to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()

	stats := s.metrics.GetStats()
	s.log.Info("processor service stopped",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"])
}
