package di

import (
	"context"
	"fmt"
	"time"

	"OptionPulse/internal/domain/models"
	"OptionPulse/internal/domain/repository"
	domsvc "OptionPulse/internal/domain/service"
	"OptionPulse/internal/handler/api"
	mid "OptionPulse/internal/middleware"
	internalrepo "OptionPulse/internal/repository"
	icache "OptionPulse/internal/service/cache"
	"OptionPulse/internal/service/chainfeed"
	svcmetrics "OptionPulse/internal/service/metrics"
	"OptionPulse/internal/services/evaluators"
	"OptionPulse/internal/services/scorer"
	"OptionPulse/internal/usecase"
	pkgch "OptionPulse/pkg/clickhouse"
	"OptionPulse/pkg/config"
	xhttp "OptionPulse/pkg/http"
	pkgkafka "OptionPulse/pkg/kafka"
	applogger "OptionPulse/pkg/logger"
	"OptionPulse/pkg/metrics"
	"OptionPulse/pkg/queue"
	"OptionPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger() (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// signal archive schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database, "signal_events")); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
// Returns nil when consuming is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideBytesCache selects the cache backend: Redis when configured,
// process-local TTL map otherwise.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideSignalArchive creates the ClickHouse-backed signal archive.
func ProvideSignalArchive(chClient *pkgch.Client, cfg *config.Config) repository.SignalArchive {
	return internalrepo.NewClickHouseSignalArchive(chClient.DB(), cfg.ClickHouse.Database+".signal_events")
}

// ProvideDispatcher builds the dispatch gateway: Kafka always, plus the
// Redis notification queue when enabled.
func ProvideDispatcher(producer *pkgkafka.Producer, bc icache.BytesCache, lgr *applogger.Logger, cfg *config.Config) repository.Dispatcher {
	kafkaSink := internalrepo.NewKafkaEventDispatcher(producer, cfg.Kafka.SignalsTopic)

	var queueSink repository.Dispatcher
	if cfg.Notify.Enabled {
		if rc, ok := bc.(*icache.RedisCache); ok {
			opts := []queue.RedisQueueOption{}
			if cfg.Notify.KeyPrefix != "" {
				opts = append(opts, queue.WithKeyPrefix(cfg.Notify.KeyPrefix))
			}
			pub := queue.NewRedisPublisher(lgr, rc.Client(), opts...)
			queueSink = internalrepo.NewQueueDispatcher(pub, cfg.Notify.MessageType)
		}
	}

	return internalrepo.NewFanoutDispatcher(kafkaSink, queueSink)
}

// ProvideNotifyConsumer builds the in-process notification worker draining
// the Redis signal queue. Nil unless notify consuming is enabled and the
// Redis cache backend is in use.
func ProvideNotifyConsumer(cfg *config.Config, lgr *applogger.Logger, bc icache.BytesCache, m repository.Metrics) *queue.RedisQueue {
	if !cfg.Notify.Enabled || !cfg.Notify.Consume {
		return nil
	}
	rc, ok := bc.(*icache.RedisCache)
	if !ok {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Notify.Workers,
		RetryLimit: cfg.Notify.RetryLimit,
		RetryDelay: cfg.Notify.RetryDelay,
	}
	opts := []queue.RedisQueueOption{}
	if cfg.Notify.KeyPrefix != "" {
		opts = append(opts, queue.WithKeyPrefix(cfg.Notify.KeyPrefix))
	}
	job := usecase.NewSignalAlertJob(cfg.Notify.MessageType, lgr, m)
	return queue.NewRedisConsumer(lgr, qc, rc.Client(), []queue.Job{job}, opts...)
}

// ProvideEvaluatorRegistry builds the evaluator set from config weights.
func ProvideEvaluatorRegistry(cfg *config.Config) (*evaluators.Registry, error) {
	return evaluators.NewDefaultRegistry(&cfg.Engine)
}

// ProvideAggregator creates the confidence aggregator.
func ProvideAggregator(registry *evaluators.Registry) *usecase.ConfidenceAggregator {
	return usecase.NewConfidenceAggregator(registry)
}

// ProvideDirectionScorer returns the optional learned scorer, or nil.
func ProvideDirectionScorer(cfg *config.Config) domsvc.DirectionScorer {
	if !cfg.Scorer.Enabled {
		return nil
	}
	return scorer.NewHTTPDirectionScorer(cfg)
}

// ProvideSignalEngine creates the decision engine.
func ProvideSignalEngine(
	cfg *config.Config,
	aggregator *usecase.ConfidenceAggregator,
	dispatcher repository.Dispatcher,
	archive repository.SignalArchive,
	m repository.Metrics,
	lgr *applogger.Logger,
	ds domsvc.DirectionScorer,
) (*usecase.SignalEngine, error) {
	var opts []usecase.EngineOption
	if ds != nil {
		opts = append(opts, usecase.WithScorer(ds, cfg.Scorer.MinProba))
	}
	return usecase.NewSignalEngine(&cfg.Engine, aggregator, dispatcher, archive, m, lgr, opts...)
}

// engineRunner adapts the engine to the scheduler's runner interface.
type engineRunner struct {
	eng *usecase.SignalEngine
}

func (r engineRunner) RunCycle(ctx context.Context, snaps []models.IndicatorSnapshot) error {
	_, err := r.eng.RunCycle(ctx, snaps)
	return err
}

// ProvideCycleScheduler creates the tick-driven scheduler.
func ProvideCycleScheduler(eng *usecase.SignalEngine, m repository.Metrics, cfg *config.Config) (*mid.CycleScheduler, error) {
	opts := []mid.SchedulerOption{}
	if cfg.Scheduler.MarketHours.Enabled {
		gate, err := mid.NewMarketHoursGate(cfg.Scheduler.MarketHours.Start, cfg.Scheduler.MarketHours.End, time.Local)
		if err != nil {
			return nil, fmt.Errorf("market hours: %w", err)
		}
		opts = append(opts, mid.WithMarketHours(gate))
	}
	return mid.NewCycleScheduler(engineRunner{eng: eng}, m, cfg.Scheduler.MonitoringInterval, opts...), nil
}

// ProvideSnapshotStream creates the chain-feed WebSocket stream.
func ProvideSnapshotStream(cfg *config.Config) repository.SnapshotStream {
	return chainfeed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.StrikeStep,
		cfg.Feed.StrikeWindow,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideSnapshotCollector creates the snapshot collector.
func ProvideSnapshotCollector(stream repository.SnapshotStream, scheduler *mid.CycleScheduler, m repository.Metrics) *usecase.SnapshotCollector {
	return usecase.NewSnapshotCollector(stream, scheduler, m)
}

// ProvideKafkaSnapshotsHandler registers the snapshots-topic handler.
func ProvideKafkaSnapshotsHandler(scheduler *mid.CycleScheduler, m repository.Metrics, cfg *config.Config) *usecase.KafkaSnapshotsHandler {
	return usecase.NewKafkaSnapshotsHandler(cfg.Kafka.SnapshotsTopic, scheduler, m)
}

// ProvideSignalQueries creates the read-only query use case.
func ProvideSignalQueries(eng *usecase.SignalEngine, archive repository.SignalArchive, bc icache.BytesCache, cfg *config.Config) *usecase.SignalQueryUseCase {
	return usecase.NewSignalQueryUseCase(eng, archive, bc, cfg)
}

// ProvideHTTPHandler creates the Echo handler for the query API.
func ProvideHTTPHandler(lgr *applogger.Logger, queries *usecase.SignalQueryUseCase) xhttp.Handler {
	return api.NewSignalsEchoHandler(lgr, queries)
}

// kafkaLogPublisher lets the log collector flush aggregated entries
// through the shared Kafka producer.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSnapshotsHandler,
	notifyConsumer *queue.RedisQueue,
	chClient *pkgch.Client,
	eng *usecase.SignalEngine,
	httpHandler xhttp.Handler,
) *server.App {
	if cfg.Kafka.LogsTopic != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogPublisher{producer: producer},
		})
	}
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	var mh pkgkafka.MessageHandler
	if consumer != nil {
		mh = kh
	}
	return server.New(cfg, lgr, collector, consumer, mh, notifyConsumer, chClient, eng, httpHandler)
}
