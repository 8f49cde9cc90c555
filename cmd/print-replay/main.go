// Command print-replay возвращает задания печати из DLQ обратно в topic печати.
// По умолчанию работает в dry-run и только показывает, что будет переотправлено.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

var errNotPrintJob = errors.New("dlq entry is not a print job")

type config struct {
	brokers     []string
	dlqTopic    string
	printTopic  string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// dlqEntry повторяет запись, которую consumer кладёт в DLQ.
type dlqEntry struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
	ErrorMessage  string `json:"error_message"`
}

type printReplay struct {
	orderID string
	value   []byte
	reason  string
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s saramaSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

var newKafkaDeps = func(cfg config) (offsetClient, partitionSource, replayProducer, error) {
	clientConfig := sarama.NewConfig()
	clientConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, clientConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	source := saramaSource{consumer: consumer}
	if !cfg.execute {
		return client, source, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = source.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return client, source, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}
	if err := run(context.Background(), cfg); err != nil {
		fail("print replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.dlqTopic, "dlq-topic", kafka.TopicDeadLetterQueue, "dead letter topic to scan")
	flag.StringVar(&cfg.printTopic, "print-topic", kafka.TopicPrintJobs, "print jobs topic to replay into")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of dlq entries to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "publish replayed jobs; default is dry-run")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the latest entries (bounded by limit)")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	for _, broker := range strings.Split(brokersRaw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}

	switch {
	case len(cfg.brokers) == 0:
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case strings.TrimSpace(cfg.dlqTopic) == "":
		return config{}, errors.New("dlq-topic is required")
	case strings.TrimSpace(cfg.printTopic) == "":
		return config{}, errors.New("print-topic is required")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config) error {
	client, source, producer, err := newKafkaDeps(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if source != nil {
			_ = source.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	r := &replayer{cfg: cfg, client: client, source: source, producer: producer}
	return r.run(ctx)
}

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

type replayer struct {
	cfg      config
	client   offsetClient
	source   partitionSource
	producer replayProducer
	stats    replayStats
}

func (r *replayer) run(ctx context.Context) error {
	if r.client == nil || r.source == nil {
		return errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.producer == nil {
		return errors.New("producer is required in execute mode")
	}

	logger := log.WithFields(log.Fields{
		"dlq_topic":   r.cfg.dlqTopic,
		"print_topic": r.cfg.printTopic,
		"execute":     r.cfg.execute,
	})
	logger.Info("scanning dlq for print jobs")

	partitions, err := r.client.Partitions(r.cfg.dlqTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", r.cfg.dlqTopic, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		if r.stats.scanned >= r.cfg.limit {
			break
		}
		if err := r.replayPartition(ctx, partition); err != nil {
			return err
		}
	}

	logger.WithFields(log.Fields{
		"scanned":  r.stats.scanned,
		"replayed": r.stats.replayed,
		"skipped":  r.stats.skipped,
	}).Info("print replay finished")
	return nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32) error {
	oldest, err := r.client.GetOffset(r.cfg.dlqTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.cfg.dlqTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	budget := r.cfg.limit - r.stats.scanned
	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(budget), oldest)
	}

	pc, err := r.source.ConsumePartition(r.cfg.dlqTopic, partition, start)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for r.stats.scanned < r.cfg.limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case consumeErr := <-pc.Errors():
			if consumeErr != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, consumeErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			idle.Reset(r.cfg.idleTimeout)

			if err := r.handle(msg); err != nil {
				return err
			}
			if msg.Offset+1 >= newest {
				return nil
			}
		}
	}
	return nil
}

func (r *replayer) handle(msg *sarama.ConsumerMessage) error {
	r.stats.scanned++
	entryLog := log.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, err := extractPrintJob(msg, r.cfg.printTopic)
	if err != nil {
		r.stats.skipped++
		entryLog.WithError(err).Warn("skip dlq entry")
		return nil
	}
	entryLog = entryLog.WithFields(log.Fields{"order_id": replay.orderID, "reason": replay.reason})

	if !r.cfg.execute {
		r.stats.replayed++
		entryLog.Info("print job replay candidate")
		return nil
	}

	_, _, err = r.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     r.cfg.printTopic,
		Key:       sarama.StringEncoder(replay.orderID),
		Value:     sarama.ByteEncoder(replay.value),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish print job %s: %w", replay.orderID, err)
	}
	r.stats.replayed++
	entryLog.Info("print job replayed")
	return nil
}

// extractPrintJob достаёт задание печати из записи DLQ. Записи других topic и
// задания, которые не разбираются, не переотправляются.
func extractPrintJob(msg *sarama.ConsumerMessage, printTopic string) (printReplay, error) {
	var entry dlqEntry
	if err := json.Unmarshal(msg.Value, &entry); err != nil || entry.OriginalValue == "" {
		return printReplay{}, errNotPrintJob
	}
	if topic := strings.TrimSpace(entry.OriginalTopic); topic != "" && topic != printTopic {
		return printReplay{}, fmt.Errorf("%w: original topic %s", errNotPrintJob, topic)
	}

	value := []byte(entry.OriginalValue)
	job, err := kafka.ParsePrintJob(&sarama.ConsumerMessage{Value: value})
	if err != nil {
		return printReplay{}, fmt.Errorf("broken print job: %w", err)
	}
	return printReplay{orderID: job.OrderID, value: value, reason: entry.ErrorMessage}, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
