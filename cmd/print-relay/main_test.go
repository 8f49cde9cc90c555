package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

func mapLookup(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := readConfig(mapLookup(map[string]string{
		envKafkaBrokers: "kafka-1:9092, kafka-2:9092",
		envPrintBaseURL: "http://printer.local",
	}))
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}
	if len(cfg.brokers) != 2 || cfg.brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.brokers)
	}
	if cfg.topic != kafka.TopicPrintJobs {
		t.Fatalf("unexpected topic: %s", cfg.topic)
	}
	if cfg.groupID != defaultGroupID {
		t.Fatalf("unexpected group: %s", cfg.groupID)
	}
	if cfg.maxRetries != defaultMaxRetries || cfg.retryDelay != defaultRetryDelay {
		t.Fatalf("unexpected retry settings: %d %s", cfg.maxRetries, cfg.retryDelay)
	}
}

func TestReadConfig_Overrides(t *testing.T) {
	cfg, err := readConfig(mapLookup(map[string]string{
		envKafkaBrokers:   "kafka:9092",
		envPrintBaseURL:   "http://printer.local",
		envPrintTopic:     "custom.print",
		envGroupID:        "relay-2",
		envBackendTimeout: "3s",
		envMaxRetries:     "5",
		envRetryDelay:     "0s",
	}))
	if err != nil {
		t.Fatalf("readConfig failed: %v", err)
	}
	if cfg.topic != "custom.print" || cfg.groupID != "relay-2" {
		t.Fatalf("unexpected topic or group: %s %s", cfg.topic, cfg.groupID)
	}
	if cfg.timeout != 3*time.Second || cfg.maxRetries != 5 || cfg.retryDelay != 0 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestReadConfig_Errors(t *testing.T) {
	base := map[string]string{
		envKafkaBrokers: "kafka:9092",
		envPrintBaseURL: "http://printer.local",
	}
	testCases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "no brokers", key: envKafkaBrokers, val: " , ", want: envKafkaBrokers},
		{name: "no print url", key: envPrintBaseURL, val: "", want: envPrintBaseURL},
		{name: "bad timeout", key: envBackendTimeout, val: "soon", want: envBackendTimeout},
		{name: "zero retries", key: envMaxRetries, val: "0", want: envMaxRetries},
		{name: "negative delay", key: envRetryDelay, val: "-1s", want: envRetryDelay},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values := map[string]string{}
			for k, v := range base {
				values[k] = v
			}
			values[tc.key] = tc.val

			_, err := readConfig(mapLookup(values))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error about %s, got %v", tc.want, err)
			}
		})
	}
}

type stubRelay struct {
	startErr error
	started  bool
	stopped  bool
}

func (s *stubRelay) Start(context.Context) error {
	s.started = true
	return s.startErr
}

func (s *stubRelay) Stop() error {
	s.stopped = true
	return nil
}

func withRelay(t *testing.T, deps *relayDeps, err error) {
	t.Helper()

	old := newRelay
	newRelay = func(config, *log.Entry) (*relayDeps, error) { return deps, err }
	t.Cleanup(func() { newRelay = old })
}

func TestRun_StopsOnCancel(t *testing.T) {
	consumer := &stubRelay{}
	closed := false
	withRelay(t, &relayDeps{consumer: consumer, closeFn: func() error { closed = true; return nil }}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := run(ctx, config{topic: kafka.TopicPrintJobs}, log.WithField("test", "relay"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !consumer.started || !consumer.stopped {
		t.Fatalf("expected consumer to be started and stopped: %+v", consumer)
	}
	if !closed {
		t.Fatal("expected dlq producer to be closed")
	}
}

func TestRun_Errors(t *testing.T) {
	withRelay(t, nil, errors.New("no kafka"))
	if err := run(context.Background(), config{}, log.WithField("test", "relay")); err == nil {
		t.Fatal("expected init error")
	}

	withRelay(t, &relayDeps{consumer: &stubRelay{startErr: errors.New("boom")}}, nil)
	if err := run(context.Background(), config{}, log.WithField("test", "relay")); err == nil || !strings.Contains(err.Error(), "start consumer") {
		t.Fatalf("expected start error, got %v", err)
	}
}
