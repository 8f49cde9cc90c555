package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromClient(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event CheckoutEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.OrderID != "order-123" || event.EventType != EventTypeOrderCreated {
			t.Errorf("unexpected event on the wire: %+v", event)
		}
		return nil
	})

	event := NewCheckoutEvent(EventTypeOrderCreated, "order-123", map[string]interface{}{
		"payment_method": "CASH",
	})

	if err := producer.PublishEvent(TopicCheckoutEvents, "order-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_KeyAndHeaders(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromClient(mockProducer, nil)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicPrintJobs {
			t.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-77" {
			t.Errorf("message must be keyed by order id, got %q", key)
		}
		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		if headers[HeaderContentType] != "application/json" {
			t.Errorf("unexpected content type %q", headers[HeaderContentType])
		}
		if headers[HeaderProducer] != "storefront-bff/dev" {
			t.Errorf("unexpected producer tag %q", headers[HeaderProducer])
		}
		return nil
	})

	if err := producer.PublishEvent(TopicPrintJobs, "order-77", map[string]string{"orderId": "order-77"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromClient(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewCheckoutEvent(EventTypePartialFailure, "order-123", nil)
	if err := producer.PublishEvent(TopicCheckoutEvents, "order-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromClient(mockProducer, nil)

	if err := producer.PublishEvent(TopicCheckoutEvents, "k", map[string]interface{}{"bad": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewProducerError(t *testing.T) {
	if _, err := NewProducer([]string{"invalid-broker:9092"}, nil); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}

func TestNewCheckoutEvent(t *testing.T) {
	orderID := "order-123"
	metadata := map[string]interface{}{
		"stage": "print_job",
	}

	event := NewCheckoutEvent(EventTypePartialFailure, orderID, metadata)

	if event.EventType != EventTypePartialFailure {
		t.Errorf("expected event type %s, got %s", EventTypePartialFailure, event.EventType)
	}
	if event.OrderID != orderID {
		t.Errorf("expected order id %s, got %s", orderID, event.OrderID)
	}
	if event.Metadata["stage"] != "print_job" {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}
