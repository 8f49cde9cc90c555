package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// PrintJobPublisher ставит задания печати в Kafka topic; ключом сообщения служит id заказа,
// поэтому задания одного заказа попадают в одну партицию по порядку.
type PrintJobPublisher struct {
	producer *Producer
	topic    string
}

// NewPrintJobPublisher создаёт Kafka-реализацию PrintJobSink.
func NewPrintJobPublisher(producer *Producer, topic string) *PrintJobPublisher {
	if topic == "" {
		topic = TopicPrintJobs
	}
	return &PrintJobPublisher{
		producer: producer,
		topic:    topic,
	}
}

type printEnvelope struct {
	domain.PrintJob
	PublishedAt time.Time `json:"publishedAt"`
}

// Submit публикует задание печати.
func (p *PrintJobPublisher) Submit(ctx context.Context, job domain.PrintJob) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka print job publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.OrderID == "" {
		return domain.ErrOrderIDRequired
	}

	return p.producer.PublishEvent(p.topic, job.OrderID, printEnvelope{
		PrintJob:    job,
		PublishedAt: time.Now().UTC(),
	})
}

// ParsePrintJob разбирает задание печати из сообщения.
func ParsePrintJob(message *sarama.ConsumerMessage) (domain.PrintJob, error) {
	var envelope printEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return domain.PrintJob{}, fmt.Errorf("failed to unmarshal print job: %w", err)
	}
	if envelope.OrderID == "" {
		return domain.PrintJob{}, domain.ErrOrderIDRequired
	}
	return envelope.PrintJob, nil
}

// ParseCheckoutEvent парсит CheckoutEvent из сообщения
func ParseCheckoutEvent(message *sarama.ConsumerMessage) (*CheckoutEvent, error) {
	var event CheckoutEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout event: %w", err)
	}
	return &event, nil
}

var _ domain.PrintJobSink = (*PrintJobPublisher)(nil)
