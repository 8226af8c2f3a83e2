package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const DefaultTopic = "cart-notifications"

// one event per call; the kafka-go default of 1s would hold every Notify
const writerBatchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every outcome as a JSON event keyed by product id,
// so events for the same product stay ordered within a partition.
type KafkaSink struct {
	timeout time.Duration
	writer  messageWriter
	log     logrus.FieldLogger
	now     func() time.Time
}

type event struct {
	EventID    string    `json:"event_id"`
	Op         string    `json:"op"`
	ProductID  int64     `json:"product_id"`
	Amount     int       `json:"amount,omitempty"`
	Success    bool      `json:"success"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewKafkaSink(topic string, log logrus.FieldLogger, brokers ...string) *KafkaSink {
	return newKafkaSink(newKafkaWriter(topic, brokers...), log)
}

func newKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           writerBatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

func newKafkaSink(w messageWriter, log logrus.FieldLogger) *KafkaSink {
	return &KafkaSink{
		timeout: 5 * time.Second,
		writer:  w,
		log:     log,
		now:     time.Now,
	}
}

// Notify never fails the mutation; publish errors are logged.
func (k *KafkaSink) Notify(ctx context.Context, o Outcome) {
	ev := event{
		EventID:    uuid.New().String(),
		Op:         o.Op,
		ProductID:  o.ProductID,
		Amount:     o.Amount,
		Success:    o.Success(),
		ErrorKind:  o.Kind,
		Message:    o.Message,
		OccurredAt: k.now().UTC(),
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		k.log.WithError(err).Error("failed to marshal cart notification")
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(o.ProductID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("cart." + o.Op)},
		},
	}

	// detached from the request context so a cancelled caller still gets its event out
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.WithError(err).WithField("event_id", ev.EventID).Error("failed to publish cart notification")
	}
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
