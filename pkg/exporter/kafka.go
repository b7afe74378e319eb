package exporter

import (
	"context"

	"github.com/hyp3rd/ewrap"
	"github.com/segmentio/kafka-go"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/otlplog/pkg/config"
)

// KafkaWriter is the subset of *kafka.Writer used by the Kafka transport.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaTransport publishes each serialized export request as one message.
// Consumers read OTLP protobuf payloads, as an OTLP collector's kafka receiver does.
type kafkaTransport struct {
	writer  KafkaWriter
	headers []kafka.Header
	timeout timeoutFunc
}

func newKafkaTransport(cfg config.ExporterConfig, headers map[string]string, writer KafkaWriter) *kafkaTransport {
	if writer == nil {
		w := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.Kafka.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		}
		if cfg.Compression == "gzip" {
			w.Compression = kafka.Gzip
		}

		writer = w
	}

	msgHeaders := make([]kafka.Header, 0, len(headers)+1)
	msgHeaders = append(msgHeaders, kafka.Header{Key: "content-type", Value: []byte(contentTypeProtobuf)})

	for k, v := range headers {
		msgHeaders = append(msgHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	return &kafkaTransport{
		writer:  writer,
		headers: msgHeaders,
		timeout: withTimeout(cfg.Timeout),
	}
}

func (*kafkaTransport) name() string { return config.TransportKafka }

func (t *kafkaTransport) send(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (int64, error) {
	payload, err := proto.Marshal(req)
	if err != nil {
		return 0, ewrap.Wrap(err, "marshal export request")
	}

	ctx, cancel := t.timeout(ctx)
	defer cancel()

	err = t.writer.WriteMessages(ctx, kafka.Message{Value: payload, Headers: t.headers})
	if err != nil {
		return 0, ewrap.Wrap(err, "publish export request to kafka")
	}

	return 0, nil
}

func (t *kafkaTransport) shutdown(context.Context) error {
	err := t.writer.Close()
	if err != nil {
		return ewrap.Wrap(err, "close kafka writer")
	}

	return nil
}
