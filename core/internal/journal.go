package internal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"go.opentelemetry.io/otel/attribute"
)

// MessageWriter es la parte de *kafka.Writer que usa el journal.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// JournalRecord es el valor publicado por cada entrega.
type JournalRecord struct {
	Source     string                 `json:"source"`
	Recipients []string               `json:"recipients"`
	Message    domain.OutgoingMessage `json:"message"`
	AtMs       int64                  `json:"at_ms"`
}

// Journal decora un Presenter publicando cada entrega en Kafka.
//
// La entrega ocurre primero. Un fallo del journal se loguea y no se propaga.
type Journal struct {
	next      Presenter
	writer    MessageWriter
	telemetry *telemetry.Client
	metrics   *metricbundle.EchoMetrics
}

// NewJournal crea el decorador.
func NewJournal(next Presenter, writer MessageWriter, tel *telemetry.Client, metrics *metricbundle.EchoMetrics) *Journal {
	return &Journal{
		next:      next,
		writer:    writer,
		telemetry: tel,
		metrics:   metrics,
	}
}

// NewKafkaWriter crea un writer asíncrono: WriteMessages no espera al broker
// y los errores de cada batch se reportan por Completion.
func NewKafkaWriter(brokers []string, topic string, tel *telemetry.Client, metrics *metricbundle.EchoMetrics) *kafka.Writer {
	ctx := telemetry.AppendCommonAttrs(context.Background(),
		semconv.Echo.Component.String(semconv.ComponentJournal),
	)
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				tel.Error(ctx, "Journal batch failed", err,
					attribute.Int("messages", len(messages)),
					attribute.String("topic", topic),
				)
				metrics.RecordJournalWritten(ctx, semconv.StatusFailed)
				return
			}
			metrics.RecordJournalWritten(ctx, semconv.StatusOK)
		},
	}
}

// Present implementa Presenter.
func (j *Journal) Present(ctx context.Context, source domain.TerminalID, deliveries []Delivery) error {
	err := j.next.Present(ctx, source, deliveries)

	now := utils.NowUnixMilli()
	msgs := make([]kafka.Message, 0, len(deliveries))
	for _, d := range deliveries {
		rec := JournalRecord{
			Source:     source.String(),
			Recipients: make([]string, 0, len(d.Recipients)),
			Message:    d.Message,
			AtMs:       now,
		}
		for _, r := range d.Recipients {
			rec.Recipients = append(rec.Recipients, r.String())
		}
		value, mErr := json.Marshal(rec)
		if mErr != nil {
			j.telemetry.Error(ctx, "Failed to encode journal record", mErr,
				semconv.Echo.TerminalID.String(source.String()),
			)
			continue
		}
		msgs = append(msgs, kafka.Message{Key: []byte(source.String()), Value: value})
	}

	if len(msgs) > 0 {
		if wErr := j.writer.WriteMessages(ctx, msgs...); wErr != nil {
			j.telemetry.Error(ctx, "Failed to write journal", wErr,
				semconv.Echo.TerminalID.String(source.String()),
				attribute.Int("records", len(msgs)),
			)
			j.metrics.RecordJournalWritten(ctx, semconv.StatusFailed)
		}
	}

	return err
}

// Close cierra el writer (flush de mensajes pendientes).
func (j *Journal) Close() error {
	return j.writer.Close()
}
