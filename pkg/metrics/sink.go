package metrics

import (
	"context"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Sink is the telemetry forwarding seam MetricHandler writes formatted
// line-protocol records to. A sink failure is logged and otherwise
// swallowed: an unreachable metrics sink degrades operation but never
// fails the request.
type Sink interface {
	Write(ctx context.Context, lines string) error
}

// KafkaSink forwards line-protocol text as single-message batches to a
// topic via a kafka.Writer.
type KafkaSink struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewKafkaSink builds a sink writing to topic across brokers.
func NewKafkaSink(brokers []string, topic string, logger *logrus.Logger) *KafkaSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// Write implements Sink.
func (s *KafkaSink) Write(ctx context.Context, lines string) error {
	if lines == "" {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Value: []byte(lines)}); err != nil {
		s.logger.WithError(err).Warn("metrics: kafka write failed")
		return err
	}
	return nil
}

// Close releases the underlying writer's connections.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LoggingSink is the fallback sink used when no Kafka brokers are
// configured, matching LoggingMetricHandler's behavior of logging the
// formatted lines rather than shipping them anywhere.
type LoggingSink struct {
	logger *logrus.Logger
}

// NewLoggingSink returns a sink that logs at info level.
func NewLoggingSink(logger *logrus.Logger) *LoggingSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LoggingSink{logger: logger}
}

// Write implements Sink.
func (s *LoggingSink) Write(_ context.Context, lines string) error {
	s.logger.WithField("facility", "metric").Info(lines)
	return nil
}
