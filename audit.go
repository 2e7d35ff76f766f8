package stayAuth

import (
	"io"

	"github.com/MrEthical07/stayAuth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant record emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events on the dispatcher goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapAuditSink   = audit.ZapSink
	KafkaAuditSink = audit.KafkaSink
	MultiAuditSink = audit.MultiSink
)

// NewChannelSink buffers events in a channel; mostly useful in tests.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapAuditSink logs events through logger under the "audit" name.
func NewZapAuditSink(logger *zap.Logger) *ZapAuditSink {
	return audit.NewZapSink(logger)
}

// NewKafkaAuditSink publishes events as JSON to topic. The engine closes
// the writer on Engine.Close.
func NewKafkaAuditSink(brokers []string, topic string, logger *zap.Logger) *KafkaAuditSink {
	return audit.NewKafkaSink(brokers, topic, logger)
}
