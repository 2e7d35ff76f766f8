// Package audit implements async event dispatching for security-relevant
// operations.
//
// # Components
//
//   - [Sink]: interface for event consumers. Implementations here are
//     [NoOpSink], [ChannelSink], [JSONWriterSink], [ZapSink] and [KafkaSink].
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics.
//   - [Event]: structured audit record with timestamp, type, user, email,
//     client IP and metadata.
//
// This package owns event buffering and sink delivery. Deciding which events
// to emit belongs to the Engine.
package audit
