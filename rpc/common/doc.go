// Package common provides core data structures and utilities shared across
// the dStream packages. It defines the frame level data model, the application
// payload, the error taxonomy, configuration structures and logging.
//
// The package focuses on:
//   - Request/Response/ContentStream: the logical content of one frame
//   - Activity: the structured application payload routed on the POST path
//   - Sentinel errors for per-request and per-connection failures
//   - Configuration structures for the transport, reconnect and logging layers
//   - Custom logging implementation integrated with Dragonboat's logger facade
//   - Metrics: exported counters (VictoriaMetrics) and in-process statistics (go-metrics)
//
// Key Components:
//
//   - Request, Response: a verb/path (or status code) plus an ordered set of
//     content streams. Streams[0] is the structured body, the remaining streams
//     are attachments that the transport never interprets.
//
//   - Activity: the payload exchanged with the remote peer. Fields that are not
//     used for routing are preserved in Properties.
//
//   - StreamConfig: configuration of a streaming endpoint with a readable String().
//
//   - Logger: custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
