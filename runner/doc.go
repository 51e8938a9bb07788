// Package runner executes dispatch runs for callers such as the HTTP server,
// the command line and the ingestion team summarizer.
//
// The Runner sits between callers and agent.Dispatcher:
//
//   - bounds the number of concurrent runs with a semaphore
//   - owns one conversation per run and tracks active runs for Cancel
//   - fans run events out to the configured sinks (websocket hub, NATS)
//   - records run outcomes through a RunRecorder (the SQLite ledger)
//
// Conversations live only for the duration of a run; only the outcome
// metadata is recorded.
package runner
