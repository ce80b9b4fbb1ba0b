// Package observability provides process logging, the JSONL run event log,
// and the metrics and alerts derived from it. Metrics are computed on demand
// by replaying the event log; nothing is aggregated in memory between runs.
package observability
