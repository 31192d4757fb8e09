// Package perfmon tracks the lifecycle of backend requests and keeps
// streaming latency statistics.
//
// Every StartRequest must be paired with exactly one EndRequest. Between the
// two the request is in the active set; ActiveCount returning to zero once
// all work has finished is the simplest leak check.
//
// All-time aggregates (counters, min, max, mean) sit next to a bounded
// rolling window of recent durations per service. Per-service latency in
// ServiceMetrics and Summary comes from the window only.
//
// When configured WithMeter, the same events are mirrored onto OpenTelemetry
// instruments.
package perfmon
