// Package metrics defines the Recorder abstraction for run/stage
// observability and its Prometheus implementation.
package metrics
