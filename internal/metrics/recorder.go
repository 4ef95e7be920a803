// Package metrics defines observability hooks for the build pipeline.
package metrics

import "time"

// Recorder defines the hooks recorded by the orchestrator and builder.
// Implementations may forward to Prometheus; the NoopRecorder allows optional
// injection.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: succeeded|failed
	SetActiveBuilds(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) SetActiveBuilds(int)                        {}
