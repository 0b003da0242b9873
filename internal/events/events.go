// Package events publishes run lifecycle events for downstream consumers.
// Publishing is best effort and never changes run state.
package events

import (
	"context"
	"time"

	"github.com/ETAnderson/grader/internal/domain"
)

type Type string

const (
	RunStarted  Type = "run.started"
	RunAnalyzed Type = "run.analyzed"
	RunScored   Type = "run.scored"
	RunDone     Type = "run.done"
	RunFailed   Type = "run.failed"
	RunReaped   Type = "run.reaped"
)

type RunEvent struct {
	Type            Type             `json:"type"`
	RunID           string           `json:"run_id"`
	RepositoryURL   string           `json:"repository_url,omitempty"`
	Status          domain.RunStatus `json:"status"`
	Phase           domain.Phase     `json:"phase"`
	InvokerIdentity string           `json:"assigned_invoker_identity,omitempty"`
	OverallScore    *float64         `json:"overall_score,omitempty"`
	Error           string           `json:"error,omitempty"`
	At              time.Time        `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev RunEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RunEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	Events []RunEvent
}

func (r *Recorder) Publish(_ context.Context, ev RunEvent) error {
	r.Events = append(r.Events, ev)
	return nil
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []Type {
	out := make([]Type, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Type)
	}
	return out
}
