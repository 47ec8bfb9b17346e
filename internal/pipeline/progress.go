// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"io"
	"sync"
)

// Stage names the phase a progress event reports on.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageParse    Stage = "parse"
	StageAnalyze  Stage = "analyze"
	StageDraft    Stage = "draft"
	StageComplete Stage = "complete"
)

// EventType names the event envelope.
type EventType string

const (
	EventProgress EventType = "progress"
	EventItem     EventType = "item"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one typed progress message. Data is the event's payload:
// ProgressData, ItemData, ErrorData, or the full PipelineResult for the
// terminal complete event.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data"`
}

// ProgressData reports phase completion. Percent is monotonically
// non-decreasing over a run.
type ProgressData struct {
	Stage       Stage  `json:"stage"`
	Description string `json:"description"`
	Percent     int    `json:"percent"`
}

// ItemData announces that a specialist was assigned to an item, before
// generation begins.
type ItemData struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Agent    string `json:"agent"`
}

// ErrorData carries a pipeline-level failure message.
type ErrorData struct {
	Message string `json:"message"`
}

// Reporter receives events from a run in emission order.
type Reporter interface {
	Emit(event Event)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Emit(Event) {}

// NDJSONReporter writes each event as one JSON line, the streaming format
// the CLI prints to stdout.
type NDJSONReporter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewNDJSONReporter builds a reporter writing newline-delimited events.
func NewNDJSONReporter(w io.Writer) *NDJSONReporter {
	return &NDJSONReporter{w: w, enc: json.NewEncoder(w)}
}

func (r *NDJSONReporter) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Encode errors have nowhere to go; the run's result is still returned
	// to the caller unaffected.
	_ = r.enc.Encode(event)
}
