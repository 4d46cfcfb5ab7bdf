package evaluation

import (
	"time"

	"maitred/internal/matching"
)

// Case is one labelled resolution query
type Case struct {
	Query string `json:"query" yaml:"query"`
	// Expect is the decision kind the resolver should produce
	Expect matching.DecisionKind `json:"expect" yaml:"expect"`
	// Item is the expected pick for exact and resolved decisions
	Item string `json:"item,omitempty" yaml:"item,omitempty"`
	// Options, when set, must all appear in a clarify decision
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// TestScenario groups related cases
type TestScenario struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Cases       []Case `json:"cases" yaml:"cases"`
}

// CaseResult is the outcome of running one case
type CaseResult struct {
	Case    Case                  `json:"case"`
	Got     matching.DecisionKind `json:"got"`
	Detail  []string              `json:"detail"`
	Passed  bool                  `json:"passed"`
	Skipped bool                  `json:"skipped,omitempty"`
}

// EvaluationResult contains the outcome of one scenario run
type EvaluationResult struct {
	Scenario string                 `json:"scenario"`
	Metrics  map[string]interface{} `json:"metrics"`
	Cases    []CaseResult           `json:"cases"`
	Events   []EventLog             `json:"events,omitempty"`
}

// EventLog captures notable events during a run, such as skipped cases
type EventLog struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
}
