// Package evaluation measures resolver accuracy against labelled queries.
package evaluation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"maitred/internal/matching"
	"maitred/internal/menu"
)

// Resolver is the decision procedure under evaluation
type Resolver interface {
	Resolve(ctx context.Context, query string, pool []string) matching.Decision
}

// Evaluator runs labelled scenarios against a resolver and menu
type Evaluator struct {
	scenarios map[string]*TestScenario
	resolver  Resolver
	catalog   *menu.Catalog
}

// NewEvaluator creates an evaluator with the built-in scenarios
func NewEvaluator(resolver Resolver, catalog *menu.Catalog) *Evaluator {
	e := &Evaluator{
		scenarios: make(map[string]*TestScenario),
		resolver:  resolver,
		catalog:   catalog,
	}
	e.loadScenarios()
	return e
}

// loadScenarios registers the built-in scenarios, written against the sample menu
func (e *Evaluator) loadScenarios() {
	e.Add(&TestScenario{
		ID:          "exact",
		Name:        "Exact Names",
		Description: "Menu names typed exactly, up to case and spacing.",
		Cases: []Case{
			{Query: "margherita pizza", Expect: matching.KindExact, Item: "Margherita Pizza"},
			{Query: "COCA COLA", Expect: matching.KindExact, Item: "Coca Cola"},
			{Query: "  french   fries ", Expect: matching.KindExact, Item: "French Fries"},
		},
	})

	e.Add(&TestScenario{
		ID:          "misspellings",
		Name:        "Misspellings",
		Description: "Typos that should resolve to a single item without asking.",
		Cases: []Case{
			{Query: "veggy burgr", Expect: matching.KindResolved, Item: "Veggie Burger"},
			{Query: "margarita pizza", Expect: matching.KindResolved, Item: "Margherita Pizza"},
			{Query: "peperoni pizza", Expect: matching.KindResolved, Item: "Pepperoni Pizza"},
			{Query: "ceasar salad", Expect: matching.KindResolved, Item: "Caesar Salad"},
		},
	})

	e.Add(&TestScenario{
		ID:          "ambiguous",
		Name:        "Ambiguous Requests",
		Description: "Generic names that match several items and need a clarification.",
		Cases: []Case{
			{Query: "pizza", Expect: matching.KindClarify, Options: []string{"Margherita Pizza", "Pepperoni Pizza"}},
			{Query: "burger", Expect: matching.KindClarify, Options: []string{"Veggie Burger", "Classic Burger"}},
		},
	})

	e.Add(&TestScenario{
		ID:          "unknown",
		Name:        "Off-Menu Requests",
		Description: "Items the restaurant does not serve.",
		Cases: []Case{
			{Query: "unicorn steak", Expect: matching.KindRejected},
			{Query: "sushi platter", Expect: matching.KindRejected},
		},
	})
}

// Add registers or replaces a scenario
func (e *Evaluator) Add(s *TestScenario) {
	e.scenarios[s.ID] = s
}

// LoadScenarios parses a YAML list of scenarios and registers them
func (e *Evaluator) LoadScenarios(data []byte) error {
	var list []*TestScenario
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("failed to parse scenarios: %w", err)
	}
	for _, s := range list {
		if s.ID == "" {
			return fmt.Errorf("scenario %q has no id", s.Name)
		}
		e.Add(s)
	}
	return nil
}

// HasScenario checks if a scenario exists
func (e *Evaluator) HasScenario(id string) bool {
	_, exists := e.scenarios[id]
	return exists
}

// GetScenarios returns all scenarios ordered by id
func (e *Evaluator) GetScenarios() []*TestScenario {
	scenarios := make([]*TestScenario, 0, len(e.scenarios))
	for _, s := range e.scenarios {
		scenarios = append(scenarios, s)
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].ID < scenarios[j].ID })
	return scenarios
}

// Evaluate runs one scenario. Cases naming items missing from the menu are
// skipped and logged as events.
func (e *Evaluator) Evaluate(ctx context.Context, scenarioID string) (*EvaluationResult, error) {
	scenario, exists := e.scenarios[scenarioID]
	if !exists {
		return nil, fmt.Errorf("scenario not found: %s", scenarioID)
	}

	pool := e.catalog.Names()
	result := &EvaluationResult{
		Scenario: scenarioID,
		Cases:    make([]CaseResult, 0, len(scenario.Cases)),
	}

	var passed, run int
	start := time.Now()
	for _, c := range scenario.Cases {
		if missing := e.missingItems(c); len(missing) > 0 {
			result.Cases = append(result.Cases, CaseResult{Case: c, Skipped: true})
			result.Events = append(result.Events, EventLog{
				Timestamp: time.Now(),
				Type:      "case_skipped",
				Data:      map[string]interface{}{"query": c.Query, "missing": missing},
			})
			continue
		}

		cr := check(c, e.resolver.Resolve(ctx, c.Query, pool))
		result.Cases = append(result.Cases, cr)
		run++
		if cr.Passed {
			passed++
		}
	}

	accuracy := 0.0
	if run > 0 {
		accuracy = float64(passed) / float64(run)
	}
	result.Metrics = map[string]interface{}{
		"cases":       run,
		"passed":      passed,
		"skipped":     len(scenario.Cases) - run,
		"accuracy":    accuracy,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return result, nil
}

// EvaluateAll runs every scenario and returns the results with accuracy per
// expected decision kind
func (e *Evaluator) EvaluateAll(ctx context.Context) ([]*EvaluationResult, map[string]float64, error) {
	results := make([]*EvaluationResult, 0, len(e.scenarios))
	total := make(map[string]int)
	passed := make(map[string]int)

	for _, s := range e.GetScenarios() {
		res, err := e.Evaluate(ctx, s.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, cr := range res.Cases {
			if cr.Skipped {
				continue
			}
			kind := string(cr.Case.Expect)
			total[kind]++
			if cr.Passed {
				passed[kind]++
			}
		}
		results = append(results, res)
	}

	accuracy := make(map[string]float64, len(total))
	for kind, n := range total {
		accuracy[kind] = float64(passed[kind]) / float64(n)
	}
	return results, accuracy, nil
}

// missingItems lists the expected items that are not on the menu
func (e *Evaluator) missingItems(c Case) []string {
	var missing []string
	expected := append([]string{}, c.Options...)
	if c.Item != "" {
		expected = append(expected, c.Item)
	}
	for _, name := range expected {
		if _, ok := e.catalog.LookupExact(menu.Normalize(name)); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// check compares a decision with the case's expectation
func check(c Case, d matching.Decision) CaseResult {
	cr := CaseResult{Case: c, Got: d.Kind()}

	switch d := d.(type) {
	case matching.Exact:
		cr.Detail = []string{d.Item}
	case matching.Resolved:
		cr.Detail = []string{d.Item}
	case matching.Clarify:
		cr.Detail = d.Options
	case matching.Rejected:
		cr.Detail = d.Alternatives
	}

	if cr.Got != c.Expect {
		return cr
	}
	switch c.Expect {
	case matching.KindExact, matching.KindResolved:
		cr.Passed = c.Item == "" || (len(cr.Detail) == 1 && cr.Detail[0] == c.Item)
	case matching.KindClarify:
		cr.Passed = containsAll(cr.Detail, c.Options)
	default:
		cr.Passed = true
	}
	return cr
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
