// Package agentic implements the domain-agnostic OBSERVE, THINK, PLAN,
// ACT, REFLECT control loop. Domain content arrives through four plug-in
// points: an Observer, action handlers, a prompt spec, and an optional
// extra-context callback.
package agentic

import "context"

// Observer produces the world snapshot a tick reasons about. The
// observation value is opaque to the loop; only the Observer knows its
// shape.
type Observer interface {
	// Observe gathers the current world state. An error aborts the tick
	// without consuming a tick number.
	Observe(ctx context.Context) (any, error)

	// FormatForPlanner renders an observation as planner prompt text.
	FormatForPlanner(observation any) string
}

// CountObservations sizes an observation for tick accounting. Maps count
// the lengths of their collection values (non-collections count 1 each),
// slices count their length, and anything else counts as a single
// observation.
func CountObservations(observation any) int {
	switch v := observation.(type) {
	case nil:
		return 0
	case map[string]any:
		total := 0
		for _, item := range v {
			switch inner := item.(type) {
			case []any:
				total += len(inner)
			case map[string]any:
				total += len(inner)
			default:
				total++
			}
		}
		return total
	case []any:
		return len(v)
	default:
		return 1
	}
}
