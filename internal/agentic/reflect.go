package agentic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/overblick/internal/providers"
	"github.com/nextlevelbuilder/overblick/internal/store"
)

// Reflector extracts learnings from a tick's executed actions. Reflection
// is strictly best-effort: any failure is logged and the tick completes
// without learnings.
type Reflector struct {
	provider providers.Provider
	store    *store.Store
}

// NewReflector wires the reflection stage to the LLM and the store.
func NewReflector(provider providers.Provider, s *store.Store) *Reflector {
	return &Reflector{provider: provider, store: s}
}

type rawLearning struct {
	Category   string  `json:"category"`
	Insight    string  `json:"insight"`
	Confidence float64 `json:"confidence"`
}

// Reflect reviews a tick's outcomes and persists any extracted learnings
// with source "reflection". Ticks with no executed actions are skipped.
func (r *Reflector) Reflect(ctx context.Context, tickNumber int64, plan *ActionPlan, outcomes []Outcome) {
	if r.provider == nil || len(outcomes) == 0 {
		return
	}

	resp, err := r.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: reflectionSystemPrompt},
			{Role: "user", Content: reflectionUserPrompt(plan, outcomes)},
		},
		Options: map[string]any{
			"complexity":        "reflection",
			"priority":          "low",
			"skip_safety_check": true,
		},
	})
	if err != nil {
		slog.Debug("reflection: llm call failed", "error", err)
		return
	}
	if resp.Content == "" || resp.Blocked() {
		return
	}

	var parsed struct {
		Learnings   []rawLearning `json:"learnings"`
		TickSummary string        `json:"tick_summary"`
	}
	if !ExtractJSON(resp.Content, &parsed) {
		slog.Debug("reflection: no parseable JSON in response")
		return
	}

	if parsed.TickSummary != "" {
		slog.Debug("reflection summary", "tick", tickNumber, "summary", truncate(parsed.TickSummary, 200))
	}

	for _, l := range parsed.Learnings {
		if l.Insight == "" {
			continue
		}
		if l.Category == "" {
			l.Category = "general"
		}
		err := r.store.InsertLearning(store.Learning{
			Category:   l.Category,
			Insight:    l.Insight,
			Confidence: l.Confidence,
			Source:     "reflection",
			SourceTick: tickNumber,
		})
		if err != nil {
			slog.Warn("reflection: persist learning", "error", err)
			continue
		}
		slog.Info("learning extracted", "category", l.Category, "confidence", l.Confidence)
	}
}

const reflectionSystemPrompt = `You review the outcomes of an autonomous agent's actions and extract durable insights worth remembering.

Respond with strict JSON only, no prose:
{"learnings": [{"category": "...", "insight": "...", "confidence": 0.8}], "tick_summary": "..."}

Only include insights that would change future behavior. An empty list is a valid answer.`

func reflectionUserPrompt(plan *ActionPlan, outcomes []Outcome) string {
	var b strings.Builder
	if plan != nil && plan.Reasoning != "" {
		b.WriteString("PLAN REASONING:\n")
		b.WriteString(plan.Reasoning)
		b.WriteString("\n\n")
	}
	b.WriteString("OUTCOMES:\n")
	for _, o := range outcomes {
		status := "ok"
		if !o.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "- %s %s (%s, %dms)", o.Action.ActionType, status, o.Action.Target, o.Duration.Milliseconds())
		if o.Error != "" {
			fmt.Fprintf(&b, " error=%s", o.Error)
		} else if o.Result != "" {
			fmt.Fprintf(&b, " result=%s", truncate(o.Result, 200))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWhat should be remembered?")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
