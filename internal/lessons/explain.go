package lessons

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// PlanSummary is the part of an explain("executionStats") result the
// indexing lesson narrates.
type PlanSummary struct {
	Stages       []string // winning plan, outermost first
	IndexName    string   // first IXSCAN's index, if any
	NReturned    int64
	KeysExamined int64
	DocsExamined int64
}

// Covered reports whether the plan answered from the index alone.
func (p PlanSummary) Covered() bool {
	return p.IndexName != "" && p.DocsExamined == 0 && p.NReturned > 0
}

// CollScan reports whether the plan read the whole collection.
func (p PlanSummary) CollScan() bool {
	for _, s := range p.Stages {
		if s == "COLLSCAN" {
			return true
		}
	}
	return false
}

func (p PlanSummary) String() string {
	return strings.Join(p.Stages, " <- ")
}

// SummarizeExplain reads an explain result. Servers that wrap the plan in
// queryPlan (slot-based engine) are handled too.
func SummarizeExplain(doc bson.M) PlanSummary {
	var out PlanSummary
	qp := asMap(doc["queryPlanner"])
	wp := asMap(qp["winningPlan"])
	if inner := asMap(wp["queryPlan"]); inner != nil {
		wp = inner
	}
	for stage := wp; stage != nil; {
		name, _ := stage["stage"].(string)
		if name != "" {
			out.Stages = append(out.Stages, name)
		}
		if name == "IXSCAN" && out.IndexName == "" {
			out.IndexName, _ = stage["indexName"].(string)
		}
		next := asMap(stage["inputStage"])
		if next == nil {
			if arr, ok := stage["inputStages"].(bson.A); ok && len(arr) > 0 {
				next = asMap(arr[0])
			}
		}
		stage = next
	}

	es := asMap(doc["executionStats"])
	out.NReturned = toInt64(es["nReturned"])
	out.KeysExamined = toInt64(es["totalKeysExamined"])
	out.DocsExamined = toInt64(es["totalDocsExamined"])
	return out
}

// explainFind runs find through explain with executionStats verbosity.
func (e *Env) explainFind(ctx context.Context, find bson.D) (PlanSummary, error) {
	var doc bson.M
	cmd := bson.D{
		{Key: "explain", Value: find},
		{Key: "verbosity", Value: "executionStats"},
	}
	if err := e.DB.RunCommand(ctx, cmd).Decode(&doc); err != nil {
		return PlanSummary{}, err
	}
	return SummarizeExplain(doc), nil
}

func (e *Env) narratePlan(label string, p PlanSummary) {
	e.Console.Linef("%s: %s", label, p)
	if p.IndexName != "" {
		e.Console.Linef("  index: %s", p.IndexName)
	}
	e.Console.Linef("  dokumen dikembalikan: %d, key diperiksa: %d, dokumen diperiksa: %d",
		p.NReturned, p.KeysExamined, p.DocsExamined)
}

func asMap(v any) bson.M {
	switch m := v.(type) {
	case bson.M:
		return m
	case map[string]any:
		return m
	case bson.D:
		out := make(bson.M, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
