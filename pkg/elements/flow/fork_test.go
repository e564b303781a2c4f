package flow

import (
	"context"
	"testing"

	"github.com/conduit-run/conduit/pkg/builder"
	"github.com/conduit-run/conduit/pkg/config"
	"github.com/conduit-run/conduit/pkg/executor"
	"github.com/conduit-run/conduit/pkg/metrics"

	_ "github.com/conduit-run/conduit/pkg/elements/numeric"
	_ "github.com/conduit-run/conduit/pkg/elements/source"
)

func runForkYAML(t *testing.T, yaml string) []any {
	t.Helper()
	doc, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	built, err := builder.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	chain, err := executor.Open(context.Background(), built, metrics.NewRun(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer chain.Close()
	results, err := chain.Run(context.Background(), executor.StopOnError)
	if err != nil {
		t.Fatal(err)
	}
	return results
}

func TestForkJoinsEachPathByName(t *testing.T) {
	results := runForkYAML(t, `
- id: conduit.Input
  data: [{x: 10}]
- id: conduit.Fork
  paths:
    doubled:
      - id: conduit.Eval
        expression: "input.x * 2"
    original:
      - id: conduit.Identity
`)
	if len(results) != 1 {
		t.Fatalf("got %v", results)
	}
	rec := results[0].(map[string]any)
	if rec["doubled"] != 20 {
		t.Fatalf("got %v", rec)
	}
	orig, ok := rec["original"].(map[string]any)
	if !ok || orig["x"] != 10 {
		t.Fatalf("got %v", rec["original"])
	}
}

func TestForkEmptyPathIsAbsentFromJoinedRecord(t *testing.T) {
	results := runForkYAML(t, `
- id: conduit.Input
  data: [{x: 1}]
- id: conduit.Fork
  paths:
    kept:
      - id: conduit.Identity
    dropped:
      - id: conduit.Empty
`)
	rec := results[0].(map[string]any)
	if _, present := rec["dropped"]; present {
		t.Fatalf("expected `dropped` absent from joined record, got %v", rec)
	}
	if _, present := rec["kept"]; !present {
		t.Fatalf("expected `kept` present, got %v", rec)
	}
}

func TestForkParallelProducesSameJoinAsSequential(t *testing.T) {
	results := runForkYAML(t, `
- id: conduit.Input
  data: [{x: 3}]
- id: conduit.Fork
  parallel: true
  paths:
    doubled:
      - id: conduit.Eval
        expression: "input.x * 2"
    tripled:
      - id: conduit.Eval
        expression: "input.x * 3"
`)
	rec := results[0].(map[string]any)
	if rec["doubled"] != 6 || rec["tripled"] != 9 {
		t.Fatalf("got %v", rec)
	}
}

func TestForkRunsOncePerUpstreamItem(t *testing.T) {
	results := runForkYAML(t, `
- id: conduit.Input
  data: [{x: 1}, {x: 2}]
- id: conduit.Fork
  paths:
    doubled:
      - id: conduit.Eval
        expression: "input.x * 2"
`)
	if len(results) != 2 {
		t.Fatalf("got %v", results)
	}
	if results[0].(map[string]any)["doubled"] != 2 || results[1].(map[string]any)["doubled"] != 4 {
		t.Fatalf("got %v", results)
	}
}
