package executor_test

import (
	"context"
	"testing"

	"github.com/conduit-run/conduit/pkg/builder"
	"github.com/conduit-run/conduit/pkg/config"
	"github.com/conduit-run/conduit/pkg/executor"
	"github.com/conduit-run/conduit/pkg/metrics"

	_ "github.com/conduit-run/conduit/pkg/elements/flow"
	_ "github.com/conduit-run/conduit/pkg/elements/source"
	_ "github.com/conduit-run/conduit/pkg/elements/transform"
)

func buildAndOpen(t *testing.T, yaml string) *executor.Chain {
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
	return chain
}

func TestRunDrainsChainInOrder(t *testing.T) {
	chain := buildAndOpen(t, `
- id: conduit.Input
  data: [1, 2, 3]
`)
	defer chain.Close()

	results, err := chain.Run(context.Background(), executor.StopOnError)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || results[0] != 1 || results[2] != 3 {
		t.Fatalf("got %v", results)
	}
}

func TestRunFiltersAcrossStages(t *testing.T) {
	chain := buildAndOpen(t, `
- id: conduit.Input
  data: [1, 2, 3, 4, 5]
- id: conduit.Filter
  condition: "input >= 3"
`)
	defer chain.Close()

	results, err := chain.Run(context.Background(), executor.StopOnError)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %v", results)
	}
}

func TestRunSkipOnErrorContinuesPastItemErrors(t *testing.T) {
	chain := buildAndOpen(t, `
- id: conduit.Input
  data: ["a", 1, "b"]
- id: conduit.Extract
  pattern: "(.)"
`)
	defer chain.Close()

	results, err := chain.Run(context.Background(), executor.SkipOnError)
	if err != nil {
		t.Fatal(err)
	}
	// the numeric item 1 fails Extract's "item is not a string" check
	// and is skipped; the two string items survive.
	if len(results) != 2 {
		t.Fatalf("got %v", results)
	}
}

func TestRunStopOnErrorAbortsAtFirstItemError(t *testing.T) {
	chain := buildAndOpen(t, `
- id: conduit.Input
  data: ["a", 1, "b"]
- id: conduit.Extract
  pattern: "(.)"
`)
	defer chain.Close()

	_, err := chain.Run(context.Background(), executor.StopOnError)
	if err == nil {
		t.Fatal("expected an error to abort the run")
	}
}

func TestOpenRecordsPerStageMetricsOnRun(t *testing.T) {
	run := metrics.NewRun()
	doc, err := config.Parse([]byte(`
- id: conduit.Input
  data: [1, 2]
- id: conduit.Identity
`))
	if err != nil {
		t.Fatal(err)
	}
	built, err := builder.Build(doc)
	if err != nil {
		t.Fatal(err)
	}
	chain, err := executor.Open(context.Background(), built, run, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer chain.Close()

	if _, err := chain.Run(context.Background(), executor.StopOnError); err != nil {
		t.Fatal(err)
	}
	snap := run.Snapshot()
	if len(snap.ElementMetrics) != 2 {
		t.Fatalf("got %d element snapshots", len(snap.ElementMetrics))
	}
	if snap.TotalItemsProcessed != 2 {
		t.Fatalf("got %d", snap.TotalItemsProcessed)
	}

	source, sink := snap.ElementMetrics[0], snap.ElementMetrics[1]
	if source.ItemsIn != 0 {
		t.Fatalf("conduit.Input has no upstream, want items_in 0, got %d", source.ItemsIn)
	}
	if source.ItemsOut != 2 {
		t.Fatalf("got conduit.Input items_out %d, want 2", source.ItemsOut)
	}
	if sink.ItemsIn != source.ItemsOut {
		t.Fatalf("conduit.Identity items_in %d != upstream items_out %d", sink.ItemsIn, source.ItemsOut)
	}
	if sink.ItemsOut != sink.ItemsIn {
		t.Fatalf("conduit.Identity items_out %d != items_in %d", sink.ItemsOut, sink.ItemsIn)
	}
}
