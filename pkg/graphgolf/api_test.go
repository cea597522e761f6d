package graphgolf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"graphgolf/internal/graph"
	"graphgolf/internal/search"
	"graphgolf/internal/stats"
)

const petersenEdges = `0 1
1 2
2 3
3 4
0 4
0 5
1 6
2 7
3 8
4 9
5 7
7 9
6 9
6 8
5 8
`

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(t.TempDir(), "artifacts"),
		ExportsDir:   filepath.Join(t.TempDir(), "exports"),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunPersistsBestGraph(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	var improvements []Improvement
	summary, err := client.Run(ctx, RunRequest{
		Order:         10,
		Degree:        3,
		Workers:       2,
		Seed:          7,
		Iterations:    200,
		OnImprovement: func(imp Improvement) { improvements = append(improvements, imp) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.GraphID == "" {
		t.Fatalf("expected ids, got %+v", summary)
	}
	if summary.Iterations != 400 {
		t.Fatalf("expected 400 iterations over two workers, got %d", summary.Iterations)
	}
	if summary.StopReason != "iterations" {
		t.Fatalf("unexpected stop reason %s", summary.StopReason)
	}
	if summary.Diameter < summary.Bounds.Diameter || summary.Diameter > summary.InitialDiameter {
		t.Fatalf("unexpected diameter %d (bound %d, initial %d)", summary.Diameter, summary.Bounds.Diameter, summary.InitialDiameter)
	}
	if len(summary.Edges) != 15 {
		t.Fatalf("expected 15 edges, got %d", len(summary.Edges))
	}
	for i := 1; i < len(improvements); i++ {
		prev, next := improvements[i-1], improvements[i]
		if next.Diameter > prev.Diameter || (next.Diameter == prev.Diameter && next.ASPL >= prev.ASPL) {
			t.Fatalf("improvements not monotone: %+v then %+v", prev, next)
		}
	}

	if _, err := os.Stat(summary.EdgesFile); err != nil {
		t.Fatalf("expected edges file: %v", err)
	}
	analysis, err := client.Analyze(ctx, AnalyzeRequest{Order: 10, Degree: 3, EdgesPath: summary.EdgesFile, CrossCheck: true})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Diameter != summary.Diameter || math.Abs(analysis.ASPL-summary.ASPL) > 1e-12 {
		t.Fatalf("edges file does not match summary: %+v vs %+v", analysis, summary)
	}

	best, ok, err := client.Best(ctx, 10, 3)
	if err != nil || !ok {
		t.Fatalf("best: ok=%v err=%v", ok, err)
	}
	if best.GraphID != summary.GraphID || best.RunID != summary.RunID {
		t.Fatalf("unexpected best graph: %+v", best)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Workers != 2 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	detail, ok, err := client.RunDetail(ctx, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("run detail: ok=%v err=%v", ok, err)
	}
	if detail.Run.BestGraphID != summary.GraphID || len(detail.Best.Edges) != 15 || len(detail.Run.Progress) < 2 {
		t.Fatalf("unexpected run detail: %+v", detail)
	}
	stored, err := client.StoredRuns(ctx, 0)
	if err != nil || len(stored) != 1 {
		t.Fatalf("stored runs: %v %+v", err, stored)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("unexpected export: %+v", exported)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "summary.json")); err != nil {
		t.Fatalf("expected exported summary: %v", err)
	}
}

func TestClientAnalyzePetersenGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petersen")
	if err := os.WriteFile(path, []byte(petersenEdges), 0o644); err != nil {
		t.Fatalf("write edges: %v", err)
	}
	client := newTestClient(t)
	analysis, err := client.Analyze(context.Background(), AnalyzeRequest{Order: 10, Degree: 3, EdgesPath: path, CrossCheck: true})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.Diameter != 2 || analysis.TotalDistance != 150 || !analysis.Ideal || !analysis.Regular || !analysis.CrossChecked {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if math.Abs(analysis.ASPL-15.0/9.0) > 1e-12 {
		t.Fatalf("unexpected aspl %v", analysis.ASPL)
	}
}

func TestClientRunFromEdgesFileStopsAtLowerBound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petersen")
	if err := os.WriteFile(path, []byte(petersenEdges), 0o644); err != nil {
		t.Fatalf("write edges: %v", err)
	}
	client := newTestClient(t)
	summary, err := client.Run(context.Background(), RunRequest{
		Order:            10,
		Degree:           3,
		EdgesPath:        path,
		StopAtLowerBound: true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.StopReason != "lower_bound" || !summary.Ideal || summary.Iterations != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestClientRunCancelledStillWritesBestGraph(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := client.Run(ctx, RunRequest{Order: 16, Degree: 3, Seed: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.StopReason != "cancelled" {
		t.Fatalf("unexpected stop reason %s", summary.StopReason)
	}
	if !strings.HasPrefix(filepath.Base(summary.EdgesFile), "edges-order=16-degree=3-") {
		t.Fatalf("unexpected edges file %s", summary.EdgesFile)
	}
	if _, err := os.Stat(summary.EdgesFile); err != nil {
		t.Fatalf("expected edges file: %v", err)
	}
}

func TestClientRejectsInfeasibleParameters(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Run(context.Background(), RunRequest{Order: 5, Degree: 3}); !errors.Is(err, graph.ErrInfeasible) {
		t.Fatalf("expected infeasible error, got %v", err)
	}
	if _, err := client.Bounds(5, 3); !errors.Is(err, graph.ErrInfeasible) {
		t.Fatalf("expected infeasible error, got %v", err)
	}
	b, err := client.Bounds(32, 5)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if b.Diameter != 3 || math.Abs(b.ASPL-63.0/31.0) > 1e-12 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
}

func TestClientExportValidation(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Export(context.Background(), ExportRequest{}); err == nil {
		t.Fatal("expected error without run id")
	}
	if _, err := client.Export(context.Background(), ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected error with both run id and latest")
	}
	if _, err := client.Export(context.Background(), ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no runs")
	}
}

func TestSearchConfigKeepsExplicitZeros(t *testing.T) {
	defaults := search.DefaultConfig()
	cfg := searchConfig(RunRequest{}, nil)
	if cfg.StagnationRounds != defaults.StagnationRounds || cfg.EscapeRunLimit != defaults.EscapeRunLimit || cfg.TabuSize != defaults.TabuSize {
		t.Fatalf("expected defaults for unset fields, got %+v", cfg)
	}

	zero := 0
	cfg = searchConfig(RunRequest{StagnationRounds: &zero, EscapeRunLimit: &zero, TabuSize: &zero}, nil)
	if cfg.StagnationRounds != 0 || cfg.EscapeRunLimit != 0 || cfg.TabuSize != 0 {
		t.Fatalf("expected explicit zeros to be kept, got stagnation=%d escape_run_limit=%d tabu=%d",
			cfg.StagnationRounds, cfg.EscapeRunLimit, cfg.TabuSize)
	}
}

func TestClientRunRecordsDisabledStagnationReset(t *testing.T) {
	client := newTestClient(t)
	zero := 0
	summary, err := client.Run(context.Background(), RunRequest{
		Order:            10,
		Degree:           3,
		Seed:             5,
		Iterations:       50,
		StagnationRounds: &zero,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	cfg, ok, err := stats.ReadRunConfig(client.artifactsDir, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%v err=%v", ok, err)
	}
	if cfg.StagnationRounds != 0 {
		t.Fatalf("expected stagnation rounds 0, got %d", cfg.StagnationRounds)
	}
}
