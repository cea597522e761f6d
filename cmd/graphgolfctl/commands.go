package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"graphgolf/internal/graph"
	"graphgolf/internal/storage"
	golfapi "graphgolf/pkg/graphgolf"
)

func parseOrderDegree(args []string) (int, int, error) {
	order, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid order %q", args[0])
	}
	degree, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid degree %q", args[1])
	}
	return order, degree, nil
}

func printBounds(w io.Writer, b golfapi.BoundsSummary) {
	fmt.Fprintf(w, "order=%d degree=%d lower bound: diameter=%d aspl=%.6f\n", b.Order, b.Degree, b.Diameter, b.ASPL)
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run ORDER DEGREE",
		Short: "Search for a better regular graph",
		Long: `Run the enhancer on a random regular graph, or on the graph in --edges,
until the iteration limit, the time budget, the lower bound or Ctrl-C.
The best graph is always written to the run's artifacts directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, degree, err := parseOrderDegree(args)
			if err != nil {
				return err
			}
			cfg := runConfig{}
			if configPath != "" {
				if cfg, err = loadRunConfig(configPath); err != nil {
					return err
				}
			}
			if err := overrideFromFlags(&cfg, cmd.Flags()); err != nil {
				return err
			}
			req, err := cfg.runRequest(order, degree)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			req.OnImprovement = func(imp golfapi.Improvement) {
				fmt.Fprintf(out, "worker=%d iteration=%s elapsed=%s diameter=%d aspl=%.6f strategy=%s\n",
					imp.Worker, humanize.Comma(int64(imp.Iteration)), imp.Elapsed.Round(time.Millisecond),
					imp.Diameter, imp.ASPL, imp.Strategy)
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			bounds, err := client.Bounds(order, degree)
			if err != nil {
				return err
			}
			printBounds(out, bounds)

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "run_id=%s stop=%s iterations=%s accepted=%s escapes=%s elapsed=%s\n",
				summary.RunID, summary.StopReason, humanize.Comma(int64(summary.Iterations)),
				humanize.Comma(int64(summary.Accepted)), humanize.Comma(int64(summary.Escapes)),
				summary.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(out, "initial: diameter=%d aspl=%.6f\n", summary.InitialDiameter, summary.InitialASPL)
			fmt.Fprintf(out, "best: diameter=%d aspl=%.6f ideal=%t\n", summary.Diameter, summary.ASPL, summary.Ideal)
			fmt.Fprintf(out, "edges=%s\n", summary.EdgesFile)
			if summary.OutEdgesFile != "" {
				fmt.Fprintf(out, "out=%s\n", summary.OutEdgesFile)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML run configuration")
	f.Int("iterations", 0, "iteration limit per worker (0 = unbounded)")
	f.Duration("time", 0, "wall-clock budget (0 = unbounded)")
	f.Int64("seed", 0, "base seed; worker i uses seed+i")
	f.Int("workers", 1, "independent search workers")
	f.String("edges", "", "start from the graph in this edges file")
	f.String("out-dir", "", "also write the best edges file here")
	f.Float64("escape-probability", 0, "probability of accepting a worse graph")
	f.Int("escape-run-limit", 0, "max consecutive escapes before forcing improvement (0 = no escapes)")
	f.Bool("stop-at-lower-bound", false, "stop once the lower bound is reached")
	f.Float64("w-random-relink", 0, "random_relink strategy weight")
	f.Float64("w-diameter-relink", 0, "diameter_relink strategy weight")
	f.Float64("w-bulk-replace", 0, "bulk_replace strategy weight")
	f.Int("round-length", 0, "iterations per round")
	f.Int("stagnation-rounds", 0, "rounds without improvement before a reset to the best graph (0 = never)")
	f.Int("retry-limit", 0, "proposal retries per iteration")
	f.Int("tabu-size", 0, "recently accepted graphs a non-improving candidate may not revisit (0 = off)")
	f.String("bulk-schedule", "", "bulk percent schedule: fixed|linear_decay|cyclic")
	f.Float64("bulk-percent", 0, "percent of edges replaced by bulk_replace")
	f.Int("adaptive-window", 0, "improvement window of the adaptive selector")
	return cmd
}

func newBoundsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bounds ORDER DEGREE",
		Short: "Print the Moore lower bounds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, degree, err := parseOrderDegree(args)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			bounds, err := client.Bounds(order, degree)
			if err != nil {
				return err
			}
			printBounds(cmd.OutOrStdout(), bounds)
			return nil
		},
	}
}

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	var crossCheck bool
	cmd := &cobra.Command{
		Use:   "analyze ORDER DEGREE EDGES_FILE",
		Short: "Score the graph in an edges file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, degree, err := parseOrderDegree(args)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			a, err := client.Analyze(cmd.Context(), golfapi.AnalyzeRequest{
				Order:      order,
				Degree:     degree,
				EdgesPath:  args[2],
				CrossCheck: crossCheck,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printBounds(out, a.Bounds)
			fmt.Fprintf(out, "diameter=%d aspl=%.6f total_distance=%s regular=%t ideal=%t\n",
				a.Diameter, a.ASPL, humanize.Comma(a.TotalDistance), a.Regular, a.Ideal)
			fmt.Fprintf(out, "diameter gap=%d aspl gap=%.6f\n", a.Diameter-a.Bounds.Diameter, a.ASPL-a.Bounds.ASPL)
			if a.CrossChecked {
				fmt.Fprintln(out, "cross-check: ok")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&crossCheck, "crosscheck", false, "verify metrics against an independent shortest-path pass")
	return cmd
}

func newBestCmd(opts *globalOptions) *cobra.Command {
	var edgesOut string
	cmd := &cobra.Command{
		Use:   "best ORDER DEGREE",
		Short: "Show the best stored graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, degree, err := parseOrderDegree(args)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			best, ok, err := client.Best(cmd.Context(), order, degree)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "no stored graph for order=%d degree=%d\n", order, degree)
				return nil
			}
			fmt.Fprintf(out, "graph_id=%s run_id=%s diameter=%d aspl=%.6f edges=%s\n",
				best.GraphID, best.RunID, best.Diameter, best.ASPL, humanize.Comma(int64(len(best.Edges))))
			if edgesOut != "" {
				if err := writeBestEdges(edgesOut, order, degree, best); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", edgesOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&edgesOut, "edges-out", "", "write the best graph as an edges file")
	return cmd
}

func writeBestEdges(path string, order, degree int, best golfapi.BestItem) error {
	edges := make([]graph.Edge, len(best.Edges))
	for i, e := range best.Edges {
		edges[i] = graph.NewEdge(e.U, e.V)
	}
	g, err := graph.FromEdges(order, degree, edges)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := storage.WriteEdgeList(file, g); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()
			out := cmd.OutOrStdout()

			if runID != "" {
				detail, ok, err := client.RunDetail(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("run not found: %s", runID)
				}
				if asJSON {
					return writeIndentedJSON(out, detail)
				}
				r := detail.Run
				fmt.Fprintf(out, "run_id=%s order=%d degree=%d seed=%d workers=%d stop=%s\n",
					r.ID, r.Order, r.Degree, r.Seed, r.Workers, r.StopReason)
				fmt.Fprintf(out, "iterations=%s accepted=%s rejected=%s invalid=%s disconnected=%s escapes=%s\n",
					humanize.Comma(int64(r.Iterations)), humanize.Comma(int64(r.Accepted)),
					humanize.Comma(int64(r.Rejected)), humanize.Comma(int64(r.Invalid)),
					humanize.Comma(int64(r.Disconnected)), humanize.Comma(int64(r.Escapes)))
				fmt.Fprintf(out, "initial: diameter=%d aspl=%.6f\n", r.InitialDiameter, r.InitialASPL)
				fmt.Fprintf(out, "best: diameter=%d aspl=%.6f improvements=%d\n", r.FinalDiameter, r.FinalASPL, len(r.Progress))
				return nil
			}

			runs, err := client.Runs(cmd.Context(), golfapi.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndentedJSON(out, runs)
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s %s order=%d degree=%d diameter=%d aspl=%.6f iterations=%s stop=%s\n",
					r.RunID, createdAgo(r.CreatedAtUTC), r.Order, r.Degree, r.Diameter, r.ASPL,
					humanize.Comma(int64(r.Iterations)), r.StopReason)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&limit, "limit", 20, "max runs to list")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	f.StringVar(&runID, "id", "", "show one stored run")
	return cmd
}

func createdAgo(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(t)
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			defer client.Close()

			exported, err := client.Export(cmd.Context(), golfapi.ExportRequest{
				RunID:  runID,
				Latest: latest,
				OutDir: outDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&runID, "run-id", "", "run to export")
	f.BoolVar(&latest, "latest", false, "export the newest run")
	f.StringVar(&outDir, "out", "", "export directory (defaults to --exports-dir)")
	return cmd
}
