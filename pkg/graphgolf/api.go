// Package graphgolf searches for low-diameter, low-ASPL regular graphs and
// keeps the results in a store and a run artifacts directory.
package graphgolf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"graphgolf/internal/enhance"
	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/model"
	"graphgolf/internal/search"
	"graphgolf/internal/stats"
	"graphgolf/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "graphgolf.db"
)

var ErrCrossCheckMismatch = errors.New("cross-check mismatch")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	artifactsDir string
	exportsDir   string

	initOnce sync.Once
	initErr  error
}

type Edge struct {
	U int
	V int
}

type Improvement struct {
	Worker    int
	Iteration int
	Elapsed   time.Duration
	Diameter  int
	ASPL      float64
	Strategy  string
}

type RunRequest struct {
	Order   int
	Degree  int
	Workers int
	Seed    int64
	// EdgesPath seeds every worker with the graph in that edges file
	// instead of a random regular graph.
	EdgesPath string
	// OutDir also receives the best graph's edges file when set.
	OutDir string

	Iterations int
	TimeBudget time.Duration

	StrategyWeights map[string]float64
	// EscapeProbability, EscapeRunLimit, StagnationRounds and TabuSize keep
	// their defaults when nil. Zero disables escapes, stagnation resets or the
	// tabu memory.
	EscapeProbability *float64
	EscapeRunLimit    *int
	StopAtLowerBound  bool
	RoundLength       int
	StagnationRounds  *int
	RetryLimit        int
	TabuSize          *int
	BulkSchedule      string
	BulkPercent       float64
	AdaptiveWindow    int

	OnImprovement func(Improvement)
}

type BoundsSummary struct {
	Order    int
	Degree   int
	Diameter int
	ASPL     float64
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	EdgesFile    string
	OutEdgesFile string
	GraphID      string
	Bounds       BoundsSummary

	InitialDiameter int
	InitialASPL     float64
	Diameter        int
	ASPL            float64
	Ideal           bool

	StopReason   string
	Iterations   int
	Accepted     int
	Rejected     int
	Invalid      int
	Disconnected int
	Structural   int
	Escapes      int
	Elapsed      time.Duration
	Edges        []Edge
}

type AnalyzeRequest struct {
	Order      int
	Degree     int
	EdgesPath  string
	CrossCheck bool
}

type Analysis struct {
	Bounds        BoundsSummary
	Diameter      int
	ASPL          float64
	TotalDistance int64
	Ideal         bool
	Regular       bool
	CrossChecked  bool
}

type BestItem struct {
	GraphID      string
	RunID        string
	Diameter     int
	ASPL         float64
	CreatedAtUTC string
	Edges        []Edge
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Order        int
	Degree       int
	Seed         int64
	Workers      int
	Iterations   int
	Diameter     int
	ASPL         float64
	StopReason   string
}

type RunDetail struct {
	Run  model.RunRecord
	Best BestItem
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Bounds returns the Moore lower bounds for the given order and degree.
func (c *Client) Bounds(order, degree int) (BoundsSummary, error) {
	b, err := graph.LowerBounds(order, degree)
	if err != nil {
		return BoundsSummary{}, err
	}
	return boundsSummary(order, degree, b), nil
}

// Run searches with req.Workers independent seeded workers and persists the
// best graph. Cancelling ctx ends the search early; the best graph found so
// far is still stored and returned.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	bounds, err := graph.LowerBounds(req.Order, req.Degree)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	cfg := searchConfig(req, c.logger)
	start, err := c.startFunc(req)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	c.logger.Info("run started", "run_id", runID, "order", req.Order, "degree", req.Degree, "workers", req.Workers, "seed", req.Seed)
	result, err := search.Portfolio{Config: cfg, Workers: req.Workers, Start: start}.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	// persistence outlives a cancelled search
	persistCtx := context.WithoutCancel(ctx)
	return c.persist(persistCtx, runID, req, cfg, bounds, result)
}

func (c *Client) startFunc(req RunRequest) (search.StartFunc, error) {
	if req.EdgesPath == "" {
		return func(_ int, seed int64) (*graph.Graph, error) {
			return graph.RandomRegular(req.Order, req.Degree, rand.New(rand.NewSource(seed)))
		}, nil
	}
	initial, err := storage.LoadEdgeList(req.EdgesPath, req.Order, req.Degree)
	if err != nil {
		return nil, err
	}
	return func(int, int64) (*graph.Graph, error) {
		return initial.Clone(), nil
	}, nil
}

func (c *Client) persist(ctx context.Context, runID string, req RunRequest, cfg search.Config, bounds graph.Bounds, result search.PortfolioResult) (RunSummary, error) {
	best := result.Best
	now := time.Now().UTC().Format(time.RFC3339Nano)

	initial := result.Workers[0].Initial
	var counters enhance.Counters
	var progress []model.ProgressPoint
	workers := make([]stats.WorkerSummary, 0, len(result.Workers))
	for _, w := range result.Workers {
		if w.Initial.Better(initial) {
			initial = w.Initial
		}
		counters = addCounters(counters, w.Counters)
		for _, imp := range w.Progress {
			progress = append(progress, progressPoint(imp))
		}
		workers = append(workers, stats.WorkerSummary{
			Worker:     w.Worker,
			Seed:       w.Seed,
			Iterations: w.Counters.Iterations,
			Accepted:   w.Counters.Accepted,
			Diameter:   w.BestMetrics.Diameter,
			ASPL:       w.BestMetrics.ASPL(),
			StopReason: string(w.StopReason),
		})
	}

	graphRecord := storage.NewGraphRecord(uuid.NewString(), runID, best.Best, best.BestMetrics)
	if err := c.store.SaveGraph(ctx, graphRecord); err != nil {
		return RunSummary{}, fmt.Errorf("save best graph: %w", err)
	}

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Order:           req.Order,
		Degree:          req.Degree,
		Seed:            req.Seed,
		Workers:         req.Workers,
		Iterations:      counters.Iterations,
		Accepted:        counters.Accepted,
		Rejected:        counters.Rejected,
		Invalid:         counters.Invalid,
		Disconnected:    counters.Disconnected,
		Structural:      counters.Structural,
		Escapes:         counters.Escapes,
		StopReason:      string(best.StopReason),
		InitialDiameter: initial.Diameter,
		InitialASPL:     initial.ASPL(),
		FinalDiameter:   best.BestMetrics.Diameter,
		FinalASPL:       best.BestMetrics.ASPL(),
		BestGraphID:     graphRecord.ID,
		Progress:        progress,
		CreatedAtUTC:    now,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}

	var stopAfter time.Duration
	for _, w := range result.Workers {
		if w.Elapsed > stopAfter {
			stopAfter = w.Elapsed
		}
	}
	engine := metric.Stats{}
	for _, w := range result.Workers {
		engine.BFSRuns += w.EngineStats.BFSRuns
		engine.ReusedVectors += w.EngineStats.ReusedVectors
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:             runID,
			Order:             req.Order,
			Degree:            req.Degree,
			Seed:              req.Seed,
			Workers:           req.Workers,
			Iterations:        cfg.Iterations,
			TimeBudgetMS:      cfg.TimeBudget.Milliseconds(),
			InitialEdgesPath:  req.EdgesPath,
			StrategyWeights:   cfg.StrategyWeights,
			EscapeProbability: cfg.EscapeProbability,
			EscapeRunLimit:    cfg.EscapeRunLimit,
			StopAtLowerBound:  cfg.StopAtLowerBound,
			RoundLength:       cfg.RoundLength,
			StagnationRounds:  cfg.StagnationRounds,
			RetryLimit:        cfg.RetryLimit,
			TabuSize:          cfg.TabuSize,
			BulkSchedule:      cfg.BulkSchedule,
			BulkPercent:       cfg.BulkPercent,
			AdaptiveWindow:    cfg.AdaptiveWindow,
		},
		Summary: stats.RunSummary{
			RunID:           runID,
			Order:           req.Order,
			Degree:          req.Degree,
			BoundDiameter:   bounds.Diameter,
			BoundASPL:       bounds.ASPL,
			InitialDiameter: run.InitialDiameter,
			InitialASPL:     run.InitialASPL,
			FinalDiameter:   run.FinalDiameter,
			FinalASPL:       run.FinalASPL,
			Ideal:           best.Ideal(),
			StopReason:      run.StopReason,
			Iterations:      counters.Iterations,
			Accepted:        counters.Accepted,
			Rejected:        counters.Rejected,
			Invalid:         counters.Invalid,
			Disconnected:    counters.Disconnected,
			Structural:      counters.Structural,
			Escapes:         counters.Escapes,
			ElapsedMS:       stopAfter.Milliseconds(),
			BFSRuns:         engine.BFSRuns,
			ReusedVectors:   engine.ReusedVectors,
			Workers:         workers,
		},
		Progress: progress,
		Best:     best.Best,
		Metrics:  best.BestMetrics,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:         runID,
		Order:         req.Order,
		Degree:        req.Degree,
		Seed:          req.Seed,
		Workers:       req.Workers,
		Iterations:    counters.Iterations,
		FinalDiameter: run.FinalDiameter,
		FinalASPL:     run.FinalASPL,
		StopReason:    run.StopReason,
		CreatedAtUTC:  now,
	}); err != nil {
		return RunSummary{}, err
	}
	var outEdges string
	if req.OutDir != "" {
		if outEdges, err = storage.SaveEdgeList(req.OutDir, best.Best, best.BestMetrics); err != nil {
			return RunSummary{}, err
		}
	}

	c.logger.Info("run finished", "run_id", runID, "diameter", run.FinalDiameter, "aspl", run.FinalASPL, "reason", run.StopReason)
	return RunSummary{
		RunID:           runID,
		ArtifactsDir:    filepath.Clean(runDir),
		EdgesFile:       filepath.Join(filepath.Clean(runDir), storage.EdgesFilename(req.Order, req.Degree, best.BestMetrics)),
		OutEdgesFile:    outEdges,
		GraphID:         graphRecord.ID,
		Bounds:          boundsSummary(req.Order, req.Degree, bounds),
		InitialDiameter: run.InitialDiameter,
		InitialASPL:     run.InitialASPL,
		Diameter:        run.FinalDiameter,
		ASPL:            run.FinalASPL,
		Ideal:           best.Ideal(),
		StopReason:      run.StopReason,
		Iterations:      counters.Iterations,
		Accepted:        counters.Accepted,
		Rejected:        counters.Rejected,
		Invalid:         counters.Invalid,
		Disconnected:    counters.Disconnected,
		Structural:      counters.Structural,
		Escapes:         counters.Escapes,
		Elapsed:         stopAfter,
		Edges:           edgesOf(best.Best),
	}, nil
}

// Analyze scores the graph in an edges file.
func (c *Client) Analyze(_ context.Context, req AnalyzeRequest) (Analysis, error) {
	bounds, err := graph.LowerBounds(req.Order, req.Degree)
	if err != nil {
		return Analysis{}, err
	}
	g, err := storage.LoadEdgeList(req.EdgesPath, req.Order, req.Degree)
	if err != nil {
		return Analysis{}, err
	}
	m, err := metric.Evaluate(g)
	if err != nil {
		return Analysis{}, err
	}
	out := Analysis{
		Bounds:        boundsSummary(req.Order, req.Degree, bounds),
		Diameter:      m.Diameter,
		ASPL:          m.ASPL(),
		TotalDistance: m.TotalDistance,
		Ideal:         bounds.IsIdeal(m.Diameter, m.TotalDistance),
		Regular:       g.IsRegular(),
	}
	if req.CrossCheck {
		check, err := metric.CrossCheck(g)
		if err != nil {
			return Analysis{}, err
		}
		if check.Compare(m) != 0 {
			return Analysis{}, fmt.Errorf("%w: bfs %s, gonum %s", ErrCrossCheckMismatch, m, check)
		}
		out.CrossChecked = true
	}
	return out, nil
}

// Best returns the best stored graph for the given order and degree.
func (c *Client) Best(ctx context.Context, order, degree int) (BestItem, bool, error) {
	if err := c.Init(ctx); err != nil {
		return BestItem{}, false, err
	}
	record, ok, err := c.store.BestGraph(ctx, order, degree)
	if err != nil || !ok {
		return BestItem{}, ok, err
	}
	return bestItem(record), true, nil
}

// Runs lists the run index newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Order:        e.Order,
			Degree:       e.Degree,
			Seed:         e.Seed,
			Workers:      e.Workers,
			Iterations:   e.Iterations,
			Diameter:     e.FinalDiameter,
			ASPL:         e.FinalASPL,
			StopReason:   e.StopReason,
		})
	}
	return out, nil
}

// RunDetail returns a stored run with its best graph.
func (c *Client) RunDetail(ctx context.Context, runID string) (RunDetail, bool, error) {
	if err := c.Init(ctx); err != nil {
		return RunDetail{}, false, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil || !ok {
		return RunDetail{}, ok, err
	}
	detail := RunDetail{Run: run}
	if run.BestGraphID != "" {
		record, ok, err := c.store.GetGraph(ctx, run.BestGraphID)
		if err != nil {
			return RunDetail{}, false, err
		}
		if ok {
			detail.Best = bestItem(record)
		}
	}
	return detail, true, nil
}

// StoredRuns lists runs kept in the store, newest first.
func (c *Client) StoredRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c.store.ListRuns(ctx, limit)
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func searchConfig(req RunRequest, logger *slog.Logger) search.Config {
	cfg := search.DefaultConfig()
	cfg.Logger = logger
	cfg.Seed = req.Seed
	cfg.Iterations = req.Iterations
	cfg.TimeBudget = req.TimeBudget
	cfg.StopAtLowerBound = req.StopAtLowerBound
	if len(req.StrategyWeights) > 0 {
		cfg.StrategyWeights = req.StrategyWeights
	}
	if req.EscapeProbability != nil {
		cfg.EscapeProbability = *req.EscapeProbability
	}
	if req.EscapeRunLimit != nil {
		cfg.EscapeRunLimit = *req.EscapeRunLimit
	}
	if req.RoundLength > 0 {
		cfg.RoundLength = req.RoundLength
	}
	if req.StagnationRounds != nil {
		cfg.StagnationRounds = *req.StagnationRounds
	}
	if req.RetryLimit > 0 {
		cfg.RetryLimit = req.RetryLimit
	}
	if req.TabuSize != nil {
		cfg.TabuSize = *req.TabuSize
	}
	if req.BulkSchedule != "" {
		cfg.BulkSchedule = req.BulkSchedule
	}
	if req.BulkPercent > 0 {
		cfg.BulkPercent = req.BulkPercent
	}
	if req.AdaptiveWindow > 0 {
		cfg.AdaptiveWindow = req.AdaptiveWindow
	}
	if req.OnImprovement != nil {
		forward := req.OnImprovement
		cfg.OnImprovement = func(imp search.Improvement) {
			forward(Improvement{
				Worker:    imp.Worker,
				Iteration: imp.Iteration,
				Elapsed:   imp.Elapsed,
				Diameter:  imp.Metrics.Diameter,
				ASPL:      imp.Metrics.ASPL(),
				Strategy:  imp.Strategy,
			})
		}
	}
	return cfg
}

func boundsSummary(order, degree int, b graph.Bounds) BoundsSummary {
	return BoundsSummary{Order: order, Degree: degree, Diameter: b.Diameter, ASPL: b.ASPL}
}

func progressPoint(imp search.Improvement) model.ProgressPoint {
	return model.ProgressPoint{
		Worker:        imp.Worker,
		Iteration:     imp.Iteration,
		ElapsedMS:     imp.Elapsed.Milliseconds(),
		Diameter:      imp.Metrics.Diameter,
		ASPL:          imp.Metrics.ASPL(),
		TotalDistance: imp.Metrics.TotalDistance,
		Strategy:      imp.Strategy,
	}
}

func addCounters(a, b enhance.Counters) enhance.Counters {
	return enhance.Counters{
		Iterations:   a.Iterations + b.Iterations,
		Accepted:     a.Accepted + b.Accepted,
		Rejected:     a.Rejected + b.Rejected,
		Invalid:      a.Invalid + b.Invalid,
		Disconnected: a.Disconnected + b.Disconnected,
		Structural:   a.Structural + b.Structural,
		Escapes:      a.Escapes + b.Escapes,
	}
}

func edgesOf(g *graph.Graph) []Edge {
	edges := g.Edges()
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = Edge{U: e.U, V: e.V}
	}
	return out
}

func bestItem(record model.GraphRecord) BestItem {
	edges := make([]Edge, len(record.Edges))
	for i, e := range record.Edges {
		edges[i] = Edge{U: e.U, V: e.V}
	}
	return BestItem{
		GraphID:      record.ID,
		RunID:        record.RunID,
		Diameter:     record.Diameter,
		ASPL:         record.ASPL,
		CreatedAtUTC: record.CreatedAtUTC,
		Edges:        edges,
	}
}
