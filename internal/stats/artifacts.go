package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/model"
	"graphgolf/internal/storage"
)

const (
	runIndexFile = "run_index.json"
	configFile   = "config.json"
	summaryFile  = "summary.json"
	progressFile = "progress.csv"
)

type RunConfig struct {
	RunID             string             `json:"run_id"`
	Order             int                `json:"order"`
	Degree            int                `json:"degree"`
	Seed              int64              `json:"seed"`
	Workers           int                `json:"workers"`
	Iterations        int                `json:"iterations"`
	TimeBudgetMS      int64              `json:"time_budget_ms"`
	InitialEdgesPath  string             `json:"initial_edges_path,omitempty"`
	StrategyWeights   map[string]float64 `json:"strategy_weights"`
	EscapeProbability float64            `json:"escape_probability"`
	EscapeRunLimit    int                `json:"escape_run_limit"`
	StopAtLowerBound  bool               `json:"stop_at_lower_bound"`
	RoundLength       int                `json:"round_length"`
	StagnationRounds  int                `json:"stagnation_rounds"`
	RetryLimit        int                `json:"retry_limit"`
	TabuSize          int                `json:"tabu_size"`
	BulkSchedule      string             `json:"bulk_schedule"`
	BulkPercent       float64            `json:"bulk_percent"`
	AdaptiveWindow    int                `json:"adaptive_window"`
}

type WorkerSummary struct {
	Worker     int     `json:"worker"`
	Seed       int64   `json:"seed"`
	Iterations int     `json:"iterations"`
	Accepted   int     `json:"accepted"`
	Diameter   int     `json:"diameter"`
	ASPL       float64 `json:"aspl"`
	StopReason string  `json:"stop_reason"`
}

type RunSummary struct {
	RunID           string          `json:"run_id"`
	Order           int             `json:"order"`
	Degree          int             `json:"degree"`
	BoundDiameter   int             `json:"bound_diameter"`
	BoundASPL       float64         `json:"bound_aspl"`
	InitialDiameter int             `json:"initial_diameter"`
	InitialASPL     float64         `json:"initial_aspl"`
	FinalDiameter   int             `json:"final_diameter"`
	FinalASPL       float64         `json:"final_aspl"`
	Ideal           bool            `json:"ideal"`
	StopReason      string          `json:"stop_reason"`
	Iterations      int             `json:"iterations"`
	Accepted        int             `json:"accepted"`
	Rejected        int             `json:"rejected"`
	Invalid         int             `json:"invalid"`
	Disconnected    int             `json:"disconnected"`
	Structural      int             `json:"structural"`
	Escapes         int             `json:"escapes"`
	ElapsedMS       int64           `json:"elapsed_ms"`
	BFSRuns         int64           `json:"bfs_runs"`
	ReusedVectors   int64           `json:"reused_vectors"`
	EdgesFile       string          `json:"edges_file"`
	Workers         []WorkerSummary `json:"workers,omitempty"`
}

type RunArtifacts struct {
	Config   RunConfig
	Summary  RunSummary
	Progress []model.ProgressPoint
	Best     *graph.Graph
	Metrics  metric.Metrics
}

type RunIndexEntry struct {
	RunID         string  `json:"run_id"`
	Order         int     `json:"order"`
	Degree        int     `json:"degree"`
	Seed          int64   `json:"seed"`
	Workers       int     `json:"workers"`
	Iterations    int     `json:"iterations"`
	FinalDiameter int     `json:"final_diameter"`
	FinalASPL     float64 `json:"final_aspl"`
	StopReason    string  `json:"stop_reason"`
	CreatedAtUTC  string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes config.json, summary.json, progress.csv and the
// best graph's edges file under baseDir/<run id>.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if artifacts.Best != nil {
		path, err := storage.SaveEdgeList(runDir, artifacts.Best, artifacts.Metrics)
		if err != nil {
			return "", err
		}
		artifacts.Summary.EdgesFile = filepath.Base(path)
	}
	if artifacts.Summary.RunID == "" {
		artifacts.Summary.RunID = artifacts.Config.RunID
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	if err := WriteProgress(runDir, artifacts.Progress); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// readRunIndex returns entries in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries := []RunIndexEntry{}
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies every file of a run directory to outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

var progressHeader = []string{"worker", "iteration", "elapsed_ms", "diameter", "aspl", "total_distance", "strategy"}

func WriteProgress(runDir string, progress []model.ProgressPoint) error {
	file, err := os.Create(filepath.Join(runDir, progressFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(progressHeader); err != nil {
		return err
	}
	for _, p := range progress {
		if err := writer.Write([]string{
			strconv.Itoa(p.Worker),
			strconv.Itoa(p.Iteration),
			strconv.FormatInt(p.ElapsedMS, 10),
			strconv.Itoa(p.Diameter),
			strconv.FormatFloat(p.ASPL, 'f', -1, 64),
			strconv.FormatInt(p.TotalDistance, 10),
			p.Strategy,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadProgress(baseDir, runID string) ([]model.ProgressPoint, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, progressFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.ProgressPoint{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(progressHeader) {
		return nil, false, fmt.Errorf("progress header must have %d columns", len(progressHeader))
	}

	progress := make([]model.ProgressPoint, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		p, err := parseProgressRow(record)
		if err != nil {
			return nil, false, err
		}
		progress = append(progress, p)
	}
	return progress, true, nil
}

func parseProgressRow(record []string) (model.ProgressPoint, error) {
	var (
		p   model.ProgressPoint
		err error
	)
	if p.Worker, err = strconv.Atoi(record[0]); err != nil {
		return p, err
	}
	if p.Iteration, err = strconv.Atoi(record[1]); err != nil {
		return p, err
	}
	if p.ElapsedMS, err = strconv.ParseInt(record[2], 10, 64); err != nil {
		return p, err
	}
	if p.Diameter, err = strconv.Atoi(record[3]); err != nil {
		return p, err
	}
	if p.ASPL, err = strconv.ParseFloat(record[4], 64); err != nil {
		return p, err
	}
	if p.TotalDistance, err = strconv.ParseInt(record[5], 10, 64); err != nil {
		return p, err
	}
	p.Strategy = record[6]
	return p, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
