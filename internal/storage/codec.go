package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
	"graphgolf/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeGraph(g model.GraphRecord) ([]byte, error) {
	return json.Marshal(g)
}

func DecodeGraph(data []byte) (model.GraphRecord, error) {
	var record model.GraphRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.GraphRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.GraphRecord{}, err
	}
	return record, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

// NewGraphRecord captures g and its score as a versioned record.
func NewGraphRecord(id, runID string, g *graph.Graph, m metric.Metrics) model.GraphRecord {
	edges := g.Edges()
	out := make([]model.Edge, len(edges))
	for i, e := range edges {
		out[i] = model.Edge{U: e.U, V: e.V}
	}
	return model.GraphRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		RunID:           runID,
		Order:           g.Order(),
		Degree:          g.DegreeBound(),
		Diameter:        m.Diameter,
		ASPL:            m.ASPL(),
		TotalDistance:   m.TotalDistance,
		Edges:           out,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// GraphFromRecord rebuilds the graph held by a record.
func GraphFromRecord(record model.GraphRecord) (*graph.Graph, error) {
	edges := make([]graph.Edge, len(record.Edges))
	for i, e := range record.Edges {
		edges[i] = graph.NewEdge(e.U, e.V)
	}
	g, err := graph.FromEdges(record.Order, record.Degree, edges)
	if err != nil {
		return nil, fmt.Errorf("graph record %s: %w", record.ID, err)
	}
	return g, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

// better orders graph records the way metric.Metrics does.
func better(a, b model.GraphRecord) bool {
	if a.Diameter != b.Diameter {
		return a.Diameter < b.Diameter
	}
	return a.TotalDistance < b.TotalDistance
}
