package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"graphgolf/internal/graph"
	"graphgolf/internal/metric"
)

// EdgesFilename is the canonical name of a result file.
func EdgesFilename(order, degree int, m metric.Metrics) string {
	return fmt.Sprintf("edges-order=%d-degree=%d-diameter=%d-aspl=%f", order, degree, m.Diameter, m.ASPL())
}

// WriteEdgeList writes one "u v" line per edge.
func WriteEdgeList(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	for _, e := range g.Edges() {
		if _, err := fmt.Fprintf(bw, "%d %d\n", e.U, e.V); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadEdgeList parses the format written by WriteEdgeList. Blank lines and
// lines starting with '#' are skipped.
func ReadEdgeList(r io.Reader) ([]graph.Edge, error) {
	var edges []graph.Edge
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected two vertices, got %q", line, text)
		}
		u, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		edges = append(edges, graph.NewEdge(u, v))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}

// LoadEdgeList reads an edges file into a graph of the given order and
// degree bound.
func LoadEdgeList(path string, order, degree int) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	edges, err := ReadEdgeList(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	g, err := graph.FromEdges(order, degree, edges)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// SaveEdgeList writes g under its canonical name in dir and returns the path.
func SaveEdgeList(dir string, g *graph.Graph, m metric.Metrics) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create edges dir: %w", err)
	}
	path := filepath.Join(dir, EdgesFilename(g.Order(), g.DegreeBound(), m))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteEdgeList(f, g); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
