package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Edge is an undirected edge listed once with U < V.
type Edge struct {
	U int `json:"u"`
	V int `json:"v"`
}

type GraphRecord struct {
	VersionedRecord
	ID            string  `json:"id"`
	RunID         string  `json:"run_id,omitempty"`
	Order         int     `json:"order"`
	Degree        int     `json:"degree"`
	Diameter      int     `json:"diameter"`
	ASPL          float64 `json:"aspl"`
	TotalDistance int64   `json:"total_distance"`
	Edges         []Edge  `json:"edges"`
	CreatedAtUTC  string  `json:"created_at_utc,omitempty"`
}

// ProgressPoint records a best-known improvement during a run.
type ProgressPoint struct {
	Worker        int     `json:"worker"`
	Iteration     int     `json:"iteration"`
	ElapsedMS     int64   `json:"elapsed_ms"`
	Diameter      int     `json:"diameter"`
	ASPL          float64 `json:"aspl"`
	TotalDistance int64   `json:"total_distance"`
	Strategy      string  `json:"strategy,omitempty"`
}

type RunRecord struct {
	VersionedRecord
	ID              string          `json:"id"`
	Order           int             `json:"order"`
	Degree          int             `json:"degree"`
	Seed            int64           `json:"seed"`
	Workers         int             `json:"workers"`
	Iterations      int             `json:"iterations"`
	Accepted        int             `json:"accepted"`
	Rejected        int             `json:"rejected"`
	Invalid         int             `json:"invalid"`
	Disconnected    int             `json:"disconnected"`
	Structural      int             `json:"structural"`
	Escapes         int             `json:"escapes"`
	StopReason      string          `json:"stop_reason"`
	InitialDiameter int             `json:"initial_diameter"`
	InitialASPL     float64         `json:"initial_aspl"`
	FinalDiameter   int             `json:"final_diameter"`
	FinalASPL       float64         `json:"final_aspl"`
	BestGraphID     string          `json:"best_graph_id,omitempty"`
	Progress        []ProgressPoint `json:"progress,omitempty"`
	CreatedAtUTC    string          `json:"created_at_utc,omitempty"`
}
