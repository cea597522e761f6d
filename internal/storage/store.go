package storage

import (
	"context"

	"graphgolf/internal/model"
)

// Store persists best graphs and run summaries across invocations.
type Store interface {
	Init(ctx context.Context) error
	SaveGraph(ctx context.Context, record model.GraphRecord) error
	GetGraph(ctx context.Context, id string) (model.GraphRecord, bool, error)
	// BestGraph returns the stored graph with the lowest (diameter, total
	// distance) for the given order and degree.
	BestGraph(ctx context.Context, order, degree int) (model.GraphRecord, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first; limit <= 0 returns all of them.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
}
