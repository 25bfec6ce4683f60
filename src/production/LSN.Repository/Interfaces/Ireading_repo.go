package interfaces

import (
	"context"
	"time"

	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
)

// HistoryQuery selects readings received at or after Since.
// An empty NodeID means all nodes; Limit <= 0 means unbounded.
type HistoryQuery struct {
	NodeID string
	Since  time.Time
	Limit  int
}

// ReadingRepository is the Reading Store: an append-only reading table plus
// one mutable NodeState per node. Every mutating call is one atomic unit.
type ReadingRepository interface {
	// Reading operations
	Insert(ctx context.Context, reading *lsnmodels.Reading) (int64, error)
	UpsertNodeState(ctx context.Context, state lsnmodels.NodeState) error

	// Query operations
	LatestPerNode(ctx context.Context) ([]lsnmodels.Reading, error)
	History(ctx context.Context, q HistoryQuery) ([]lsnmodels.Reading, error)
	ExportSince(ctx context.Context, since time.Time) ([]lsnmodels.Reading, error)
	ListNodeStates(ctx context.Context) ([]lsnmodels.NodeState, error)
	GetNodeState(ctx context.Context, nodeID string) (*lsnmodels.NodeState, error)

	// Statistics
	CountReadings(ctx context.Context) (int64, error)
	CountActiveNodes(ctx context.Context, since time.Time) (int64, error)
	AverageRSSI(ctx context.Context, since time.Time) (float64, error)
	LastReceivedAt(ctx context.Context) (*time.Time, error)

	// Retention
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
}
