package retention

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	lsnmodels "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Models"
	implementation "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Implementation"
)

type recordingDeleter struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	calls   chan struct{}
}

func (d *recordingDeleter) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	d.mu.Lock()
	d.cutoffs = append(d.cutoffs, cutoff)
	d.mu.Unlock()
	if d.calls != nil {
		d.calls <- struct{}{}
	}
	return 3, d.err
}

var t0 = time.Date(2025, 9, 3, 14, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return t0 }

func TestRunOnceUsesHorizon(t *testing.T) {
	d := &recordingDeleter{}
	s := NewSweeper(d, 90, time.Hour, logger.Nop(), WithNow(fixedNow))

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, d.cutoffs, 1)
	assert.Equal(t, time.Date(2025, 6, 5, 14, 30, 0, 0, time.UTC), d.cutoffs[0])
}

func TestRunOnceReportsFailure(t *testing.T) {
	d := &recordingDeleter{err: errors.New("database is locked")}
	s := NewSweeper(d, 7, time.Hour, logger.Nop(), WithNow(fixedNow))

	n, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(0), n)

	// a failed tick only logs
	assert.NotPanics(t, s.tick)
}

func TestStartSweepsImmediately(t *testing.T) {
	d := &recordingDeleter{calls: make(chan struct{}, 4)}
	s := NewSweeper(d, 30, time.Hour, logger.Nop(), WithNow(fixedNow))
	require.NoError(t, s.Start())

	select {
	case <-d.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run on start")
	}
	s.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.cutoffs, 1)
}

func TestSweepAgainstStore(t *testing.T) {
	ctx := context.Background()
	db, err := implementation.OpenSQLite(ctx, filepath.Join(t.TempDir(), "lora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	at := t0
	repo := implementation.NewSQLReadingRepository(db, implementation.WithClock(func() time.Time { return at }))
	for _, age := range []time.Duration{100 * 24 * time.Hour, 91 * 24 * time.Hour, 89 * 24 * time.Hour, time.Hour} {
		at = t0.Add(-age)
		r := &lsnmodels.Reading{NodeID: "1001"}
		_, err := repo.Insert(ctx, r)
		require.NoError(t, err)
		require.NoError(t, repo.UpsertNodeState(ctx, lsnmodels.NodeStateFromReading(r)))
	}

	s := NewSweeper(repo, 90, 24*time.Hour, logger.Nop(), WithNow(fixedNow))
	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := repo.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	state, err := repo.GetNodeState(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(4), state.TotalReadings, "node state survives the sweep")
}
