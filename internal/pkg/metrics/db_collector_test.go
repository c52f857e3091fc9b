package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	acquired, idle, max int32
	acquires            int64
	wait                time.Duration
}

func (s fakeStats) AcquiredConns() int32           { return s.acquired }
func (s fakeStats) IdleConns() int32               { return s.idle }
func (s fakeStats) MaxConns() int32                { return s.max }
func (s fakeStats) AcquireCount() int64            { return s.acquires }
func (s fakeStats) AcquireDuration() time.Duration { return s.wait }

func TestDBPoolCollector(t *testing.T) {
	stats := fakeStats{acquired: 3, idle: 2, max: 10, acquires: 42, wait: 1500 * time.Millisecond}
	collector := newDBPoolCollector(func() PoolStats { return stats })

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(collector))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	expected := `
# HELP healthboard_db_pool_acquire_wait_seconds_total Total time spent waiting for a connection
# TYPE healthboard_db_pool_acquire_wait_seconds_total counter
healthboard_db_pool_acquire_wait_seconds_total 1.5
# HELP healthboard_db_pool_acquires_total Total connection acquisitions from the pool
# TYPE healthboard_db_pool_acquires_total counter
healthboard_db_pool_acquires_total 42
# HELP healthboard_db_pool_connections Number of database connections by state
# TYPE healthboard_db_pool_connections gauge
healthboard_db_pool_connections{state="idle"} 2
healthboard_db_pool_connections{state="in_use"} 3
healthboard_db_pool_connections{state="max"} 10
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))
}

func TestDBPoolCollector_ReadsStatsPerScrape(t *testing.T) {
	stats := fakeStats{acquires: 1}
	collector := newDBPoolCollector(func() PoolStats { return stats })

	assert.Equal(t, 5, testutil.CollectAndCount(collector))

	stats.acquires = 7
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(collector))
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "healthboard_db_pool_acquires_total" {
			assert.Equal(t, 7.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
