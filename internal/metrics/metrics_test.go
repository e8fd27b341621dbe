package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("posts_published", nil)
	r.IncrementCounter("posts_published", nil)
	r.AddToCounter("posts_published", 3, nil)

	assert.Equal(t, float64(5), r.CounterValue("posts_published", nil))
	assert.Equal(t, float64(0), r.CounterValue("missing", nil))
}

func TestRegistry_CountersKeyedByLabels(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("api_calls", map[string]string{"operation": "fetch"})
	r.IncrementCounter("api_calls", map[string]string{"operation": "post"})
	r.IncrementCounter("api_calls", map[string]string{"operation": "post"})

	assert.Equal(t, float64(1), r.CounterValue("api_calls", map[string]string{"operation": "fetch"}))
	assert.Equal(t, float64(2), r.CounterValue("api_calls", map[string]string{"operation": "post"}))
}

func TestRegistry_Timers(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("call_duration", 10*time.Millisecond, nil)
	r.RecordTimer("call_duration", 30*time.Millisecond, nil)

	snapshot := r.Snapshot()
	timers, ok := snapshot["timers"].([]*TimerMetric)
	require.True(t, ok)
	require.Len(t, timers, 1)

	timer := timers[0]
	assert.Equal(t, int64(2), timer.Count)
	assert.InDelta(t, 10, timer.Min, 0.01)
	assert.InDelta(t, 30, timer.Max, 0.01)
	assert.InDelta(t, 20, timer.Average, 0.01)
}

func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending_confirmations", 3, nil)
	r.SetGauge("pending_confirmations", 1, nil)

	snapshot := r.Snapshot()
	gauges, ok := snapshot["gauges"].([]*Metric)
	require.True(t, ok)
	require.Len(t, gauges, 1)
	assert.Equal(t, float64(1), gauges[0].Value)
}

func TestRegistry_SnapshotIsSorted(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("zebra", nil)
	r.IncrementCounter("alpha", nil)

	snapshot := r.Snapshot()
	counters, ok := snapshot["counters"].([]*Metric)
	require.True(t, ok)
	require.Len(t, counters, 2)
	assert.Equal(t, "alpha", counters[0].Name)
	assert.Equal(t, "zebra", counters[1].Name)

	uptime, ok := snapshot["uptime_seconds"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, uptime, float64(0))
}
