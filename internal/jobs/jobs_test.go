package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lowStock struct {
	levels []inventory.StockLevel
	err    error
}

func (l lowStock) LowStock(context.Context) ([]inventory.StockLevel, error) { return l.levels, l.err }

type recorder struct {
	events []realtime.Event
}

func (r *recorder) Publish(ev realtime.Event) { r.events = append(r.events, ev) }

func TestLowStockSweep(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "low_stock_items"})
	pub := &recorder{}
	src := lowStock{levels: []inventory.StockLevel{
		{IngredientID: 1, Name: "Milk", CurrentQuantity: 1, MinimumQuantity: 5},
		{IngredientID: 2, Name: "Sugar", CurrentQuantity: 0, MinimumQuantity: 2},
	}}

	require.NoError(t, LowStockSweep(src, pub, gauge, zap.NewNop())(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(gauge))
	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.TableStockAlerts, pub.events[0].Table)
	assert.Equal(t, float64(2), pub.events[0].New["count"])

	require.NoError(t, LowStockSweep(lowStock{}, pub, gauge, zap.NewNop())(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(gauge))
	assert.Len(t, pub.events, 1)

	err := LowStockSweep(lowStock{err: errors.New("db down")}, pub, nil, zap.NewNop())(context.Background())
	assert.Error(t, err)
}

type purger struct{ n int }

func (p purger) PurgeSessions(context.Context) (int, error) { return p.n, nil }

type cleaner struct{ idle time.Duration }

func (c *cleaner) Cleanup(maxIdle time.Duration) int {
	c.idle = maxIdle
	return 3
}

func TestHousekeeping(t *testing.T) {
	assert.NoError(t, PurgeSessions(purger{n: 2}, zap.NewNop())(context.Background()))

	c := &cleaner{}
	assert.NoError(t, CleanupLimiter(c, 10*time.Minute, zap.NewNop())(context.Background()))
	assert.Equal(t, 10*time.Minute, c.idle)
}

func TestSchedulerRunsAndStops(t *testing.T) {
	s := NewScheduler(time.Second, zap.NewNop())
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	assert.Error(t, s.Add("bad", "not a schedule", func(context.Context) error { return nil }))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestSchedulerCancelsRunningJobOnStop(t *testing.T) {
	s := NewScheduler(time.Minute, zap.NewNop())
	started := make(chan struct{})
	require.NoError(t, s.Add("slow", "@every 1s", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
