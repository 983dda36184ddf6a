package boards

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func orderRow(id uint, status models.OrderStatus, note string) map[string]any {
	return map[string]any{"id": id, "status": string(status), "notes": note}
}

func newBoard(t *testing.T, fetch func(context.Context) (any, error)) (*Board, *realtime.Hub, *prometheus.CounterVec) {
	t.Helper()
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	refetches := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "board_refetches_total"}, []string{"board", "result"})
	b := New(Definition{
		Name:    "kitchen",
		Screens: []auth.Screen{auth.ScreenKDS},
		Watches: []Watch{{Table: realtime.TableOrders, Fields: []string{"status"}}},
		Fetch:   fetch,
	}, hub, Options{Debounce: 20 * time.Millisecond, MaxWait: 100 * time.Millisecond, Refetches: refetches}, zap.NewNop())
	t.Cleanup(func() {
		b.Close()
		hub.Close()
	})
	return b, hub, refetches
}

func TestBoardRefetchesOnlyOnSignificantChanges(t *testing.T) {
	var calls atomic.Int32
	b, hub, refetches := newBoard(t, func(context.Context) (any, error) {
		return int(calls.Add(1)), nil
	})
	b.Start(context.Background())
	require.Equal(t, 1, b.Snapshot().Data)

	updates, stop := b.Listen()
	defer stop()

	hub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Update,
		orderRow(1, models.OrderPending, "a"), orderRow(1, models.OrderPending, "b")))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	for i := 0; i < 5; i++ {
		hub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Update,
			orderRow(1, models.OrderPending, ""), orderRow(1, models.OrderCooking, "")))
	}
	select {
	case snap := <-updates:
		assert.Equal(t, 2, snap.Data)
		assert.Equal(t, uint64(2), snap.Version)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after a status change")
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(refetches.WithLabelValues("kitchen", "ok")))
}

func TestBoardKeepsLastDataOnError(t *testing.T) {
	var fail atomic.Bool
	b, hub, refetches := newBoard(t, func(context.Context) (any, error) {
		if fail.Load() {
			return nil, errors.New("db down")
		}
		return "orders", nil
	})
	b.Start(context.Background())

	fail.Store(true)
	updates, stop := b.Listen()
	defer stop()
	hub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Insert, nil, orderRow(2, models.OrderPending, "")))

	select {
	case snap := <-updates:
		assert.Equal(t, "orders", snap.Data)
		assert.NotEmpty(t, snap.Error)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after insert")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(refetches.WithLabelValues("kitchen", "error")))
}

func TestBoardAccessAndClose(t *testing.T) {
	b, _, _ := newBoard(t, func(context.Context) (any, error) { return nil, nil })
	assert.True(t, b.Allows(models.RoleKitchen))
	assert.True(t, b.Allows(models.RoleAdmin))
	assert.False(t, b.Allows(models.RoleStoreManager))

	b.Start(context.Background())
	updates, stop := b.Listen()
	b.Close()
	_, open := <-updates
	assert.False(t, open)
	stop()

	late, _ := b.Listen()
	_, open = <-late
	assert.False(t, open)
}

func TestRegistry(t *testing.T) {
	b, _, _ := newBoard(t, func(context.Context) (any, error) { return nil, nil })
	r := NewRegistry(b)
	got, ok := r.Get("kitchen")
	assert.True(t, ok)
	assert.Same(t, b, got)
	_, ok = r.Get("bar")
	assert.False(t, ok)
}
