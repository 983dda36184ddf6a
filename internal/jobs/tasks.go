package jobs

import (
	"context"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.StockLevel, error)
}

type SessionPurger interface {
	PurgeSessions(ctx context.Context) (int, error)
}

type LimiterCleaner interface {
	Cleanup(maxIdle time.Duration) int
}

// LowStockAlert is the stock_alerts feed payload.
type LowStockAlert struct {
	Count int                    `json:"count"`
	Items []inventory.StockLevel `json:"items"`
	At    time.Time              `json:"at"`
}

// LowStockSweep sets gauge (may be nil) to the number of ingredients under
// their minimum and, when there are any, publishes a stock_alerts event.
func LowStockSweep(src LowStockSource, pub realtime.Publisher, gauge prometheus.Gauge, log *zap.Logger) Func {
	return func(ctx context.Context) error {
		low, err := src.LowStock(ctx)
		if err != nil {
			return err
		}
		if gauge != nil {
			gauge.Set(float64(len(low)))
		}
		if len(low) == 0 {
			return nil
		}
		names := make([]string, len(low))
		for i, l := range low {
			names[i] = l.Name
		}
		log.Warn("ingredients below minimum stock", zap.Int("count", len(low)), zap.Strings("items", names))
		pub.Publish(realtime.NewEvent(realtime.TableStockAlerts, realtime.Insert, nil,
			LowStockAlert{Count: len(low), Items: low, At: time.Now()}))
		return nil
	}
}

func PurgeSessions(p SessionPurger, log *zap.Logger) Func {
	return func(ctx context.Context) error {
		n, err := p.PurgeSessions(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("purged expired sessions", zap.Int("count", n))
		}
		return nil
	}
}

func CleanupLimiter(l LimiterCleaner, maxIdle time.Duration, log *zap.Logger) Func {
	return func(context.Context) error {
		if n := l.Cleanup(maxIdle); n > 0 {
			log.Debug("dropped idle pin limiters", zap.Int("count", n))
		}
		return nil
	}
}
