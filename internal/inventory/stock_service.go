package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RecordInput struct {
	IngredientID    uint                        `json:"ingredient_id"`
	TransactionType models.StockTransactionType `json:"transaction_type"`
	Quantity        float64                     `json:"quantity"`
	Direction       Direction                   `json:"direction"`
	UnitCost        *float64                    `json:"unit_cost"`
	ReferenceNo     string                      `json:"reference_no"`
	Notes           string                      `json:"notes"`
}

type RecordResult struct {
	Transaction *models.StockTransaction `json:"transaction"`
	Level       *StockLevel              `json:"level"`
}

type StockService struct {
	store   StockStore
	pub     realtime.Publisher
	audit   audit.Writer
	counter *prometheus.CounterVec
	log     *zap.Logger
}

// NewStockService builds the ledger service. counter may be nil.
func NewStockService(store StockStore, pub realtime.Publisher, aw audit.Writer, counter *prometheus.CounterVec, log *zap.Logger) *StockService {
	return &StockService{store: store, pub: pub, audit: aw, counter: counter, log: log}
}

// Record appends one transaction and returns the balance as stored after it.
func (s *StockService) Record(ctx context.Context, actor auth.Actor, in RecordInput) (*RecordResult, error) {
	delta, err := EffectiveDelta(in.TransactionType, in.Quantity, in.Direction)
	if err != nil {
		return nil, err
	}
	if in.UnitCost != nil && *in.UnitCost < 0 {
		return nil, apperr.Validation("Unit cost cannot be negative")
	}
	ok, err := s.store.IngredientExists(ctx, in.IngredientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Ingredient not found")
	}

	tx := &models.StockTransaction{
		IngredientID:    in.IngredientID,
		TransactionType: in.TransactionType,
		Quantity:        delta,
		UnitCost:        in.UnitCost,
		ReferenceNo:     strings.TrimSpace(in.ReferenceNo),
		Notes:           strings.TrimSpace(in.Notes),
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		tx.CreatedBy = &uid
	}
	if err := s.store.Append(ctx, tx); err != nil {
		return nil, err
	}
	if s.counter != nil {
		s.counter.WithLabelValues(string(in.TransactionType)).Inc()
	}

	level, err := s.Level(ctx, in.IngredientID)
	if err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableStockTransactions, realtime.Insert, nil, tx))
	s.pub.Publish(realtime.NewEvent(realtime.TableIngredientStock, realtime.Update, nil, level))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityStockTransaction,
		EntityID:    tx.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Stock %s of %s for ingredient %d", tx.TransactionType, decimal.NewFromFloat(delta).String(), tx.IngredientID),
		After:       tx,
	})
	return &RecordResult{Transaction: tx, Level: level}, nil
}

type BulkRowResult struct {
	Index        int                      `json:"index"`
	IngredientID uint                     `json:"ingredient_id"`
	Success      bool                     `json:"success"`
	Error        string                   `json:"error,omitempty"`
	Transaction  *models.StockTransaction `json:"transaction,omitempty"`
}

// BulkAdd records each row independently. Rows that succeed stay recorded
// when later rows fail.
func (s *StockService) BulkAdd(ctx context.Context, actor auth.Actor, rows []RecordInput) []BulkRowResult {
	out := make([]BulkRowResult, 0, len(rows))
	for i, in := range rows {
		r := BulkRowResult{Index: i, IngredientID: in.IngredientID}
		res, err := s.Record(ctx, actor, in)
		if err != nil {
			r.Error = err.Error()
			if _, ok := apperr.As(err); !ok {
				s.log.Error("bulk stock row", zap.Int("index", i), zap.Error(err))
				r.Error = "Failed to record transaction"
			}
		} else {
			r.Success = true
			r.Transaction = res.Transaction
		}
		out = append(out, r)
	}
	return out
}

func (s *StockService) Levels(ctx context.Context, f LevelFilter) ([]StockLevel, error) {
	return s.store.Levels(ctx, f)
}

func (s *StockService) Level(ctx context.Context, ingredientID uint) (*StockLevel, error) {
	levels, err := s.store.Levels(ctx, LevelFilter{IngredientID: ingredientID})
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, apperr.NotFound("Ingredient not found")
	}
	return &levels[0], nil
}

func (s *StockService) LowStock(ctx context.Context) ([]StockLevel, error) {
	return s.store.Levels(ctx, LevelFilter{LowOnly: true})
}

type Summary struct {
	TotalItems         int     `json:"total_items"`
	TotalValue         float64 `json:"total_value"`
	LowStockCount      int     `json:"low_stock_count"`
	OutOfStockCount    int     `json:"out_of_stock_count"`
	TransactionsLast24 int64   `json:"transactions_last_24h"`
}

func (s *StockService) Summary(ctx context.Context) (*Summary, error) {
	levels, err := s.store.Levels(ctx, LevelFilter{})
	if err != nil {
		return nil, err
	}
	recent, err := s.store.CountTransactionsSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	sum := &Summary{TotalItems: len(levels), TransactionsLast24: recent}
	value := decimal.Zero
	for _, l := range levels {
		value = value.Add(decimal.NewFromFloat(l.TotalValue()))
		switch l.Status() {
		case StatusOut:
			sum.OutOfStockCount++
		case StatusLow:
			sum.LowStockCount++
		}
	}
	sum.TotalValue = value.Round(2).InexactFloat64()
	return sum, nil
}

type SettingsInput struct {
	MinStockLevel   float64 `json:"min_stock_level"`
	ReorderQuantity float64 `json:"reorder_quantity"`
	StorageLocation string  `json:"storage_location"`
	Notes           string  `json:"notes"`
}

func (s *StockService) UpdateSettings(ctx context.Context, ingredientID uint, in SettingsInput) (*StockLevel, error) {
	if in.MinStockLevel < 0 || in.ReorderQuantity < 0 {
		return nil, apperr.Validation("Stock levels cannot be negative")
	}
	ok, err := s.store.IngredientExists(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Ingredient not found")
	}
	st := &models.StockSettings{
		IngredientID:    ingredientID,
		MinStockLevel:   in.MinStockLevel,
		ReorderQuantity: in.ReorderQuantity,
		StorageLocation: strings.TrimSpace(in.StorageLocation),
		Notes:           strings.TrimSpace(in.Notes),
	}
	if err := s.store.UpsertSettings(ctx, st); err != nil {
		return nil, err
	}
	level, err := s.Level(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(realtime.NewEvent(realtime.TableIngredientStock, realtime.Update, nil, level))
	return level, nil
}

func (s *StockService) Transactions(ctx context.Context, f TxFilter) ([]models.StockTransaction, error) {
	if f.Type != "" && f.Type != models.StockPurchase && f.Type != models.StockWastage && f.Type != models.StockAdjustment {
		return nil, apperr.Validation("Unknown transaction type %q", f.Type)
	}
	return s.store.Transactions(ctx, f)
}
