package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type ItemInput struct {
	RecipeID uint `json:"recipe_id"`
	Quantity int  `json:"quantity"`
	// UnitPrice defaults to the recipe's selling price.
	UnitPrice *float64 `json:"unit_price"`
	Notes     string   `json:"notes"`
}

type CreateInput struct {
	OrderType               models.OrderType `json:"order_type"`
	TableID                 *uint            `json:"table_id"`
	CustomerName            string           `json:"customer_name"`
	CustomerPhone           string           `json:"customer_phone"`
	DeliveryPlatformOrderID string           `json:"delivery_platform_order_id"`
	Notes                   string           `json:"notes"`
	Items                   []ItemInput      `json:"items"`
}

type Service struct {
	store   Store
	pub     realtime.Publisher
	audit   audit.Writer
	created *prometheus.CounterVec
	log     *zap.Logger
}

// NewService builds the order service. created may be nil.
func NewService(store Store, pub realtime.Publisher, aw audit.Writer, created *prometheus.CounterVec, log *zap.Logger) *Service {
	return &Service{store: store, pub: pub, audit: aw, created: created, log: log}
}

func (s *Service) buildItems(ctx context.Context, in []ItemInput) ([]models.OrderItem, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("An order needs at least one item")
	}
	ids := make([]uint, 0, len(in))
	for _, it := range in {
		if it.Quantity <= 0 {
			return nil, apperr.Validation("Item quantity must be at least 1")
		}
		if it.UnitPrice != nil && *it.UnitPrice < 0 {
			return nil, apperr.Validation("Unit price cannot be negative")
		}
		ids = append(ids, it.RecipeID)
	}
	recipes, err := s.store.Recipes(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]models.OrderItem, 0, len(in))
	for _, it := range in {
		r, ok := recipes[it.RecipeID]
		if !ok {
			return nil, apperr.Validation("Recipe %d does not exist", it.RecipeID)
		}
		price := r.SellingPrice
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		items = append(items, models.OrderItem{
			RecipeID:   it.RecipeID,
			Quantity:   it.Quantity,
			UnitPrice:  price,
			ItemStatus: models.ItemPending,
			Notes:      strings.TrimSpace(it.Notes),
		})
	}
	return items, nil
}

func itemsTotal(items []models.OrderItem) float64 {
	var t float64
	for _, it := range items {
		t += float64(it.Quantity) * it.UnitPrice
	}
	return t
}

// Create validates and stores a new pending order. Dine-in orders need an
// active table; the order number is assigned by the store.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*models.Order, error) {
	if !in.OrderType.Valid() {
		return nil, apperr.Validation("Unknown order type %q", in.OrderType)
	}
	if in.OrderType == models.OrderTypeDineIn {
		if in.TableID == nil {
			return nil, apperr.Validation("Dine-in orders need a table")
		}
		t, err := s.store.Table(ctx, *in.TableID)
		if err != nil {
			return nil, err
		}
		if t == nil || !t.IsActive {
			return nil, apperr.Validation("Table %d does not exist", *in.TableID)
		}
	} else {
		in.TableID = nil
	}
	items, err := s.buildItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	o := &models.Order{
		OrderType:               in.OrderType,
		Status:                  models.OrderPending,
		TableID:                 in.TableID,
		CustomerName:            strings.TrimSpace(in.CustomerName),
		CustomerPhone:           strings.TrimSpace(in.CustomerPhone),
		DeliveryPlatformOrderID: strings.TrimSpace(in.DeliveryPlatformOrderID),
		Notes:                   in.Notes,
		TotalAmount:             itemsTotal(items),
		PaymentStatus:           models.PaymentUnpaid,
		CreatedBy:               actor.UserID,
		Items:                   items,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	if s.created != nil {
		s.created.WithLabelValues(string(o.OrderType)).Inc()
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Insert, nil, o))
	for i := range o.Items {
		s.pub.Publish(realtime.NewEvent(realtime.TableOrderItems, realtime.Insert, nil, &o.Items[i]))
	}
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityOrder,
		EntityID:    o.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Order %s created (%s, %d items)", o.OrderNumber, o.OrderType, len(o.Items)),
		After:       o,
	})
	s.log.Info("order created",
		zap.String("order_number", o.OrderNumber), zap.String("type", string(o.OrderType)), zap.Float64("total", o.TotalAmount))
	return s.Get(ctx, o.ID)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	return o, err
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Order, int64, error) {
	if f.Status != "" {
		if _, ok := orderRank[f.Status]; !ok && f.Status != models.OrderCancelled {
			return nil, 0, apperr.Validation("Unknown order status %q", f.Status)
		}
	}
	if f.OrderType != "" && !f.OrderType.Valid() {
		return nil, 0, apperr.Validation("Unknown order type %q", f.OrderType)
	}
	return s.store.List(ctx, f)
}

// AddItems appends items to an open order. The total and payment status are
// recomputed from every item, so a paid order with new items goes partial.
func (s *Service) AddItems(ctx context.Context, actor auth.Actor, orderID uint, in []ItemInput) (*models.Order, error) {
	before, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if isTerminal(before.Status) {
		return nil, apperr.Conflict("Cannot add items to a %s order", before.Status)
	}
	items, err := s.buildItems(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddItems(ctx, orderID, items); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, err
	}
	after, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.pub.Publish(realtime.NewEvent(realtime.TableOrderItems, realtime.Insert, nil, &items[i]))
	}
	s.pub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Update, before, after))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityOrder,
		EntityID:    orderID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("%d items added to order %s", len(items), after.OrderNumber),
		Before:      before,
		After:       after,
	})
	return after, nil
}

// UpdateStatus moves an order along its lifecycle. An order is only marked
// ready or served once every item is ready.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id uint, to models.OrderStatus) (*models.Order, error) {
	return s.transition(ctx, actor, id, to, true)
}

func (s *Service) transition(ctx context.Context, actor auth.Actor, id uint, to models.OrderStatus, needItems bool) (*models.Order, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(before.Status, to); err != nil {
		return nil, err
	}
	if needItems && (to == models.OrderReady || to == models.OrderServed) && !Servable(before.Items) {
		return nil, apperr.Conflict("Every item must be ready before the order is %s", to)
	}
	if err := s.store.SetStatus(ctx, id, before.Status, to); err != nil {
		if errors.Is(err, ErrStale) {
			return nil, apperr.Conflict("Order was updated by someone else, refresh and try again")
		}
		return nil, err
	}
	after := *before
	after.Status = to
	s.pub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Update, before, &after))

	if to == models.OrderCancelled {
		s.audit.Write(ctx, audit.LogOptions{
			Actor:       actor,
			EntityType:  audit.EntityOrder,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Order %s cancelled", before.OrderNumber),
			Before:      before,
			After:       &after,
		})
	}
	return &after, nil
}

func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uint) (*models.Order, error) {
	return s.UpdateStatus(ctx, actor, id, models.OrderCancelled)
}

// MarkServed closes a fully paid order whatever its items' state. Served
// orders are left alone; cancelled ones are an error.
func (s *Service) MarkServed(ctx context.Context, actor auth.Actor, id uint) error {
	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status == models.OrderServed {
		return nil
	}
	_, err = s.transition(ctx, actor, id, models.OrderServed, false)
	return err
}

// KitchenOrders is the kitchen queue, oldest first.
func (s *Service) KitchenOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.Active(ctx, ActiveFilter{Statuses: models.ActiveOrderStatuses, OldestFirst: true})
}

func (s *Service) TableOrders(ctx context.Context, tableID uint) ([]models.Order, error) {
	return s.store.Active(ctx, ActiveFilter{Statuses: models.ActiveOrderStatuses, TableID: &tableID})
}

func (s *Service) DeliveryOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.Active(ctx, ActiveFilter{Types: []models.OrderType{models.OrderTypeSwiggy, models.OrderTypeZomato}})
}

// ActiveOrders lists every open order, newest first.
func (s *Service) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.Active(ctx, ActiveFilter{Statuses: models.ActiveOrderStatuses})
}

// ReadyItems is what the floor has to carry out.
func (s *Service) ReadyItems(ctx context.Context) ([]models.OrderItem, error) {
	return s.store.ReadyItems(ctx)
}

func (s *Service) StatsByStatus(ctx context.Context) (*StatusStats, error) {
	return s.store.StatsByStatus(ctx)
}

func (s *Service) StatsByType(ctx context.Context) ([]TypeStats, error) {
	return s.store.StatsByType(ctx)
}

// UpdateItemStatus changes one item's status on behalf of station. An empty
// to advances a kitchen item one step.
func (s *Service) UpdateItemStatus(ctx context.Context, st Station, itemID uint, to models.ItemStatus) (*models.OrderItem, error) {
	it, err := s.store.GetItem(ctx, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return nil, apperr.NotFound("Order item not found")
	}
	if err != nil {
		return nil, err
	}
	if it.Order != nil && it.Order.Status == models.OrderCancelled {
		return nil, apperr.Conflict("Order is cancelled")
	}
	if to == "" && st == StationKitchen {
		next, ok := NextKitchenStatus(it.ItemStatus)
		if !ok {
			return nil, apperr.Conflict("Item is %s, it is marked served from the server screen", it.ItemStatus)
		}
		to = next
	}
	if err := CanSetItemStatus(st, it.ItemStatus, to); err != nil {
		return nil, err
	}
	if err := s.store.SetItemStatus(ctx, itemID, it.ItemStatus, to); err != nil {
		if errors.Is(err, ErrStale) {
			return nil, apperr.Conflict("Item was updated by someone else, refresh and try again")
		}
		return nil, err
	}
	before := *it
	before.Order, before.Recipe = nil, nil
	after := before
	after.ItemStatus = to
	s.pub.Publish(realtime.NewEvent(realtime.TableOrderItems, realtime.Update, &before, &after))
	it.ItemStatus = to
	return it, nil
}
