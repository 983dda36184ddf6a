package tables

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

	"go.uber.org/zap"
)

// ViewStatus is what the floor sees for a table. An open order decides it
// (occupied, billing once partly paid, billed once fully paid); otherwise the
// stored reserved flag does.
func ViewStatus(t models.Table, current *models.Order) models.TableStatus {
	if current != nil {
		switch current.PaymentStatus {
		case models.PaymentPartial:
			return models.TableBilling
		case models.PaymentPaid:
			return models.TableBilled
		}
		return models.TableOccupied
	}
	if t.Status == models.TableReserved {
		return models.TableReserved
	}
	return models.TableAvailable
}

type View struct {
	models.Table
	ViewStatus   models.TableStatus `json:"view_status"`
	CurrentOrder *models.Order      `json:"current_order"`
	OrderCount   int                `json:"order_count"`
}

type Input struct {
	TableNumber string `json:"table_number"`
	Capacity    int    `json:"capacity"`
	Section     string `json:"section"`
}

func (in *Input) normalize() error {
	in.TableNumber = strings.TrimSpace(in.TableNumber)
	in.Section = strings.TrimSpace(in.Section)
	if in.TableNumber == "" {
		return apperr.Validation("Table number is required")
	}
	if in.Capacity == 0 {
		in.Capacity = 4
	}
	if in.Capacity < 0 || in.Capacity > 50 {
		return apperr.Validation("Capacity must be between 1 and 50")
	}
	return nil
}

type Service struct {
	store Store
	pub   realtime.Publisher
	audit audit.Writer
	log   *zap.Logger
}

func NewService(store Store, pub realtime.Publisher, aw audit.Writer, log *zap.Logger) *Service {
	return &Service{store: store, pub: pub, audit: aw, log: log}
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]models.Table, error) {
	return s.store.List(ctx, includeInactive)
}

// WithOrders lists active tables with their newest open order.
func (s *Service) WithOrders(ctx context.Context) ([]View, error) {
	list, err := s.store.List(ctx, false)
	if err != nil {
		return nil, err
	}
	open, err := s.store.ActiveOrders(ctx)
	if err != nil {
		return nil, err
	}
	byTable := make(map[uint][]models.Order)
	for _, o := range open {
		byTable[*o.TableID] = append(byTable[*o.TableID], o)
	}
	out := make([]View, 0, len(list))
	for _, t := range list {
		out = append(out, view(t, byTable[t.ID]))
	}
	return out, nil
}

func view(t models.Table, open []models.Order) View {
	v := View{Table: t, OrderCount: len(open)}
	if len(open) > 0 {
		cur := open[0]
		v.CurrentOrder = &cur
	}
	v.ViewStatus = ViewStatus(t, v.CurrentOrder)
	return v
}

func (s *Service) Get(ctx context.Context, id uint) (*View, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	open, err := s.store.ActiveOrders(ctx)
	if err != nil {
		return nil, err
	}
	var mine []models.Order
	for _, o := range open {
		if *o.TableID == id {
			mine = append(mine, o)
		}
	}
	v := view(*t, mine)
	return &v, nil
}

func (s *Service) load(ctx context.Context, id uint) (*models.Table, error) {
	t, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Table not found")
	}
	return t, err
}

func (s *Service) ensureUnique(ctx context.Context, number string, selfID uint) error {
	other, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return err
	}
	if other != nil && other.ID != selfID {
		return apperr.Conflict("Table %s already exists", number)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in Input) (*models.Table, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.TableNumber, 0); err != nil {
		return nil, err
	}
	t := &models.Table{
		TableNumber: in.TableNumber,
		Capacity:    in.Capacity,
		Section:     in.Section,
		Status:      models.TableAvailable,
		IsActive:    true,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.changed(ctx, actor, models.AuditActionCreate, nil, t, fmt.Sprintf("Table %s created", t.TableNumber))
	return t, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id uint, in Input) (*models.Table, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.TableNumber, id); err != nil {
		return nil, err
	}
	before := *t
	t.TableNumber, t.Capacity, t.Section = in.TableNumber, in.Capacity, in.Section
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	s.changed(ctx, actor, models.AuditActionUpdate, &before, t, fmt.Sprintf("Table %s updated", t.TableNumber))
	return t, nil
}

// Reserve holds a free table. Tables with an open order cannot be reserved.
func (s *Service) Reserve(ctx context.Context, actor auth.Actor, id uint) (*View, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, apperr.Conflict("Table %s is not in use", v.TableNumber)
	}
	if v.CurrentOrder != nil {
		return nil, apperr.Conflict("Table %s has an open order", v.TableNumber)
	}
	return s.setStatus(ctx, actor, v, models.TableReserved)
}

// Clear drops a reservation. The table shows available again once it has no
// open order.
func (s *Service) Clear(ctx context.Context, actor auth.Actor, id uint) (*View, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, actor, v, models.TableAvailable)
}

func (s *Service) setStatus(ctx context.Context, actor auth.Actor, v *View, status models.TableStatus) (*View, error) {
	if v.Status == status {
		return v, nil
	}
	before := v.Table
	t := v.Table
	t.Status = status
	if err := s.store.Update(ctx, &t); err != nil {
		return nil, err
	}
	s.changed(ctx, actor, models.AuditActionUpdate, &before, &t, fmt.Sprintf("Table %s set %s", t.TableNumber, status))
	v.Table = t
	v.ViewStatus = ViewStatus(t, v.CurrentOrder)
	return v, nil
}

// Deactivate hides a table from the floor. Tables with open orders stay.
func (s *Service) Deactivate(ctx context.Context, actor auth.Actor, id uint) error {
	v, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.CurrentOrder != nil {
		return apperr.Conflict("Table %s has an open order", v.TableNumber)
	}
	if !v.IsActive {
		return nil
	}
	before := v.Table
	t := v.Table
	t.IsActive = false
	if err := s.store.Update(ctx, &t); err != nil {
		return err
	}
	s.changed(ctx, actor, models.AuditActionDelete, &before, &t, fmt.Sprintf("Table %s removed", t.TableNumber))
	return nil
}

func (s *Service) changed(ctx context.Context, actor auth.Actor, action models.AuditAction, before, after *models.Table, desc string) {
	typ := realtime.Update
	var old any
	if before != nil {
		old = before
	} else {
		typ = realtime.Insert
	}
	s.pub.Publish(realtime.NewEvent(realtime.TableTables, typ, old, after))

	opts := audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityTable,
		EntityID:    after.ID,
		Action:      action,
		Description: desc,
		After:       after,
	}
	if before != nil {
		opts.Before = before
	}
	s.audit.Write(ctx, opts)
}
