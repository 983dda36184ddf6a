// Package realtime carries row change events from services to live
// screens. Services publish an Event after every successful write; boards
// and websocket clients subscribe per table.
package realtime

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Table names used on the feed.
const (
	TableOrders            = "orders"
	TableOrderItems        = "order_items"
	TablePayments          = "payments"
	TableTables            = "tables"
	TableIngredients       = "ingredients"
	TableRecipes           = "recipes"
	TableStockTransactions = "stock_transactions"
	TableIngredientStock   = "ingredient_stock"
	TableStockAlerts       = "stock_alerts"
)

// Row is a JSON-shaped snapshot of a database row.
type Row map[string]any

type Event struct {
	Table string    `json:"table"`
	Type  EventType `json:"type"`
	Old   Row       `json:"old,omitempty"`
	New   Row       `json:"new,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher is what services depend on to announce writes.
type Publisher interface {
	Publish(Event)
}

// NewEvent snapshots old and new (any JSON-encodable value, usually a
// model) into rows. A nil side stays empty.
func NewEvent(table string, typ EventType, old, new any) Event {
	return Event{Table: table, Type: typ, Old: toRow(old), New: toRow(new), At: time.Now()}
}

func toRow(v any) Row {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	if r, ok := v.(Row); ok {
		return r
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Row{"error": err.Error()}
	}
	var r Row
	if err := json.Unmarshal(b, &r); err != nil {
		return Row{"error": err.Error()}
	}
	return r
}

// HasSignificantChanges reports whether ev should trigger a refetch.
// Inserts and deletes always do; updates only when one of fields differs
// between the old and new row. No fields means any update counts.
func HasSignificantChanges(ev Event, fields ...string) bool {
	if ev.Type != Update {
		return true
	}
	if len(fields) == 0 || ev.Old == nil || ev.New == nil {
		return true
	}
	for _, f := range fields {
		if !reflect.DeepEqual(ev.Old[f], ev.New[f]) {
			return true
		}
	}
	return false
}

// Filter narrows a subscription to rows where Column equals Value, e.g.
// order_id=12. An empty filter matches everything.
type Filter struct {
	Column string
	Value  string
}

func (f Filter) Match(ev Event) bool {
	if f.Column == "" {
		return true
	}
	row := ev.New
	if row == nil {
		row = ev.Old
	}
	v, ok := row[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == f.Value
}
