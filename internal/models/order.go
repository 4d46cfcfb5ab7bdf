package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/gorm"
)

// OrderLineDraft is one parsed line of a customer request, as produced by
// order extraction. It is never built by the reconciler itself.
type OrderLineDraft struct {
	ItemName   string   `json:"item_name" validate:"required,notblank"`
	Quantity   int      `json:"quantity" validate:"min=1"`
	Modifiers  []string `json:"modifiers"`
	IsDeletion bool     `json:"is_deletion"`
}

// OrderDraft is the structured result of one extraction call
type OrderDraft struct {
	Lines []OrderLineDraft `json:"lines" validate:"dive"`
}

// Deletions returns the lines that request removal, in draft order
func (d OrderDraft) Deletions() []OrderLineDraft {
	out := make([]OrderLineDraft, 0, len(d.Lines))
	for _, l := range d.Lines {
		if l.IsDeletion {
			out = append(out, l)
		}
	}
	return out
}

// Additions returns the lines that request new items, in draft order
func (d OrderDraft) Additions() []OrderLineDraft {
	out := make([]OrderLineDraft, 0, len(d.Lines))
	for _, l := range d.Lines {
		if !l.IsDeletion {
			out = append(out, l)
		}
	}
	return out
}

// CartLine is one accepted entry of a session's in-progress order.
// ItemName is always a canonical menu name.
type CartLine struct {
	ItemName  string   `json:"item_name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers"`
}

// String renders the line as "2 x Veggie Burger (no onion)"
func (l CartLine) String() string {
	s := fmt.Sprintf("%d x %s", l.Quantity, l.ItemName)
	if len(l.Modifiers) > 0 {
		s += " (" + strings.Join(l.Modifiers, ", ") + ")"
	}
	return s
}

// SameModifiers reports whether two modifier lists hold the same strings,
// ignoring order.
func SameModifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// RejectionReason explains why a requested item was not placed in the cart
type RejectionReason string

const (
	ReasonNoMatch   RejectionReason = "no_match"
	ReasonAmbiguous RejectionReason = "ambiguous"
)

// RejectedItem is an unresolved request surfaced to the caller for one turn
type RejectedItem struct {
	OriginalRequest string          `json:"original_request"`
	Alternatives    []string        `json:"alternatives"`
	Reason          RejectionReason `json:"reason"`
}

// Clarification lists the menu items a request could refer to
type Clarification struct {
	OriginalRequest string   `json:"original_request"`
	Options         []string `json:"options"`
}

// OrderRecord is one confirmed cart line stored in the order history
type OrderRecord struct {
	gorm.Model
	OrderID   string `gorm:"index"`
	SessionID string `gorm:"index"`
	MealID    uint
	ItemName  string
	Quantity  int
	Modifiers StringSlice `gorm:"type:text"`
}

// TableName sets the table name for OrderRecord
func (OrderRecord) TableName() string {
	return "orders"
}
