package cart

import (
	"github.com/shopspring/decimal"
)

// LineItem is one row in a cart, identified by the (product id, size) pair.
// Size is a pointer so that "no size chosen" and size "" stay distinct pairs.
type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Size     *string         `json:"size,omitempty"`
	Image    string          `json:"image"`
}

// Matches reports whether the line belongs to the (id, size) pair.
func (l LineItem) Matches(productID string, size *string) bool {
	return l.ID == productID && sameSize(l.Size, size)
}

func sameSize(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Summary is the derived read-only view over a cart. Both fields are
// recomputed on every read, never cached.
type Summary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summarize folds the lines into count and total.
func Summarize(items []LineItem) Summary {
	summary := Summary{Total: decimal.Zero}
	for _, item := range items {
		summary.Count += item.Quantity
		summary.Total = summary.Total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return summary
}
