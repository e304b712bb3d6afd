package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/pkg/enums"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

// Product is one catalog entry. InStock and StockQuantity are kept consistent
// with StockBySize on every write.
type Product struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Price         decimal.Decimal       `json:"price"`
	Material      string                `json:"material"`
	Category      enums.ProductCategory `json:"category"`
	ImageURL      string                `json:"image_url"`
	Description   string                `json:"description"`
	InStock       bool                  `json:"in_stock"`
	StockQuantity int                   `json:"stock_quantity"`
	Sizes         []string              `json:"sizes"`
	StockBySize   map[string]int        `json:"stock_by_size"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Patch carries the updatable fields of a product. Nil fields are left
// untouched.
type Patch struct {
	Name          *string                `json:"name"`
	Price         *decimal.Decimal       `json:"price"`
	Material      *string                `json:"material"`
	Category      *enums.ProductCategory `json:"category"`
	ImageURL      *string                `json:"image_url"`
	Description   *string                `json:"description"`
	Sizes         *[]string              `json:"sizes"`
	StockBySize   *map[string]int        `json:"stock_by_size"`
	StockQuantity *int                   `json:"stock_quantity"`
}

// normalizeStock re-derives the aggregate stock fields. When a per-size
// breakdown exists it is the source of truth for the total.
func (p *Product) normalizeStock() {
	if len(p.StockBySize) > 0 {
		total := 0
		for _, n := range p.StockBySize {
			total += n
		}
		p.StockQuantity = total
	}
	if p.StockQuantity < 0 {
		p.StockQuantity = 0
	}
	p.InStock = p.StockQuantity > 0
}

func (p *Product) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if p.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative")
	}
	if !p.Category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown product category")
	}
	for size, n := range p.StockBySize {
		if n < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock for size "+size+" must not be negative")
		}
	}
	return nil
}
