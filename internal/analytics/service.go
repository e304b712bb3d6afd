// Package analytics derives the admin dashboard figures from live orders and
// catalog data. Everything here is a read model; nothing is persisted.
package analytics

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/internal/catalog"
	"github.com/otesta/otesta-backend/internal/orders"
	"github.com/otesta/otesta-backend/pkg/enums"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

// LowStockThreshold marks a product as running out when the caller gives no
// override.
const LowStockThreshold = 5

// Summary is the sales overview.
type Summary struct {
	TotalRevenue    decimal.Decimal           `json:"total_revenue"`
	TotalOrders     int                       `json:"total_orders"`
	CompletedOrders int                       `json:"completed_orders"`
	AvgOrderValue   decimal.Decimal           `json:"avg_order_value"`
	TotalProducts   int                       `json:"total_products"`
	OrdersByStatus  map[enums.OrderStatus]int `json:"orders_by_status"`
}

// CategoryInventory aggregates one category.
type CategoryInventory struct {
	Category enums.ProductCategory `json:"category"`
	Products int                   `json:"products"`
	Units    int                   `json:"units"`
	Value    decimal.Decimal       `json:"value"`
}

// Inventory is the stock overview.
type Inventory struct {
	TotalProducts  int                 `json:"total_products"`
	TotalUnits     int                 `json:"total_units"`
	InventoryValue decimal.Decimal     `json:"inventory_value"`
	OutOfStock     int                 `json:"out_of_stock"`
	ByCategory     []CategoryInventory `json:"by_category"`
	LowStock       []catalog.Product   `json:"low_stock"`
}

// Service computes the dashboard read models.
type Service interface {
	Summary(ctx context.Context) (Summary, error)
	Inventory(ctx context.Context, lowStockThreshold int) (Inventory, error)
}

// ServiceParams groups dependencies for the analytics service.
type ServiceParams struct {
	Catalog catalog.Service
	Orders  orders.Service
}

type service struct {
	catalog catalog.Service
	orders  orders.Service
}

// NewService builds the analytics service.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil || params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog and orders services are required")
	}
	return &service{catalog: params.Catalog, orders: params.Orders}, nil
}

// Summary folds placed orders into revenue figures. Cancelled orders count
// toward the order total but not toward revenue.
func (s *service) Summary(ctx context.Context) (Summary, error) {
	placed, err := s.orders.List(ctx, orders.ListFilter{})
	if err != nil {
		return Summary{}, err
	}
	products, err := s.catalog.List(ctx, catalog.ListFilter{})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalRevenue:   decimal.Zero,
		AvgOrderValue:  decimal.Zero,
		TotalProducts:  len(products),
		OrdersByStatus: make(map[enums.OrderStatus]int),
	}

	revenueOrders := 0
	for _, order := range placed {
		summary.TotalOrders++
		summary.OrdersByStatus[order.Status]++
		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		summary.TotalRevenue = summary.TotalRevenue.Add(order.Total)
		revenueOrders++
		if order.Status == enums.OrderStatusDelivered {
			summary.CompletedOrders++
		}
	}
	if revenueOrders > 0 {
		summary.AvgOrderValue = summary.TotalRevenue.Div(decimal.NewFromInt(int64(revenueOrders))).Round(2)
	}
	return summary, nil
}

// Inventory folds the catalog into stock figures. A threshold of zero or
// less falls back to LowStockThreshold.
func (s *service) Inventory(ctx context.Context, lowStockThreshold int) (Inventory, error) {
	if lowStockThreshold <= 0 {
		lowStockThreshold = LowStockThreshold
	}
	products, err := s.catalog.List(ctx, catalog.ListFilter{})
	if err != nil {
		return Inventory{}, err
	}

	inventory := Inventory{
		TotalProducts:  len(products),
		InventoryValue: decimal.Zero,
	}
	byCategory := make(map[enums.ProductCategory]*CategoryInventory)

	for _, product := range products {
		inventory.TotalUnits += product.StockQuantity
		value := product.Price.Mul(decimal.NewFromInt(int64(product.StockQuantity)))
		inventory.InventoryValue = inventory.InventoryValue.Add(value)
		if !product.InStock {
			inventory.OutOfStock++
		}
		if product.StockQuantity < lowStockThreshold {
			inventory.LowStock = append(inventory.LowStock, product)
		}

		bucket, ok := byCategory[product.Category]
		if !ok {
			bucket = &CategoryInventory{Category: product.Category, Value: decimal.Zero}
			byCategory[product.Category] = bucket
		}
		bucket.Products++
		bucket.Units += product.StockQuantity
		bucket.Value = bucket.Value.Add(value)
	}

	inventory.ByCategory = make([]CategoryInventory, 0, len(byCategory))
	for _, bucket := range byCategory {
		inventory.ByCategory = append(inventory.ByCategory, *bucket)
	}
	sort.Slice(inventory.ByCategory, func(i, j int) bool {
		return inventory.ByCategory[i].Category < inventory.ByCategory[j].Category
	})
	sort.SliceStable(inventory.LowStock, func(i, j int) bool {
		return inventory.LowStock[i].StockQuantity < inventory.LowStock[j].StockQuantity
	})
	return inventory, nil
}
