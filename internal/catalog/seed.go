package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/otesta/otesta-backend/pkg/enums"
)

var seededAt = time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)

// SeedProducts returns the catalog written to the products slot on first
// boot. The ids are stable so carts and wishlists created against a fresh
// install keep resolving.
func SeedProducts() []Product {
	products := []Product{
		{
			ID:          "prod-001",
			Name:        "Completo Sartoriale Blu Notte",
			Price:       decimal.NewFromInt(890),
			Material:    "Lana Super 130s",
			Category:    enums.ProductCategorySuits,
			ImageURL:    "/images/products/completo-blu-notte.jpg",
			Description: "Completo due pezzi in lana pettinata, tagliato a mano nel nostro atelier.",
			Sizes:       []string{"46", "48", "50", "52", "54"},
			StockBySize: map[string]int{"46": 2, "48": 4, "50": 5, "52": 3, "54": 1},
		},
		{
			ID:          "prod-002",
			Name:        "Completo Principe di Galles",
			Price:       decimal.NewFromInt(950),
			Material:    "Lana e cashmere",
			Category:    enums.ProductCategorySuits,
			ImageURL:    "/images/products/principe-di-galles.jpg",
			Description: "Motivo Principe di Galles grigio, spalla napoletana, fodera in viscosa.",
			Sizes:       []string{"48", "50", "52"},
			StockBySize: map[string]int{"48": 2, "50": 3, "52": 2},
		},
		{
			ID:          "prod-003",
			Name:        "Cappotto Double Cammello",
			Price:       decimal.NewFromInt(720),
			Material:    "Lana double face",
			Category:    enums.ProductCategoryOuterwear,
			ImageURL:    "/images/products/cappotto-cammello.jpg",
			Description: "Cappotto sfoderato in lana double, chiusura a due bottoni in corno.",
			Sizes:       []string{"48", "50", "52", "54"},
			StockBySize: map[string]int{"48": 1, "50": 2, "52": 2, "54": 1},
		},
		{
			ID:          "prod-004",
			Name:        "Trench Impermeabile Sabbia",
			Price:       decimal.NewFromInt(540),
			Material:    "Cotone cerato",
			Category:    enums.ProductCategoryOuterwear,
			ImageURL:    "/images/products/trench-sabbia.jpg",
			Description: "Trench classico con cintura, trattamento idrorepellente.",
			Sizes:       []string{"46", "48", "50", "52"},
			StockBySize: map[string]int{"46": 3, "48": 4, "50": 4, "52": 2},
		},
		{
			ID:          "prod-005",
			Name:        "Camicia Popeline Bianca",
			Price:       decimal.NewFromInt(145),
			Material:    "Cotone popeline",
			Category:    enums.ProductCategoryShirts,
			ImageURL:    "/images/products/camicia-popeline.jpg",
			Description: "Collo francese, polsi arrotondati, bottoni in madreperla.",
			Sizes:       []string{"38", "39", "40", "41", "42", "43"},
			StockBySize: map[string]int{"38": 5, "39": 8, "40": 10, "41": 8, "42": 6, "43": 3},
		},
		{
			ID:          "prod-006",
			Name:        "Camicia Denim Lavata",
			Price:       decimal.NewFromInt(165),
			Material:    "Denim leggero",
			Category:    enums.ProductCategoryShirts,
			ImageURL:    "/images/products/camicia-denim.jpg",
			Description: "Camicia in denim giapponese lavato, vestibilità regolare.",
			Sizes:       []string{"39", "40", "41", "42"},
			StockBySize: map[string]int{"39": 4, "40": 6, "41": 5, "42": 2},
		},
		{
			ID:          "prod-007",
			Name:        "Pantalone Flanella Grigia",
			Price:       decimal.NewFromInt(230),
			Material:    "Flanella di lana",
			Category:    enums.ProductCategoryTrousers,
			ImageURL:    "/images/products/pantalone-flanella.jpg",
			Description: "Una pince, fondo con risvolto 4 cm.",
			Sizes:       []string{"46", "48", "50", "52"},
			StockBySize: map[string]int{"46": 4, "48": 6, "50": 5, "52": 3},
		},
		{
			ID:          "prod-008",
			Name:        "Chino Gabardina Verde Oliva",
			Price:       decimal.NewFromInt(185),
			Material:    "Gabardina di cotone",
			Category:    enums.ProductCategoryTrousers,
			ImageURL:    "/images/products/chino-oliva.jpg",
			Description: "Chino slim tinto in capo, tasche a filetto sul retro.",
			Sizes:       []string{"46", "48", "50", "52", "54"},
			StockBySize: map[string]int{"46": 3, "48": 5, "50": 6, "52": 4, "54": 2},
		},
		{
			ID:          "prod-009",
			Name:        "Cravatta Seta Sette Pieghe",
			Price:       decimal.NewFromInt(95),
			Material:    "Seta jacquard",
			Category:    enums.ProductCategoryAccessories,
			ImageURL:    "/images/products/cravatta-seta.jpg",
			Description: "Cravatta sette pieghe cucita a mano, fantasia a pois blu.",
			Sizes:       []string{"unica"},
			StockBySize: map[string]int{"unica": 15},
		},
		{
			ID:          "prod-010",
			Name:        "Cintura Cuoio Toscano",
			Price:       decimal.NewFromInt(120),
			Material:    "Cuoio conciato al vegetale",
			Category:    enums.ProductCategoryAccessories,
			ImageURL:    "/images/products/cintura-cuoio.jpg",
			Description: "Cintura 3,5 cm con fibbia in ottone satinato.",
			Sizes:       []string{"90", "95", "100", "105"},
			StockBySize: map[string]int{"90": 4, "95": 6, "100": 5, "105": 2},
		},
	}
	for i := range products {
		products[i].CreatedAt = seededAt
		products[i].UpdatedAt = seededAt
		products[i].normalizeStock()
	}
	return products
}
