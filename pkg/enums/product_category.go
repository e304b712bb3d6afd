package enums

import "fmt"

// ProductCategory describes the closed set of catalog categories.
type ProductCategory string

const (
	ProductCategorySuits       ProductCategory = "suits"
	ProductCategoryOuterwear   ProductCategory = "outerwear"
	ProductCategoryAccessories ProductCategory = "accessories"
	ProductCategoryShirts      ProductCategory = "shirts"
	ProductCategoryTrousers    ProductCategory = "trousers"
)

var validProductCategories = []ProductCategory{
	ProductCategorySuits,
	ProductCategoryOuterwear,
	ProductCategoryAccessories,
	ProductCategoryShirts,
	ProductCategoryTrousers,
}

// IsValid reports whether the value matches the canonical category enum.
func (p ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductCategory converts the raw string to ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
