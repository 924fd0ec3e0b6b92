package model

import "time"

// Product categories accepted by the catalog.
const (
    CategoryElectrics  = "electrics"
    CategoryClothings  = "clothings"
    CategoryAppliances = "appliances"
    CategoryGroceries  = "groceries"
    CategoryBooks      = "books"
)

// Categories lists every valid product category.
var Categories = []string{CategoryElectrics, CategoryClothings, CategoryAppliances, CategoryGroceries, CategoryBooks}

// IsCategory reports whether s names a known category.
func IsCategory(s string) bool {
    for _, c := range Categories {
        if c == s {
            return true
        }
    }
    return false
}

// ProductDetails is stored in its own collection and joined into Product
// when reading.
type ProductDetails struct {
    ProductAltID        string    `bson:"productAltId,omitempty" json:"productAltId,omitempty"`
    ProductCategory     string    `bson:"productCategory" json:"productCategory"`
    ProductImageLink    string    `bson:"productImageLink,omitempty" json:"productImageLink,omitempty"`
    ProductAvailability int       `bson:"productAvailability" json:"productAvailability"`
    CreatedAt           time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
    UpdatedAt           time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Product is a catalog entry with its details resolved.
type Product struct {
    ProductID      string          `bson:"productId" json:"productId"`
    ProductName    string          `bson:"productName,omitempty" json:"productName,omitempty"`
    ProductDetails *ProductDetails `bson:"productDetails,omitempty" json:"productDetails,omitempty"`
    CreatedAt      time.Time       `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
    UpdatedAt      time.Time       `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
    Category        string
    MinAvailability *int
}
