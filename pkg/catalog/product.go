// Package catalog defines the product and category records served by the Product API.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Product is a catalog entity. The caching layer stores and returns snapshots
// of it and never changes its business fields.
type Product struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Brand              string   `json:"brand,omitempty"`
	Price              float64  `json:"price"`
	Rating             float64  `json:"rating"`
	DiscountPercentage *float64 `json:"discountPercentage,omitempty"`
	Stock              int      `json:"stock"`
	Images             []string `json:"images"`
}

// Normalize returns a copy holding only the cached attributes.
// Images is never nil so the stored form is stable.
func (p Product) Normalize() Product {
	out := Product{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Brand:       p.Brand,
		Price:       p.Price,
		Rating:      p.Rating,
		Stock:       p.Stock,
		Images:      make([]string, len(p.Images)),
	}
	copy(out.Images, p.Images)
	if p.DiscountPercentage != nil {
		d := *p.DiscountPercentage
		out.DiscountPercentage = &d
	}
	return out
}

// Category is one entry of the category index. The API returns either bare
// slugs or {slug, name, url} objects; both decode into Category.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// UnmarshalJSON accepts a string or an object.
func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var slug string
		if err := json.Unmarshal(data, &slug); err != nil {
			return fmt.Errorf("decode category slug: %w", err)
		}
		*c = Category{Slug: slug, Name: slug}
		return nil
	}

	type plain Category
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode category object: %w", err)
	}
	if p.Name == "" {
		p.Name = p.Slug
	}
	*c = Category(p)
	return nil
}

// CategoryListResponse is the envelope of GET /category/{category}.
type CategoryListResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}
