package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/mallchat/types"
)

// CatalogFilter narrows a catalog search. Zero fields match everything; a
// ProductID is a direct lookup.
type CatalogFilter struct {
	ProductID   string
	ProductName string // substring, case-insensitive
	Category    string
	MinPrice    int
	MaxPrice    int // 0 = unbounded
}

// Catalog serves product lookups over the embedded catalog.
type Catalog struct {
	products []types.Product
}

// NewCatalog loads the embedded product catalog.
func NewCatalog() (*Catalog, error) {
	raw, err := dataFS.ReadFile("data/catalog.json")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var products []types.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &Catalog{products: products}, nil
}

// Search applies the filter.
func (c *Catalog) Search(f CatalogFilter) []types.Product {
	if f.ProductID != "" {
		for _, p := range c.products {
			if p.ProductID == f.ProductID {
				return []types.Product{p}
			}
		}
		return []types.Product{}
	}

	results := []types.Product{}
	for _, p := range c.products {
		if f.ProductName != "" &&
			!strings.Contains(strings.ToLower(p.ProductName), strings.ToLower(f.ProductName)) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if p.Price < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && p.Price > f.MaxPrice {
			continue
		}
		results = append(results, p)
	}
	return results
}

// ByName returns the product with the exact name.
func (c *Catalog) ByName(productName string) (types.Product, bool) {
	for _, p := range c.products {
		if p.ProductName == productName {
			return p, true
		}
	}
	return types.Product{}, false
}

// Categories lists every category, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	for _, p := range c.products {
		seen[p.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
