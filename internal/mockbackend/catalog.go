package mockbackend

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Variant is one purchasable SKU in the mock catalogue.
type Variant struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Name        string          `json:"name"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// Catalog holds variants and their stock levels.
type Catalog struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

func NewCatalog(variants ...Variant) *Catalog {
	c := &Catalog{variants: make(map[string]Variant, len(variants))}
	for _, v := range variants {
		c.variants[v.ID] = v
	}
	return c
}

// SeedCatalog returns a small apparel catalogue with fixed ids so demos and
// tests can refer to variants by name.
func SeedCatalog() *Catalog {
	tee := func(id, size string, stock int) Variant {
		return Variant{
			ID:          id,
			ProductID:   "prod-tee",
			ProductName: "Classic Tee",
			Name:        size,
			ImageURL:    "https://cdn.example.com/tee.jpg",
			Price:       decimal.NewFromInt(10000),
			Stock:       stock,
		}
	}
	hoodie := func(id, colour string, stock int) Variant {
		return Variant{
			ID:          id,
			ProductID:   "prod-hoodie",
			ProductName: "Zip Hoodie",
			Name:        colour,
			Price:       decimal.NewFromInt(25000),
			Stock:       stock,
		}
	}

	return NewCatalog(
		tee("tee-s", "S", 10),
		tee("tee-m", "M", 5),
		tee("tee-l", "L", 0),
		hoodie("hoodie-grey", "Grey", 3),
		hoodie("hoodie-navy", "Navy", 8),
		Variant{
			ID:          "socks-3pk",
			ProductID:   "prod-socks",
			ProductName: "Socks 3-pack",
			Price:       decimal.NewFromInt(5000),
			Stock:       50,
		},
	)
}

func (c *Catalog) Variant(id string) (Variant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variants[id]
	return v, ok
}

// SetStock changes the stock level of an existing variant.
func (c *Catalog) SetStock(id string, stock int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.variants[id]
	if !ok {
		return false
	}
	v.Stock = stock
	c.variants[id] = v
	return true
}

// List returns all variants ordered by id.
func (c *Catalog) List() []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Variant, 0, len(c.variants))
	for _, v := range c.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
