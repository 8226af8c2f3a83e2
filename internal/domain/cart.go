package domain

// Product holds the catalog attributes captured when an entry is first added.
// They are not re-validated against the live catalog when a cart is restored.
type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// CartEntry is one product held in the cart together with its quantity.
type CartEntry struct {
	Product
	Amount int `json:"amount"`
}

// Cart is the ordered-by-insertion list of entries.
type Cart []CartEntry

// StockSnapshot is the stock for a product as reported by the stock oracle.
// It is never stored.
type StockSnapshot struct {
	ProductID int64
	Available int
}

// Find returns the entry for productID and whether it exists.
func (c Cart) Find(productID int64) (CartEntry, bool) {
	for _, e := range c {
		if e.ID == productID {
			return e, true
		}
	}
	return CartEntry{}, false
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}
