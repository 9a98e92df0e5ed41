// Package harvest walks the signed-in order history year by year and turns
// each settled page into purchase records.
package harvest

// Item is one purchased product.
type Item struct {
	ProductName string `json:"productName"`
	Link        string `json:"link"`
}

// Order is one purchase record: the order's date and total as shown by the
// site, and the products it contained.
type Order struct {
	OrderDate string `json:"orderDate"`
	Total     string `json:"total"`
	Items     []Item `json:"items"`
}
