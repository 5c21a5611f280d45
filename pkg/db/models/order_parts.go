package models

// OrderItem is one immutable line of the snapshot that was charged.
type OrderItem struct {
	DishID         string `json:"dishId"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Notes          string `json:"notes,omitempty"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

// DeliveryAddress is where the order is delivered.
type DeliveryAddress struct {
	Line1        string `json:"line1"`
	Line2        string `json:"line2,omitempty"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Instructions string `json:"instructions,omitempty"`
}

// CustomerInfo identifies the person paying.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
