package cart

// UpdateQuantityRequest sets a line quantity; zero removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=99"`
}

// ApplyCouponRequest applies a coupon code. CustomerEmail enables the
// per-customer usage rule at preview time.
type ApplyCouponRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email,max=254"`
}
