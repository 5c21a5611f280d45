package enums

import "fmt"

// CouponDiscountType selects how a coupon's discount is computed.
type CouponDiscountType string

const (
	CouponDiscountFixed      CouponDiscountType = "fixed"
	CouponDiscountPercentage CouponDiscountType = "percentage"
)

var validCouponDiscountTypes = []CouponDiscountType{
	CouponDiscountFixed,
	CouponDiscountPercentage,
}

// String implements fmt.Stringer.
func (t CouponDiscountType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known discount type.
func (t CouponDiscountType) IsValid() bool {
	for _, candidate := range validCouponDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCouponDiscountType converts raw input into a CouponDiscountType.
func ParseCouponDiscountType(value string) (CouponDiscountType, error) {
	for _, candidate := range validCouponDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon discount type %q", value)
}
