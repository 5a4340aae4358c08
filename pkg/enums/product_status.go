package enums

// ProductStatus is derived from the product's active flag and expiry; it is
// never stored directly.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusExpired  ProductStatus = "expired"
)

// String implements fmt.Stringer.
func (p ProductStatus) String() string {
	return string(p)
}
