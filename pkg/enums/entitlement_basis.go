package enums

// EntitlementBasis names the commercial reason a viewer may play content.
type EntitlementBasis string

const (
	EntitlementBasisNone         EntitlementBasis = "none"
	EntitlementBasisFree         EntitlementBasis = "free"
	EntitlementBasisSubscription EntitlementBasis = "subscription"
	EntitlementBasisRental       EntitlementBasis = "rental"
)

// String implements fmt.Stringer.
func (b EntitlementBasis) String() string {
	return string(b)
}
