package enums

import "fmt"

// ViewerRole is carried in access tokens.
type ViewerRole string

const (
	ViewerRoleViewer ViewerRole = "viewer"
	ViewerRoleAdmin  ViewerRole = "admin"
)

// IsValid reports whether the value is known.
func (r ViewerRole) IsValid() bool {
	return r == ViewerRoleViewer || r == ViewerRoleAdmin
}

// ParseViewerRole converts raw input into a ViewerRole.
func ParseViewerRole(value string) (ViewerRole, error) {
	role := ViewerRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid viewer role %q", value)
	}
	return role, nil
}
