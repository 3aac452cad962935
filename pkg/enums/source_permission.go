package enums

import "fmt"

// SourcePermission restricts which device classes may use a video source.
type SourcePermission string

const (
	SourcePermissionWebAndMobile SourcePermission = "web_and_mobile"
	SourcePermissionWebOnly      SourcePermission = "web_only"
	SourcePermissionMobileOnly   SourcePermission = "mobile_only"
)

var validSourcePermissions = []SourcePermission{
	SourcePermissionWebAndMobile,
	SourcePermissionWebOnly,
	SourcePermissionMobileOnly,
}

// String implements fmt.Stringer.
func (p SourcePermission) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p SourcePermission) IsValid() bool {
	for _, candidate := range validSourcePermissions {
		if candidate == p {
			return true
		}
	}
	return false
}

// Allows reports whether the permission admits the device class.
func (p SourcePermission) Allows(device DeviceClass) bool {
	switch p {
	case SourcePermissionWebAndMobile:
		return device.IsValid()
	case SourcePermissionWebOnly:
		return device == DeviceClassWeb
	case SourcePermissionMobileOnly:
		return device == DeviceClassMobile
	}
	return false
}

// ParseSourcePermission converts raw input into a SourcePermission.
func ParseSourcePermission(value string) (SourcePermission, error) {
	for _, candidate := range validSourcePermissions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source permission %q", value)
}
