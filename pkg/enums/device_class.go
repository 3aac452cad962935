package enums

import "fmt"

// DeviceClass identifies the requesting client platform.
type DeviceClass string

const (
	DeviceClassWeb    DeviceClass = "web"
	DeviceClassMobile DeviceClass = "mobile"
)

var validDeviceClasses = []DeviceClass{
	DeviceClassWeb,
	DeviceClassMobile,
}

// String implements fmt.Stringer.
func (d DeviceClass) String() string {
	return string(d)
}

// IsValid reports whether the value is known.
func (d DeviceClass) IsValid() bool {
	for _, candidate := range validDeviceClasses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeviceClass converts raw input into a DeviceClass.
func ParseDeviceClass(value string) (DeviceClass, error) {
	for _, candidate := range validDeviceClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid device class %q", value)
}
