// ABOUTME: Version and product identification constants
// ABOUTME: Reported to the device server during the hello handshake
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name
	Product = "HapticSync Engine"

	// Manufacturer is the product manufacturer
	Manufacturer = "HapticSync"
)
