// ABOUTME: Version and product constants
// ABOUTME: Reported in logs, session replies and the dashboard
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "packetdec"

	// Manufacturer identifies the maintainers
	Manufacturer = "Sendspin"
)
