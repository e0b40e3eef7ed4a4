//go:build !windows

package provider

// unix based systems compute load averages in the kernel; cpu utilization
// is left to the load average there.
var platformCapabilities = Capabilities{LoadAverage: true}
