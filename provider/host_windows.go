//go:build windows

package provider

// windows has no load average; cpu utilization is read from the counters.
var platformCapabilities = Capabilities{CPU: true}
