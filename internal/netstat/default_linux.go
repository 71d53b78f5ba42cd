//go:build linux

package netstat

// Default returns the platform connection enumerator.
func Default() Enumerator {
	return &ProcNet{Root: "/proc"}
}
