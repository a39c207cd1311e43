// Package native selects the context backend of the build target.
package native

import "kernos/kernel/arch"

// Backend returns the context backend for the architecture the kernel was
// built for.
func Backend() arch.CPUContext {
	return backend
}
