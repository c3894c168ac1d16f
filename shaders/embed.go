// Package shaders provides the kernel libraries embedded in the binary.
package shaders

import _ "embed"

// HostLib is the host kernel library manifest.
//
//go:embed lib/ferrum.hostlib
var HostLib []byte

// Embedded returns the embedded library for a device library format, or nil
// when the binary carries none.
func Embedded(format string) []byte {
	switch format {
	case "hostlib":
		return HostLib
	case "metallib":
		return metalLib()
	}
	return nil
}
