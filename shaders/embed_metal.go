//go:build metal && darwin
// +build metal,darwin

package shaders

import _ "embed"

// MetalLib contains the pre-compiled Metal kernel library, built from
// ferrum.metal with `make metallib`.
//
//go:embed lib/ferrum.metallib
var MetalLib []byte

func metalLib() []byte {
	return MetalLib
}
