//go:build !metal || !darwin
// +build !metal !darwin

package gpu

import (
	"fmt"

	"go.uber.org/zap"
)

// MetalLibraryFormat is the file extension of compiled Metal libraries.
const MetalLibraryFormat = "metallib"

// MetalDevice is a stub type when Metal is not available
type MetalDevice struct{}

// NewMetalDevice always fails when built without Metal support.
func NewMetalDevice(logger *zap.Logger) (*MetalDevice, error) {
	return nil, fmt.Errorf("%w: built without Metal support", ErrNoDevice)
}
