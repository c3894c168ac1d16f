//go:build !metal || !darwin
// +build !metal !darwin

package gpu

import "fmt"

// tryCreateMetalDevice attempts to create a Metal device when metal build tag is NOT present
func (m *Manager) tryCreateMetalDevice() (Device, error) {
	return nil, fmt.Errorf("%w: built without Metal support", ErrNoDevice)
}
