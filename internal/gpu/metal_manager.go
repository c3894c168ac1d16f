//go:build metal && darwin
// +build metal,darwin

package gpu

// tryCreateMetalDevice attempts to create a Metal device when metal build tag is present
func (m *Manager) tryCreateMetalDevice() (Device, error) {
	d, err := NewMetalDevice(m.logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}
