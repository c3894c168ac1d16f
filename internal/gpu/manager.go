package gpu

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Backend names accepted by NewManager.
const (
	BackendAuto  = "auto"
	BackendHost  = "host"
	BackendMetal = "metal"
)

// Manager handles device selection and lifecycle
type Manager struct {
	device  Device
	backend string
	host    HostOptions
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewManager creates a new device manager for the requested backend.
//
// "auto" prefers Metal and falls back to the host device. "metal" fails with
// ErrNoDevice when Metal is not available.
func NewManager(logger *zap.Logger, backend string, host HostOptions) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backend == "" {
		backend = BackendAuto
	}

	m := &Manager{
		backend: backend,
		host:    host,
		logger:  logger,
	}

	if err := m.detectAndInitialize(); err != nil {
		return nil, err
	}

	return m, nil
}

// detectAndInitialize selects the device for the configured backend
func (m *Manager) detectAndInitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.backend {
	case BackendHost:
		m.device = NewHostDevice(m.logger, m.host)
	case BackendMetal:
		d, err := m.tryCreateMetalDevice()
		if err != nil {
			return err
		}
		m.device = d
	case BackendAuto:
		d, err := m.tryCreateMetalDevice()
		if err != nil {
			m.logger.Debug("Metal unavailable, using host device", zap.Error(err))
			d = NewHostDevice(m.logger, m.host)
		}
		m.device = d
	default:
		return fmt.Errorf("unknown device backend %q", m.backend)
	}

	m.logger.Info("Selected compute device",
		zap.String("backend", m.device.Info().Backend),
		zap.String("device", m.device.Info().Name))
	return nil
}

// Device returns the selected device
func (m *Manager) Device() (Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.device == nil {
		return nil, ErrNoDevice
	}
	return m.device, nil
}

// GetDeviceInfo returns information about the selected device
func (m *Manager) GetDeviceInfo() DeviceInfo {
	d, err := m.Device()
	if err != nil {
		return DeviceInfo{Name: "No device available"}
	}
	return d.Info()
}

// IsGPUAvailable returns true if a GPU device is active
func (m *Manager) IsGPUAvailable() bool {
	d, err := m.Device()
	if err != nil {
		return false
	}
	_, isHost := d.(*HostDevice)
	return !isHost
}

// GetBackendType returns a string describing the current backend type
func (m *Manager) GetBackendType() string {
	d, err := m.Device()
	if err != nil {
		return "none"
	}
	return d.Info().Backend
}

// Release releases the selected device
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Release(); err != nil {
			return err
		}
		m.device = nil
	}
	return nil
}
