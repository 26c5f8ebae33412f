// Package device executes commands against IEC 61850 field devices and
// provides the device configuration store.
package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
)

// devicesFile is the top-level YAML structure of the device configuration
// file.
type devicesFile struct {
	Version                string                `yaml:"version"`
	DefaultUseCombinedLoad bool                  `yaml:"default_use_combined_load"`
	Devices                []domain.DeviceRecord `yaml:"devices"`
}

// Store is a read-only, in-memory device configuration store loaded from a
// YAML file at startup.
type Store struct {
	records                map[string]*domain.DeviceRecord
	defaultUseCombinedLoad bool
}

// LoadStore loads device records from a YAML file.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices file: %w", err)
	}

	var file devicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse devices file: %w", err)
	}

	records := make(map[string]*domain.DeviceRecord, len(file.Devices))
	for idx := range file.Devices {
		rec := file.Devices[idx]
		if rec.DeviceID == "" {
			return nil, fmt.Errorf("device at index %d has no device_id", idx)
		}
		if _, exists := records[rec.DeviceID]; exists {
			return nil, fmt.Errorf("duplicate device_id '%s' at index %d", rec.DeviceID, idx)
		}
		if rec.ServerName == "" {
			return nil, fmt.Errorf("device %s has no server_name", rec.DeviceID)
		}
		records[rec.DeviceID] = &rec
	}

	return &Store{
		records:                records,
		defaultUseCombinedLoad: file.DefaultUseCombinedLoad,
	}, nil
}

// NewStore builds a store from records directly, for tests and embedding.
func NewStore(defaultUseCombinedLoad bool, records ...*domain.DeviceRecord) *Store {
	m := make(map[string]*domain.DeviceRecord, len(records))
	for _, rec := range records {
		m[rec.DeviceID] = rec
	}
	return &Store{records: m, defaultUseCombinedLoad: defaultUseCombinedLoad}
}

// FindByDeviceIdentification implements domain.DeviceStore.
func (s *Store) FindByDeviceIdentification(deviceID string) (*domain.DeviceRecord, bool) {
	rec, ok := s.records[deviceID]
	return rec, ok
}

// DefaultUseCombinedLoad is the process-wide fallback for the combined load
// flag when a device is unknown.
func (s *Store) DefaultUseCombinedLoad() bool { return s.defaultUseCombinedLoad }

// Size returns the number of configured devices.
func (s *Store) Size() int { return len(s.records) }

// Records returns all configured devices, in no particular order.
func (s *Store) Records() []*domain.DeviceRecord {
	records := make([]*domain.DeviceRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	return records
}
