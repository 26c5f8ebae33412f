// Package domain contains the canonical data contracts of the adapter.
package domain

// DeviceRecord is the protocol-specific configuration of one IEC 61850
// device, owned by an external repository and read-only inside the adapter.
type DeviceRecord struct {
	// DeviceID is the platform-wide device identification.
	DeviceID string `yaml:"device_id"`

	// ServerName is the IEC 61850 server name prefixed to logical device
	// references, e.g. "WAGO61850Server".
	ServerName string `yaml:"server_name"`

	// ICDFilename optionally pins the device to a local model file.
	ICDFilename string `yaml:"icd_filename,omitempty"`

	// Port is the MMS port, 0 meaning the protocol default.
	Port int `yaml:"port,omitempty"`

	// UseCombinedLoad indicates the deprecated combined load layout: a single
	// LOAD logical device containing multiple metering logical nodes.
	UseCombinedLoad bool `yaml:"use_combined_load"`
}

// DeviceStore is the device configuration lookup collaborator.
type DeviceStore interface {
	// FindByDeviceIdentification returns the record for a device, or false
	// when the device is unknown.
	FindByDeviceIdentification(deviceID string) (*DeviceRecord, bool)
}
