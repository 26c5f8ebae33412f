// Package upstream provides the upstream-facing service: canonical
// measurement results are handed to it fire-and-forget and published to the
// platform over MQTT.
package upstream

import "github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"

// Service receives canonical results produced by the reporting subsystem.
type Service interface {
	// SendMeasurements forwards a measurement result envelope for a device.
	SendMeasurements(deviceID string, response *domain.DataResponse) error

	// SendPqValues forwards a power-quality result for a device and report.
	SendPqValues(deviceID, reportID string, response *domain.PQValuesResponse) error
}
