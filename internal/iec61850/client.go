package iec61850

import (
	"context"
	"fmt"
)

// ServiceError is raised by the underlying wire client when the device
// rejects or fails to answer a service request. Code 22 is the MMS response
// indicating the device could not be reached.
type ServiceError struct {
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Error code=%d", e.Code)
	}
	return e.Message
}

// DeviceCommunicationFailureCode is the service error code translated to a
// "device communication failure" for the upstream platform.
const DeviceCommunicationFailureCode = 22

// ReportListener receives unsolicited reports for one device connection. The
// wire client invokes it from a single goroutine per connection.
type ReportListener interface {
	// NewReport delivers one report. Implementations must not panic; a
	// malformed report is logged and dropped.
	NewReport(report *Report)

	// AssociationClosed signals that the connection closed, with the
	// transport error if there was one. Informational only.
	AssociationClosed(err error)
}

// DeviceConnection is one live session to a field device. The connection and
// its listener are owned by whoever established the association; teardown is
// the wire client's responsibility.
type DeviceConnection struct {
	// DeviceID is the platform-wide device identification.
	DeviceID string

	// ServerName is the IEC 61850 server name of the device, prefixed to
	// logical device references.
	ServerName string

	// Listener receives the reports pushed over this connection. Must be
	// set before reporting is enabled.
	Listener ReportListener
}

// LogicalDeviceRef builds the object reference prefix for a logical device
// on this connection, e.g. "WAGO61850ServerBATTERY2".
func (c *DeviceConnection) LogicalDeviceRef(logicalDevice string, index int) string {
	return fmt.Sprintf("%s%s%d", c.ServerName, logicalDevice, index)
}

// Client is the underlying IEC 61850 wire client. The adapter only depends
// on this interface; encoding, session management and timeouts live behind
// it.
type Client interface {
	// GetNode resolves a functionally constrained node by reference without
	// reading its values.
	GetNode(ctx context.Context, conn *DeviceConnection, ref ObjectReference, fc Fc) (*FcModelNode, error)

	// ReadNodeDataValues refreshes the values of the given node from the
	// device.
	ReadNodeDataValues(ctx context.Context, conn *DeviceConnection, node *FcModelNode) error

	// WriteNodeDataValues writes the values of the given node to the device.
	WriteNodeDataValues(ctx context.Context, conn *DeviceConnection, node *FcModelNode) error

	// EnableReporting activates the report control blocks of the connection
	// so that the registered ReportListener starts receiving reports.
	EnableReporting(ctx context.Context, conn *DeviceConnection) error
}
