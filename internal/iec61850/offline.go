package iec61850

import "context"

// OfflineClient is the Client bound when no MMS association layer is linked
// into the binary. Every operation fails with a device communication service
// error, so commands surface upstream as NOT_OK once the redelivery budget
// runs out instead of hanging.
type OfflineClient struct{}

// NewOfflineClient creates an OfflineClient.
func NewOfflineClient() *OfflineClient { return &OfflineClient{} }

func (c *OfflineClient) communicationFailure() error {
	return &ServiceError{Code: DeviceCommunicationFailureCode}
}

// GetNode implements Client.
func (c *OfflineClient) GetNode(ctx context.Context, conn *DeviceConnection, ref ObjectReference, fc Fc) (*FcModelNode, error) {
	return nil, c.communicationFailure()
}

// ReadNodeDataValues implements Client.
func (c *OfflineClient) ReadNodeDataValues(ctx context.Context, conn *DeviceConnection, node *FcModelNode) error {
	return c.communicationFailure()
}

// WriteNodeDataValues implements Client.
func (c *OfflineClient) WriteNodeDataValues(ctx context.Context, conn *DeviceConnection, node *FcModelNode) error {
	return c.communicationFailure()
}

// EnableReporting implements Client.
func (c *OfflineClient) EnableReporting(ctx context.Context, conn *DeviceConnection) error {
	return c.communicationFailure()
}
