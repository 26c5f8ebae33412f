package iec61850

import (
	"errors"
	"fmt"
	"time"
)

// Node access errors.
var (
	ErrNodeNotFound       = errors.New("node not found")
	ErrUnexpectedNodeType = errors.New("unexpected node type")
)

// NodeContainer is a read-only view over one functionally constrained node,
// bound to the device it was received from. All getters descend from the
// contained node by attribute name.
type NodeContainer struct {
	deviceID string
	node     *FcModelNode
}

// NewNodeContainer wraps a node for the given device.
func NewNodeContainer(deviceID string, node *FcModelNode) *NodeContainer {
	return &NodeContainer{deviceID: deviceID, node: node}
}

// DeviceID returns the owning device identification.
func (c *NodeContainer) DeviceID() string { return c.deviceID }

// Name returns the contained node's name.
func (c *NodeContainer) Name() string { return c.node.Name() }

// Fc returns the contained node's functional constraint.
func (c *NodeContainer) Fc() Fc { return c.node.Fc() }

// Reference returns the contained node's object reference.
func (c *NodeContainer) Reference() ObjectReference { return c.node.Reference() }

// Node returns the contained node.
func (c *NodeContainer) Node() *FcModelNode { return c.node }

func (c *NodeContainer) attr(path ...string) (*Node, error) {
	n := c.node.At(path...)
	if n == nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrNodeNotFound, path, c.node.Reference())
	}
	return n, nil
}

// Float32 returns the float attribute at the given path.
func (c *NodeContainer) Float32(path ...string) (float32, error) {
	n, err := c.attr(path...)
	if err != nil {
		return 0, err
	}
	v, ok := n.Value().(float32)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, want float32", ErrUnexpectedNodeType, n.Name(), n.Value())
	}
	return v, nil
}

// Int64 returns the integer attribute at the given path. Devices implement
// counter attributes as either 32 or 64 bit integers; both are accepted.
func (c *NodeContainer) Int64(path ...string) (int64, error) {
	n, err := c.attr(path...)
	if err != nil {
		return 0, err
	}
	switch v := n.Value().(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int8:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s is %T, want integer", ErrUnexpectedNodeType, n.Name(), n.Value())
	}
}

// Bool returns the boolean attribute at the given path.
func (c *NodeContainer) Bool(path ...string) (bool, error) {
	n, err := c.attr(path...)
	if err != nil {
		return false, err
	}
	v, ok := n.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T, want bool", ErrUnexpectedNodeType, n.Name(), n.Value())
	}
	return v, nil
}

// Quality returns the quality attribute at the given path.
func (c *NodeContainer) Quality(path ...string) (Quality, error) {
	n, err := c.attr(path...)
	if err != nil {
		return 0, err
	}
	v, ok := n.Value().(Quality)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, want Quality", ErrUnexpectedNodeType, n.Name(), n.Value())
	}
	return v, nil
}

// Time returns the timestamp attribute at the given path, in UTC.
func (c *NodeContainer) Time(path ...string) (time.Time, error) {
	n, err := c.attr(path...)
	if err != nil {
		return time.Time{}, err
	}
	v, ok := n.Value().(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s is %T, want time.Time", ErrUnexpectedNodeType, n.Name(), n.Value())
	}
	return v.UTC(), nil
}
