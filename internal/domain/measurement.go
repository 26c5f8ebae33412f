// Package domain contains the canonical data contracts of the adapter.
// These are protocol-agnostic: the reporting and messaging subsystems both
// produce and consume these types, independent of the IEC 61850 wire model.
package domain

import "time"

// Measurement is the canonical unit of measurement data extracted from a
// device report or a direct read.
type Measurement struct {
	// Index identifies the sub-system the value belongs to. For separated
	// devices this is 1; for combined load devices it is the logical node
	// index.
	Index int `json:"index"`

	// Node is the data attribute description, e.g. "TotW" or "TotWh".
	Node string `json:"node"`

	// Quality is the IEC 61850 quality word of the source attribute.
	Quality uint16 `json:"quality"`

	// Time is the device-provided timestamp of the value, in UTC.
	Time time.Time `json:"time"`

	// Value is the numeric value, widened to float64.
	Value float64 `json:"value"`
}

// SystemResult groups the measurements of one logical system (e.g. BATTERY2)
// inside a report or read response.
type SystemResult struct {
	ID           int           `json:"id"`
	Type         string        `json:"type"`
	Measurements []Measurement `json:"measurements"`
}

// ReportInfo carries report metadata alongside the measurement payload.
type ReportInfo struct {
	// SequenceNumber is the report sequence number, if the device sent one.
	SequenceNumber *int `json:"sequence_number,omitempty"`

	// TimeOfEntry is the device buffer entry time converted to the Unix epoch.
	TimeOfEntry time.Time `json:"time_of_entry"`

	// ReportID is the report control block identifier.
	ReportID string `json:"report_id"`
}

// DataResponse is the canonical result envelope forwarded upstream after a
// report has been processed or a GET_DATA operation completed.
type DataResponse struct {
	Systems []SystemResult `json:"systems"`
	Report  *ReportInfo    `json:"report,omitempty"`
}

// DataSample is one power-quality sample: a typed path, a timestamp and a
// value rounded to measurement precision.
type DataSample struct {
	Type  string    `json:"type"`
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PQLogicalNode groups power-quality samples per logical node.
type PQLogicalNode struct {
	Name    string       `json:"name"`
	Samples []DataSample `json:"samples"`
}

// PQLogicalDevice groups logical nodes per logical device.
type PQLogicalDevice struct {
	Name  string          `json:"name"`
	Nodes []PQLogicalNode `json:"nodes"`
}

// PQValuesResponse is the canonical power-quality result envelope.
type PQValuesResponse struct {
	LogicalDevices []PQLogicalDevice `json:"logical_devices"`
}

// SystemFilter selects one logical system and optionally restricts which
// measurement nodes a GET_DATA operation should read.
type SystemFilter struct {
	ID    int      `json:"id"`
	Type  string   `json:"type"`
	Nodes []string `json:"nodes,omitempty"`
}

// GetDataRequest is the payload of a GET_DATA command message.
type GetDataRequest struct {
	Systems []SystemFilter `json:"systems"`
}

// SetPoint is one value to be written to a device node.
type SetPoint struct {
	Node  string  `json:"node"`
	Value float64 `json:"value"`
}

// SetDataSystem addresses one logical system in a SET_DATA request.
type SetDataSystem struct {
	ID        int        `json:"id"`
	Type      string     `json:"type"`
	SetPoints []SetPoint `json:"set_points"`
}

// SetDataRequest is the payload of a SET_DATA command message.
type SetDataRequest struct {
	Systems []SetDataSystem `json:"systems"`
}
