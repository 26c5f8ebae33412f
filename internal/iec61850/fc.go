// Package iec61850 models the subset of the IEC 61850 data model the adapter
// needs: functional constraints, typed model nodes, quality words, reports
// and their data-sets. The wire-level client is an external collaborator
// reached through the Client interface.
package iec61850

// Fc is a functional constraint: the classification tag of a data attribute.
type Fc string

const (
	FcST Fc = "ST" // status information
	FcMX Fc = "MX" // measurand
	FcSP Fc = "SP" // set point
	FcSV Fc = "SV" // substituted value
	FcCF Fc = "CF" // configuration
	FcDC Fc = "DC" // description
	FcCO Fc = "CO" // control
)

// Common sub data attribute names.
const (
	AttrMagnitude    = "mag"
	AttrSetMagnitude = "setMag"
	AttrFloat        = "f"
	AttrComplexVal   = "cVal"
	AttrActualValue  = "actVal"
	AttrStatusValue  = "stVal"
	AttrQuality      = "q"
	AttrTime         = "t"
)
