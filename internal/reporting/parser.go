// Package reporting consumes unsolicited IEC 61850 reports: it identifies
// the originating logical system from the data-set reference, dispatches to
// a type-specific handler and forwards canonical measurement results to the
// upstream-facing service.
package reporting

import (
	"regexp"
	"strconv"
)

// DeviceType is the logical system type encoded in a data-set reference.
type DeviceType string

const (
	DeviceTypeRTU          DeviceType = "RTU"
	DeviceTypePV           DeviceType = "PV"
	DeviceTypeBattery      DeviceType = "BATTERY"
	DeviceTypeEngine       DeviceType = "ENGINE"
	DeviceTypeLoad         DeviceType = "LOAD"
	DeviceTypeLoadCombined DeviceType = "LOAD_COMBINED"
	DeviceTypeCHP          DeviceType = "CHP"
	DeviceTypeHeatBuffer   DeviceType = "HEAT_BUFFER"
	DeviceTypeGasFurnace   DeviceType = "GAS_FURNACE"
	DeviceTypeHeatPump     DeviceType = "HEAT_PUMP"
	DeviceTypeBoiler       DeviceType = "BOILER"
	DeviceTypeWind         DeviceType = "WIND"
	DeviceTypePQ           DeviceType = "PQ"
)

// ReportKind is the report control block kind encoded after "LLN0$".
type ReportKind string

const (
	ReportKindStatus       ReportKind = "Status"
	ReportKindMeasurements ReportKind = "Measurements"
	ReportKindHeartbeat    ReportKind = "Heartbeat"
)

// DataSetReference is the parsed form of a report's data-set reference.
// LOAD_COMBINED never comes out of the parser; the listener rewrites LOAD to
// it based on device configuration before registry lookup.
type DataSetReference struct {
	Prefix     string
	DeviceType DeviceType
	SystemID   int
	Kind       ReportKind
}

var dataSetRefPattern = regexp.MustCompile(
	`\A(.*)(RTU|PV|BATTERY|ENGINE|LOAD|CHP|HEAT_BUFFER|GAS_FURNACE|HEAT_PUMP|BOILER|WIND|PQ)([1-9]\d*)/LLN0\$(Status|Measurements|Heartbeat)\z`)

// ParseDataSetReference matches a data-set reference against the fixed
// grammar <prefix><DEVICE_TYPE><digits>/LLN0$<ReportKind>. A non-match means
// the report is unsupported, not an error.
func ParseDataSetReference(ref string) (DataSetReference, bool) {
	m := dataSetRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return DataSetReference{}, false
	}
	systemID, err := strconv.Atoi(m[3])
	if err != nil {
		return DataSetReference{}, false
	}
	return DataSetReference{
		Prefix:     m[1],
		DeviceType: DeviceType(m[2]),
		SystemID:   systemID,
		Kind:       ReportKind(m[4]),
	}, true
}
