package reporting

import "github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"

// HandlerFactory produces a report handler bound to one system identifier.
type HandlerFactory func(systemID int) ReportHandler

// statusMembers are the status data objects every logical system reports.
var statusMembers = map[string]memberTranslator{
	"Beh":    iec61850.TranslateStatusValue,
	"Health": iec61850.TranslateStatusValue,
	"Mod":    iec61850.TranslateStatusValue,
	"Alm1":   iec61850.TranslateStatusValue,
	"Alm2":   iec61850.TranslateStatusValue,
	"Alm3":   iec61850.TranslateStatusValue,
	"Alm4":   iec61850.TranslateStatusValue,
	"IntIn1": iec61850.TranslateStatusValue,
	"IntIn2": iec61850.TranslateStatusValue,
	"Wrn1":   iec61850.TranslateStatusValue,
	"Wrn2":   iec61850.TranslateStatusValue,
	"Wrn3":   iec61850.TranslateStatusValue,
	"Wrn4":   iec61850.TranslateStatusValue,
}

// energyMembers are the generation/consumption data objects of producing and
// consuming systems.
var energyMembers = map[string]memberTranslator{
	"TotW":    measurandTranslator,
	"MaxWPhs": measurandTranslator,
	"MinWPhs": measurandTranslator,
	"TotWh":   iec61850.TranslateActualValue,
	"TotPF":   measurandTranslator,
	"Hz":      measurandTranslator,
}

// thermalMembers are the temperature/flow data objects of heat systems.
var thermalMembers = map[string]memberTranslator{
	"TmpSv":   measurandTranslator,
	"TmpBck":  measurandTranslator,
	"TmpOut":  measurandTranslator,
	"FlwRte":  measurandTranslator,
	"TotThW":  measurandTranslator,
	"TotThWh": iec61850.TranslateActualValue,
}

func mergeMembers(sets ...map[string]memberTranslator) map[string]memberTranslator {
	merged := make(map[string]memberTranslator)
	for _, set := range sets {
		for name, t := range set {
			merged[name] = t
		}
	}
	return merged
}

func factory(systemType DeviceType, indexFromNode bool, sets ...map[string]memberTranslator) HandlerFactory {
	members := mergeMembers(sets...)
	return func(systemID int) ReportHandler {
		return &systemReportHandler{
			systemID:      systemID,
			systemType:    systemType,
			members:       members,
			indexFromNode: indexFromNode,
		}
	}
}

// handlerFactories is the closed mapping from device type to handler
// factory. Every DeviceType constant has exactly one registration; adding a
// type without one fails the registry completeness test.
var handlerFactories = map[DeviceType]HandlerFactory{
	DeviceTypeRTU:          factory(DeviceTypeRTU, false, statusMembers),
	DeviceTypePV:           factory(DeviceTypePV, false, statusMembers, energyMembers),
	DeviceTypeBattery:      factory(DeviceTypeBattery, false, statusMembers, energyMembers),
	DeviceTypeEngine:       factory(DeviceTypeEngine, false, statusMembers, energyMembers),
	DeviceTypeLoad:         factory(DeviceTypeLoad, false, statusMembers, energyMembers),
	DeviceTypeLoadCombined: factory(DeviceTypeLoad, true, statusMembers, energyMembers),
	DeviceTypeCHP:          factory(DeviceTypeCHP, false, statusMembers, energyMembers, thermalMembers),
	DeviceTypeHeatBuffer:   factory(DeviceTypeHeatBuffer, false, statusMembers, thermalMembers),
	DeviceTypeGasFurnace:   factory(DeviceTypeGasFurnace, false, statusMembers, thermalMembers),
	DeviceTypeHeatPump:     factory(DeviceTypeHeatPump, false, statusMembers, thermalMembers),
	DeviceTypeBoiler:       factory(DeviceTypeBoiler, false, statusMembers, thermalMembers),
	DeviceTypeWind:         factory(DeviceTypeWind, false, statusMembers, energyMembers),
	DeviceTypePQ:           factory(DeviceTypePQ, false, statusMembers, energyMembers),
}

// ResolveHandler returns the handler for a device type, parameterized with
// the system identifier, or false when the type has no registration.
func ResolveHandler(deviceType DeviceType, systemID int) (ReportHandler, bool) {
	f, ok := handlerFactories[deviceType]
	if !ok {
		return nil, false
	}
	return f(systemID), true
}
