// Package reporting_test tests report parsing and dispatch.
package reporting_test

import (
	"testing"

	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/reporting"
)

// TestParseDataSetReference tests the data-set reference grammar.
func TestParseDataSetReference(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		wantPrefix string
		wantType   reporting.DeviceType
		wantID     int
		wantKind   reporting.ReportKind
	}{
		{
			name:       "boiler measurements",
			ref:        "WAGO61850ServerBOILER3/LLN0$Measurements",
			wantPrefix: "WAGO61850Server",
			wantType:   reporting.DeviceTypeBoiler,
			wantID:     3,
			wantKind:   reporting.ReportKindMeasurements,
		},
		{
			name:       "rtu status",
			ref:        "SWDeviceGenericRTU1/LLN0$Status",
			wantPrefix: "SWDeviceGeneric",
			wantType:   reporting.DeviceTypeRTU,
			wantID:     1,
			wantKind:   reporting.ReportKindStatus,
		},
		{
			name:       "empty prefix",
			ref:        "PV2/LLN0$Heartbeat",
			wantPrefix: "",
			wantType:   reporting.DeviceTypePV,
			wantID:     2,
			wantKind:   reporting.ReportKindHeartbeat,
		},
		{
			name:       "multi digit system id",
			ref:        "SrvLOAD12/LLN0$Status",
			wantPrefix: "Srv",
			wantType:   reporting.DeviceTypeLoad,
			wantID:     12,
			wantKind:   reporting.ReportKindStatus,
		},
		{
			name:       "underscore device type",
			ref:        "SrvHEAT_BUFFER1/LLN0$Measurements",
			wantPrefix: "Srv",
			wantType:   reporting.DeviceTypeHeatBuffer,
			wantID:     1,
			wantKind:   reporting.ReportKindMeasurements,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := reporting.ParseDataSetReference(tt.ref)
			if !ok {
				t.Fatalf("expected %q to parse", tt.ref)
			}
			if parsed.Prefix != tt.wantPrefix {
				t.Errorf("expected prefix %q, got %q", tt.wantPrefix, parsed.Prefix)
			}
			if parsed.DeviceType != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, parsed.DeviceType)
			}
			if parsed.SystemID != tt.wantID {
				t.Errorf("expected system id %d, got %d", tt.wantID, parsed.SystemID)
			}
			if parsed.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, parsed.Kind)
			}
		})
	}
}

// TestParseDataSetReferenceRejects tests references outside the grammar.
func TestParseDataSetReferenceRejects(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"zero system id", "SrvBATTERY0/LLN0$Status"},
		{"leading zero system id", "SrvBATTERY01/LLN0$Status"},
		{"unknown device type", "SrvFURNACE1/LLN0$Status"},
		{"unknown report kind", "SrvBATTERY1/LLN0$Events"},
		{"lowercase report kind", "SrvBATTERY1/LLN0$status"},
		{"missing system id", "SrvBATTERY/LLN0$Status"},
		{"trailing garbage", "SrvBATTERY1/LLN0$StatusX"},
		{"combined load is not a wire type", "SrvLOAD_COMBINED1/LLN0$Status"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := reporting.ParseDataSetReference(tt.ref); ok {
				t.Errorf("expected %q to be rejected", tt.ref)
			}
		})
	}
}
