package device

import (
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/domain"
	"github.com/CodingKeeper/Protocol-Adapter-IEC61850/internal/iec61850"
)

// translator turns a read node into a canonical measurement.
type translator func(c *iec61850.NodeContainer, index int, description string) (domain.Measurement, error)

// readCommand describes how one data object is read from a device: the
// logical node it lives on, its functional constraint and its translation.
type readCommand struct {
	logicalNode string
	// indexed logical nodes carry the metering index in their name, e.g.
	// MMXU2 on a combined load device.
	indexed   bool
	fc        iec61850.Fc
	translate translator
}

func statusCommand(logicalNode string) readCommand {
	return readCommand{logicalNode: logicalNode, fc: iec61850.FcST, translate: iec61850.TranslateStatusValue}
}

// readCommands maps a requested node name to its read command. Nodes absent
// here cannot be read directly and are skipped with a warning.
var readCommands = map[string]readCommand{
	"Beh":    statusCommand("LLN0"),
	"Health": statusCommand("LLN0"),
	"Mod":    statusCommand("LLN0"),

	"Alm1":   statusCommand("GGIO1"),
	"Alm2":   statusCommand("GGIO1"),
	"Alm3":   statusCommand("GGIO1"),
	"Alm4":   statusCommand("GGIO1"),
	"IntIn1": statusCommand("GGIO1"),
	"IntIn2": statusCommand("GGIO1"),
	"Wrn1":   statusCommand("GGIO1"),
	"Wrn2":   statusCommand("GGIO1"),
	"Wrn3":   statusCommand("GGIO1"),
	"Wrn4":   statusCommand("GGIO1"),

	"TotW":    {logicalNode: "MMXU", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateMagnitude},
	"MaxWPhs": {logicalNode: "MMXU", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateMagnitude},
	"MinWPhs": {logicalNode: "MMXU", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateMagnitude},
	"TotPF":   {logicalNode: "MMXU", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateMagnitude},
	"Hz":      {logicalNode: "MMXU", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateMagnitude},

	// Total energy is implemented as Int32 on some RTUs and Int64 on
	// others; the actual-value translation accepts both.
	"TotWh": {logicalNode: "MMTR", indexed: true, fc: iec61850.FcST, translate: iec61850.TranslateActualValue},

	"TmpSv":  {logicalNode: "TTMP", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateSampledValue},
	"TmpBck": {logicalNode: "TTMP", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateSampledValue},
	"TmpOut": {logicalNode: "TTMP", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateSampledValue},
	"FlwRte": {logicalNode: "MFLW", indexed: true, fc: iec61850.FcMX, translate: iec61850.TranslateSampledValue},
}

// defaultReadNodes is read when a system filter names no nodes.
var defaultReadNodes = []string{"Beh", "Health", "Mod"}
